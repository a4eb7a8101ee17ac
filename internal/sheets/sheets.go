// Package sheets reads keyword lists from and appends result rows to Google Sheets.
package sheets

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"archive-sifter/internal/fault"
)

// Scopes requested for the service account.
var Scopes = []string{gsheets.SpreadsheetsScope, gsheets.DriveScope}

type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
	Append(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error
	Update(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error
}

type Client struct {
	api valuesAPI
}

// NewClient authorizes with a service account JSON key.
func NewClient(ctx context.Context, credentialsJSON []byte, opts ...option.ClientOption) (*Client, error) {
	if len(credentialsJSON) == 0 {
		return nil, fmt.Errorf("sheets: empty service account credentials")
	}
	opts = append([]option.ClientOption{
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(Scopes...),
	}, opts...)
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fault.Wrap(fault.ExternalService, "authorize sheets", "", err)
	}
	return &Client{api: &serviceAPI{values: svc.Spreadsheets.Values}}, nil
}

// Table addresses one worksheet of a spreadsheet.
func (c *Client) Table(spreadsheetID, sheet string) *Table {
	return &Table{api: c.api, spreadsheetID: spreadsheetID, sheet: sheet}
}

// OpenTable is Table followed by EnsureHeader.
func (c *Client) OpenTable(ctx context.Context, spreadsheetID, sheet string, header []string) (*Table, error) {
	t := c.Table(spreadsheetID, sheet)
	if err := t.EnsureHeader(ctx, header); err != nil {
		return nil, err
	}
	return t, nil
}

type Table struct {
	api           valuesAPI
	spreadsheetID string
	sheet         string
}

func (t *Table) Name() string { return t.sheet }

func (t *Table) a1(rng string) string {
	return "'" + strings.ReplaceAll(t.sheet, "'", "''") + "'!" + rng
}

// Rows returns every populated row of the sheet.
func (t *Table) Rows(ctx context.Context) ([][]string, error) {
	values, err := t.api.Get(ctx, t.spreadsheetID, t.a1("A:Z"))
	if err != nil {
		return nil, fault.Wrap(fault.ExternalService, "read sheet", t.sheet, err)
	}
	rows := make([][]string, len(values))
	for i, r := range values {
		rows[i] = make([]string, len(r))
		for j, v := range r {
			rows[i][j] = fmt.Sprint(v)
		}
	}
	return rows, nil
}

// EnsureHeader writes header into row 1 when the sheet is empty.
func (t *Table) EnsureHeader(ctx context.Context, header []string) error {
	values, err := t.api.Get(ctx, t.spreadsheetID, t.a1("1:1"))
	if err != nil {
		return fault.Wrap(fault.ExternalService, "read header", t.sheet, err)
	}
	if len(values) > 0 && len(values[0]) > 0 {
		return nil
	}
	if err := t.api.Update(ctx, t.spreadsheetID, t.a1("A1"), toValues([][]string{header})); err != nil {
		return fault.Wrap(fault.ExternalService, "write header", t.sheet, err)
	}
	return nil
}

// Append adds rows after the last populated row in a single request.
func (t *Table) Append(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	if err := t.api.Append(ctx, t.spreadsheetID, t.a1("A1"), toValues(rows)); err != nil {
		return fault.Wrap(fault.ExternalService, "append rows", t.sheet, err)
	}
	return nil
}

func toValues(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, r := range rows {
		out[i] = make([]interface{}, len(r))
		for j, v := range r {
			out[i][j] = v
		}
	}
	return out
}

type serviceAPI struct {
	values *gsheets.SpreadsheetsValuesService
}

func (s *serviceAPI) Get(ctx context.Context, id, rng string) ([][]interface{}, error) {
	vr, err := s.values.Get(id, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return vr.Values, nil
}

func (s *serviceAPI) Append(ctx context.Context, id, rng string, rows [][]interface{}) error {
	_, err := s.values.Append(id, rng, &gsheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (s *serviceAPI) Update(ctx context.Context, id, rng string, rows [][]interface{}) error {
	_, err := s.values.Update(id, rng, &gsheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}
