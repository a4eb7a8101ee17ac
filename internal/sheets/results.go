package sheets

import (
	"context"
	"errors"

	"archive-sifter/internal/models"
)

const (
	SureSheet     = "Sure"
	NotSureSheet  = "Not Sure"
	KeywordsSheet = "Keywords"
)

// ResultSink appends classified records to the "Sure" and "Not Sure" sheets.
type ResultSink struct {
	Sure    *Table
	NotSure *Table
}

// OpenResults opens both destination sheets and writes their headers if needed.
func OpenResults(ctx context.Context, c *Client, spreadsheetID string) (*ResultSink, error) {
	rs := &ResultSink{
		Sure:    c.Table(spreadsheetID, SureSheet),
		NotSure: c.Table(spreadsheetID, NotSureSheet),
	}
	for _, t := range []*Table{rs.Sure, rs.NotSure} {
		if err := t.EnsureHeader(ctx, models.ResultHeaders); err != nil {
			return nil, err
		}
	}
	return rs, nil
}

func (rs *ResultSink) Write(ctx context.Context, sure, notSure []models.ClassificationRecord) error {
	errSure := rs.Sure.Append(ctx, recordRows(sure))
	errNotSure := rs.NotSure.Append(ctx, recordRows(notSure))
	return errors.Join(errSure, errNotSure)
}

func recordRows(recs []models.ClassificationRecord) [][]string {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, r.Row())
	}
	return rows
}

// KeywordSource reads good keywords from column A and bad keywords from column C
// of the "Keywords" sheet; the first row is a header.
type KeywordSource struct {
	Table *Table
}

func NewKeywordSource(c *Client, spreadsheetID string) *KeywordSource {
	return &KeywordSource{Table: c.Table(spreadsheetID, KeywordsSheet)}
}

func (k *KeywordSource) Keywords(ctx context.Context) (models.KeywordSet, error) {
	rows, err := k.Table.Rows(ctx)
	if err != nil {
		return models.KeywordSet{}, err
	}
	var set models.KeywordSet
	for i, r := range rows {
		if i == 0 {
			continue
		}
		if len(r) > 0 {
			set.Good = append(set.Good, r[0])
		}
		if len(r) > 2 {
			set.Bad = append(set.Bad, r[2])
		}
	}
	return set.Normalize(), nil
}
