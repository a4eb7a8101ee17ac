
package parser

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"archive-sifter/internal/models"
)

type Parser struct{}

func New() *Parser { return &Parser{} }

var lineBreakRe = regexp.MustCompile(`[\r\n]+`)

// Extract reads an HTML document and returns its title and meta description.
// Missing tags yield empty strings, not errors.
func (p *Parser) Extract(r io.Reader, contentType string) (models.Meta, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return models.Meta{}, err
	}

	enc, _, _ := charset.DetermineEncoding(data, contentType)
	utf8data, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if !utf8.Valid(data) {
			return models.Meta{}, err
		}
		utf8data = data
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8data))
	if err != nil {
		return models.Meta{}, err
	}

	title := doc.Find("title").First().Text()
	desc := doc.Find(`meta[name="description"]`).First().AttrOr("content", "")
	if strings.TrimSpace(desc) == "" {
		desc = doc.Find(`meta[property="og:description"]`).First().AttrOr("content", "")
	}

	lang := strings.TrimSpace(doc.Find("html").AttrOr("lang", ""))
	if lang == "" {
		lang = strings.TrimSpace(doc.Find(`meta[property="og:locale"]`).AttrOr("content", ""))
	}

	return models.Meta{
		Title:       Clean(title),
		Description: Clean(desc),
		Language:    lang,
	}, nil
}

// Clean trims s and collapses line breaks into single spaces.
func Clean(s string) string {
	return lineBreakRe.ReplaceAllString(strings.TrimSpace(s), " ")
}
