
package models

import (
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the layout used for the Timestamp column.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrorSentinel replaces title and description when a page could not be fetched.
const ErrorSentinel = "Error"

type Meta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Language    string `json:"language,omitempty"`
}

type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// Sure reports whether records of this tier go to the "Sure" table.
func (t Tier) Sure() bool { return t == TierA || t == TierB }

const (
	DetailsHebrew     = "Hebrew / .il"
	DetailsGood       = "Good keywords"
	DetailsNoGood     = "No good keywords"
	DetailsError      = "Error"
	LanguageHebrew    = "hebrew"
	LanguageEnglish   = "english"
	LanguageUnknown   = "unknown"
	SourceHomepageTag = "(d)"
	SourcePageTag     = "(p)"
)

// ResultHeaders is the column order of the "Sure" and "Not Sure" tables.
var ResultHeaders = []string{
	"URL", "Title", "Description", "Tier", "Details", "Source",
	"Languages", "Good Keywords", "Bad Keywords", "Timestamp",
}

type ClassificationRecord struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tier        Tier      `json:"tier"`
	Details     string    `json:"details"`
	Source      string    `json:"source"`
	Languages   []string  `json:"languages"`
	GoodCount   int       `json:"goodCount"`
	BadCount    int       `json:"badCount"`
	Timestamp   time.Time `json:"timestamp"`
}

// Row renders the record in ResultHeaders order.
func (r ClassificationRecord) Row() []string {
	langs := LanguageUnknown
	if len(r.Languages) > 0 {
		langs = strings.Join(r.Languages, ", ")
	}
	return []string{
		r.URL,
		r.Title,
		r.Description,
		string(r.Tier),
		r.Details,
		r.Source,
		langs,
		strconv.Itoa(r.GoodCount),
		strconv.Itoa(r.BadCount),
		r.Timestamp.Format(TimestampLayout),
	}
}

type KeywordSet struct {
	Good []string `json:"good" yaml:"good"`
	Bad  []string `json:"bad" yaml:"bad"`
}

// Normalize lowercases and trims every keyword and drops blanks.
func (k KeywordSet) Normalize() KeywordSet {
	return KeywordSet{Good: normalizeList(k.Good), Bad: normalizeList(k.Bad)}
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, w := range in {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

type SearchQuery struct {
	Text         string `json:"text"`
	Language     string `json:"language"`
	HomepageOnly bool   `json:"homepageOnly"`
	ResultLimit  int    `json:"resultLimit"`
}

// SearchHit is a candidate URL together with the label describing where it came from.
type SearchHit struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}
