package ioformats

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"archive-sifter/internal/models"
)

// NDJSONSink writes records to w instead of a spreadsheet, one JSON object per
// line tagged with the table it would have gone to.
type NDJSONSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewNDJSONSink(w io.Writer) *NDJSONSink { return &NDJSONSink{w: w} }

type sinkLine struct {
	Destination string `json:"destination"`
	models.ClassificationRecord
}

func (s *NDJSONSink) Write(_ context.Context, sure, notSure []models.ClassificationRecord) error {
	items := make([]any, 0, len(sure)+len(notSure))
	for _, r := range sure {
		items = append(items, sinkLine{Destination: "Sure", ClassificationRecord: r})
	}
	for _, r := range notSure {
		items = append(items, sinkLine{Destination: "Not Sure", ClassificationRecord: r})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return WriteNDJSON(s.w, items)
}

// KeywordFile loads a keyword set from a YAML file of the form
//
//	good: [kosher, jewish]
//	bad: [casino]
type KeywordFile struct {
	Path string
}

func (k KeywordFile) Keywords(context.Context) (models.KeywordSet, error) {
	data, err := os.ReadFile(k.Path)
	if err != nil {
		return models.KeywordSet{}, err
	}
	var set models.KeywordSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return models.KeywordSet{}, fmt.Errorf("parse keyword file %s: %w", k.Path, err)
	}
	return set.Normalize(), nil
}
