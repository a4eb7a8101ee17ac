// Package langdetect guesses the languages of a page from its title and description.
package langdetect

import (
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"archive-sifter/internal/models"
)

var hebrewRange = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0590, Hi: 0x05FF, Stride: 1}},
}

type Detector struct {
	// MinConfidence overrides the detector's own reliability check when > 0.
	MinConfidence float64
}

func New() *Detector { return &Detector{} }

// Detect returns lowercase English language names, "hebrew" first when any
// Hebrew code point is present. hint is the page's declared language tag
// (html[lang] or og:locale); it is used only when the statistical guess is
// unreliable and never adds "hebrew", which comes from code points alone.
// Empty text is always ["unknown"].
func (d *Detector) Detect(title, description, hint string) []string {
	text := Combine(title, description)
	var langs []string
	if ContainsHebrew(text) {
		langs = append(langs, models.LanguageHebrew)
	}
	if name, ok := d.statistical(text); ok {
		langs = appendUnique(langs, name)
	} else if name, ok := HintName(hint); ok && text != "" && name != models.LanguageHebrew {
		langs = appendUnique(langs, name)
	}
	if len(langs) == 0 {
		return []string{models.LanguageUnknown}
	}
	return langs
}

func (d *Detector) statistical(text string) (name string, ok bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	defer func() {
		if recover() != nil {
			name, ok = "", false
		}
	}()
	info := whatlanggo.Detect(text)
	reliable := info.IsReliable()
	if d.MinConfidence > 0 {
		reliable = info.Confidence >= d.MinConfidence
	}
	if !reliable {
		return "", false
	}
	name = strings.ToLower(info.Lang.String())
	if name == "" || name == models.LanguageUnknown {
		return "", false
	}
	return name, true
}

// HintName maps a declared tag such as "he-IL" or "fr_FR" to a lowercase
// English language name.
func HintName(tag string) (string, bool) {
	tag = strings.ReplaceAll(strings.TrimSpace(tag), "_", "-")
	if tag == "" {
		return "", false
	}
	t, err := language.Parse(tag)
	if err != nil {
		return "", false
	}
	base, conf := t.Base()
	if conf == language.No {
		return "", false
	}
	name := strings.ToLower(display.English.Languages().Name(base))
	if name == "" {
		return "", false
	}
	return name, true
}

// ContainsHebrew reports whether s has any code point in U+0590..U+05FF.
func ContainsHebrew(s string) bool {
	for _, r := range s {
		if unicode.Is(hebrewRange, r) {
			return true
		}
	}
	return false
}

// Combine lowercases and joins title and description with a single space.
func Combine(title, description string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	description = strings.ToLower(strings.TrimSpace(description))
	return strings.TrimSpace(title + " " + description)
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
