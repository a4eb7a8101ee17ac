// Package splitter breaks a domain's registrable label into dictionary words,
// e.g. kosherdeli.co.il -> [kosher deli].
package splitter

import (
	"bufio"
	"embed"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"

	"archive-sifter/internal/models"
)

//go:embed dict/*.txt
var dictFS embed.FS

// Languages lists the embedded dictionaries in tie-break order.
var Languages = []struct{ Code, Name string }{
	{"en", "english"},
	{"fr", "french"},
	{"de", "german"},
	{"es", "spanish"},
	{"it", "italian"},
	{"pt", "portuguese"},
	{"he", models.LanguageHebrew},
}

// Headers is the column order of the "Split" sheet.
var Headers = []string{"URL", "Domain", "Words", "Language", "Coverage", "Source", "Timestamp"}

type Result struct {
	URL      string   `json:"url"`
	Domain   string   `json:"domain"`
	Label    string   `json:"label"`
	Words    []string `json:"words"`
	Language string   `json:"language"`
	// Coverage is the fraction of letters that belong to dictionary words.
	Coverage float64 `json:"coverage"`
}

func (r Result) Row(source string, ts time.Time) []string {
	return []string{
		r.URL,
		r.Domain,
		strings.Join(r.Words, " "),
		r.Language,
		strconv.FormatFloat(r.Coverage, 'f', 2, 64),
		source,
		ts.Format(models.TimestampLayout),
	}
}

type dictionary struct {
	name   string
	words  map[string]struct{}
	maxLen int
}

type Splitter struct {
	dicts []dictionary
}

// New loads the dictionaries for the given language codes, or all of them when
// none are given.
func New(codes ...string) (*Splitter, error) {
	want := map[string]bool{}
	for _, c := range codes {
		want[strings.ToLower(strings.TrimSpace(c))] = true
	}
	s := &Splitter{}
	for _, l := range Languages {
		if len(want) > 0 && !want[l.Code] {
			continue
		}
		d, err := loadDictionary(l.Code, l.Name)
		if err != nil {
			return nil, err
		}
		s.dicts = append(s.dicts, d)
	}
	if len(s.dicts) == 0 {
		return nil, fmt.Errorf("no dictionary for languages %v", codes)
	}
	return s, nil
}

func loadDictionary(code, name string) (dictionary, error) {
	f, err := dictFS.Open("dict/" + code + ".txt")
	if err != nil {
		return dictionary{}, fmt.Errorf("open dictionary %s: %w", code, err)
	}
	defer f.Close()
	d := dictionary{name: name, words: map[string]struct{}{}}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.ToLower(strings.TrimSpace(sc.Text()))
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		d.words[w] = struct{}{}
		d.maxLen = max(d.maxLen, len([]rune(w)))
	}
	return d, sc.Err()
}

var chunkRe = regexp.MustCompile(`\p{L}+|\p{N}+`)

// Split segments rawURL's registrable label with every dictionary and keeps
// the language that covers the most letters.
func (s *Splitter) Split(rawURL string) (Result, error) {
	host, err := hostOf(rawURL)
	if err != nil {
		return Result{}, err
	}
	res := Result{URL: rawURL, Domain: host, Label: Label(host)}
	chunks := chunkRe.FindAllString(res.Label, -1)

	letters := 0
	for _, c := range chunks {
		if isLetters(c) {
			letters += len([]rune(c))
		}
	}

	best := -1
	for i, d := range s.dicts {
		var words []string
		covered := 0
		for _, c := range chunks {
			if !isLetters(c) {
				words = append(words, c)
				continue
			}
			toks, cov := d.segment(c)
			words = append(words, toks...)
			covered += cov
		}
		cov := 0.0
		if letters > 0 {
			cov = float64(covered) / float64(letters)
		}
		if best < 0 || cov > res.Coverage {
			best = i
			res.Words, res.Coverage, res.Language = words, cov, d.name
		}
	}
	if res.Coverage == 0 {
		res.Language = models.LanguageUnknown
	}
	return res, nil
}

// Label returns the registrable part of host without its public suffix:
// shop.kosherdeli.co.il -> kosherdeli.
func Label(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		first, _, _ := strings.Cut(host, ".")
		return first
	}
	suffix, _ := publicsuffix.PublicSuffix(etld1)
	return strings.TrimSuffix(etld1, "."+suffix)
}

func hostOf(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("invalid url %q", rawURL)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if uni, err := idna.ToUnicode(host); err == nil {
		host = uni
	}
	return host, nil
}

// isLetters reports whether a chunk is a letter run rather than a number run.
func isLetters(chunk string) bool {
	r, _ := utf8.DecodeRuneInString(chunk)
	return unicode.IsLetter(r)
}

type cell struct {
	ok      bool
	covered int
	words   int
	prev    int
	prevSt  int
}

func (c cell) better(o cell) bool {
	if !o.ok {
		return c.ok
	}
	if c.covered != o.covered {
		return c.covered > o.covered
	}
	return c.words < o.words
}

// segment splits a run of letters into dictionary words, maximizing covered
// letters and then minimizing the token count. Consecutive unmatched letters
// form a single token.
func (d dictionary) segment(chunk string) ([]string, int) {
	rs := []rune(chunk)
	n := len(rs)
	// dp[i][0]: prefix of length i ending in a word; dp[i][1]: ending in an unmatched run.
	dp := make([][2]cell, n+1)
	dp[0][0] = cell{ok: true}
	for i := 1; i <= n; i++ {
		for j := max(0, i-d.maxLen); j < i; j++ {
			if _, ok := d.words[string(rs[j:i])]; !ok {
				continue
			}
			for st := 0; st < 2; st++ {
				from := dp[j][st]
				if !from.ok {
					continue
				}
				c := cell{ok: true, covered: from.covered + i - j, words: from.words + 1, prev: j, prevSt: st}
				if c.better(dp[i][0]) {
					dp[i][0] = c
				}
			}
		}
		if from := dp[i-1][0]; from.ok {
			c := cell{ok: true, covered: from.covered, words: from.words + 1, prev: i - 1, prevSt: 0}
			if c.better(dp[i][1]) {
				dp[i][1] = c
			}
		}
		if from := dp[i-1][1]; from.ok {
			c := cell{ok: true, covered: from.covered, words: from.words, prev: i - 1, prevSt: 1}
			if c.better(dp[i][1]) {
				dp[i][1] = c
			}
		}
	}

	st := 0
	if dp[n][1].better(dp[n][0]) {
		st = 1
	}
	covered := dp[n][st].covered

	var toks []string
	end := n
	for i := n; i > 0; {
		c := dp[i][st]
		if st == 0 {
			toks = append(toks, string(rs[c.prev:i]))
			end = c.prev
		} else if c.prevSt == 0 {
			toks = append(toks, string(rs[c.prev:end]))
			end = c.prev
		}
		i, st = c.prev, c.prevSt
	}
	for l, r := 0, len(toks)-1; l < r; l, r = l+1, r-1 {
		toks[l], toks[r] = toks[r], toks[l]
	}
	return toks, covered
}
