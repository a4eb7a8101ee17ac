package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"archive-sifter/internal/crawler"
	"archive-sifter/internal/ioformats"
	"archive-sifter/internal/models"
	"archive-sifter/internal/pipeline"
	"archive-sifter/internal/splitter"
	"archive-sifter/internal/urlfilter"
)

type recordClassifier interface {
	Classify(ctx context.Context, rawURL, source string, kw models.KeywordSet) models.ClassificationRecord
}

type server struct {
	classify recordClassifier
	keywords pipeline.KeywordSource
	filter   *urlfilter.Filter
	splitter *splitter.Splitter
	workers  int
	timeout  time.Duration
	log      zerolog.Logger
}

type classifyReq struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

type batchReq struct {
	URLs   []string `json:"urls"`
	Source string   `json:"source"`
}

type splitOut struct {
	URL    string           `json:"url"`
	Result *splitter.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	// POST /classify  { "url": "https://...", "source": "..." }
	mux.HandleFunc("/classify", s.handleClassify)
	// POST /classify/batch  { "urls": [...] } -> NDJSON stream
	mux.HandleFunc("/classify/batch", s.handleBatch)
	// POST /classify/upload (multipart file=...) -> NDJSON stream
	mux.HandleFunc("/classify/upload", s.handleUpload)
	// POST /split  { "urls": [...] }
	mux.HandleFunc("/split", s.handleSplit)
	return mux
}

func (s *server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req classifyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	kw, err := s.keywords.Keywords(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	writeJSON(w, http.StatusOK, s.classify.Classify(ctx, crawler.NormalizeURL(req.URL), sourceOr(req.Source, "api"), kw))
}

func (s *server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req batchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.URLs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	s.stream(w, r, req.URLs, sourceOr(req.Source, "api batch"))
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart parse error"})
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file part 'file' required"})
		return
	}
	defer f.Close()

	// ReadURLs picks the format from the extension, so keep the uploaded one.
	tmp, err := os.CreateTemp("", "upload-*-"+safeName(hdr.Filename))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "temp file error"})
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, f); err != nil {
		tmp.Close()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "copy error"})
		return
	}
	tmp.Close()

	urls, err := ioformats.ReadURLs(tmp.Name())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.stream(w, r, urls, sourceOr(r.FormValue("source"), hdr.Filename))
}

// targets normalizes urls and applies the site dedupe and blocklist.
func (s *server) targets(urls []string, source string) []models.SearchHit {
	hits := make([]models.SearchHit, 0, len(urls))
	for _, u := range urls {
		if u = crawler.NormalizeURL(u); u != "" {
			hits = append(hits, models.SearchHit{URL: u, Source: source})
		}
	}
	return s.filter.Apply(hits)
}

// stream classifies the filtered urls with up to s.workers in flight and
// writes the records in input order, each as soon as it and all records
// before it are ready.
func (s *server) stream(w http.ResponseWriter, r *http.Request, urls []string, source string) {
	kw, err := s.keywords.Keywords(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	hits := s.targets(urls, source)
	s.log.Info().Int("urls", len(hits)).Int("submitted", len(urls)).Str("source", source).Msg("classifying batch")

	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)

	ctx := r.Context()
	results := make([]chan models.ClassificationRecord, len(hits))
	for i := range results {
		results[i] = make(chan models.ClassificationRecord, 1)
	}
	go func() {
		sem := make(chan struct{}, max(s.workers, 1))
		for i, h := range hits {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			go func() {
				defer func() { <-sem }()
				cctx, cancel := context.WithTimeout(ctx, s.timeout)
				defer cancel()
				results[i] <- s.classify.Classify(cctx, h.URL, h.Source, kw)
			}()
		}
	}()

	for _, ch := range results {
		select {
		case rec := <-ch:
			_ = enc.Encode(rec)
			if flusher != nil {
				flusher.Flush()
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *server) handleSplit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req batchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.URLs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	out := make([]splitOut, 0, len(req.URLs))
	for _, u := range req.URLs {
		res, err := s.splitter.Split(u)
		if err != nil {
			out = append(out, splitOut{URL: u, Error: err.Error()})
			continue
		}
		out = append(out, splitOut{URL: u, Result: &res})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func logRequest(l zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		l.Info().Str("method", r.Method).Str("path", r.URL.Path).Dur("took", time.Since(start)).Msg("request")
	})
}

func sourceOr(source, fallback string) string {
	if source != "" {
		return source
	}
	return fallback
}

func safeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			out = append(out, r)
		}
	}
	return string(out)
}
