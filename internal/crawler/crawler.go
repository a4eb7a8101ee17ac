
package crawler

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"archive-sifter/internal/fault"
	"archive-sifter/internal/models"
	"archive-sifter/internal/parser"
)

// DefaultUserAgent is a desktop browser string; several target sites refuse bot agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var (
	ErrInvalidURL = errors.New("invalid url")
	ErrNonHTML    = errors.New("non-html content")
)

// StatusError is returned for responses outside 2xx/3xx.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("http status %d", e.Code) }

type Options struct {
	Timeout     time.Duration
	DialTimeout time.Duration
	SizeCap     int64
	UserAgent   string
}

type HTTPClient struct {
	client    *http.Client
	sizeCap   int64
	userAgent string
	parser    *parser.Parser
}

func NewHTTPClient(opts Options) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.SizeCap <= 0 {
		opts.SizeCap = 5 * 1024 * 1024
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		sizeCap:   opts.SizeCap,
		userAgent: opts.UserAgent,
		parser:    parser.New(),
	}
}

var schemeRe = regexp.MustCompile(`(?i)^https?://`)

// NormalizeURL trims raw and prefixes https:// when it carries no http(s) scheme.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || schemeRe.MatchString(raw) {
		return raw
	}
	return "https://" + raw
}

// Fetch returns a size capped HTML body and its content type.
func (h *HTTPClient) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, "", ErrInvalidURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,he;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, "", &StatusError{Code: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.Contains(mediaType, "text/html") && !strings.Contains(mediaType, "application/xhtml+xml") && mediaType != "" {
		// empty types are allowed, some servers omit the header
		resp.Body.Close()
		return nil, "", ErrNonHTML
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, "", err
		}
		body = gz
	}

	return &limitedBody{Reader: io.LimitReader(body, h.sizeCap), closer: resp.Body}, contentType, nil
}

type limitedBody struct {
	io.Reader
	closer io.Closer
}

func (b *limitedBody) Close() error { return b.closer.Close() }

// FetchPage normalizes rawURL, fetches it and extracts title and description.
// Transport, status and content type failures are fault.Network; undecodable
// documents are fault.Parse.
func (h *HTTPClient) FetchPage(ctx context.Context, rawURL string) (models.Meta, error) {
	target := NormalizeURL(rawURL)
	body, ct, err := h.Fetch(ctx, target)
	if err != nil {
		return models.Meta{}, fault.Wrap(fault.Network, "fetch", target, err)
	}
	defer body.Close()

	meta, err := h.parser.Extract(body, ct)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return models.Meta{}, fault.Wrap(fault.Network, "read body", target, err)
		}
		return models.Meta{}, fault.Wrap(fault.Parse, "parse", target, err)
	}
	return meta, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
