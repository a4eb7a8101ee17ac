
package crawler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archive-sifter/internal/fault"
)

func TestFetchHTML(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(200)
		_, _ = w.Write([]byte("<html><title>x</title></html>"))
	}))
	defer ts.Close()

	client := NewHTTPClient(Options{Timeout: 5 * time.Second, DialTimeout: 2 * time.Second, SizeCap: 1024})
	rc, ct, err := client.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<title>x</title>")
	assert.Equal(t, "text/html", ct)
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestRejectNonHTML(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte("{}"))
	}))
	defer ts.Close()

	client := NewHTTPClient(Options{Timeout: 5 * time.Second})
	_, _, err := client.Fetch(context.Background(), ts.URL)
	assert.ErrorIs(t, err, ErrNonHTML)
}

func TestFetchStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewHTTPClient(Options{})
	_, _, err := client.Fetch(context.Background(), ts.URL)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestFetchPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Deli</title><meta name="description" content="kosher food"></head></html>`))
	}))
	defer ts.Close()

	meta, err := NewHTTPClient(Options{}).FetchPage(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "Deli", meta.Title)
	assert.Equal(t, "kosher food", meta.Description)
}

func TestFetchPageTimeoutIsNetworkFault(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<title>late</title>"))
	}))
	defer ts.Close()

	client := NewHTTPClient(Options{Timeout: 50 * time.Millisecond})
	_, err := client.FetchPage(context.Background(), ts.URL)
	require.Error(t, err)
	assert.Equal(t, fault.Network, fault.KindOf(err))
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"example.il", "https://example.il"},
		{"  www.foo.com/path ", "https://www.foo.com/path"},
		{"http://foo.com", "http://foo.com"},
		{"HTTPS://Foo.com", "HTTPS://Foo.com"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.in), tt.in)
	}
}
