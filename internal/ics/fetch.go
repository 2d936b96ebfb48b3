package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"audiencier/internal/clock"
	appLog "audiencier/internal/log"
)

// Source is one external court calendar.
type Source struct {
	ID   string
	Name string
	URL  string
}

// Fetched is the body of a source, from the network or the disk cache.
type Fetched struct {
	Source    Source
	Body      []byte
	FromCache bool
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads calendars with conditional requests and keeps the last
// good body on disk, so that a court site outage does not empty the agenda.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	clock    clock.Clock
}

func NewFetcher(cacheDir string, clk clock.Clock) *Fetcher {
	if cacheDir == "" {
		cacheDir = filepath.Join("data", "ics-cache")
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
		clock:    clk,
	}
}

// Fetch downloads src, sending If-None-Match / If-Modified-Since from the
// previous response. A 304, a network error or a non-200 status falls back
// to the cached body when there is one.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (Fetched, error) {
	if src.URL == "" {
		return Fetched{}, fmt.Errorf("ics: source %s has no url", src.ID)
	}

	dir := f.cacheDirFor(src.URL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Fetched{}, fmt.Errorf("ics: cache dir: %w", err)
	}
	meta, _ := readMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	fallback := func(reason error) (Fetched, error) {
		if len(cached) == 0 {
			return Fetched{}, fmt.Errorf("ics: fetch %s: %w", src.ID, reason)
		}
		appLog.Warn("ics fetch failed, serving cached body", "source", src.ID, "url", redactURL(src.URL), "err", reason)
		return Fetched{Source: src, Body: cached, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return Fetched{}, fmt.Errorf("ics: request %s: %w", src.ID, err)
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fallback(err)
		}
		meta = cacheMeta{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    f.clock.Now().UTC(),
		}
		if err := writeCache(dir, meta, body); err != nil {
			appLog.Error("ics cache write failed", err, "source", src.ID)
		}
		appLog.Info("ics fetched", "source", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return Fetched{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return Fetched{}, fmt.Errorf("ics: fetch %s: 304 without cached body", src.ID)
		}
		appLog.Debug("ics not modified", "source", src.ID)
		return Fetched{Source: src, Body: cached, FromCache: true}, nil

	default:
		return fallback(errors.New(resp.Status))
	}
}

// cacheDirFor keys the cache by a hash of the URL, which may carry a token.
func (f *Fetcher) cacheDirFor(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func readMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

// writeCache writes the body before the metadata so the metadata never
// describes a missing body.
func writeCache(dir string, meta cacheMeta, body []byte) error {
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only; feed URLs often embed a token.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
