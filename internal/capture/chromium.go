// Package capture renders the agenda dashboard to a PNG with headless
// Chromium, for printing or posting the daily cause list.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	appLog "audiencier/internal/log"
)

const (
	DefaultWidth   = 1280
	DefaultHeight  = 1600
	DefaultTimeout = 30 * time.Second
)

// readySelector is set by the dashboard once the first agenda and
// deadline requests have rendered.
const readySelector = `body[data-ready="true"]`

// Options describes one snapshot.
type Options struct {
	// BaseURL of a running server, e.g. "http://127.0.0.1:8080".
	BaseURL string
	// Search and Status preset the dashboard filters.
	Search string
	Status string

	OutputPath string
	Width      int
	Height     int
	Timeout    time.Duration

	// Username and Password are sent as Basic Auth when set.
	Username string
	Password string
}

// PageURL returns the dashboard URL with the filters as query parameters.
func (o Options) PageURL() (string, error) {
	u, err := url.Parse(o.BaseURL)
	if err != nil {
		return "", fmt.Errorf("capture: base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("capture: base url %q is not absolute", o.BaseURL)
	}
	u.Path = "/"
	q := url.Values{}
	if o.Search != "" {
		q.Set("q", o.Search)
	}
	if o.Status != "" {
		q.Set("status", o.Status)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (o *Options) defaults() {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
}

// Snapshot opens the dashboard in headless Chromium, waits for it to
// signal readiness and writes a full-page PNG to opts.OutputPath.
func Snapshot(parent context.Context, opts Options) error {
	if opts.OutputPath == "" {
		return errors.New("capture: output path is required")
	}
	opts.defaults()
	page, err := opts.PageURL()
	if err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, opts.Timeout)
	defer cancelTimeout()

	tasks := chromedp.Tasks{network.Enable()}
	if opts.Username != "" {
		token := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		tasks = append(tasks, network.SetExtraHTTPHeaders(network.Headers{"Authorization": "Basic " + token}))
	}

	var png []byte
	tasks = append(tasks,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(page),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		chromedp.Sleep(300*time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	)
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
		return fmt.Errorf("capture: output dir: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: write png: %w", err)
	}
	appLog.Info("snapshot written", "path", opts.OutputPath, "bytes", len(png), "url", page)
	return nil
}
