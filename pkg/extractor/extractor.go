// Package extractor talks to the external audio extraction service.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
	"github.com/samvad-hq/samvad-audio-relay/pkg/httpclient"
)

const (
	defaultTimeout        = 180 * time.Second
	defaultCleanupTimeout = 15 * time.Second
	defaultMaxPayload     = 20 * 1024 * 1024
)

// Logger defines the logging surface the extractor relies on.
type Logger interface {
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}

// Config controls the extraction client.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	CleanupTimeout  time.Duration
	MaxPayloadBytes int64
}

// Result describes one extraction attempt.
type Result struct {
	Status      domain.Outcome
	ItemID      string
	Title       string
	Author      string
	Duration    int
	Filename    string
	SizeBytes   int64
	DownloadURL string
}

// response mirrors the extraction service JSON body.
type response struct {
	Success     bool    `json:"success"`
	VideoID     string  `json:"videoId"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Duration    float64 `json:"duration"`
	Filename    string  `json:"filename"`
	Filesize    int64   `json:"filesize"`
	DownloadURL string  `json:"downloadUrl"`
	Error       string  `json:"error"`
}

// Client fetches extracted audio metadata and cleans up served files.
type Client struct {
	base    *url.URL
	cfg     Config
	http    httpclient.Client
	log     Logger
	pending sync.WaitGroup
}

// New validates cfg and returns a Client. A nil log discards output.
func New(cfg Config, client httpclient.Client, log Logger) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, errors.New("extractor base url is empty")
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid extractor base url %q", cfg.BaseURL)
	}
	if client == nil {
		return nil, errors.New("extractor http client is nil")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = defaultCleanupTimeout
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = defaultMaxPayload
	}
	if log == nil {
		log = noopLogger{}
	}
	return &Client{base: base, cfg: cfg, http: client, log: log}, nil
}

// Fetch asks the service to extract itemID. Failures wrap
// domain.ErrExtractionFailed; oversized payloads wrap domain.ErrSizeExceeded
// and return a skipped result after scheduling cleanup.
func (c *Client) Fetch(ctx context.Context, itemID string) (Result, error) {
	res := Result{Status: domain.OutcomeFailed, ItemID: itemID}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.http.Get(ctx, c.endpoint("api", "download", itemID), map[string]string{"Accept": "application/json"})
	if err != nil {
		return res, fmt.Errorf("item %s: %w: %v", itemID, domain.ErrExtractionFailed, err)
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return res, fmt.Errorf("item %s: %w: status %d", itemID, domain.ErrExtractionFailed, code)
	}

	var body response
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return res, fmt.Errorf("item %s: %w: decode response: %v", itemID, domain.ErrExtractionFailed, err)
	}
	if !body.Success || strings.TrimSpace(body.DownloadURL) == "" {
		msg := body.Error
		if msg == "" {
			msg = "no download reference"
		}
		return res, fmt.Errorf("item %s: %w: %s", itemID, domain.ErrExtractionFailed, msg)
	}

	res.Title = body.Title
	res.Author = body.Artist
	res.Duration = int(math.Round(body.Duration))
	res.Filename = body.Filename
	res.SizeBytes = body.Filesize

	if body.Filesize > c.cfg.MaxPayloadBytes {
		res.Status = domain.OutcomeSkipped
		c.Cleanup(body.Filename)
		return res, fmt.Errorf("item %s: %w: %d bytes > %d", itemID, domain.ErrSizeExceeded, body.Filesize, c.cfg.MaxPayloadBytes)
	}

	link, err := c.resolve(body.DownloadURL)
	if err != nil {
		c.Cleanup(body.Filename)
		return res, fmt.Errorf("item %s: %w: %v", itemID, domain.ErrExtractionFailed, err)
	}
	res.DownloadURL = link
	res.Status = domain.OutcomeSuccess
	return res, nil
}

// Cleanup asks the service to delete filename in the background. Errors are
// logged and dropped.
func (c *Client) Cleanup(filename string) {
	if strings.TrimSpace(filename) == "" {
		return
	}
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CleanupTimeout)
		defer cancel()

		resp, err := c.http.Get(ctx, c.endpoint("api", "delete", filename), nil)
		switch {
		case err != nil:
			c.log.WarnObj("extractor cleanup failed", "extractor_cleanup", map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
		case resp.StatusCode() < 200 || resp.StatusCode() > 299:
			c.log.WarnObj("extractor cleanup rejected", "extractor_cleanup", map[string]any{
				"filename": filename,
				"status":   resp.StatusCode(),
			})
		default:
			c.log.DebugObj("extractor cleanup done", "extractor_cleanup", map[string]any{
				"filename": filename,
			})
		}
	}()
}

// Wait blocks until scheduled cleanups have finished.
func (c *Client) Wait() {
	c.pending.Wait()
}

// MaxPayloadBytes reports the configured size limit.
func (c *Client) MaxPayloadBytes() int64 {
	return c.cfg.MaxPayloadBytes
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return strings.TrimRight(c.base.String(), "/") + "/" + strings.Join(escaped, "/")
}

// resolve turns a relative download reference into an absolute URL on the
// service. References arrive already escaped and are joined verbatim.
func (c *Client) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	if u.IsAbs() {
		return ref, nil
	}
	return strings.TrimRight(c.base.String(), "/") + "/" + strings.TrimLeft(ref, "/"), nil
}
