// Package telegram is a thin Telegram Bot API client over resty.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/samvad-hq/samvad-audio-relay/pkg/httpclient"
)

const (
	defaultAPIURL  = "https://api.telegram.org"
	defaultTimeout = 60 * time.Second
	pollGrace      = 10 * time.Second

	// ParseModeMarkdown selects legacy Markdown formatting.
	ParseModeMarkdown = "Markdown"
)

// Config controls the client.
type Config struct {
	Token         string
	APIURL        string
	RatePerSecond float64
	Timeout       time.Duration
}

// Client calls Bot API methods. Outbound calls other than getUpdates share
// one rate limiter.
type Client struct {
	http    *resty.Client
	base    string
	limiter *rate.Limiter
	timeout time.Duration
}

// New returns a Client for the bot identified by cfg.Token.
func New(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	api := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if api == "" {
		api = defaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = max(1, int(cfg.RatePerSecond))
	}

	// Deadlines are set per call so long polls can outlive the default timeout.
	client := httpclient.NewRestyHTTPClient(0)
	client.SetHeader("Content-Type", "application/json")

	return &Client{
		http:    client,
		base:    api + "/bot" + token + "/",
		limiter: rate.NewLimiter(limit, burst),
		timeout: cfg.Timeout,
	}, nil
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, poll time.Duration) ([]Update, error) {
	body := map[string]any{
		"offset":          offset,
		"timeout":         int(poll / time.Second),
		"allowed_updates": []string{"message"},
	}
	var out []Update
	if err := c.call(ctx, "getUpdates", body, &out, poll+pollGrace, false); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage posts text to chatID. An empty parseMode sends plain text.
func (c *Client) SendMessage(ctx context.Context, chatID, text, parseMode string) (Message, error) {
	body := map[string]any{"chat_id": chatID, "text": text}
	if parseMode != "" {
		body["parse_mode"] = parseMode
	}
	var out Message
	err := c.call(ctx, "sendMessage", body, &out, c.timeout, true)
	return out, err
}

// EditMessageText replaces the text of a previously sent message.
func (c *Client) EditMessageText(ctx context.Context, chatID string, messageID int64, text, parseMode string) error {
	body := map[string]any{"chat_id": chatID, "message_id": messageID, "text": text}
	if parseMode != "" {
		body["parse_mode"] = parseMode
	}
	return c.call(ctx, "editMessageText", body, nil, c.timeout, true)
}

// SendAudio posts audio to chatID, letting Telegram download it from up.URL.
func (c *Client) SendAudio(ctx context.Context, chatID string, up AudioUpload) (Message, error) {
	body := map[string]any{"chat_id": chatID, "audio": up.URL}
	if up.Caption != "" {
		body["caption"] = up.Caption
	}
	if up.Title != "" {
		body["title"] = up.Title
	}
	if up.Performer != "" {
		body["performer"] = up.Performer
	}
	if up.Duration > 0 {
		body["duration"] = up.Duration
	}
	var out Message
	err := c.call(ctx, "sendAudio", body, &out, c.timeout, true)
	return out, err
}

// CopyMessage copies messageID from fromChatID into chatID and returns the new id.
func (c *Client) CopyMessage(ctx context.Context, chatID, fromChatID string, messageID int64) (int64, error) {
	body := map[string]any{"chat_id": chatID, "from_chat_id": fromChatID, "message_id": messageID}
	var out struct {
		MessageID int64 `json:"message_id"`
	}
	if err := c.call(ctx, "copyMessage", body, &out, c.timeout, true); err != nil {
		return 0, err
	}
	return out.MessageID, nil
}

func (c *Client) call(ctx context.Context, method string, body any, out any, timeout time.Duration, limited bool) error {
	if limited {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("telegram %s: rate limit wait: %w", method, err)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post(c.base + method)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, redact(err, c.base))
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("telegram %s: decode response (status %d): %w", method, resp.StatusCode(), err)
	}
	if !env.OK {
		apiErr := &APIError{Code: env.ErrorCode, Description: env.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode()
		}
		if env.Parameters != nil {
			apiErr.RetryAfter = env.Parameters.RetryAfter
		}
		return apiErr
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}

// redact keeps the bot token out of transport errors, which embed the URL.
func redact(err error, base string) error {
	if !strings.Contains(err.Error(), base) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), base, "<telegram-api>/"), err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
