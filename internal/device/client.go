package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client talks to the smart-speaker backend. It reports errors; deciding
// how a failure is shown is left to the caller.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("missing device base url")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "speakerpanel/1.0"
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log.With().Str("component", "device").Logger(),
	}, nil
}

func (c *Client) BaseURL() string { return c.cfg.BaseURL }

func (c *Client) Info(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := c.do(ctx, http.MethodGet, PathInfo, nil, &s, false)
	return s, err
}

// Post issues a command with no request body.
func (c *Client) Post(ctx context.Context, path string) (Result, error) {
	var r Result
	err := c.do(ctx, http.MethodPost, path, nil, &r, false)
	return r, err
}

func (c *Client) Stations(ctx context.Context) ([]string, error) {
	var body struct {
		Stations []string `json:"stations"`
	}
	if err := c.do(ctx, http.MethodGet, PathRadioStations, nil, &body, false); err != nil {
		return nil, err
	}
	return body.Stations, nil
}

func (c *Client) Videos(ctx context.Context) ([]string, error) {
	var body struct {
		Videos []string `json:"videos"`
	}
	if err := c.do(ctx, http.MethodGet, PathVideoList, nil, &body, false); err != nil {
		return nil, err
	}
	return body.Videos, nil
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, http.MethodGet, PathAssistantHealth, nil, &h, false)
	return h, err
}

func (c *Client) ChatText(ctx context.Context, text string) (ChatReply, error) {
	return c.chat(ctx, PathChatText, text)
}

func (c *Client) ChatBrowser(ctx context.Context, text string) (ChatReply, error) {
	return c.chat(ctx, PathChatBrowser, text)
}

func (c *Client) ChatDevice(ctx context.Context, text string) (ChatReply, error) {
	return c.chat(ctx, PathChatDevice, text)
}

// chat tolerates error statuses so that a backend-reported {"error": ...}
// reaches the user unchanged.
func (c *Client) chat(ctx context.Context, path, text string) (ChatReply, error) {
	var r ChatReply
	err := c.do(ctx, http.MethodPost, path, map[string]string{"text": text}, &r, true)
	return r, err
}

// StatusError is returned for non-2xx answers that could not be decoded.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status=%d body=%s", e.Method, e.Path, e.Code, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any, decodeErrors bool) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok && !decodeErrors {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		if !ok {
			return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}

	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("device request")
	return nil
}
