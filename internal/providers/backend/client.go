package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"parallelmind/internal/domain"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 60 * time.Second

	requestIDHeader = "X-Request-Id"
	maxErrorBody    = 4 << 10
)

// Config controls how the backend is reached.
type Config struct {
	BaseURL string
	// Timeout bounds plain JSON requests. Uploads are bounded by their context only.
	Timeout time.Duration
}

// Client talks to the conversation backend over REST and WebSocket. It
// implements ports.Uploader, ports.ConversationAPI, ports.InsightAPI and
// ports.SuggestionStreamer.
type Client struct {
	cfg        Config
	httpClient *http.Client
	upload     *http.Client
	log        logrus.FieldLogger
}

func NewClient(cfg Config, log logrus.FieldLogger) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		upload:     &http.Client{},
		log:        log.WithField("component", "backend"),
	}
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	length      int64
	contentType string
	long        bool
}

// do sends req and decodes a 2xx JSON body into out. Non-2xx responses map
// to NotFound (404) or Transport; so do network and decoding failures.
func (c *Client) do(ctx context.Context, op string, req request, out any) error {
	target := c.cfg.BaseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, req.body)
	if err != nil {
		return domain.E(domain.KindTransport, op, "build request", err)
	}
	if req.length > 0 {
		httpReq.ContentLength = req.length
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	httpReq.Header.Set(requestIDHeader, requestID)

	client := c.httpClient
	if req.long {
		client = c.upload
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	entry := c.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     req.method,
		"path":       req.path,
		"latency_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("backend request failed")
		return domain.E(domain.KindTransport, op, "send request", err)
	}
	defer resp.Body.Close()
	entry = entry.WithField("status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := errorDetail(resp.Body)
		entry.WithField("detail", detail).Warn("backend returned error")
		kind := domain.KindTransport
		if resp.StatusCode == http.StatusNotFound {
			kind = domain.KindNotFound
		}
		return domain.E(kind, op, fmt.Sprintf("status %d: %s", resp.StatusCode, detail), nil)
	}
	entry.Debug("backend request")

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.E(domain.KindTransport, op, "decode response", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.do(ctx, op, request{method: http.MethodGet, path: path, query: query}, out)
}

func (c *Client) postJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.do(ctx, op, request{method: http.MethodPost, path: path, query: query}, out)
}

// errorDetail extracts the "detail" field of an error body, falling back to
// the raw text.
func errorDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return "no details"
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(raw, &payload) == nil && len(payload.Detail) > 0 {
		var text string
		if json.Unmarshal(payload.Detail, &text) == nil {
			return text
		}
		return string(payload.Detail)
	}
	return strings.TrimSpace(string(raw))
}

func conversationPath(id domain.ConversationID, suffix string) (string, error) {
	trimmed := strings.TrimSpace(string(id))
	if trimmed == "" {
		return "", errors.New("conversation id is required")
	}
	return "/api/conversations/" + url.PathEscape(trimmed) + suffix, nil
}
