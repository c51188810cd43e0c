// Package backend is the HTTP client for the goal-onboarding service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cuitingzhao/companion/internal/onboarding"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
	maxPlanBytes   = 4 << 20
)

// ErrNotFound is returned when the service has no plan for a goal.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: service returned status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: service returned status %d: %s", e.Op, e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

type Client struct {
	baseURL *url.URL
	token   string
	source  string
	timeout time.Duration
	http    *http.Client
	log     *zap.Logger
}

var _ onboarding.Backend = (*Client)(nil)

type Option func(*Client)

func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// WithSource tags every request with the host screen that opened the wizard.
func WithSource(source string) Option { return func(c *Client) { c.source = source } }

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", baseURL)
	}
	c := &Client{
		baseURL: u,
		timeout: defaultTimeout,
		http:    http.DefaultClient,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SendMessage posts one conversational turn.
func (c *Client) SendMessage(ctx context.Context, req onboarding.MessageRequest) (onboarding.MessageResponse, error) {
	var out onboarding.MessageResponse
	body, err := json.Marshal(req)
	if err != nil {
		return out, fmt.Errorf("marshal message request: %w", err)
	}
	data, err := c.do(ctx, "send message", http.MethodPost, "onboarding/messages", body)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode message response: %w", err)
	}
	return out, nil
}

// FetchPlan loads the generated plan for goalID.
func (c *Client) FetchPlan(ctx context.Context, goalID int64) (onboarding.Plan, error) {
	path := "goals/" + strconv.FormatInt(goalID, 10) + "/plan"
	data, err := c.do(ctx, "fetch plan", http.MethodGet, path, nil)
	if err != nil {
		return onboarding.Plan{}, err
	}
	if !json.Valid(data) {
		return onboarding.Plan{}, fmt.Errorf("fetch plan: response is not JSON")
	}
	return onboarding.Plan{GoalID: goalID, Body: json.RawMessage(data)}, nil
}

// Ping checks that the service answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, "ping", http.MethodGet, "healthz", nil)
	return err
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.JoinPath(path).String()
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.source != "" {
		req.Header.Set("X-Client-Source", c.source)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPlanBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	c.log.Debug("backend call",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := strings.TrimSpace(string(data))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody] + "..."
		}
		return nil, &StatusError{Op: op, Code: resp.StatusCode, Body: msg}
	}
	return data, nil
}
