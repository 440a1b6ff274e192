// Package reporter is the Go client for the errdesk intake API.
//
//	r := reporter.New("https://errdesk.internal", os.Getenv("ERRDESK_KEY"))
//	defer r.Recover(ctx)
//	...
//	r.LogError(ctx, "Checkout failed", err.Error(), reporter.WithCode("PAY001"))
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/kiranshivaraju/errdesk/pkg/models"
)

// Sentinel errors for reporter failures.
var (
	ErrUnreachable = errors.New("errdesk unreachable")
	ErrRejected    = errors.New("errdesk rejected report")
	ErrTimeout     = errors.New("errdesk request timeout")
)

const (
	defaultTimeout = 5 * time.Second
	panicTitle     = "Panic"
	panicCode      = "PANIC"
)

// Report is one error event sent to errdesk.
type Report = models.ErrorReport

// Result is the stored error after a report.
type Result struct {
	Error *models.ErrorLog
	// Created is false when the report was folded into an open error.
	Created bool
}

// Client posts error reports to an errdesk server.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
	repanic bool
}

type Option func(*Client)

// WithHTTPClient sends requests through a copy of hc; hc itself is never
// modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTimeout bounds each request. It applies regardless of option order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets where LogError and Recover write delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRepanic makes Recover panic again after reporting.
func WithRepanic(repanic bool) Option {
	return func(c *Client) { c.repanic = repanic }
}

// New creates a Client for the server at baseURL.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.client
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	c.client = &hc
	return c
}

// Report sends r and returns the stored error.
func (c *Client) Report(ctx context.Context, r Report) (*Result, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/errors", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var env errorEnvelope
		if json.NewDecoder(resp.Body).Decode(&env) == nil && env.Error.Code != "" {
			return nil, fmt.Errorf("%w: status %d: %s: %s", ErrRejected, resp.StatusCode, env.Error.Code, env.Error.Message)
		}
		return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var env dataEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &Result{Error: env.Data, Created: resp.StatusCode == http.StatusCreated}, nil
}

// Field sets an optional report field for LogError.
type Field func(*Report)

func WithCode(code string) Field {
	return func(r *Report) { r.ErrorCode = code }
}

func WithRisk(level models.RiskLevel) Field {
	return func(r *Report) { r.RiskLevel = level }
}

func WithCategory(categoryID string) Field {
	return func(r *Report) { r.CategoryID = categoryID }
}

func WithStackTrace(stack string) Field {
	return func(r *Report) { r.StackTrace = stack }
}

func WithURL(url string) Field {
	return func(r *Report) { r.URL = url }
}

func WithTags(tags ...string) Field {
	return func(r *Report) { r.Tags = append(r.Tags, tags...) }
}

func WithMetadata(key string, value any) Field {
	return func(r *Report) {
		if r.Metadata == nil {
			r.Metadata = map[string]any{}
		}
		r.Metadata[key] = value
	}
}

// LogError reports an error and never fails. Delivery errors go to the
// client's logger and are not reported again. It blocks for at most the
// client timeout; callers on a hot path can run it in a goroutine.
func (c *Client) LogError(ctx context.Context, title, message string, fields ...Field) {
	r := Report{Title: title, Message: message}
	for _, f := range fields {
		f(&r)
	}
	if _, err := c.Report(context.WithoutCancel(ctx), r); err != nil {
		c.logger.Error("failed to log error",
			"error", err,
			"title", title,
			"message", message,
			"error_code", r.ErrorCode,
		)
	}
}

// Recover reports a panic in the calling goroutine. Use it directly with
// defer:
//
//	defer client.Recover(ctx)
func (c *Client) Recover(ctx context.Context) {
	rec := recover()
	if rec == nil {
		return
	}
	c.LogError(ctx, panicTitle, fmt.Sprint(rec),
		WithCode(panicCode),
		WithRisk(models.RiskHigh),
		WithStackTrace(string(debug.Stack())),
		WithMetadata("error_type", fmt.Sprintf("%T", rec)),
	)
	if c.repanic {
		panic(rec)
	}
}

// Ready checks that the server answers its health endpoint.
func (c *Client) Ready(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: not ready (status %d)", ErrUnreachable, resp.StatusCode)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// --- errdesk response types ---

type dataEnvelope struct {
	Data *models.ErrorLog `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
