// Package fetch retrieves traces from the algorithm service.
// Each FetchTrace call makes exactly one HTTP request: no retries, no caching,
// no de-duplication of concurrent identical requests.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

const tracerName = "github.com/ml-under-the-hood/traceplay/playback/fetch"

// maxErrorBody caps how much of a failed response body is quoted in FetchFailed.
const maxErrorBody = 4096

// FetchFailed is the single failure value for trace retrieval: invalid request,
// network error, non-success status, or a response that fails validation.
type FetchFailed struct {
	Endpoint string
	Outcome  string // one of the Outcome* constants
	Status   int    // HTTP status, 0 when no response was received
	Message  string
	Err      error
}

func (e *FetchFailed) Error() string {
	return fmt.Sprintf("fetch %s failed: %s", e.Endpoint, e.Message)
}

func (e *FetchFailed) Unwrap() error { return e.Err }

// Client sends trace requests to the algorithm service.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	metrics        *Metrics
	tracerProvider oteltrace.TracerProvider
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMetrics records fetch outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(c *Client) { c.tracerProvider = tp }
}

// NewClient creates a client for the service at baseURL (e.g. http://localhost:8000).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) tracer() oteltrace.Tracer {
	tp := c.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName)
}

// FetchTrace posts req to /api/trace/<endpoint> and returns the validated trace.
// All failures are reported as *FetchFailed; no partial trace is ever returned.
func (c *Client) FetchTrace(ctx context.Context, req Request) (*trace.Trace, error) {
	endpoint := req.Endpoint()
	ctx, span := c.tracer().Start(ctx, "fetch/"+endpoint, oteltrace.WithSpanKind(oteltrace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("traceplay.endpoint", endpoint))

	start := time.Now()
	tr, failure := c.fetch(ctx, req, endpoint, span)
	if failure != nil {
		c.metrics.observe(endpoint, failure.Outcome, time.Since(start), 0)
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Message)
		logrus.Debugf("trace fetch %s failed (%s): %s", endpoint, failure.Outcome, failure.Message)
		return nil, failure
	}

	c.metrics.observe(endpoint, OutcomeOK, time.Since(start), tr.Len())
	span.SetAttributes(attribute.Int("traceplay.steps", tr.Len()))
	logrus.Debugf("trace fetch %s: %d steps in %v", endpoint, tr.Len(), time.Since(start))
	return tr, nil
}

func (c *Client) fetch(ctx context.Context, req Request, endpoint string, span oteltrace.Span) (*trace.Trace, *FetchFailed) {
	fail := func(outcome string, status int, err error, format string, args ...any) *FetchFailed {
		return &FetchFailed{Endpoint: endpoint, Outcome: outcome, Status: status, Message: fmt.Sprintf(format, args...), Err: err}
	}

	if err := req.Validate(); err != nil {
		return nil, fail(OutcomeInvalidRequest, 0, err, "invalid request: %v", err)
	}
	fam, ok := trace.Lookup(req.Family())
	if !ok {
		return nil, fail(OutcomeInvalidRequest, 0, nil, "unknown trace family %q", req.Family())
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fail(OutcomeInvalidRequest, 0, err, "marshal error: %v", err)
	}
	url := c.baseURL + "/api/trace/" + endpoint
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fail(OutcomeInvalidRequest, 0, err, "request creation error: %v", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	span.SetAttributes(attribute.String("traceplay.request_id", requestID))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fail(OutcomeNetwork, 0, err, "HTTP error: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyData, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fail(OutcomeHTTPStatus, resp.StatusCode, nil, "HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyData)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(OutcomeNetwork, resp.StatusCode, err, "read error: %v", err)
	}
	tr, err := trace.Decode(data, fam)
	if err != nil {
		return nil, fail(OutcomeInvalidTrace, resp.StatusCode, err, "%v", err)
	}
	return tr, nil
}

// Health probes the service's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating health request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var status struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("health check: HTTP %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || status.Status != "ok" {
		return fmt.Errorf("health check: HTTP %d, status %q", resp.StatusCode, status.Status)
	}
	return nil
}
