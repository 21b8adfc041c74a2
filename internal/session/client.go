// File: internal/session/client.go
// Description: Request/response client for the remote automation engine.
// Delivery failures are retried a bounded number of times with no backoff;
// a delivered response with an HTTP error status is a request failure and is
// never retried.

package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrTransportExhausted means every delivery attempt failed; the request
// never reached the engine. There is no channel left to the remote side.
var ErrTransportExhausted = errors.New("failed to deliver RPC request")

// HTTPError is a delivered response carrying an HTTP-level error status. It
// is distinct from the retried delivery failures: the engine received the
// request and answered, so retrying would duplicate work.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("engine returned HTTP error: %s", e.Status)
}

// Doer abstracts the HTTP client for testability.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client sends JSON-RPC envelopes to the automation engine over HTTP POST.
// Safe for use from a single task's control flow; correlation identifiers
// are monotonically non-decreasing across concurrent use.
type Client struct {
	url         string
	httpClient  Doer
	maxAttempts int
	logger      *zap.Logger

	// now supplies clock readings for correlation ids; replaced in tests.
	now func() time.Time

	idMu   sync.Mutex
	lastID float64
}

// NewClient builds a session client for the configured engine endpoint. An
// empty URL is a startup-fatal misconfiguration.
func NewClient(url string, maxAttempts int, httpClient Doer, logger *zap.Logger) (*Client, error) {
	if url == "" {
		return nil, errors.New("automation engine RPC URL is not configured")
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Client{
		url:         url,
		httpClient:  httpClient,
		maxAttempts: maxAttempts,
		logger:      logger.Named("session"),
		now:         time.Now,
	}, nil
}

// Send delivers one request and returns the decoded response. Delivery is
// attempted up to maxAttempts times; each failed attempt is logged with its
// index and immediate cause. The loop stops at the first successful
// delivery — an HTTP error status from a delivered response is surfaced as an
// *HTTPError without triggering another attempt. Every response is logged
// verbatim before being returned.
func (c *Client) Send(ctx context.Context, method string, params any) (*Response, error) {
	body, err := json.Marshal(Envelope{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal RPC envelope: %w", err)
	}

	var resp *http.Response
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build RPC request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = c.httpClient.Do(req)
		if err == nil {
			break
		}
		resp = nil
		c.logger.Warn("RPC request failed.",
			zap.String("method", method),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	if resp == nil {
		c.logger.Error("Failed to send RPC request.", zap.String("method", method))
		return nil, fmt.Errorf("%w: %s after %d attempts", ErrTransportExhausted, method, c.maxAttempts)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read RPC response: %w", err)
	}
	c.logger.Info("RPC response.",
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.ByteString("body", raw))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var decoded Response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode RPC response: %w", err)
	}
	return &decoded, nil
}

// nextID derives a locally-unique correlation identifier from the clock,
// clamped to be non-decreasing. The engine uses it only for traceability;
// responses are not matched back to requests.
func (c *Client) nextID() float64 {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	id := float64(c.now().UnixNano()) / float64(time.Second)
	if id <= c.lastID {
		id = c.lastID + 1e-6
	}
	c.lastID = id
	return id
}
