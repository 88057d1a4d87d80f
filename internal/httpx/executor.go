// Package httpx implements the retrying HTTP executor used by every outbound
// fetch in the pipeline.
package httpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/leadharvest/leadharvest/internal/metrics"
)

// userAgents is the fixed identity pool rotated round-robin across all
// concurrent callers.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

const maxResponseBytes = 5 * 1024 * 1024

// Config controls executor behavior.
type Config struct {
	// Timeout bounds each individual attempt, independent of retry backoff.
	Timeout time.Duration
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// InitialBackoff is doubled before each successive retry.
	InitialBackoff time.Duration
}

// Request describes a single outbound call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the successful result of an executed request.
type Response struct {
	StatusCode int
	Body       []byte
	FinalURL   string
}

// Executor issues outbound requests with timeout, bounded retries,
// exponential backoff and rotating client identity. The rotation index is
// process-wide and shared across all concurrent callers.
type Executor struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
	uaIdx  atomic.Uint64
}

// New constructs an Executor.
func New(cfg Config, logger *zap.Logger) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{
			Transport: newTransport(),
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
	}
}

// Do executes the request, retrying transport failures and non-success
// statuses until MaxRetries is exhausted. The last failure is surfaced
// to the caller, who treats it as "no data" rather than aborting the run.
func (e *Executor) Do(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, e.backoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		resp, err := e.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Debug("fetch attempt failed",
			zap.String("url", req.URL),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, fmt.Errorf("fetch %s: %w", req.URL, lastErr)
}

func (e *Executor) attempt(ctx context.Context, req Request) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", e.nextAgent())
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		metrics.ObserveFetch("other")
		return nil, err
	}
	defer httpResp.Body.Close()

	metrics.ObserveFetch(metrics.ClassifyStatus(httpResp.StatusCode))
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", httpResp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       data,
		FinalURL:   httpResp.Request.URL.String(),
	}, nil
}

// backoff returns initialDelay * 2^attempt.
func (e *Executor) backoff(attempt int) time.Duration {
	return e.cfg.InitialBackoff << uint(attempt)
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Executor) nextAgent() string {
	idx := e.uaIdx.Add(1) - 1
	return userAgents[idx%uint64(len(userAgents))]
}

// NextAgent exposes the rotating identity pool for callers that manage their
// own transport (the directory collector).
func (e *Executor) NextAgent() string {
	return e.nextAgent()
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
