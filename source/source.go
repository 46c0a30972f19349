// Package source adapts HTTP data providers to dispatch.FetchFunc.
//
// A source issues GET {BaseURL}/{subject}?{params} and returns the response
// body unchanged. Failures are classified for the dispatcher: rate limiting,
// server errors and network failures are transient; bad requests and unknown
// subjects are permanent.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jonwraymond/snapgate/dispatch"
	"github.com/jonwraymond/snapgate/observe"
)

// ErrInvalidConfig is returned by NewHTTPSource for an unusable base URL.
var ErrInvalidConfig = errors.New("source: invalid config")

// StatusError is an unexpected HTTP status from the provider.
type StatusError struct {
	Subject string
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("source: %s: unexpected status %d", e.Subject, e.Code)
}

// Config configures an HTTPSource.
type Config struct {
	// BaseURL is the endpoint prefix; the subject is appended as a path segment.
	BaseURL string

	// Timeout bounds one HTTP exchange when no client is supplied.
	// Default: 30s
	Timeout time.Duration

	// MaxBodyBytes caps the response body.
	// Default: 8 MiB
	MaxBodyBytes int64

	// Header is added to every request.
	Header http.Header
}

// HTTPSource fetches snapshots from an HTTP provider.
type HTTPSource struct {
	base    *url.URL
	config  Config
	client  *http.Client
	breaker *dispatch.Breaker
	logger  observe.Logger
}

// Option configures an HTTPSource.
type Option func(*HTTPSource)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *HTTPSource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithBreaker guards every request with b.
func WithBreaker(b *dispatch.Breaker) Option {
	return func(s *HTTPSource) { s.breaker = b }
}

// WithLogger sets the source logger.
func WithLogger(l observe.Logger) Option {
	return func(s *HTTPSource) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewHTTPSource validates cfg and builds a source.
func NewHTTPSource(cfg Config, opts ...Option) (*HTTPSource, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 8 << 20
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrInvalidConfig, cfg.BaseURL)
	}

	s := &HTTPSource{
		base:   base,
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Fetch implements dispatch.FetchFunc.
func (s *HTTPSource) Fetch(ctx context.Context, task dispatch.Task) ([]byte, error) {
	if s.breaker == nil {
		return s.get(ctx, task)
	}
	return s.breaker.Do(ctx, func(ctx context.Context) ([]byte, error) {
		return s.get(ctx, task)
	})
}

// URL returns the request URL for task.
func (s *HTTPSource) URL(task dispatch.Task) string {
	u := *s.base
	u.RawPath = s.base.EscapedPath() + "/" + url.PathEscape(task.SubjectID)
	u.Path = s.base.Path + "/" + task.SubjectID
	u.RawQuery = encodeParams(task.Params)
	return u.String()
}

func (s *HTTPSource) get(ctx context.Context, task dispatch.Task) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(task), nil)
	if err != nil {
		return nil, dispatch.Permanent(fmt.Errorf("source: create request: %w", err))
	}
	for k, vs := range s.config.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, dispatch.Transient(fmt.Errorf("source: %s: %w", task.SubjectID, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := &StatusError{Subject: task.SubjectID, Code: resp.StatusCode}
		s.logger.Debug(ctx, "source returned error status",
			observe.F("subject", task.SubjectID),
			observe.F("status", resp.StatusCode),
		)
		if retryableStatus(resp.StatusCode) {
			return nil, dispatch.Transient(statusErr)
		}
		return nil, dispatch.Permanent(statusErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxBodyBytes+1))
	if err != nil {
		return nil, dispatch.Transient(fmt.Errorf("source: read body: %w", err))
	}
	if int64(len(body)) > s.config.MaxBodyBytes {
		return nil, dispatch.Permanent(fmt.Errorf("source: %s: body exceeds %d bytes", task.SubjectID, s.config.MaxBodyBytes))
	}
	return body, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// encodeParams renders params as a sorted query string.
func encodeParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := make(url.Values, len(params))
	for _, k := range keys {
		q.Set(k, fmt.Sprint(params[k]))
	}
	return q.Encode()
}
