package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/snapgate/dispatch"
)

func newTestSource(t *testing.T, h http.HandlerFunc, opts ...Option) *HTTPSource {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	s, err := NewHTTPSource(Config{BaseURL: srv.URL + "/v1/snapshots/"}, opts...)
	if err != nil {
		t.Fatalf("NewHTTPSource() error = %v", err)
	}
	return s
}

func TestNewHTTPSource_InvalidBaseURL(t *testing.T) {
	for _, base := range []string{"", "not a url", "/relative/path"} {
		if _, err := NewHTTPSource(Config{BaseURL: base}); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("NewHTTPSource(%q) error = %v, want ErrInvalidConfig", base, err)
		}
	}
}

func TestHTTPSource_Fetch(t *testing.T) {
	var gotPath, gotQuery, gotHeader string
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		gotHeader = r.Header.Get("X-Api-Key")
		_, _ = w.Write([]byte(`{"liquiditySignal":640}`))
	})
	s.config.Header = http.Header{"X-Api-Key": []string{"k"}}

	body, err := s.Fetch(context.Background(), dispatch.Task{
		SubjectID: "BRK/B",
		Params:    map[string]any{"scope": "2026-11-20", "depth": 5},
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(body) != `{"liquiditySignal":640}` {
		t.Errorf("body = %s", body)
	}
	if gotPath != "/v1/snapshots/BRK%2FB" {
		t.Errorf("path = %q, want escaped subject", gotPath)
	}
	if gotQuery != "depth=5&scope=2026-11-20" {
		t.Errorf("query = %q, want sorted params", gotQuery)
	}
	if gotHeader != "k" {
		t.Errorf("X-Api-Key = %q, want k", gotHeader)
	}
}

func TestHTTPSource_StatusClassification(t *testing.T) {
	tests := []struct {
		code int
		want dispatch.Kind
	}{
		{http.StatusTooManyRequests, dispatch.KindTransient},
		{http.StatusRequestTimeout, dispatch.KindTransient},
		{http.StatusInternalServerError, dispatch.KindTransient},
		{http.StatusBadGateway, dispatch.KindTransient},
		{http.StatusBadRequest, dispatch.KindPermanent},
		{http.StatusNotFound, dispatch.KindPermanent},
		{http.StatusForbidden, dispatch.KindPermanent},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			s := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
			})
			_, err := s.Fetch(context.Background(), dispatch.Task{SubjectID: "X"})
			if got := dispatch.KindOf(err); got != tt.want {
				t.Errorf("KindOf(err) = %v, want %v", got, tt.want)
			}
			var statusErr *StatusError
			if !errors.As(err, &statusErr) || statusErr.Code != tt.code {
				t.Errorf("err = %v, want StatusError %d", err, tt.code)
			}
		})
	}
}

func TestHTTPSource_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	s, err := NewHTTPSource(Config{BaseURL: base, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPSource() error = %v", err)
	}
	if _, err := s.Fetch(context.Background(), dispatch.Task{SubjectID: "X"}); dispatch.KindOf(err) != dispatch.KindTransient {
		t.Errorf("KindOf(err) = %v, want transient", dispatch.KindOf(err))
	}
}

func TestHTTPSource_CancelledContext(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := s.Fetch(ctx, dispatch.Task{SubjectID: "X"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Fetch() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestHTTPSource_BodyLimit(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	})
	s.config.MaxBodyBytes = 16

	if _, err := s.Fetch(context.Background(), dispatch.Task{SubjectID: "X"}); dispatch.KindOf(err) != dispatch.KindPermanent {
		t.Errorf("KindOf(err) = %v, want permanent", dispatch.KindOf(err))
	}
}

func TestHTTPSource_Breaker(t *testing.T) {
	var hits atomic.Int32
	b := dispatch.NewBreaker(dispatch.BreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})
	s := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithBreaker(b))

	for range 4 {
		_, _ = s.Fetch(context.Background(), dispatch.Task{SubjectID: "X"})
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2 before the circuit opens", got)
	}
	_, err := s.Fetch(context.Background(), dispatch.Task{SubjectID: "X"})
	if !errors.Is(err, dispatch.ErrCircuitOpen) || !dispatch.IsRetryable(err) {
		t.Errorf("Fetch() error = %v, want transient ErrCircuitOpen", err)
	}
}
