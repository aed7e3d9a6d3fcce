package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mirrorhop/mirrorhop/pkg/eventlog"
)

const testMin = 30 * 1024

func page(size int) string {
	head := "<html><head><title>Live mirror</title></head><body>"
	if size <= len(head) {
		return strings.Repeat("x", size)
	}
	return head + strings.Repeat("x", size-len(head))
}

// newServer starts h and returns its URL. Handlers blocked on release are
// freed before the server shuts down.
func newServer(t *testing.T, h func(w http.ResponseWriter, r *http.Request, release <-chan struct{})) string {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h(w, r, release)
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	return srv.URL
}

func newProber(cfg Config) (*Prober, *eventlog.Log) {
	events := eventlog.New(100, nil, nil)
	return New(nil, cfg, events), events
}

func testConfig() Config {
	return Config{
		StatusTimeout: 2 * time.Second,
		BodyTimeout:   2 * time.Second,
		MinBytes:      testMin,
	}
}

func TestProbe_Accepted(t *testing.T) {
	url := newServer(t, func(w http.ResponseWriter, r *http.Request, _ <-chan struct{}) {
		w.Write([]byte(page(40 * 1024)))
	})
	p, events := newProber(testConfig())

	out := p.Probe(context.Background(), url)
	if !out.Accepted() {
		t.Fatalf("expected accepted, got %s (%v)", out.Kind, out.Err)
	}
	if out.BytesRead < testMin {
		t.Fatalf("expected at least %d bytes, got %d", testMin, out.BytesRead)
	}
	if out.Title != "Live mirror" {
		t.Fatalf("expected title to be extracted, got %q", out.Title)
	}
	if out.URL != url || out.StatusCode != http.StatusOK || out.Err != nil {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	snap := events.Snapshot()
	if len(snap) != 1 || snap[0].Kind != EventAccepted {
		t.Fatalf("expected one %s event, got %+v", EventAccepted, snap)
	}
}

func TestProbe_SizeThreshold(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		wantKind Kind
	}{
		{name: "exactly min", size: testMin, wantKind: KindAccepted},
		{name: "one byte short", size: testMin - 1, wantKind: KindRejectedSize},
		{name: "parked page", size: 512, wantKind: KindRejectedSize},
		{name: "empty", size: 0, wantKind: KindRejectedSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := page(tt.size)
			url := newServer(t, func(w http.ResponseWriter, r *http.Request, _ <-chan struct{}) {
				w.Write([]byte(body))
			})
			p, events := newProber(testConfig())

			out := p.Probe(context.Background(), url)
			if out.Kind != tt.wantKind {
				t.Fatalf("expected %s, got %s (%v)", tt.wantKind, out.Kind, out.Err)
			}
			if out.Kind == KindRejectedSize {
				if out.BytesRead != int64(tt.size) {
					t.Fatalf("expected %d bytes read, got %d", tt.size, out.BytesRead)
				}
				if !errors.Is(out.Err, ErrInsufficientContent) {
					t.Fatalf("expected ErrInsufficientContent, got %v", out.Err)
				}
			}
			if events.Len() != 1 {
				t.Fatalf("expected exactly one event, got %d", events.Len())
			}
		})
	}
}

func TestProbe_RejectedStatus(t *testing.T) {
	url := newServer(t, func(w http.ResponseWriter, r *http.Request, _ <-chan struct{}) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(page(64 * 1024)))
	})
	p, events := newProber(testConfig())

	out := p.Probe(context.Background(), url)
	if out.Kind != KindRejectedStatus || out.StatusCode != http.StatusNotFound {
		t.Fatalf("expected rejected_status 404, got %s %d", out.Kind, out.StatusCode)
	}
	if out.BytesRead != 0 {
		t.Fatalf("expected body to be left unread, got %d bytes", out.BytesRead)
	}
	if !errors.Is(out.Err, ErrNonSuccessStatus) {
		t.Fatalf("expected ErrNonSuccessStatus, got %v", out.Err)
	}

	snap := events.Snapshot()
	if len(snap) != 1 || snap[0].Kind != EventRejectedStatus {
		t.Fatalf("expected one %s event, got %+v", EventRejectedStatus, snap)
	}
	if snap[0].Extra["status"] != http.StatusNotFound {
		t.Fatalf("expected status in event extra, got %v", snap[0].Extra)
	}
}

func TestProbe_StatusTimeout(t *testing.T) {
	url := newServer(t, func(w http.ResponseWriter, r *http.Request, release <-chan struct{}) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	cfg := testConfig()
	cfg.StatusTimeout = 50 * time.Millisecond
	p, events := newProber(cfg)

	out := p.Probe(context.Background(), url)
	if out.Kind != KindErrored || out.Stage != StageStatus {
		t.Fatalf("expected status-stage error, got %s/%s (%v)", out.Kind, out.Stage, out.Err)
	}
	if !errors.Is(out.Err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", out.Err)
	}
	snap := events.Snapshot()
	if len(snap) != 1 || snap[0].Kind != EventError || snap[0].Extra["stage"] != "status" {
		t.Fatalf("expected one status-stage %s event, got %+v", EventError, snap)
	}
}

func TestProbe_BodyTimeout(t *testing.T) {
	url := newServer(t, func(w http.ResponseWriter, r *http.Request, release <-chan struct{}) {
		w.Write([]byte(strings.Repeat("x", 100)))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	cfg := testConfig()
	cfg.BodyTimeout = 100 * time.Millisecond
	p, events := newProber(cfg)

	out := p.Probe(context.Background(), url)
	if out.Kind != KindErrored || out.Stage != StageBody {
		t.Fatalf("expected body-stage error, got %s/%s (%v)", out.Kind, out.Stage, out.Err)
	}
	if !errors.Is(out.Err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", out.Err)
	}
	if out.BytesRead != 100 {
		t.Fatalf("expected 100 bytes counted before the timeout, got %d", out.BytesRead)
	}
	snap := events.Snapshot()
	if len(snap) != 1 || snap[0].Extra["stage"] != "body" || snap[0].Extra["error_class"] != "timeout" {
		t.Fatalf("expected one body timeout event, got %+v", snap)
	}
}

func TestProbe_StagesHaveIndependentDeadlines(t *testing.T) {
	url := newServer(t, func(w http.ResponseWriter, r *http.Request, _ <-chan struct{}) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(page(testMin)))
	})
	// Either deadline alone would cut off a 400ms request.
	cfg := testConfig()
	cfg.StatusTimeout = 350 * time.Millisecond
	cfg.BodyTimeout = 350 * time.Millisecond
	p, _ := newProber(cfg)

	out := p.Probe(context.Background(), url)
	if !out.Accepted() {
		t.Fatalf("expected accepted, got %s (%v)", out.Kind, out.Err)
	}
}

func TestProbe_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p, events := newProber(testConfig())
	out := p.Probe(context.Background(), url)
	if out.Kind != KindErrored || out.Stage != StageStatus {
		t.Fatalf("expected status-stage error, got %s/%s", out.Kind, out.Stage)
	}
	if !errors.Is(out.Err, ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", out.Err)
	}
	if events.Len() != 1 {
		t.Fatalf("expected exactly one event, got %d", events.Len())
	}
}

func TestProbe_BadURL(t *testing.T) {
	p, events := newProber(testConfig())
	out := p.Probe(context.Background(), "http://bad host/")
	if out.Kind != KindErrored || !errors.Is(out.Err, ErrNetworkFailure) {
		t.Fatalf("expected network failure, got %s (%v)", out.Kind, out.Err)
	}
	if events.Len() != 1 {
		t.Fatalf("expected exactly one event, got %d", events.Len())
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	bad := []Config{
		{StatusTimeout: 0, BodyTimeout: time.Second},
		{StatusTimeout: time.Second, BodyTimeout: 0},
		{StatusTimeout: time.Second, BodyTimeout: time.Second, MinBytes: -1},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("config %d: expected validation error", i)
		}
	}
}
