package polling

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mirrorhop/mirrorhop/pkg/probe"
	"github.com/mirrorhop/mirrorhop/pkg/scanner"
)

type countingRefresher struct {
	calls atomic.Int64
}

func (r *countingRefresher) Refresh(ctx context.Context) scanner.Result {
	n := r.calls.Add(1)
	if n%2 == 1 {
		return scanner.Result{
			Selected: "http://live.pro",
			Outcomes: []probe.Outcome{{URL: "http://live.pro", Kind: probe.KindAccepted}},
		}
	}
	return scanner.Result{Outcomes: []probe.Outcome{{URL: "http://live.pro", Kind: probe.KindErrored}}}
}

func TestPoller_RunsImmediatelyAndOnTicks(t *testing.T) {
	r := &countingRefresher{}
	p := &Poller{Refresher: r, Interval: 20 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for r.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 runs, got %d", r.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	st, ok := p.Status()
	if !ok {
		t.Fatal("expected a status after running")
	}
	if st.Runs < 3 || st.Runs != int(r.calls.Load()) {
		t.Fatalf("expected status runs to match calls, got %d vs %d", st.Runs, r.calls.Load())
	}
}

func TestPoller_FirstRunStatus(t *testing.T) {
	r := &countingRefresher{}
	p := &Poller{Refresher: r, Interval: time.Hour}

	if _, ok := p.Status(); ok {
		t.Fatal("expected no status before the first run")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	for r.calls.Load() < 1 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	st, ok := p.Status()
	if !ok || !st.Found || st.URL != "http://live.pro" {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestPoller_Disabled(t *testing.T) {
	r := &countingRefresher{}
	p := &Poller{Refresher: r}
	p.Run(context.Background())
	if r.calls.Load() != 0 {
		t.Fatalf("expected no runs when interval is zero, got %d", r.calls.Load())
	}
}
