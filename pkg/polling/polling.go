package polling

import (
	"context"
	"sync"
	"time"

	"github.com/mirrorhop/mirrorhop/pkg/scanner"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Refresher runs a fresh scan round regardless of any cached result.
type Refresher interface {
	Refresh(ctx context.Context) scanner.Result
}

// Status holds the result of the last background run.
type Status struct {
	StartedAt time.Time
	Duration  time.Duration
	Found     bool
	URL       string
	Runs      int
}

// Poller refreshes the scanner on a fixed interval.
type Poller struct {
	Refresher Refresher
	Interval  time.Duration
	Log       Logger // optional; nil = no logging

	mu     sync.RWMutex
	status *Status
	runs   int
}

// Status returns a copy of the last run's status, or false before the first run.
func (p *Poller) Status() (Status, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.status == nil {
		return Status{}, false
	}
	return *p.status, true
}

// Run refreshes once immediately, then on every tick until ctx is done.
// Each tick is an independent scan round; failures are not retried early.
func (p *Poller) Run(ctx context.Context) {
	log := p.Log
	if log == nil {
		log = nopLogger{}
	}
	if p.Interval <= 0 {
		log.Debugf("Background poller disabled")
		return
	}
	log.Infof("Starting background poller (interval: %s)", p.Interval)

	p.runOnce(ctx, log)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Infof("Background poller stopped")
			return
		case <-ticker.C:
			p.runOnce(ctx, log)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context, log Logger) {
	start := time.Now()
	res := p.Refresher.Refresh(ctx)

	p.mu.Lock()
	p.runs++
	p.status = &Status{
		StartedAt: start,
		Duration:  time.Since(start),
		Found:     res.Found(),
		URL:       res.Selected,
		Runs:      p.runs,
	}
	p.mu.Unlock()

	if res.Found() {
		log.Infof("Poller: %s is live (%d/%d candidates accepted)", res.Selected, res.Accepted(), len(res.Outcomes))
	} else {
		log.Warnf("Poller: no live domain among %d candidates", len(res.Outcomes))
	}
}
