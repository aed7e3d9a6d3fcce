// Package scanner runs scan rounds: it probes every candidate for the
// current date window concurrently and selects the most recent live one.
//
// A Service owns the state shared between scans and the boundary layer:
// the event log and, when enabled, the result cache.
package scanner

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/mirrorhop/mirrorhop/pkg/candidates"
	"github.com/mirrorhop/mirrorhop/pkg/eventlog"
	"github.com/mirrorhop/mirrorhop/pkg/probe"
)

// Event kinds appended by the orchestrator.
const (
	EventStartCheck     = "start_check"
	EventDomainFound    = "domain_found"
	EventDomainNotFound = "domain_not_found"
)

// Prober checks one candidate URL.
type Prober interface {
	Probe(ctx context.Context, url string) probe.Outcome
}

// Result is the outcome of one scan round. Outcomes are aligned with
// Candidates. A cached result has neither.
type Result struct {
	ID         string
	Selected   string
	Cached     bool
	Candidates []string
	Outcomes   []probe.Outcome
	StartedAt  time.Time
	Duration   time.Duration
}

func (r Result) Found() bool { return r.Selected != "" }

// Accepted counts the accepted outcomes.
func (r Result) Accepted() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Accepted() {
			n++
		}
	}
	return n
}

type Service struct {
	opts   Options
	clock  clockwork.Clock
	events *eventlog.Log
	cache  *Cache
	prober Prober
	client *http.Client
	log    logrus.FieldLogger
	onScan func(Result)
}

type Option func(*Service)

// WithClock sets the wall clock used for candidate dates and event timestamps.
func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }

// WithHTTPClient sets the client used by the default prober.
func WithHTTPClient(c *http.Client) Option { return func(s *Service) { s.client = c } }

// WithProber replaces the HTTP prober.
func WithProber(p Prober) Option { return func(s *Service) { s.prober = p } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.log = l } }

// OnScan registers fn to be called after every scan that touched the network.
func OnScan(fn func(Result)) Option { return func(s *Service) { s.onScan = fn } }

func New(opts Options, options ...Option) (*Service, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	s := &Service{opts: opts}
	for _, o := range options {
		o(s)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		s.log = l
	}
	s.events = eventlog.New(opts.MaxLogs, s.clock, s.log)
	if opts.CacheEnabled {
		s.cache = NewCache()
	}
	if s.prober == nil {
		s.prober = probe.New(s.client, opts.Probe, s.events)
	}
	return s, nil
}

func (s *Service) Options() Options { return s.opts }

// Events returns the shared event log.
func (s *Service) Events() *eventlog.Log { return s.events }

// Logs returns a snapshot of the event log.
func (s *Service) Logs() []eventlog.Event { return s.events.Snapshot() }

func (s *Service) CacheEnabled() bool { return s.cache != nil }

// ResetCache forgets the cached URL. It reports whether caching is enabled.
func (s *Service) ResetCache() bool {
	if s.cache == nil {
		return false
	}
	s.cache.Clear()
	s.log.Info("Result cache cleared")
	return true
}

// TriggerScan scans the configured window, or returns the cached URL.
func (s *Service) TriggerScan(ctx context.Context) Result {
	return s.Scan(ctx, s.opts.Window)
}

// Scan returns the cached URL without touching the network when one is
// held. Otherwise it probes window candidates and caches the winner.
func (s *Service) Scan(ctx context.Context, window int) Result {
	if url, ok := s.cache.Get(); ok {
		s.log.WithField("url", url).Debug("Serving cached domain")
		return Result{Selected: url, Cached: true, StartedAt: s.clock.Now()}
	}
	res := s.scan(ctx, window)
	if res.Found() {
		s.cache.Set(res.Selected)
	}
	return res
}

// Refresh always probes, then replaces the cached URL with the new winner
// or clears it when nothing is live.
func (s *Service) Refresh(ctx context.Context) Result {
	res := s.scan(ctx, s.opts.Window)
	if res.Found() {
		s.cache.Set(res.Selected)
	} else {
		s.cache.Clear()
	}
	return res
}

func (s *Service) scan(ctx context.Context, window int) Result {
	start := s.clock.Now()
	cands := candidates.Generate(s.opts.Template, start, window)
	urls := candidates.URLs(cands)
	id := uuid.NewString()

	s.events.Append(eventlog.Event{
		Kind:    EventStartCheck,
		Level:   logrus.InfoLevel.String(),
		Message: fmt.Sprintf("Checking %d candidate domains", len(urls)),
		Extra: map[string]interface{}{
			"scan_id":    id,
			"window":     window,
			"candidates": urls,
		},
	})

	outcomes := s.probeAll(ctx, urls)
	res := Result{
		ID:         id,
		Candidates: urls,
		Outcomes:   outcomes,
		StartedAt:  start,
		Selected:   selectFirst(outcomes),
	}
	res.Duration = s.clock.Since(start)

	extra := map[string]interface{}{
		"scan_id":     id,
		"accepted":    res.Accepted(),
		"checked":     len(outcomes),
		"duration_ms": res.Duration.Milliseconds(),
	}
	if res.Found() {
		extra["url"] = res.Selected
		s.events.Append(eventlog.Event{
			Kind:    EventDomainFound,
			Level:   logrus.InfoLevel.String(),
			Message: "Found available domain " + res.Selected,
			Extra:   extra,
		})
	} else {
		s.events.Append(eventlog.Event{
			Kind:    EventDomainNotFound,
			Level:   logrus.WarnLevel.String(),
			Message: fmt.Sprintf("None of %d candidate domains is available", len(outcomes)),
			Extra:   extra,
		})
	}

	if s.onScan != nil {
		s.onScan(res)
	}
	return res
}

// probeAll runs one probe per URL and waits for all of them. Outcomes are
// indexed by candidate position, not completion order.
func (s *Service) probeAll(ctx context.Context, urls []string) []probe.Outcome {
	outcomes := make([]probe.Outcome, len(urls))
	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.WithField("url", url).Errorf("Probe panicked: %v", r)
					outcomes[i] = probe.Outcome{
						URL:   url,
						Kind:  probe.KindErrored,
						Stage: probe.StageStatus,
						Err:   fmt.Errorf("%w: probe panicked: %v", probe.ErrNetworkFailure, r),
					}
				}
			}()
			outcomes[i] = s.prober.Probe(ctx, url)
		}(i, url)
	}
	wg.Wait()
	return outcomes
}

func selectFirst(outcomes []probe.Outcome) string {
	for _, o := range outcomes {
		if o.Accepted() {
			return o.URL
		}
	}
	return ""
}
