// Package probe checks whether a single candidate URL is live and serving
// substantial content.
//
// A probe has two stages, each with its own deadline: waiting for the
// response status, then reading up to MinBytes of the body. The body
// deadline starts when body reading begins, so a slow first byte does not
// eat into the time allowed for the content itself.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/mirrorhop/mirrorhop/pkg/candidates"
	"github.com/mirrorhop/mirrorhop/pkg/eventlog"
	"github.com/mirrorhop/mirrorhop/pkg/whttp"
)

const (
	DefaultStatusTimeout = 7 * time.Second
	DefaultBodyTimeout   = 5 * time.Second
	DefaultMinBytes      = 30 * 1024
	DefaultChunkSize     = 4 * 1024

	// maxTitleBytes caps how much of the body is kept for title extraction.
	maxTitleBytes = 64 * 1024
)

// Event kinds appended by a probe.
const (
	EventAccepted       = "probe_accepted"
	EventRejectedStatus = "probe_rejected_status"
	EventRejectedSize   = "probe_rejected_size"
	EventError          = "probe_error"
)

var (
	errStatusDeadline = errors.New("status deadline exceeded")
	errBodyDeadline   = errors.New("body deadline exceeded")
)

// Config holds the probe thresholds.
type Config struct {
	StatusTimeout time.Duration
	BodyTimeout   time.Duration
	MinBytes      int64
	ChunkSize     int
}

func DefaultConfig() Config {
	return Config{
		StatusTimeout: DefaultStatusTimeout,
		BodyTimeout:   DefaultBodyTimeout,
		MinBytes:      DefaultMinBytes,
		ChunkSize:     DefaultChunkSize,
	}
}

func (c Config) Validate() error {
	if c.StatusTimeout <= 0 {
		return fmt.Errorf("status timeout must be positive, got %s", c.StatusTimeout)
	}
	if c.BodyTimeout <= 0 {
		return fmt.Errorf("body timeout must be positive, got %s", c.BodyTimeout)
	}
	if c.MinBytes < 0 {
		return fmt.Errorf("min bytes must not be negative, got %d", c.MinBytes)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk size must not be negative, got %d", c.ChunkSize)
	}
	return nil
}

// Recorder receives the one event each probe emits.
type Recorder interface {
	Append(eventlog.Event)
}

type Prober struct {
	client *http.Client
	cfg    Config
	events Recorder
}

// New returns a Prober. A nil client gets a fresh pooled client; zero
// timeouts and chunk size fall back to the defaults.
func New(client *http.Client, cfg Config, events Recorder) *Prober {
	if client == nil {
		client = whttp.NewClient()
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = DefaultStatusTimeout
	}
	if cfg.BodyTimeout <= 0 {
		cfg.BodyTimeout = DefaultBodyTimeout
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Prober{client: client, cfg: cfg, events: events}
}

func (p *Prober) Config() Config { return p.cfg }

// Probe checks url and records exactly one event describing the outcome.
// It never retries.
func (p *Prober) Probe(ctx context.Context, url string) Outcome {
	start := time.Now()
	out := p.probe(ctx, url)
	out.URL = url
	out.Elapsed = time.Since(start)
	p.record(out)
	return out
}

func (p *Prober) probe(ctx context.Context, url string) Outcome {
	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := whttp.NewRequest(reqCtx, url)
	if err != nil {
		return errored(StageStatus, ErrNetworkFailure, err)
	}

	statusTimer := time.AfterFunc(p.cfg.StatusTimeout, func() { cancel(errStatusDeadline) })
	resp, err := p.client.Do(req)
	fired := !statusTimer.Stop()
	if err != nil {
		return classify(reqCtx, StageStatus, err)
	}
	defer resp.Body.Close()
	if fired {
		// The deadline won the race against the response; the body is already cancelled.
		return errored(StageStatus, ErrTimeout, errStatusDeadline)
	}

	if resp.StatusCode != http.StatusOK {
		return Outcome{
			Kind:       KindRejectedStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %d", ErrNonSuccessStatus, resp.StatusCode),
		}
	}

	bodyTimer := time.AfterFunc(p.cfg.BodyTimeout, func() { cancel(errBodyDeadline) })
	defer bodyTimer.Stop()

	n, head, err := p.readAtLeast(resp.Body)
	switch {
	case n >= p.cfg.MinBytes:
		out := Outcome{Kind: KindAccepted, StatusCode: resp.StatusCode, BytesRead: n}
		if title, ok := whttp.Title(head); ok {
			out.Title = title
		}
		return out
	case err == nil:
		return Outcome{
			Kind:       KindRejectedSize,
			StatusCode: resp.StatusCode,
			BytesRead:  n,
			Err:        fmt.Errorf("%w: %d of %d bytes", ErrInsufficientContent, n, p.cfg.MinBytes),
		}
	default:
		out := classify(reqCtx, StageBody, err)
		out.StatusCode = resp.StatusCode
		out.BytesRead = n
		return out
	}
}

// readAtLeast reads body in chunks until MinBytes have been counted or the
// stream ends. A nil error means the threshold was met or EOF was reached.
func (p *Prober) readAtLeast(body io.Reader) (int64, []byte, error) {
	chunk := make([]byte, p.cfg.ChunkSize)
	var head []byte
	var n int64
	for n < p.cfg.MinBytes {
		m, err := body.Read(chunk)
		if m > 0 {
			n += int64(m)
			if room := maxTitleBytes - len(head); room > 0 {
				head = append(head, chunk[:min(m, room)]...)
			}
		}
		if err == io.EOF {
			return n, head, nil
		}
		if err != nil {
			return n, head, err
		}
	}
	return n, head, nil
}

func classify(ctx context.Context, stage Stage, err error) Outcome {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, errStatusDeadline):
		return errored(StageStatus, ErrTimeout, cause)
	case errors.Is(cause, errBodyDeadline):
		return errored(StageBody, ErrTimeout, cause)
	case isTimeout(err):
		return errored(stage, ErrTimeout, err)
	default:
		return errored(stage, ErrNetworkFailure, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func errored(stage Stage, class, cause error) Outcome {
	return Outcome{
		Kind:  KindErrored,
		Stage: stage,
		Err:   fmt.Errorf("%w at %s stage: %w", class, stage, cause),
	}
}

func (p *Prober) record(out Outcome) {
	if p.events == nil {
		return
	}
	extra := map[string]interface{}{
		"url":        out.URL,
		"elapsed_ms": out.Elapsed.Milliseconds(),
	}
	if domain := candidates.Registrable(out.URL); domain != "" {
		extra["domain"] = domain
	}

	ev := eventlog.Event{Extra: extra, Level: logrus.InfoLevel.String()}
	switch out.Kind {
	case KindAccepted:
		ev.Kind = EventAccepted
		ev.Message = fmt.Sprintf("%s is live (%s read)", out.URL, humanize.IBytes(uint64(out.BytesRead)))
		extra["status"] = out.StatusCode
		extra["bytes"] = out.BytesRead
		if out.Title != "" {
			extra["title"] = out.Title
		}
	case KindRejectedStatus:
		ev.Kind = EventRejectedStatus
		ev.Message = fmt.Sprintf("%s returned status %d", out.URL, out.StatusCode)
		extra["status"] = out.StatusCode
	case KindRejectedSize:
		ev.Kind = EventRejectedSize
		ev.Message = fmt.Sprintf("%s served only %s, need %s", out.URL,
			humanize.IBytes(uint64(out.BytesRead)), humanize.IBytes(uint64(p.cfg.MinBytes)))
		extra["status"] = out.StatusCode
		extra["bytes"] = out.BytesRead
		extra["min_bytes"] = p.cfg.MinBytes
	default:
		ev.Kind = EventError
		ev.Level = logrus.WarnLevel.String()
		ev.Message = fmt.Sprintf("%s failed: %v", out.URL, out.Err)
		extra["stage"] = string(out.Stage)
		extra["error"] = out.ErrorString()
		if errors.Is(out.Err, ErrTimeout) {
			extra["error_class"] = "timeout"
		} else {
			extra["error_class"] = "network"
		}
		if out.StatusCode != 0 {
			extra["status"] = out.StatusCode
			extra["bytes"] = out.BytesRead
		}
	}
	p.events.Append(ev)
}
