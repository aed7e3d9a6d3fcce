// Package eventlog keeps a bounded, append-only record of scan and probe
// events in memory and mirrors each event to a logrus logger.
package eventlog

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// DefaultMaxLogs is the retention bound used when none is configured.
const DefaultMaxLogs = 200

// Event is one structured entry. Level is a logrus level name.
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	Kind      string                 `json:"event"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// Log is safe for concurrent use. Once more than max events have been
// appended, the oldest ones are dropped.
type Log struct {
	mu      sync.Mutex
	max     int
	entries []Event
	clock   clockwork.Clock
	out     logrus.FieldLogger
}

// New creates a log retaining at most max events. A nil out disables mirroring.
func New(max int, clock clockwork.Clock, out logrus.FieldLogger) *Log {
	if max <= 0 {
		max = DefaultMaxLogs
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Log{
		max:     max,
		entries: make([]Event, 0, max),
		clock:   clock,
		out:     out,
	}
}

// Max returns the retention bound.
func (l *Log) Max() int { return l.max }

// Append records ev, stamping it with the log's clock when Timestamp is zero.
func (l *Log) Append(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.clock.Now()
	}
	if ev.Level == "" {
		ev.Level = logrus.InfoLevel.String()
	}

	l.mu.Lock()
	l.entries = append(l.entries, ev)
	if over := len(l.entries) - l.max; over > 0 {
		// Shift in place so the backing array does not grow without bound.
		n := copy(l.entries, l.entries[over:])
		for i := n; i < len(l.entries); i++ {
			l.entries[i] = Event{}
		}
		l.entries = l.entries[:n]
	}
	l.mu.Unlock()

	l.mirror(ev)
}

// Snapshot returns a copy of the retained events in append order.
func (l *Log) Snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, len(l.entries))
	for i, ev := range l.entries {
		out[i] = ev
		if ev.Extra != nil {
			extra := make(map[string]interface{}, len(ev.Extra))
			for k, v := range ev.Extra {
				extra[k] = v
			}
			out[i].Extra = extra
		}
	}
	return out
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) mirror(ev Event) {
	if l.out == nil {
		return
	}
	lvl, err := logrus.ParseLevel(ev.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	fields := logrus.Fields{"event": ev.Kind}
	for k, v := range ev.Extra {
		fields[k] = v
	}
	entry := l.out.WithFields(fields)
	switch lvl {
	case logrus.DebugLevel, logrus.TraceLevel:
		entry.Debug(ev.Message)
	case logrus.WarnLevel:
		entry.Warn(ev.Message)
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		entry.Error(ev.Message)
	default:
		entry.Info(ev.Message)
	}
}
