package scanner

import (
	"fmt"

	"github.com/mirrorhop/mirrorhop/pkg/candidates"
	"github.com/mirrorhop/mirrorhop/pkg/eventlog"
	"github.com/mirrorhop/mirrorhop/pkg/probe"
)

const (
	DefaultTemplate = "http://kinovod" + candidates.Placeholder + ".pro"
	DefaultWindow   = 6
)

// Options configures a Service.
type Options struct {
	Template     string
	Window       int
	Probe        probe.Config
	CacheEnabled bool
	MaxLogs      int
}

func DefaultOptions() Options {
	return Options{
		Template: DefaultTemplate,
		Window:   DefaultWindow,
		Probe:    probe.DefaultConfig(),
		MaxLogs:  eventlog.DefaultMaxLogs,
	}
}

func (o Options) Validate() error {
	if err := candidates.ValidateTemplate(o.Template); err != nil {
		return fmt.Errorf("invalid template %q: %w", o.Template, err)
	}
	if o.Window < 1 {
		return fmt.Errorf("window must be at least 1 day, got %d", o.Window)
	}
	if o.MaxLogs < 1 {
		return fmt.Errorf("max logs must be at least 1, got %d", o.MaxLogs)
	}
	return o.Probe.Validate()
}
