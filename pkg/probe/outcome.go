package probe

import (
	"errors"
	"time"
)

// Kind classifies how a probe ended.
type Kind string

const (
	KindAccepted       Kind = "accepted"
	KindRejectedStatus Kind = "rejected_status"
	KindRejectedSize   Kind = "rejected_size"
	KindErrored        Kind = "errored"
)

// Stage names the part of the probe an error happened in.
type Stage string

const (
	StageStatus Stage = "status"
	StageBody   Stage = "body"
)

var (
	ErrNetworkFailure      = errors.New("network failure")
	ErrTimeout             = errors.New("timeout")
	ErrNonSuccessStatus    = errors.New("non-success status")
	ErrInsufficientContent = errors.New("insufficient content")
)

// Outcome is the result of probing a single candidate. Exactly one is
// produced per candidate per scan.
type Outcome struct {
	URL        string
	Kind       Kind
	StatusCode int   // 0 when no response was received
	BytesRead  int64 // body bytes counted before the probe stopped
	Stage      Stage // set for KindErrored
	Err        error // nil for KindAccepted
	Title      string
	Elapsed    time.Duration
}

func (o Outcome) Accepted() bool { return o.Kind == KindAccepted }

// ErrorString returns Err's text, or "" when there is none.
func (o Outcome) ErrorString() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
