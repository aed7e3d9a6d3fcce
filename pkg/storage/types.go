package storage

import "time"

// Scan is one recorded scan round.
type Scan struct {
	ID          string
	StartedAt   time.Time
	Duration    time.Duration
	WindowDays  int
	SelectedURL string // empty when no candidate was live
	Accepted    int
}

// Outcome is one candidate's probe result within a recorded scan.
type Outcome struct {
	ScanID     string
	Position   int
	URL        string
	Kind       string // accepted | rejected_status | rejected_size | errored
	StatusCode int
	BytesRead  int64
	Stage      string
	Error      string
	Title      string
	Elapsed    time.Duration
}
