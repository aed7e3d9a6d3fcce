package server

import (
	"github.com/mirrorhop/mirrorhop/pkg/probe"
	"github.com/mirrorhop/mirrorhop/pkg/scanner"
)

const noDomainMessage = "no domain available"

type OutcomeDTO struct {
	URL        string `json:"url"`
	Kind       string `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	BytesRead  int64  `json:"bytes_read,omitempty"`
	Stage      string `json:"stage,omitempty"`
	Error      string `json:"error,omitempty"`
	Title      string `json:"title,omitempty"`
	ElapsedMs  int64  `json:"elapsed_ms"`
}

// CheckResponse keeps the {"ok", "url"} shape polled by the landing page script.
type CheckResponse struct {
	OK       bool         `json:"ok"`
	URL      string       `json:"url,omitempty"`
	Cached   bool         `json:"cached"`
	ScanID   string       `json:"scan_id,omitempty"`
	Error    string       `json:"error,omitempty"`
	Outcomes []OutcomeDTO `json:"outcomes"`
}

func toOutcomeDTO(o probe.Outcome) OutcomeDTO {
	return OutcomeDTO{
		URL:        o.URL,
		Kind:       string(o.Kind),
		StatusCode: o.StatusCode,
		BytesRead:  o.BytesRead,
		Stage:      string(o.Stage),
		Error:      o.ErrorString(),
		Title:      o.Title,
		ElapsedMs:  o.Elapsed.Milliseconds(),
	}
}

func toCheckResponse(res scanner.Result) CheckResponse {
	out := CheckResponse{
		OK:       res.Found(),
		URL:      res.Selected,
		Cached:   res.Cached,
		ScanID:   res.ID,
		Outcomes: make([]OutcomeDTO, 0, len(res.Outcomes)),
	}
	if !out.OK {
		out.Error = noDomainMessage
	}
	for _, o := range res.Outcomes {
		out.Outcomes = append(out.Outcomes, toOutcomeDTO(o))
	}
	return out
}
