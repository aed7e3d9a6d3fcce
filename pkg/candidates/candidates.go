// Package candidates builds the date-shifted URLs probed in one scan round.
package candidates

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

const (
	// Placeholder is the single substitution point in a template.
	Placeholder = "{date}"

	// TokenLayout renders a date as DDMMYY.
	TokenLayout = "020106"
)

var (
	ErrNoPlaceholder       = errors.New("template has no " + Placeholder + " placeholder")
	ErrManyPlaceholders    = errors.New("template has more than one " + Placeholder + " placeholder")
	ErrUnsupportedScheme   = errors.New("template scheme must be http or https")
	ErrUnregistrableDomain = errors.New("template host has no registrable domain")
)

// Candidate is one URL eligible for probing, tied to the day it was derived from.
type Candidate struct {
	Offset int       // days before the reference date, 0 = today
	Date   time.Time // reference date minus Offset days
	URL    string
}

// Token formats a date the way it appears in candidate hostnames.
func Token(t time.Time) string {
	return t.Format(TokenLayout)
}

// Render substitutes the date token into the template.
func Render(template string, t time.Time) string {
	return strings.Replace(template, Placeholder, Token(t), 1)
}

// Generate returns window candidates, most recent first.
func Generate(template string, reference time.Time, window int) []Candidate {
	if window <= 0 {
		return []Candidate{}
	}
	out := make([]Candidate, 0, window)
	for shift := 0; shift < window; shift++ {
		d := reference.AddDate(0, 0, -shift)
		out = append(out, Candidate{
			Offset: shift,
			Date:   d,
			URL:    Render(template, d),
		})
	}
	return out
}

// URLs flattens candidates to their URLs, keeping order.
func URLs(cands []Candidate) []string {
	urls := make([]string, len(cands))
	for i, c := range cands {
		urls[i] = c.URL
	}
	return urls
}

// ValidateTemplate checks that a template renders to a probeable URL.
func ValidateTemplate(template string) error {
	switch n := strings.Count(template, Placeholder); {
	case n == 0:
		return ErrNoPlaceholder
	case n > 1:
		return ErrManyPlaceholders
	}

	sample := Render(template, time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC))
	u, err := url.Parse(sample)
	if err != nil {
		return fmt.Errorf("template does not render a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrUnsupportedScheme
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("template %q renders a URL without a host", template)
	}
	if isLocal(host) {
		return nil
	}
	if _, err := publicsuffix.Domain(host); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnregistrableDomain, host, err)
	}
	return nil
}

// Registrable returns the eTLD+1 of a candidate URL, or "" for IP and local hosts.
func Registrable(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" || isLocal(host) {
		return ""
	}
	domain, err := publicsuffix.Domain(host)
	if err != nil {
		return ""
	}
	return domain
}

func isLocal(host string) bool {
	return host == "localhost" || net.ParseIP(host) != nil
}
