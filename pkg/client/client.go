// Package client talks to a running mirrorhop server. It is a diagnostic
// tool: retries here only cover fetching /check and /logs, never probes.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const maxResponseBytes = 8 << 20

type Client struct {
	base     string
	http     *retryablehttp.Client
	username string
	password string
}

type Option func(*Client)

// WithRetry sets how many times a failed request is retried and the minimum wait.
func WithRetry(max int, wait time.Duration) Option {
	return func(c *Client) {
		c.http.RetryMax = max
		c.http.RetryWaitMin = wait
		if c.http.RetryWaitMax < wait {
			c.http.RetryWaitMax = wait
		}
	}
}

func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithLogger routes retryablehttp's request logging to a logrus logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.http.Logger = leveledLogger{l} }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.HTTPClient.Timeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	rc.HTTPClient.Timeout = 60 * time.Second
	c := &Client{base: strings.TrimRight(baseURL, "/"), http: rc}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OutcomeSummary is one candidate line of a /check response.
type OutcomeSummary struct {
	URL        string
	Kind       string
	StatusCode int
	BytesRead  int64
	Stage      string
	Error      string
}

type CheckResult struct {
	OK       bool
	URL      string
	Cached   bool
	ScanID   string
	Outcomes []OutcomeSummary
}

type LogEntry struct {
	Timestamp time.Time
	Event     string
	Level     string
	Message   string
	Extra     map[string]interface{}
}

// Check asks the server to run (or short-circuit) a scan.
func (c *Client) Check(ctx context.Context) (CheckResult, error) {
	body, err := c.get(ctx, "/check")
	if err != nil {
		return CheckResult{}, err
	}
	res := CheckResult{
		OK:     gjson.GetBytes(body, "ok").Bool(),
		URL:    gjson.GetBytes(body, "url").String(),
		Cached: gjson.GetBytes(body, "cached").Bool(),
		ScanID: gjson.GetBytes(body, "scan_id").String(),
	}
	gjson.GetBytes(body, "outcomes").ForEach(func(_, o gjson.Result) bool {
		res.Outcomes = append(res.Outcomes, OutcomeSummary{
			URL:        o.Get("url").String(),
			Kind:       o.Get("kind").String(),
			StatusCode: int(o.Get("status_code").Int()),
			BytesRead:  o.Get("bytes_read").Int(),
			Stage:      o.Get("stage").String(),
			Error:      o.Get("error").String(),
		})
		return true
	})
	return res, nil
}

// Logs fetches the server's event log snapshot.
func (c *Client) Logs(ctx context.Context) ([]LogEntry, error) {
	body, err := c.get(ctx, "/logs")
	if err != nil {
		return nil, err
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("unexpected /logs payload: %.80s", body)
	}
	var out []LogEntry
	parsed.ForEach(func(_, ev gjson.Result) bool {
		e := LogEntry{
			Timestamp: ev.Get("timestamp").Time(),
			Event:     ev.Get("event").String(),
			Level:     ev.Get("level").String(),
			Message:   ev.Get("message").String(),
		}
		if extra, ok := ev.Get("extra").Value().(map[string]interface{}); ok {
			e.Extra = extra
		}
		out = append(out, e)
		return true
	})
	return out, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s returned status %d", path, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("GET %s returned invalid JSON", path)
	}
	return body, nil
}

// leveledLogger adapts logrus to retryablehttp.LeveledLogger.
type leveledLogger struct {
	l logrus.FieldLogger
}

func (a leveledLogger) with(kv []interface{}) logrus.FieldLogger {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return a.l.WithFields(fields)
}

func (a leveledLogger) Error(msg string, kv ...interface{}) { a.with(kv).Error(msg) }
func (a leveledLogger) Info(msg string, kv ...interface{})  { a.with(kv).Info(msg) }
func (a leveledLogger) Debug(msg string, kv ...interface{}) { a.with(kv).Debug(msg) }
func (a leveledLogger) Warn(msg string, kv ...interface{})  { a.with(kv).Warn(msg) }
