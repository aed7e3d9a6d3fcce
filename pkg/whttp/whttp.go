package whttp

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const UserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

type WHTTPHeader struct {
	Name  string
	Value string
}

// NewClient returns a client with its own transport. It has no overall
// timeout; callers bound each request through its context.
func NewClient() *http.Client {
	c := cleanhttp.DefaultPooledClient()
	c.Timeout = 0
	return c
}

// NewRequest builds a GET with the browser-like headers every probe sends.
func NewRequest(ctx context.Context, url string, headers ...WHTTPHeader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(req.Host, ":80") {
		req.Host = strings.TrimSuffix(req.Host, ":80")
	} else if strings.HasSuffix(req.Host, ":443") {
		req.Host = strings.TrimSuffix(req.Host, ":443")
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Cache-Control", "no-transform")
	req.Header.Set("Accept-Language", "en")

	for _, h := range headers {
		req.Header.Add(h.Name, h.Value)
	}
	return req, nil
}

// Title returns the text of the first <title> element in body. The body may
// be a truncated prefix of the page.
func Title(body []byte) (string, bool) {
	z := html.NewTokenizer(bytes.NewReader(body))
	inTitle := false
	var sb strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF && inTitle {
				return clean(sb.String()), true
			}
			return "", false
		case html.StartTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Title {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				sb.Write(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if inTitle && atom.Lookup(name) == atom.Title {
				return clean(sb.String()), true
			}
		}
	}
}

func clean(title string) string {
	title = strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")
	return strings.ToValidUTF8(strings.TrimSpace(title), "")
}
