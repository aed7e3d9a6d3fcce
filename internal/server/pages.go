package server

import (
	"net/http"
	"time"

	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"

	"github.com/mirrorhop/mirrorhop/pkg/eventlog"
	"github.com/mirrorhop/mirrorhop/pkg/polling"
)

const pageCSS = `
body { font-family: system-ui, sans-serif; background: #0f172a; color: #e2e8f0; margin: 0; }
main { max-width: 64rem; margin: 4rem auto; padding: 0 1rem; }
h1 { font-size: 1.75rem; }
table { width: 100%; border-collapse: collapse; font-size: .875rem; }
th, td { text-align: left; padding: .5rem; border-bottom: 1px solid #1e293b; vertical-align: top; }
.warning, .error { color: #f87171; }
.muted { color: #64748b; }
`

func pageLayout(title string, content ...g.Node) g.Node {
	return h.Doctype(
		h.HTML(h.Lang("en"),
			h.Head(
				h.Meta(h.Charset("UTF-8")),
				h.Meta(h.Name("viewport"), h.Content("width=device-width, initial-scale=1.0")),
				h.Meta(h.Name("robots"), h.Content("noindex")),
				h.TitleEl(g.Text(title)),
				h.StyleEl(g.Raw(pageCSS)),
			),
			h.Body(h.Main(content...)),
		),
	)
}

func errorPage() g.Node {
	return pageLayout("Mirror unavailable",
		h.H1(g.Text("No mirror is available right now")),
		h.P(g.Text("None of the recent mirror domains responded with a working site. Please try again in a few minutes.")),
		h.P(h.A(h.Href("/"), g.Text("Try again"))),
	)
}

func debugPage(events []eventlog.Event, cacheEnabled bool, status *polling.Status) g.Node {
	cache := "disabled"
	if cacheEnabled {
		cache = "enabled"
	}

	var poller g.Node = h.P(h.Class("muted"), g.Text("Background poller has not run."))
	if status != nil {
		result := "no live domain"
		if status.Found {
			result = status.URL
		}
		poller = h.P(g.Textf("Last poll %s (%s, run #%d): %s",
			status.StartedAt.UTC().Format(time.RFC3339),
			status.Duration.Round(time.Millisecond),
			status.Runs,
			result,
		))
	}

	rows := make([]g.Node, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		rows = append(rows, h.Tr(
			h.Td(h.Class("muted"), g.Text(ev.Timestamp.UTC().Format(time.RFC3339))),
			h.Td(h.Class(ev.Level), g.Text(ev.Kind)),
			h.Td(g.Text(ev.Message)),
		))
	}

	return pageLayout("Debug",
		h.H1(g.Text("Debug")),
		h.P(g.Textf("Result cache: %s. Showing %d events, newest first.", cache, len(events))),
		poller,
		h.Table(
			h.THead(h.Tr(h.Th(g.Text("Time (UTC)")), h.Th(g.Text("Event")), h.Th(g.Text("Message")))),
			h.TBody(rows...),
		),
	)
}

func (s *Server) render(w http.ResponseWriter, status int, page g.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Render(w); err != nil {
		s.Log.Warnf("Failed to render page: %v", err)
	}
}
