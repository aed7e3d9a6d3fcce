package server

import (
	"encoding/json"
	"net/http"

	"github.com/mirrorhop/mirrorhop/pkg/eventlog"
	"github.com/mirrorhop/mirrorhop/pkg/polling"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	res := s.Scanner.TriggerScan(r.Context())
	if res.Found() {
		http.Redirect(w, r, res.Selected, http.StatusFound)
		return
	}
	s.render(w, http.StatusServiceUnavailable, errorPage())
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	res := s.Scanner.TriggerScan(r.Context())
	s.writeJSON(w, http.StatusOK, toCheckResponse(res))
}

func (s *Server) handleErrorPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, errorPage())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	logs := s.Scanner.Logs()
	if logs == nil {
		logs = []eventlog.Event{}
	}
	s.writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	var status *polling.Status
	if s.Poller != nil {
		if st, ok := s.Poller.Status(); ok {
			status = &st
		}
	}
	s.render(w, http.StatusOK, debugPage(s.Scanner.Logs(), s.Scanner.CacheEnabled(), status))
}

func (s *Server) handleResetCache(w http.ResponseWriter, r *http.Request) {
	enabled := s.Scanner.ResetCache()
	s.writeJSON(w, http.StatusOK, map[string]bool{"cache_enabled": enabled, "cleared": enabled})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.Warnf("Failed to encode response: %v", err)
	}
}
