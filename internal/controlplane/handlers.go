package controlplane

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tripwire/ktracepoint/internal/audit"
	"github.com/tripwire/ktracepoint/render"
)

// handleHealthz responds to GET /healthz. No authentication required.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleTracePipeHeader responds to GET /trace_pipe_header with the
// ftrace-style column legend.
func (s *Server) handleTracePipeHeader(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, s.tracePipe.DefaultFmtStr())
}

// handleTraceSnapshot responds to GET /trace with every record currently
// buffered in the raw trace pipe, rendered one per line. cpu and
// timestamp come from the record itself — stamped by Fire at the moment
// it was captured — not from a live query of the host clock/CPU slot, so
// the same pipe contents render identically on every call.
func (s *Server) handleTraceSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	cursor := s.tracePipe.Snapshot()
	for {
		rec, ok := cursor.Pop()
		if !ok {
			break
		}
		line, err := render.Line(rec.Bytes, s.mgr, s.cmdline, rec.CPU, rec.TimeNS)
		if err != nil {
			continue
		}
		_, _ = io.WriteString(w, line+"\n")
	}
}

// eventSummary is the JSON shape returned by GET /events.
type eventSummary struct {
	System  string `json:"system"`
	Name    string `json:"name"`
	ID      uint32 `json:"id"`
	Enabled bool   `json:"enabled"`
}

// handleListEvents responds to GET /events with every registered
// subsystem's events.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	var out []eventSummary
	for _, sysName := range s.mgr.SubsystemNames() {
		sub := s.mgr.GetSubsystem(sysName)
		if sub == nil {
			continue
		}
		for name, info := range sub.Events() {
			out = append(out, eventSummary{
				System:  sysName,
				Name:    name,
				ID:      info.TP.ID(),
				Enabled: info.TP.DefaultIsEnabled(),
			})
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) lookupEvent(w http.ResponseWriter, r *http.Request) (system, name string, ok bool) {
	system = chi.URLParam(r, "system")
	name = chi.URLParam(r, "name")
	if _, found := s.mgr.Event(system, name); !found {
		writeError(w, http.StatusNotFound, "no such event")
		return system, name, false
	}
	return system, name, true
}

func (s *Server) handleGetEnable(w http.ResponseWriter, r *http.Request) {
	system, name, ok := s.lookupEvent(w, r)
	if !ok {
		return
	}
	info, _ := s.mgr.Event(system, name)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, info.EnableText())
}

func (s *Server) handlePostEnable(w http.ResponseWriter, r *http.Request) {
	system, name, ok := s.lookupEvent(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 64))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}
	info, _ := s.mgr.Event(system, name)
	if err := info.SetEnableText(string(body)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.audit("enable", system, name, string(body))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetFormat(w http.ResponseWriter, r *http.Request) {
	system, name, ok := s.lookupEvent(w, r)
	if !ok {
		return
	}
	info, _ := s.mgr.Event(system, name)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, info.FormatText())
}

func (s *Server) handleGetID(w http.ResponseWriter, r *http.Request) {
	system, name, ok := s.lookupEvent(w, r)
	if !ok {
		return
	}
	info, _ := s.mgr.Event(system, name)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, info.IDText())
}

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	system, name, ok := s.lookupEvent(w, r)
	if !ok {
		return
	}
	info, _ := s.mgr.Event(system, name)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, info.FilterText()+"\n")
}

func (s *Server) handlePostFilter(w http.ResponseWriter, r *http.Request) {
	system, name, ok := s.lookupEvent(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}
	if err := s.mgr.SetFilterText(system, name, string(body)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.audit("filter", system, name, string(body))
	w.WriteHeader(http.StatusNoContent)
}

// audit records a mutating control-plane action, swallowing the write
// error into a best-effort attempt: a missing audit trail should not make
// the control-plane mutation itself fail.
func (s *Server) audit(action, system, name, value string) {
	if s.auditLog == nil {
		return
	}
	_, _ = s.auditLog.Append(audit.NewMutationPayload(action, system, name, value))
}
