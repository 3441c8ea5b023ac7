// Package controlplane exposes the tracing registry's pseudo-file views
// over HTTP: per-event enable/format/id/filter control, a registry-wide
// event listing, and a raw trace snapshot — the control-plane surface a
// ktraced instance serves to operators and tooling.
package controlplane

import (
	"crypto/rsa"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tripwire/ktracepoint"
	"github.com/tripwire/ktracepoint/internal/audit"
	"github.com/tripwire/ktracepoint/pipe"
	"github.com/tripwire/ktracepoint/registry"
)

// Server holds the dependencies behind every route.
type Server struct {
	mgr       *registry.Manager
	tracePipe *pipe.Raw
	cmdline   *pipe.CmdlineCache
	ops       ktracepoint.KernelTraceOps
	auditLog  *audit.Logger // optional; nil disables audit recording
}

// NewServer builds a Server. auditLog may be nil if no audit trail is
// wanted (e.g. in short-lived test servers).
func NewServer(mgr *registry.Manager, tracePipe *pipe.Raw, cmdline *pipe.CmdlineCache, ops ktracepoint.KernelTraceOps, auditLog *audit.Logger) *Server {
	return &Server{mgr: mgr, tracePipe: tracePipe, cmdline: cmdline, ops: ops, auditLog: auditLog}
}

// NewRouter returns a configured chi.Router for the control plane API.
//
// Route layout:
//
//	GET  /healthz                              – liveness probe, no authentication
//	GET  /trace_pipe_header                    – ftrace-style column legend
//	GET  /trace                                – snapshot of currently buffered records, rendered
//	GET  /events                               – list every subsystem and its events
//	GET  /events/{system}/{name}/enable         – read "1\n"/"0\n"
//	POST /events/{system}/{name}/enable         – write "1"/"0" (JWT required, audited)
//	GET  /events/{system}/{name}/format         – read-only format block
//	GET  /events/{system}/{name}/id             – read-only numeric ID
//	GET  /events/{system}/{name}/filter         – read the installed filter expression
//	POST /events/{system}/{name}/filter         – install a filter expression (JWT required, audited)
//
// pubKey is the RSA public key used to verify RS256 Bearer tokens on the
// mutating POST routes. Pass nil to disable JWT validation, e.g. in tests
// that cover only request parsing and response formatting.
func NewRouter(srv *Server, pubKey *rsa.PublicKey) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", srv.handleHealthz)
	r.Get("/trace_pipe_header", srv.handleTracePipeHeader)
	r.Get("/trace", srv.handleTraceSnapshot)
	r.Get("/events", srv.handleListEvents)

	r.Route("/events/{system}/{name}", func(r chi.Router) {
		r.Get("/enable", srv.handleGetEnable)
		r.Get("/format", srv.handleGetFormat)
		r.Get("/id", srv.handleGetID)
		r.Get("/filter", srv.handleGetFilter)

		r.Group(func(r chi.Router) {
			if pubKey != nil {
				r.Use(JWTMiddleware(pubKey))
			}
			r.Post("/enable", srv.handlePostEnable)
			r.Post("/filter", srv.handlePostFilter)
		})
	})

	return r
}
