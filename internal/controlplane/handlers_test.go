package controlplane

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tripwire/ktracepoint"
	"github.com/tripwire/ktracepoint/filter"
	"github.com/tripwire/ktracepoint/hostops"
	"github.com/tripwire/ktracepoint/pipe"
	"github.com/tripwire/ktracepoint/registry"
)

func newTestServer(t *testing.T) (*Server, *ktracepoint.TracePoint) {
	t.Helper()
	schema := ktracepoint.NewSchema([]ktracepoint.Field{
		{Name: "a", Kind: ktracepoint.KindScalar, Signed: false, Width: 4, Len: 1},
	})
	tp := ktracepoint.NewTracePoint("test", "widget", schema, ktracepoint.NewAtomicBranch(),
		func(payload []byte) string { return "a=?" }, "field:u32 a; offset:8; size:4; signed:0;")

	tracePipe := pipe.NewRaw(16)
	cmdline := pipe.NewCmdlineCache(4)
	ops := hostops.NewReal(cmdline, tracePipe, 1)

	mgr := registry.NewManager(filter.Compile)
	if err := mgr.Init([]ktracepoint.EventInfo{{TP: tp}}, ops); err != nil {
		t.Fatalf("Init: %v", err)
	}

	return NewServer(mgr, tracePipe, cmdline, ops, nil), tp
}

func TestHealthzReturnsOK(t *testing.T) {
	srv, _ := newTestServer(t)
	router := NewRouter(srv, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestEnableRoundTrip(t *testing.T) {
	srv, tp := newTestServer(t)
	router := NewRouter(srv, nil)

	req := httptest.NewRequest(http.MethodGet, "/events/test/widget/enable", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Body.String() != "0\n" {
		t.Fatalf("GET enable = %q, want \"0\\n\"", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/events/test/widget/enable", strings.NewReader("1"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("POST enable status = %d, want 204", rec.Code)
	}
	if !tp.DefaultIsEnabled() {
		t.Fatal("expected tracepoint to be enabled after POST enable=1")
	}
}

func TestFilterRoundTrip(t *testing.T) {
	srv, tp := newTestServer(t)
	router := NewRouter(srv, nil)

	req := httptest.NewRequest(http.MethodPost, "/events/test/widget/filter", strings.NewReader("a > 1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("POST filter status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
	if tp.GetCompiledExpr() == nil {
		t.Fatal("expected a compiled filter to be installed")
	}

	req = httptest.NewRequest(http.MethodGet, "/events/test/widget/filter", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), "a > 1") {
		t.Fatalf("GET filter = %q, want it to contain \"a > 1\"", rec.Body.String())
	}
}

func TestUnknownEventReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	router := NewRouter(srv, nil)

	req := httptest.NewRequest(http.MethodGet, "/events/nope/nope/enable", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
