package prometheus

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/meowauth"
)

type fakeSource struct {
	snapshot meowauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() meowauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

type pingingSource struct {
	fakeSource
	err error
}

func (p pingingSource) Ping(context.Context) error { return p.err }

func enabledSnapshot() meowauth.MetricsSnapshot {
	return meowauth.MetricsSnapshot{
		Counters: map[meowauth.MetricID]uint64{
			meowauth.MetricLoginSuccess:         7,
			meowauth.MetricRefreshReuseDetected: 1,
		},
		Histograms: map[meowauth.MetricID][]uint64{
			meowauth.MetricAuthorizeLatency: {1, 2, 3, 4, 5, 6, 7, 8},
		},
	}
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := New(fakeSource{snapshot: meowauth.MetricsSnapshot{
		Counters:   map[meowauth.MetricID]uint64{},
		Histograms: map[meowauth.MetricID][]uint64{},
	}})
	if got := exp.Render(context.Background()); got != "" {
		t.Fatalf("expected empty output, got:\n%s", got)
	}
	var nilExp *Exporter
	if nilExp.Render(context.Background()) != "" {
		t.Fatalf("nil exporter must render nothing")
	}
}

func TestRenderCountersAndHistogram(t *testing.T) {
	out := New(fakeSource{snapshot: enabledSnapshot(), dropped: 2}).Render(context.Background())

	for _, want := range []string{
		"# TYPE meowauth_login_success_total counter",
		"meowauth_login_success_total 7",
		"meowauth_refresh_reuse_detected_total 1",
		"meowauth_oauth_exchanged_total 0",
		`meowauth_authorize_latency_seconds_bucket{le="0.005"} 1`,
		`meowauth_authorize_latency_seconds_bucket{le="+Inf"} 36`,
		"meowauth_authorize_latency_seconds_count 36",
		"meowauth_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "meowauth_storage_up") {
		t.Fatalf("storage gauge rendered for a source without Ping")
	}
}

func TestRenderWithoutHistogram(t *testing.T) {
	snap := enabledSnapshot()
	delete(snap.Histograms, meowauth.MetricAuthorizeLatency)
	out := New(fakeSource{snapshot: snap}).Render(context.Background())
	if strings.Contains(out, "meowauth_authorize_latency_seconds") {
		t.Fatalf("histogram rendered while latency is disabled:\n%s", out)
	}
}

func TestRenderStorageGauge(t *testing.T) {
	up := New(pingingSource{fakeSource: fakeSource{snapshot: enabledSnapshot()}}).Render(context.Background())
	if !strings.Contains(up, "meowauth_storage_up 1") {
		t.Fatalf("expected storage up:\n%s", up)
	}
	down := New(pingingSource{
		fakeSource: fakeSource{snapshot: enabledSnapshot()},
		err:        errors.New("connection refused"),
	}).Render(context.Background())
	if !strings.Contains(down, "meowauth_storage_up 0") {
		t.Fatalf("expected storage down:\n%s", down)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := New(fakeSource{snapshot: enabledSnapshot()})
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("content type = %q", got)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "meowauth_login_success_total 7") {
		t.Fatalf("unexpected response %d:\n%s", rec.Code, rec.Body.String())
	}
}

func TestEscapeHelp(t *testing.T) {
	if got := escapeHelp("a\\b\nc"); got != `a\\b\nc` {
		t.Fatalf("escapeHelp = %q", got)
	}
}
