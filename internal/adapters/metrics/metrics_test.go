package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"appstore/internal/auth"
)

func TestGuardDecision_LabelsDegraded(t *testing.T) {
	m := New()
	m.GuardDecision(auth.Rendered, nil)
	m.GuardDecision(auth.RedirectedToLogin, errors.New("provider down"))
	m.GuardDecision(auth.RedirectedToLogin, errors.New("provider down"))

	if got := testutil.ToFloat64(m.guardDecisions.WithLabelValues("rendered", "false")); got != 1 {
		t.Errorf("rendered = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.guardDecisions.WithLabelValues("redirected_to_login", "true")); got != 2 {
		t.Errorf("degraded login redirects = %v, want 2", got)
	}
}

func TestCounters(t *testing.T) {
	m := New()
	m.AccountProvisioned()
	m.DownloadIssued()
	m.DownloadIssued()
	m.RateLimited()
	m.RouteDispatched("")
	m.Swept("sessions", 0)
	m.Swept("sessions", 3)

	if got := testutil.ToFloat64(m.provisioned); got != 1 {
		t.Errorf("provisioned = %v", got)
	}
	if got := testutil.ToFloat64(m.downloads); got != 2 {
		t.Errorf("downloads = %v", got)
	}
	if got := testutil.ToFloat64(m.rateLimited); got != 1 {
		t.Errorf("rate limited = %v", got)
	}
	if got := testutil.ToFloat64(m.dispatches.WithLabelValues("not_found")); got != 1 {
		t.Errorf("not_found dispatches = %v", got)
	}
	if got := testutil.ToFloat64(m.sweeps.WithLabelValues("sessions")); got != 3 {
		t.Errorf("swept = %v", got)
	}
}

func TestHandler_ExposesRegistry(t *testing.T) {
	m := New()
	done := m.RequestStarted()
	m.ObserveRequest("GET", "/app/:id", 200, 12*time.Millisecond)
	m.ObserveQuery("QueryContext", time.Millisecond)
	done()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`appstore_http_requests_total{method="GET",route="/app/:id",status="200"} 1`,
		"appstore_db_query_duration_seconds_count",
		"appstore_http_inflight_requests 0",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
