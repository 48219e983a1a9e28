package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCountsRequests(t *testing.T) {
	c := New()
	c.ObserveRequest(http.MethodGet, "/api/v1/performance/summary", http.StatusOK, 20*time.Millisecond)
	c.ObserveRequest(http.MethodPost, "/api/v1/auth/login", http.StatusTooManyRequests, time.Millisecond)

	if got := testutil.ToFloat64(c.requests.WithLabelValues(http.MethodGet, "/api/v1/performance/summary", "200")); got != 1 {
		t.Fatalf("expected 1 request, got %v", got)
	}
	if got := testutil.ToFloat64(c.rateLimited); got != 1 {
		t.Fatalf("expected 1 rate limited request, got %v", got)
	}
}

func TestCollectorDomainCounters(t *testing.T) {
	c := New()
	c.EvaluationSaved("create")
	c.EvaluationSaved("create")
	c.EvaluationSaved("update")
	c.RankingFailed()
	c.JobRun("rank_repair", "completed")

	if got := testutil.ToFloat64(c.evaluations.WithLabelValues("create")); got != 2 {
		t.Fatalf("expected 2 creates, got %v", got)
	}
	if got := testutil.ToFloat64(c.rankingFailures); got != 1 {
		t.Fatalf("expected 1 ranking failure, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	c.EvaluationSaved("create")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `epts_evaluations_saved_total{operation="create"} 1`) {
		t.Fatalf("expected evaluation counter in output:\n%s", body)
	}
}
