package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.SessionStarted("plant-doctor")
	m.SessionStarted("plant-doctor")
	m.Answered("plant-doctor")
	m.ResultReached("plant-doctor", "r1")
	m.Back("plant-doctor", false)
	m.ObserveHTTP("/api/quizzes", 200, 15*time.Millisecond)

	if got := testutil.ToFloat64(m.sessionsStarted.WithLabelValues("plant-doctor")); got != 2 {
		t.Fatalf("sessions = %v", got)
	}
	if got := testutil.ToFloat64(m.results.WithLabelValues("plant-doctor", "r1")); got != 1 {
		t.Fatalf("results = %v", got)
	}
	if got := testutil.ToFloat64(m.backs.WithLabelValues("plant-doctor", "false")); got != 1 {
		t.Fatalf("backs = %v", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/quizzes", "200")); got != 1 {
		t.Fatalf("http = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Answered("plant-doctor")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `plantdoctor_quiz_answers_total{quiz="plant-doctor"} 1`) {
		t.Fatalf("metrics output missing counter:\n%s", body)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SessionStarted("x")
	m.ObserveHTTP("/", 500, time.Second)
	m.Back("x", true)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("code = %d", rec.Code)
	}
}
