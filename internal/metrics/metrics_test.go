package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.RecordSessionStart()
	m.RecordContentItem("text")
	m.RecordRequest("user_query", "completed", time.Second)
	m.RecordToolCallEnd("recall", "completed")
	m.RecordPlayback(10)
}

func TestRecordRequestUpdatesCounters(t *testing.T) {
	m := New("test")
	m.RecordRequest("background", "interrupted", 200*time.Millisecond)
	m.RecordRequest("background", "interrupted", 300*time.Millisecond)

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("background", "interrupted")); got != 2 {
		t.Fatalf("expected 2 interrupted background requests, got %v", got)
	}
}

func TestToolCallGaugeReturnsToZero(t *testing.T) {
	m := New("test")
	m.RecordToolCallStart()
	m.RecordToolCallStart()
	m.RecordToolCallEnd("recall", "completed")
	m.RecordToolCallEnd("recall", "failed")

	if got := testutil.ToFloat64(m.ToolCallsActive); got != 0 {
		t.Fatalf("expected no active tool calls, got %v", got)
	}
	if got := testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("recall", "failed")); got != 1 {
		t.Fatalf("expected one failed recall, got %v", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New("test")
	m.RecordContentItem("image")

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `test_content_items_total{kind="image"} 1`) {
		t.Fatalf("expected content item counter in output, got:\n%s", recorder.Body.String())
	}
}
