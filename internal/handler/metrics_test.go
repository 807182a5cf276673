package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/refertrack/refertrack/internal/metrics"
)

func TestMetricsHandler_Metrics(t *testing.T) {
	rec := metrics.NewInMemory()
	rec.IncReferralCreated()
	rec.IncReferralCreated()
	rec.IncReferralDeduplicated()
	rec.IncReferralResolved("accepted")
	rec.IncNotification("failed")
	rec.ObserveCreateDuration(1500 * time.Millisecond)
	rec.SetNotifyQueueDepth(4)

	h := NewMetricsHandler(rec)
	w := httptest.NewRecorder()
	h.Metrics(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected Content-Type %q", ct)
	}

	body := w.Body.String()
	for _, line := range []string{
		"referrals_created_total 2",
		"referrals_deduplicated_total 1",
		`referrals_resolved_total{status="accepted"} 1`,
		`referrals_resolved_total{status="rejected"} 0`,
		`referral_notifications_total{status="failed"} 1`,
		"referrals_create_duration_seconds_count 1",
		"referrals_create_duration_seconds_sum 1.500000",
		"referral_notify_queue_depth 4",
	} {
		if !strings.Contains(body, line+"\n") {
			t.Errorf("metrics output missing %q\n%s", line, body)
		}
	}
}

func TestMetricsHandler_NoSnapshotter(t *testing.T) {
	h := NewMetricsHandler(nil)
	w := httptest.NewRecorder()
	h.Metrics(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}
