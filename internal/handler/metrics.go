package handler

import (
	"fmt"
	"net/http"

	"github.com/refertrack/refertrack/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "referrals_created_total %d\n", snap.ReferralsCreated)
	writeMetric(w, "referrals_deduplicated_total %d\n", snap.ReferralsDeduplicated)
	writeMetric(w, "referrals_resolved_total{status=\"accepted\"} %d\n", snap.ReferralsAccepted)
	writeMetric(w, "referrals_resolved_total{status=\"rejected\"} %d\n", snap.ReferralsRejected)
	writeMetric(w, "referrals_transition_conflicts_total %d\n", snap.TransitionConflicts)
	writeMetric(w, "referrals_create_duration_seconds_count %d\n", snap.CreateDurationCount)
	writeMetric(w, "referrals_create_duration_seconds_sum %.6f\n", float64(snap.CreateDurationTotalNs)/1e9)

	writeMetric(w, "referral_notifications_total{status=\"sent\"} %d\n", snap.NotificationsSent)
	writeMetric(w, "referral_notifications_total{status=\"failed\"} %d\n", snap.NotificationsFailed)
	writeMetric(w, "referral_notifications_enqueued_total{status=\"success\"} %d\n", snap.NotificationsEnqueued)
	writeMetric(w, "referral_notifications_enqueued_total{status=\"dropped\"} %d\n", snap.NotificationsDropped)
	writeMetric(w, "referral_notifications_dead_lettered_total %d\n", snap.NotificationsDeadLettered)
	writeMetric(w, "referral_notify_queue_depth %d\n", snap.NotifyQueueDepth)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
