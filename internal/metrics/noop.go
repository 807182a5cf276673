package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncReferralCreated is a no-op.
func (n *NoopRecorder) IncReferralCreated() {}

// IncReferralDeduplicated is a no-op.
func (n *NoopRecorder) IncReferralDeduplicated() {}

// IncReferralResolved is a no-op.
func (n *NoopRecorder) IncReferralResolved(status string) {}

// IncReferralTransitionConflict is a no-op.
func (n *NoopRecorder) IncReferralTransitionConflict() {}

// ObserveCreateDuration is a no-op.
func (n *NoopRecorder) ObserveCreateDuration(duration time.Duration) {}

// IncNotification is a no-op.
func (n *NoopRecorder) IncNotification(status string) {}

// IncNotificationEnqueued is a no-op.
func (n *NoopRecorder) IncNotificationEnqueued(status string) {}

// IncNotificationDeadLettered is a no-op.
func (n *NoopRecorder) IncNotificationDeadLettered() {}

// SetNotifyQueueDepth is a no-op.
func (n *NoopRecorder) SetNotifyQueueDepth(depth int64) {}
