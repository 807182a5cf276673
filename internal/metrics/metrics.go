// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Referral lifecycle metrics
	IncReferralCreated()
	IncReferralDeduplicated()
	IncReferralResolved(status string) // status: "accepted" or "rejected"
	IncReferralTransitionConflict()
	ObserveCreateDuration(duration time.Duration)

	// Invitation delivery metrics
	IncNotification(status string)         // status: "sent" or "failed"
	IncNotificationEnqueued(status string) // status: "success" or "dropped"
	IncNotificationDeadLettered()
	SetNotifyQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
