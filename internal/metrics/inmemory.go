package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	ReferralsCreated          uint64
	ReferralsDeduplicated     uint64
	ReferralsAccepted         uint64
	ReferralsRejected         uint64
	TransitionConflicts       uint64
	CreateDurationCount       uint64
	CreateDurationTotalNs     int64
	NotificationsSent         uint64
	NotificationsFailed       uint64
	NotificationsEnqueued     uint64
	NotificationsDropped      uint64
	NotificationsDeadLettered uint64
	NotifyQueueDepth          int64
}

// InMemoryRecorder keeps counters in memory. It backs the /metrics endpoint
// and is handy in tests.
type InMemoryRecorder struct {
	referralsCreated          uint64
	referralsDeduplicated     uint64
	referralsAccepted         uint64
	referralsRejected         uint64
	transitionConflicts       uint64
	createDurationCount       uint64
	createDurationTotalNs     int64
	notificationsSent         uint64
	notificationsFailed       uint64
	notificationsEnqueued     uint64
	notificationsDropped      uint64
	notificationsDeadLettered uint64
	notifyQueueDepth          int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		ReferralsCreated:          atomic.LoadUint64(&m.referralsCreated),
		ReferralsDeduplicated:     atomic.LoadUint64(&m.referralsDeduplicated),
		ReferralsAccepted:         atomic.LoadUint64(&m.referralsAccepted),
		ReferralsRejected:         atomic.LoadUint64(&m.referralsRejected),
		TransitionConflicts:       atomic.LoadUint64(&m.transitionConflicts),
		CreateDurationCount:       atomic.LoadUint64(&m.createDurationCount),
		CreateDurationTotalNs:     atomic.LoadInt64(&m.createDurationTotalNs),
		NotificationsSent:         atomic.LoadUint64(&m.notificationsSent),
		NotificationsFailed:       atomic.LoadUint64(&m.notificationsFailed),
		NotificationsEnqueued:     atomic.LoadUint64(&m.notificationsEnqueued),
		NotificationsDropped:      atomic.LoadUint64(&m.notificationsDropped),
		NotificationsDeadLettered: atomic.LoadUint64(&m.notificationsDeadLettered),
		NotifyQueueDepth:          atomic.LoadInt64(&m.notifyQueueDepth),
	}
}

// IncReferralCreated increments the created counter.
func (m *InMemoryRecorder) IncReferralCreated() {
	atomic.AddUint64(&m.referralsCreated, 1)
}

// IncReferralDeduplicated counts creates that matched an existing referral.
func (m *InMemoryRecorder) IncReferralDeduplicated() {
	atomic.AddUint64(&m.referralsDeduplicated, 1)
}

// IncReferralResolved counts successful accept/reject transitions.
func (m *InMemoryRecorder) IncReferralResolved(status string) {
	switch status {
	case "accepted":
		atomic.AddUint64(&m.referralsAccepted, 1)
	case "rejected":
		atomic.AddUint64(&m.referralsRejected, 1)
	}
}

// IncReferralTransitionConflict counts transitions refused on resolved referrals.
func (m *InMemoryRecorder) IncReferralTransitionConflict() {
	atomic.AddUint64(&m.transitionConflicts, 1)
}

// ObserveCreateDuration records create duration.
func (m *InMemoryRecorder) ObserveCreateDuration(duration time.Duration) {
	atomic.AddUint64(&m.createDurationCount, 1)
	atomic.AddInt64(&m.createDurationTotalNs, duration.Nanoseconds())
}

// IncNotification counts delivery attempts by outcome.
func (m *InMemoryRecorder) IncNotification(status string) {
	switch status {
	case "sent":
		atomic.AddUint64(&m.notificationsSent, 1)
	case "failed":
		atomic.AddUint64(&m.notificationsFailed, 1)
	}
}

// IncNotificationEnqueued counts queue publishes by outcome.
func (m *InMemoryRecorder) IncNotificationEnqueued(status string) {
	switch status {
	case "success":
		atomic.AddUint64(&m.notificationsEnqueued, 1)
	case "dropped":
		atomic.AddUint64(&m.notificationsDropped, 1)
	}
}

// IncNotificationDeadLettered counts malformed queue messages.
func (m *InMemoryRecorder) IncNotificationDeadLettered() {
	atomic.AddUint64(&m.notificationsDeadLettered, 1)
}

// SetNotifyQueueDepth stores the latest observed queue depth.
func (m *InMemoryRecorder) SetNotifyQueueDepth(depth int64) {
	atomic.StoreInt64(&m.notifyQueueDepth, depth)
}
