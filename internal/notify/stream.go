package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/refertrack/refertrack/internal/metrics"
)

const (
	// StreamKey is the Redis stream for pending invitations.
	StreamKey = "stream:referral_invitations"

	// DeadLetterStreamKey holds payloads the worker could not decode.
	DeadLetterStreamKey = "stream:referral_invitations:dlq"

	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "invitation_mailers"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 10000

	// EnqueueTimeout bounds the XADD issued on the request path.
	EnqueueTimeout = 500 * time.Millisecond

	// DefaultBatchSize is the max messages read per XREADGROUP.
	DefaultBatchSize = 20

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMetricsInterval is how often to refresh queue depth metrics.
	DefaultMetricsInterval = 5 * time.Second
)

// StreamNotifier enqueues invitations on a Redis stream for Worker to send.
type StreamNotifier struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewStreamNotifier creates a StreamNotifier.
func NewStreamNotifier(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *StreamNotifier {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &StreamNotifier{
		redis:   client,
		logger:  logger.With("component", "notify.stream"),
		metrics: recorder,
	}
}

// Notify adds inv to the stream. A nil error means queued, not delivered.
func (s *StreamNotifier) Notify(ctx context.Context, inv Invitation) error {
	data, err := json.Marshal(inv)
	if err != nil {
		s.metrics.IncNotificationEnqueued("dropped")
		return fmt.Errorf("%w: marshal invitation: %w", ErrNotificationFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, EnqueueTimeout)
	defer cancel()

	streamID, err := s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		s.metrics.IncNotificationEnqueued("dropped")
		return fmt.Errorf("%w: xadd: %w", ErrNotificationFailed, err)
	}

	s.metrics.IncNotificationEnqueued("success")
	s.logger.Debug("invitation enqueued",
		"user_id", inv.UserID,
		"stream_id", streamID,
	)
	return nil
}

// Worker drains the invitation stream and hands each message to a Notifier.
// Every message is acknowledged whatever the delivery outcome, so an
// invitation is attempted at most once.
type Worker struct {
	redis           *redis.Client
	notifier        Notifier
	logger          *slog.Logger
	metrics         metrics.Recorder
	consumerID      string
	batchSize       int
	blockTimeout    time.Duration
	metricsInterval time.Duration
	lastMetrics     time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewWorker creates a new invitation worker.
func NewWorker(client *redis.Client, notifier Notifier, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		redis:           client,
		notifier:        notifier,
		logger:          logger.With("component", "notify.worker", "consumer_id", consumerID),
		metrics:         recorder,
		consumerID:      consumerID,
		batchSize:       DefaultBatchSize,
		blockTimeout:    DefaultBlockTimeout,
		metricsInterval: DefaultMetricsInterval,
	}
}

// SetBlockTimeout overrides the default blocking timeout.
func (w *Worker) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.blockTimeout = timeout
	}
}

// Run starts the worker loop. Blocks until context is cancelled or Shutdown.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	draining := w.draining
	w.mu.Unlock()

	defer close(w.done)

	if draining {
		w.logger.Info("invitation worker shut down before start")
		return nil
	}

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("invitation worker started")

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()

		if draining {
			w.logger.Info("invitation worker draining, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("invitation worker stopping")
			return ctx.Err()
		default:
			if err := w.processOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Shutdown stops the worker after the in-flight batch.
// It matches server.ShutdownFunc.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	w.draining = true
	if !w.started {
		// Run observes draining and returns before its first read.
		w.mu.Unlock()
		return nil
	}
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Info("invitation worker shutdown initiated")

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		w.logger.Info("invitation worker shutdown complete")
		return nil
	case <-ctx.Done():
		w.logger.Warn("invitation worker shutdown timed out")
		return ctx.Err()
	}
}

func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

func (w *Worker) processOnce(ctx context.Context) error {
	w.maybeUpdateQueueDepth(ctx)

	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("xreadgroup: %w", err)
	}
	if len(streams) == 0 {
		return nil
	}

	for _, msg := range streams[0].Messages {
		w.handle(ctx, msg)
		if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, msg.ID).Err(); err != nil {
			return fmt.Errorf("xack: %w", err)
		}
	}
	return nil
}

func (w *Worker) handle(ctx context.Context, msg redis.XMessage) {
	inv, reason, err := DecodeInvitation(msg.Values)
	if err != nil {
		w.deadLetterMessage(ctx, msg, reason, err.Error())
		return
	}

	if err := w.notifier.Notify(ctx, inv); err != nil {
		w.logger.Warn("notification_failed",
			"message_id", msg.ID,
			"user_id", inv.UserID,
			"referee_email", inv.RefereeEmail,
			"error", err,
		)
	}
}

// DecodeInvitation parses a stream entry. On failure it also returns a short
// reason code for the dead-letter stream.
func DecodeInvitation(values map[string]interface{}) (Invitation, string, error) {
	payload, ok := values["payload"].(string)
	if !ok {
		return Invitation{}, "invalid_format", errors.New("payload field missing or not a string")
	}

	var inv Invitation
	if err := json.Unmarshal([]byte(payload), &inv); err != nil {
		return Invitation{}, "unmarshal_error", err
	}
	if err := inv.Validate(); err != nil {
		return Invitation{}, "validation_error", err
	}
	return inv, "", nil
}

func (w *Worker) deadLetterMessage(ctx context.Context, msg redis.XMessage, reason, detail string) {
	w.logger.Warn("dead-lettering poison message",
		"message_id", msg.ID,
		"reason", reason,
		"detail", detail,
	)

	_, err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: 1000,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      msg.ID,
			"reason":           reason,
			"detail":           detail,
			"payload":          fmt.Sprint(msg.Values["payload"]),
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		w.logger.Error("failed to write to dead-letter queue",
			"message_id", msg.ID,
			"error", err,
		)
	}

	w.metrics.IncNotificationDeadLettered()
}

func (w *Worker) maybeUpdateQueueDepth(ctx context.Context) {
	if w.metricsInterval <= 0 {
		return
	}
	if !w.lastMetrics.IsZero() && time.Since(w.lastMetrics) < w.metricsInterval {
		return
	}
	w.lastMetrics = time.Now()

	groups, err := w.redis.XInfoGroups(ctx, StreamKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		w.logger.Warn("failed to read stream group info", "error", err)
		return
	}
	for _, group := range groups {
		if group.Name == ConsumerGroup {
			w.metrics.SetNotifyQueueDepth(group.Pending + group.Lag)
			return
		}
	}
}

// isConsumerGroupExistsError checks for BUSYGROUP (group exists).
func isConsumerGroupExistsError(err error) bool {
	return err != nil && (err.Error() == "BUSYGROUP Consumer Group name already exists" ||
		err.Error() == "BUSYGROUP")
}

// NewConsumerID creates a stable-ish consumer ID for the consumer group.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "mailer"
	}
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
}
