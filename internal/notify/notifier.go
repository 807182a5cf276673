package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/refertrack/refertrack/internal/metrics"
)

// EmailNotifier renders an invitation and sends it once.
type EmailNotifier struct {
	mailer   Mailer
	renderer *Renderer
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewEmailNotifier creates an EmailNotifier.
func NewEmailNotifier(mailer Mailer, renderer *Renderer, logger *slog.Logger, recorder metrics.Recorder) *EmailNotifier {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &EmailNotifier{
		mailer:   mailer,
		renderer: renderer,
		logger:   logger.With("component", "notify.email"),
		metrics:  recorder,
	}
}

// Notify delivers inv. There is no retry; errors wrap ErrNotificationFailed.
func (n *EmailNotifier) Notify(ctx context.Context, inv Invitation) error {
	rendered, err := n.renderer.Render(inv)
	if err != nil {
		n.metrics.IncNotification("failed")
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}

	err = n.mailer.Send(ctx, Message{
		To:      inv.RefereeEmail,
		ToName:  inv.RefereeName,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
	})
	if err != nil {
		n.metrics.IncNotification("failed")
		return fmt.Errorf("%w: send to %s: %w", ErrNotificationFailed, inv.RefereeEmail, err)
	}

	n.metrics.IncNotification("sent")
	n.logger.Info("invitation_sent",
		"user_id", inv.UserID,
		"referee_email", inv.RefereeEmail,
	)
	return nil
}
