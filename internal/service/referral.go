// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/refertrack/refertrack/internal/metrics"
	"github.com/refertrack/refertrack/internal/model"
	"github.com/refertrack/refertrack/internal/notify"
	"github.com/refertrack/refertrack/internal/repository"
)

// Service errors.
var (
	ErrReferralNotFound        = errors.New("referral not found")
	ErrReferralAlreadyResolved = errors.New("referral already resolved")
	ErrPersistence             = errors.New("persistence failure")
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violated field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// PersistenceError reports a failed store operation with its natural key.
type PersistenceError struct {
	Op           string
	UserID       string
	RefereeEmail string
	Err          error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s (user_id=%s referee_email=%s): %v", e.Op, e.UserID, e.RefereeEmail, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPersistence) hold for every PersistenceError.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// ReferralStore is the persistence contract used by ReferralService.
// Both repository.Repository and repository.MemoryStore satisfy it.
type ReferralStore interface {
	CreateReferralIfAbsent(ctx context.Context, ref *model.Referral) (*model.Referral, bool, error)
	GetReferralByNaturalKey(ctx context.Context, userID, refereeEmail string) (*model.Referral, error)
	ListReferralsByUser(ctx context.Context, userID string) ([]*model.Referral, error)
	ListReferrals(ctx context.Context) ([]*model.Referral, error)
	UpdateReferralStatus(ctx context.Context, userID, refereeEmail string, status model.ReferralStatus) (int64, error)
}

// ReferralService handles the referral lifecycle.
type ReferralService struct {
	store    ReferralStore
	notifier notify.Notifier
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewReferralService creates a new ReferralService.
func NewReferralService(store ReferralStore, notifier notify.Notifier, logger *slog.Logger, recorder metrics.Recorder) *ReferralService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ReferralService{
		store:    store,
		notifier: notifier,
		logger:   logger.With("component", "service.referral"),
		metrics:  recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateReferralInput defines input for creating a referral.
type CreateReferralInput struct {
	UserID       string
	RefereeName  string
	RefereeEmail string
	ReferrerName string
}

// Validate checks every field and reports all violations at once.
func (in CreateReferralInput) Validate() error {
	var fields []FieldError
	required := func(field, value string) bool {
		if strings.TrimSpace(value) == "" {
			fields = append(fields, FieldError{Field: field, Message: field + " is required"})
			return false
		}
		return true
	}

	required("userID", in.UserID)
	required("referrerName", in.ReferrerName)
	required("refereeName", in.RefereeName)
	if required("refereeEmail", in.RefereeEmail) && !emailRegex.MatchString(strings.TrimSpace(in.RefereeEmail)) {
		fields = append(fields, FieldError{Field: "refereeEmail", Message: "refereeEmail must be a valid email address"})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// CreateReferral records a referral once per (userID, refereeEmail) and
// invites the referee. An existing referral is returned unchanged. The
// invitation is attempted every time; its failure is logged, not returned.
func (s *ReferralService) CreateReferral(ctx context.Context, input CreateReferralInput) (*model.Referral, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	key := model.NewNaturalKey(input.UserID, input.RefereeEmail)
	now := s.now()

	candidate := &model.Referral{
		ID:           ulid.Make().String(),
		UserID:       key.UserID,
		ReferrerName: strings.TrimSpace(input.ReferrerName),
		RefereeName:  strings.TrimSpace(input.RefereeName),
		RefereeEmail: key.RefereeEmail,
		Status:       model.ReferralStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ref, created, err := s.store.CreateReferralIfAbsent(ctx, candidate)
	if errors.Is(err, repository.ErrReferralExists) {
		// ID collision with another referral; one retry with a fresh ID.
		s.logger.Warn("referral_id_collision", "referral_id", candidate.ID)
		candidate.ID = ulid.Make().String()
		ref, created, err = s.store.CreateReferralIfAbsent(ctx, candidate)
	}
	if err != nil {
		return nil, s.persistenceError("create_referral", key, err)
	}
	s.metrics.ObserveCreateDuration(time.Since(start))

	if created {
		s.metrics.IncReferralCreated()
		s.logger.Info("referral_created", "referral_id", ref.ID, "user_id", ref.UserID, "referee_email", ref.RefereeEmail)
	} else {
		s.metrics.IncReferralDeduplicated()
		s.logger.Info("referral_exists", "referral_id", ref.ID, "user_id", ref.UserID, "status", ref.Status)
	}

	s.notify(ctx, notify.Invitation{
		RefereeEmail: ref.RefereeEmail,
		RefereeName:  strings.TrimSpace(input.RefereeName),
		ReferrerName: strings.TrimSpace(input.ReferrerName),
		UserID:       ref.UserID,
	})

	return ref, nil
}

func (s *ReferralService) notify(ctx context.Context, inv notify.Invitation) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, inv); err != nil {
		s.logger.Warn("notification_failed",
			"user_id", inv.UserID,
			"referee_email", inv.RefereeEmail,
			"error", err,
		)
	}
}

// ListReferrals returns every referral.
func (s *ReferralService) ListReferrals(ctx context.Context) ([]*model.Referral, error) {
	refs, err := s.store.ListReferrals(ctx)
	if err != nil {
		return nil, s.persistenceError("list_referrals", model.NaturalKey{}, err)
	}
	return refs, nil
}

// ListReferralsByUser returns the referrals made by userID. No referrals is
// an empty result, not an error.
func (s *ReferralService) ListReferralsByUser(ctx context.Context, userID string) ([]*model.Referral, error) {
	userID = strings.TrimSpace(userID)
	refs, err := s.store.ListReferralsByUser(ctx, userID)
	if err != nil {
		return nil, s.persistenceError("list_referrals_by_user", model.NaturalKey{UserID: userID}, err)
	}
	return refs, nil
}

// AcceptReferral marks the referral ACCEPTED.
func (s *ReferralService) AcceptReferral(ctx context.Context, userID, refereeEmail string) (*model.Referral, error) {
	return s.transition(ctx, model.NewNaturalKey(userID, refereeEmail), model.ReferralStatusAccepted)
}

// RejectReferral marks the referral REJECTED.
func (s *ReferralService) RejectReferral(ctx context.Context, userID, refereeEmail string) (*model.Referral, error) {
	return s.transition(ctx, model.NewNaturalKey(userID, refereeEmail), model.ReferralStatusRejected)
}

// transition applies status when the referral is PENDING or already holds
// status. A referral in the opposite terminal state yields
// ErrReferralAlreadyResolved.
func (s *ReferralService) transition(ctx context.Context, key model.NaturalKey, status model.ReferralStatus) (*model.Referral, error) {
	op := "update_referral_status"

	updated, err := s.store.UpdateReferralStatus(ctx, key.UserID, key.RefereeEmail, status)
	if err != nil {
		return nil, s.persistenceError(op, key, err)
	}

	ref, err := s.store.GetReferralByNaturalKey(ctx, key.UserID, key.RefereeEmail)
	if errors.Is(err, repository.ErrReferralNotFound) {
		return nil, ErrReferralNotFound
	}
	if err != nil {
		return nil, s.persistenceError("get_referral", key, err)
	}

	if updated == 0 {
		s.metrics.IncReferralTransitionConflict()
		s.logger.Info("referral_transition_refused",
			"referral_id", ref.ID,
			"current_status", ref.Status,
			"requested_status", status,
		)
		return nil, fmt.Errorf("%w: referral is %s", ErrReferralAlreadyResolved, ref.Status)
	}

	s.metrics.IncReferralResolved(strings.ToLower(string(status)))
	s.logger.Info("referral_"+strings.ToLower(string(status)),
		"referral_id", ref.ID,
		"user_id", ref.UserID,
	)
	return ref, nil
}

func (s *ReferralService) persistenceError(op string, key model.NaturalKey, err error) error {
	s.logger.Error("persistence_failed",
		"op", op,
		"user_id", key.UserID,
		"referee_email", key.RefereeEmail,
		"error", err,
	)
	return &PersistenceError{Op: op, UserID: key.UserID, RefereeEmail: key.RefereeEmail, Err: err}
}
