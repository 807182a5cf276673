package repository

import (
	"context"
	"sync"
	"time"

	"github.com/refertrack/refertrack/internal/model"
)

// MemoryStore is an in-process referral store with the same semantics as
// Repository. Service and handler tests run against it.
type MemoryStore struct {
	mu        sync.RWMutex
	referrals []*model.Referral
	byKey     map[model.NaturalKey]int
	byID      map[string]int
	now       func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey: make(map[model.NaturalKey]int),
		byID:  make(map[string]int),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// CreateReferralIfAbsent inserts ref unless its natural key is taken. An ID
// already used by another referral yields ErrReferralExists.
func (s *MemoryStore) CreateReferralIfAbsent(ctx context.Context, ref *model.Referral) (*model.Referral, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, exists := s.byKey[ref.NaturalKey()]; exists {
		return copyReferral(s.referrals[idx]), false, nil
	}
	if _, taken := s.byID[ref.ID]; taken {
		return nil, false, ErrReferralExists
	}
	stored := s.insertLocked(ref)
	return copyReferral(stored), true, nil
}

// GetReferralByNaturalKey returns the referral or ErrReferralNotFound.
func (s *MemoryStore) GetReferralByNaturalKey(ctx context.Context, userID, refereeEmail string) (*model.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byKey[model.NaturalKey{UserID: userID, RefereeEmail: refereeEmail}]
	if !ok {
		return nil, ErrReferralNotFound
	}
	return copyReferral(s.referrals[idx]), nil
}

// ListReferralsByUser returns userID's referrals in insertion order.
func (s *MemoryStore) ListReferralsByUser(ctx context.Context, userID string) ([]*model.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Referral, 0)
	for _, ref := range s.referrals {
		if ref.UserID == userID {
			out = append(out, copyReferral(ref))
		}
	}
	return out, nil
}

// ListReferrals returns every referral in insertion order.
func (s *MemoryStore) ListReferrals(ctx context.Context) ([]*model.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Referral, 0, len(s.referrals))
	for _, ref := range s.referrals {
		out = append(out, copyReferral(ref))
	}
	return out, nil
}

// UpdateReferralStatus mirrors the conditional UPDATE of Repository.
func (s *MemoryStore) UpdateReferralStatus(ctx context.Context, userID, refereeEmail string, status model.ReferralStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byKey[model.NaturalKey{UserID: userID, RefereeEmail: refereeEmail}]
	if !ok {
		return 0, nil
	}

	ref := s.referrals[idx]
	if !ref.Status.CanTransitionTo(status) {
		return 0, nil
	}
	ref.Status = status
	ref.UpdatedAt = s.now()
	return 1, nil
}

// Len returns the number of stored referrals.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.referrals)
}

func (s *MemoryStore) insertLocked(ref *model.Referral) *model.Referral {
	stored := copyReferral(ref)
	s.referrals = append(s.referrals, stored)
	s.byKey[stored.NaturalKey()] = len(s.referrals) - 1
	s.byID[stored.ID] = len(s.referrals) - 1
	return stored
}

func copyReferral(ref *model.Referral) *model.Referral {
	cp := *ref
	return &cp
}
