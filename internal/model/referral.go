// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// ReferralStatus represents where a referral is in its lifecycle.
type ReferralStatus string

const (
	ReferralStatusPending  ReferralStatus = "PENDING"
	ReferralStatusAccepted ReferralStatus = "ACCEPTED"
	ReferralStatusRejected ReferralStatus = "REJECTED"
)

// IsValid checks if the status is one of the known values.
func (s ReferralStatus) IsValid() bool {
	switch s {
	case ReferralStatusPending, ReferralStatusAccepted, ReferralStatusRejected:
		return true
	}
	return false
}

// IsTerminal returns true for ACCEPTED and REJECTED.
func (s ReferralStatus) IsTerminal() bool {
	return s == ReferralStatusAccepted || s == ReferralStatusRejected
}

// CanTransitionTo reports whether a referral in status s may be moved to next.
// Re-applying the status a referral already holds is allowed so that repeated
// clicks on the same email link stay harmless.
func (s ReferralStatus) CanTransitionTo(next ReferralStatus) bool {
	if !next.IsTerminal() {
		return false
	}
	return s == ReferralStatusPending || s == next
}

// Referral links a referring user to an invited party.
type Referral struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userID"`
	ReferrerName string         `json:"referrerName"`
	RefereeName  string         `json:"refereeName"`
	RefereeEmail string         `json:"refereeEmail"`
	Status       ReferralStatus `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// NaturalKey returns the deduplication key of the referral.
func (r *Referral) NaturalKey() NaturalKey {
	return NaturalKey{UserID: r.UserID, RefereeEmail: r.RefereeEmail}
}

// NaturalKey identifies a referral by referrer and referee email.
type NaturalKey struct {
	UserID       string
	RefereeEmail string
}

// NewNaturalKey builds a key with the email already normalized.
func NewNaturalKey(userID, refereeEmail string) NaturalKey {
	return NaturalKey{
		UserID:       strings.TrimSpace(userID),
		RefereeEmail: NormalizeEmail(refereeEmail),
	}
}

// NormalizeEmail is applied both when storing and when matching a referee
// email, so the two forms are always identical.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
