// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/refertrack/refertrack/internal/model"
)

// CreateReferralRequest is the body of POST /api/referral.
type CreateReferralRequest struct {
	UserID       string `json:"userID"`
	ReferrerName string `json:"referrerName"`
	RefereeName  string `json:"refereeName"`
	RefereeEmail string `json:"refereeEmail"`
}

// ReferralResponse represents a referral in API responses.
type ReferralResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userID"`
	ReferrerName string    `json:"referrerName"`
	RefereeName  string    `json:"refereeName"`
	RefereeEmail string    `json:"refereeEmail"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserReferralsResponse wraps the referrals of one user.
type UserReferralsResponse struct {
	Success bool               `json:"success"`
	Data    []ReferralResponse `json:"data"`
	Message string             `json:"message"`
	Count   int                `json:"count"`
}

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse represents an API error. Errors is only set for
// validation failures.
type ErrorResponse struct {
	Error  string       `json:"error"`
	Code   string       `json:"code"`
	Errors []FieldError `json:"errors,omitempty"`
}

// ToReferralResponse converts a Referral model to its DTO.
func ToReferralResponse(ref *model.Referral) ReferralResponse {
	return ReferralResponse{
		ID:           ref.ID,
		UserID:       ref.UserID,
		ReferrerName: ref.ReferrerName,
		RefereeName:  ref.RefereeName,
		RefereeEmail: ref.RefereeEmail,
		Status:       string(ref.Status),
		CreatedAt:    ref.CreatedAt,
		UpdatedAt:    ref.UpdatedAt,
	}
}

// ToReferralResponses converts a slice, never returning nil.
func ToReferralResponses(refs []*model.Referral) []ReferralResponse {
	out := make([]ReferralResponse, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ToReferralResponse(ref))
	}
	return out
}
