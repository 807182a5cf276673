// Package notify delivers referral invitations to referees.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/refertrack/refertrack/internal/linksig"
)

// Link actions. They double as the last path segment of the action URLs.
const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

// ErrNotificationFailed marks every delivery failure returned by a Notifier.
var ErrNotificationFailed = errors.New("notification failed")

// Invitation is what a referee is told about a referral.
type Invitation struct {
	RefereeEmail string `json:"e"`
	RefereeName  string `json:"rn"`
	ReferrerName string `json:"fn"`
	UserID       string `json:"u"`
}

// Validate checks the fields needed to address and link the invitation.
func (inv Invitation) Validate() error {
	if strings.TrimSpace(inv.RefereeEmail) == "" {
		return errors.New("referee email is required")
	}
	if strings.TrimSpace(inv.UserID) == "" {
		return errors.New("user id is required")
	}
	return nil
}

// Notifier tells a referee about a referral.
type Notifier interface {
	Notify(ctx context.Context, inv Invitation) error
}

// LinkBuilder produces the accept/reject URLs embedded in invitations.
type LinkBuilder struct {
	base   *url.URL
	signer *linksig.Signer
}

// NewLinkBuilder parses baseURL (scheme and host, optional path prefix).
// A nil or disabled signer yields unsigned links.
func NewLinkBuilder(baseURL string, signer *linksig.Signer) (*LinkBuilder, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	return &LinkBuilder{base: base, signer: signer}, nil
}

// AcceptURL returns the link that accepts the referral.
func (b *LinkBuilder) AcceptURL(userID, email string) string {
	return b.build(ActionAccept, userID, email)
}

// RejectURL returns the link that rejects the referral.
func (b *LinkBuilder) RejectURL(userID, email string) string {
	return b.build(ActionReject, userID, email)
}

func (b *LinkBuilder) build(action, userID, email string) string {
	u := b.base.JoinPath("referral", action)

	q := url.Values{}
	q.Set("userID", userID)
	q.Set("email", email)
	if sig := b.signer.Sign(action, userID, email); sig != "" {
		q.Set("sig", sig)
	}
	u.RawQuery = q.Encode()

	return u.String()
}
