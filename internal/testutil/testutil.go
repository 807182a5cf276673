// Package testutil holds helpers shared by integration and handler tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/refertrack/refertrack/internal/model"
	"github.com/refertrack/refertrack/internal/notify"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 730730

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetReferralsSchema drops and recreates the referrals table.
func ResetReferralsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}
	dir := filepath.Join(root, "internal", "repository", "migrations")

	for _, name := range []string{"000001_referrals.down.sql", "000001_referrals.up.sql"} {
		script, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(script)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestReferral creates a pending referral with sensible defaults.
func NewTestReferral(t testing.TB, userID, refereeEmail string) *model.Referral {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Referral{
		ID:           UniqueID("ref"),
		UserID:       userID,
		ReferrerName: "Alice",
		RefereeName:  "Bob",
		RefereeEmail: model.NormalizeEmail(refereeEmail),
		Status:       model.ReferralStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// UniqueEmail generates a unique referee email for tests.
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}

// ============================================================================
// Notifier doubles
// ============================================================================

// RecordingNotifier captures invitations instead of sending them.
type RecordingNotifier struct {
	mu          sync.Mutex
	invitations []notify.Invitation
	Err         error
}

// Notify records inv and returns r.Err.
func (r *RecordingNotifier) Notify(ctx context.Context, inv notify.Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invitations = append(r.invitations, inv)
	return r.Err
}

// Invitations returns a copy of the recorded invitations.
func (r *RecordingNotifier) Invitations() []notify.Invitation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Invitation(nil), r.invitations...)
}

// Calls returns how many times Notify was invoked.
func (r *RecordingNotifier) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.invitations)
}
