package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/refertrack/refertrack/internal/model"
)

// Common errors for referral repository operations.
var (
	ErrReferralNotFound = errors.New("referral not found")

	// ErrReferralExists reports an ID collision with a different referral.
	// Natural-key conflicts never surface as errors.
	ErrReferralExists = errors.New("referral already exists")
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

const referralColumns = `id, user_id, referrer_name, referee_name, referee_email, status, created_at, updated_at`

// CreateReferralIfAbsent inserts ref unless a referral with the same
// (user_id, referee_email) exists. It returns the stored row and whether it
// was created by this call. Concurrent callers with the same key all receive
// the single stored row. A primary-key collision on ref.ID returns
// ErrReferralExists.
func (r *Repository) CreateReferralIfAbsent(ctx context.Context, ref *model.Referral) (*model.Referral, bool, error) {
	query := `
		INSERT INTO referrals (` + referralColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, referee_email) DO NOTHING
		RETURNING ` + referralColumns

	stored, err := scanReferral(r.pool.QueryRow(ctx, query,
		ref.ID,
		ref.UserID,
		ref.ReferrerName,
		ref.RefereeName,
		ref.RefereeEmail,
		ref.Status,
		ref.CreatedAt,
		ref.UpdatedAt,
	))
	if err == nil {
		return stored, true, nil
	}
	if isUniqueViolation(err) {
		return nil, false, ErrReferralExists
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to insert referral: %w", err)
	}

	// Conflict: the row exists already.
	existing, err := r.GetReferralByNaturalKey(ctx, ref.UserID, ref.RefereeEmail)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetReferralByNaturalKey retrieves a referral by referrer and referee email.
func (r *Repository) GetReferralByNaturalKey(ctx context.Context, userID, refereeEmail string) (*model.Referral, error) {
	query := `
		SELECT ` + referralColumns + `
		FROM referrals
		WHERE user_id = $1 AND referee_email = $2
	`

	ref, err := scanReferral(r.pool.QueryRow(ctx, query, userID, refereeEmail))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReferralNotFound
		}
		return nil, fmt.Errorf("failed to get referral by natural key: %w", err)
	}

	return ref, nil
}

// ListReferralsByUser retrieves every referral made by userID in insertion order.
func (r *Repository) ListReferralsByUser(ctx context.Context, userID string) ([]*model.Referral, error) {
	query := `
		SELECT ` + referralColumns + `
		FROM referrals
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`

	return r.queryReferrals(ctx, query, userID)
}

// ListReferrals retrieves every referral in insertion order.
func (r *Repository) ListReferrals(ctx context.Context) ([]*model.Referral, error) {
	query := `
		SELECT ` + referralColumns + `
		FROM referrals
		ORDER BY created_at ASC, id ASC
	`

	return r.queryReferrals(ctx, query)
}

// UpdateReferralStatus moves the referral identified by the natural key to
// status. The row is only touched while it is PENDING or already holds
// status, so a resolved referral never flips to the opposite outcome.
// Returns the number of rows updated (0 or 1).
func (r *Repository) UpdateReferralStatus(ctx context.Context, userID, refereeEmail string, status model.ReferralStatus) (int64, error) {
	query := `
		UPDATE referrals
		SET status = $3, updated_at = NOW()
		WHERE user_id = $1 AND referee_email = $2
		  AND status IN ($4, $3)
	`

	result, err := r.pool.Exec(ctx, query, userID, refereeEmail, status, model.ReferralStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to update referral status: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *Repository) queryReferrals(ctx context.Context, query string, args ...any) ([]*model.Referral, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	defer rows.Close()

	referrals := make([]*model.Referral, 0)
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		referrals = append(referrals, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating referrals: %w", err)
	}

	return referrals, nil
}

// scanReferral scans a single row into a Referral model.
// pgx.Rows satisfies pgx.Row, so this serves both QueryRow and Query.
func scanReferral(row pgx.Row) (*model.Referral, error) {
	var ref model.Referral
	err := row.Scan(
		&ref.ID,
		&ref.UserID,
		&ref.ReferrerName,
		&ref.RefereeName,
		&ref.RefereeEmail,
		&ref.Status,
		&ref.CreatedAt,
		&ref.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
