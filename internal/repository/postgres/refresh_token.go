package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/giecabral/team-flow-management/internal/domain"
	"github.com/giecabral/team-flow-management/pkg/database"
	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
)

// RefreshTokenLedger implements repository.RefreshTokenLedger on the
// refresh_tokens table.
type RefreshTokenLedger struct {
	db database.DBTX
}

// NewRefreshTokenLedger creates a new PostgreSQL-backed ledger.
func NewRefreshTokenLedger(db database.DBTX) *RefreshTokenLedger {
	return &RefreshTokenLedger{db: db}
}

// Store inserts a refresh token record.
func (l *RefreshTokenLedger) Store(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := l.db.Exec(ctx, `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`,
		tokenHash, userID, expiresAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// FindByHash looks a record up without consuming it.
func (l *RefreshTokenLedger) FindByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	return scanRefreshToken(l.db.QueryRow(ctx, `
		SELECT user_id, token_hash, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1`, tokenHash))
}

// Consume deletes the record and returns it in one statement. Row locking
// in DELETE guarantees a single winner among concurrent callers.
func (l *RefreshTokenLedger) Consume(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	return scanRefreshToken(l.db.QueryRow(ctx, `
		DELETE FROM refresh_tokens
		WHERE token_hash = $1
		RETURNING user_id, token_hash, expires_at, created_at`, tokenHash))
}

// DeleteByHash removes a record if present.
func (l *RefreshTokenLedger) DeleteByHash(ctx context.Context, tokenHash string) error {
	if _, err := l.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteForUser removes the record only when userID owns it.
func (l *RefreshTokenLedger) DeleteForUser(ctx context.Context, userID, tokenHash string) error {
	if _, err := l.db.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = $1 AND token_hash = $2`, userID, tokenHash,
	); err != nil {
		return fmt.Errorf("delete refresh token for user: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every record of the user.
func (l *RefreshTokenLedger) DeleteAllForUser(ctx context.Context, userID string) error {
	if _, err := l.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete refresh tokens for user: %w", err)
	}
	return nil
}

// DeleteExpired sweeps records whose expiry is not after now.
func (l *RefreshTokenLedger) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ct, err := l.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return ct.RowsAffected(), nil
}

func scanRefreshToken(row pgx.Row) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	if err := row.Scan(&t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}
	return &t, nil
}
