package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearth-app/backend/internal/domain"
)

type RefreshTokenRepository struct {
	db *pgxpool.Pool
}

func NewRefreshTokenRepository(db *pgxpool.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO refresh_tokens (id, user_id, fingerprint, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	token.CreatedAt = time.Now()

	_, err := r.db.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.Fingerprint,
		token.ExpiresAt,
		token.CreatedAt,
	)
	return mapError(err)
}

// GetByFingerprint deliberately does not filter on revocation or expiry:
// the session layer distinguishes those states for error signaling.
func (r *RefreshTokenRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.RefreshToken, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, user_id, fingerprint, expires_at, revoked_at, created_at
		FROM refresh_tokens WHERE fingerprint = $1
	`

	token := &domain.RefreshToken{}
	err := r.db.QueryRow(ctx, query, fingerprint).Scan(
		&token.ID,
		&token.UserID,
		&token.Fingerprint,
		&token.ExpiresAt,
		&token.RevokedAt,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return token, nil
}

// Revoke is conditional: the WHERE clause only matches a still-usable row,
// so of two concurrent revokes of the same fingerprint exactly one returns
// true. Revoking an absent, expired, or already-revoked token returns false
// without error.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, fingerprint string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE refresh_tokens SET revoked_at = NOW()
		WHERE fingerprint = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`
	tag, err := r.db.Exec(ctx, query, fingerprint)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE refresh_tokens SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`
	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*queryTimeout)
	defer cancel()

	query := `DELETE FROM refresh_tokens WHERE expires_at < NOW()`
	tag, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}
