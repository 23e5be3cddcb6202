package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the persisted record of an issued refresh token. The raw
// token value is never stored; only its one-way fingerprint.
type RefreshToken struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Fingerprint string     `json:"-"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Usable reports whether the token can still be exchanged: not revoked and
// not past its expiry.
func (t *RefreshToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error

	// GetByFingerprint returns the row regardless of its state so callers
	// can tell a revoked token from an expired or absent one. Returns
	// ErrNotFound when no row exists.
	GetByFingerprint(ctx context.Context, fingerprint string) (*RefreshToken, error)

	// Revoke marks the token revoked only if it is still usable. Returns
	// false when the token was absent, expired, or already revoked.
	Revoke(ctx context.Context, fingerprint string) (bool, error)

	// RevokeAllForUser revokes every usable token owned by the user.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// DeleteExpired removes rows whose expiry has passed. Maintenance only;
	// nothing in the request path depends on it.
	DeleteExpired(ctx context.Context) (int64, error)
}
