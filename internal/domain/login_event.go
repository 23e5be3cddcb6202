package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LoginEvent is an audit row recorded on every successful login.
type LoginEvent struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`

	// Joined fields, populated by list queries only.
	UserEmail string `json:"user_email,omitempty"`
}

type LoginEventRepository interface {
	Create(ctx context.Context, event *LoginEvent) error
	ListRecent(ctx context.Context, limit, offset int) ([]*LoginEvent, int, error)
	ActiveUsers(ctx context.Context, since time.Time) (int, error)
}
