package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearth-app/backend/internal/domain"
)

type LoginEventRepository struct {
	db *pgxpool.Pool
}

func NewLoginEventRepository(db *pgxpool.Pool) *LoginEventRepository {
	return &LoginEventRepository{db: db}
}

func (r *LoginEventRepository) Create(ctx context.Context, event *domain.LoginEvent) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()

	query := `
		INSERT INTO login_events (id, user_id, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query,
		event.ID, event.UserID, event.IPAddress, event.UserAgent, event.CreatedAt,
	)
	return mapError(err)
}

func (r *LoginEventRepository) ListRecent(ctx context.Context, limit, offset int) ([]*domain.LoginEvent, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM login_events`).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	query := `
		SELECT le.id, le.user_id, le.ip_address, le.user_agent, le.created_at,
		       COALESCE(u.email, '') AS user_email
		FROM login_events le
		LEFT JOIN users u ON u.id = le.user_id
		ORDER BY le.created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var events []*domain.LoginEvent
	for rows.Next() {
		e := &domain.LoginEvent{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.IPAddress, &e.UserAgent, &e.CreatedAt, &e.UserEmail); err != nil {
			return nil, 0, mapError(err)
		}
		events = append(events, e)
	}
	return events, total, nil
}

func (r *LoginEventRepository) ActiveUsers(ctx context.Context, since time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*queryTimeout)
	defer cancel()

	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(DISTINCT user_id) FROM login_events WHERE created_at >= $1`, since).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}
