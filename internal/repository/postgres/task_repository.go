package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearth-app/backend/internal/domain"
)

type TaskRepository struct {
	db *pgxpool.Pool
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, project_id, owner_id, title, notes, status, due_at, created_at, updated_at`

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = domain.TaskStatusTodo
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		task.ID,
		task.ProjectID,
		task.OwnerID,
		task.Title,
		task.Notes,
		task.Status,
		task.DueAt,
		task.CreatedAt,
		task.UpdatedAt,
	)
	return mapError(err)
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task := &domain.Task{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&task.ID,
		&task.ProjectID,
		&task.OwnerID,
		&task.Title,
		&task.Notes,
		&task.Status,
		&task.DueAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return task, nil
}

func (r *TaskRepository) ListByProject(ctx context.Context, projectID uuid.UUID, status string, limit, offset int) ([]*domain.Task, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	filter := ` WHERE project_id = $1`
	args := []interface{}{projectID}
	if status != "" {
		filter += ` AND status = $2`
		args = append(args, status)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`+filter, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	query := fmt.Sprintf(
		`SELECT `+taskColumns+` FROM tasks%s ORDER BY due_at ASC NULLS LAST, created_at DESC LIMIT $%d OFFSET $%d`,
		filter, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t := &domain.Task{}
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.OwnerID, &t.Title, &t.Notes, &t.Status, &t.DueAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, mapError(err)
		}
		tasks = append(tasks, t)
	}
	return tasks, total, nil
}

func (r *TaskRepository) Update(ctx context.Context, task *domain.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	task.UpdatedAt = time.Now()

	query := `
		UPDATE tasks SET title = $2, notes = $3, status = $4, due_at = $5, updated_at = $6
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, task.ID, task.Title, task.Notes, task.Status, task.DueAt, task.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `DELETE FROM tasks WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
