package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearth-app/backend/internal/domain"
)

type ProjectRepository struct {
	db *pgxpool.Pool
}

func NewProjectRepository(db *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, owner_id, name, description, archived, created_at, updated_at`

func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		project.ID,
		project.OwnerID,
		project.Name,
		project.Description,
		project.Archived,
		project.CreatedAt,
		project.UpdatedAt,
	)
	return mapError(err)
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	project := &domain.Project{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&project.ID,
		&project.OwnerID,
		&project.Name,
		&project.Description,
		&project.Archived,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return project, nil
}

func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, includeArchived bool, limit, offset int) ([]*domain.Project, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	filter := ` WHERE owner_id = $1`
	if !includeArchived {
		filter += ` AND NOT archived`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM projects`+filter, ownerID).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	query := `SELECT ` + projectColumns + ` FROM projects` + filter + ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		p := &domain.Project{}
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Archived, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, mapError(err)
		}
		projects = append(projects, p)
	}
	return projects, total, nil
}

func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	project.UpdatedAt = time.Now()

	query := `
		UPDATE projects SET name = $2, description = $3, updated_at = $4
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, project.ID, project.Name, project.Description, project.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ProjectRepository) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `UPDATE projects SET archived = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, archived)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
