package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/hearth-app/backend/internal/domain"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrProjectName     = errors.New("project name is required")
	ErrNotProjectOwner = errors.New("project belongs to another user")
)

type ProjectUsecase struct {
	projectRepo domain.ProjectRepository
}

func NewProjectUsecase(projectRepo domain.ProjectRepository) *ProjectUsecase {
	return &ProjectUsecase{projectRepo: projectRepo}
}

func (u *ProjectUsecase) Create(ctx context.Context, ownerID uuid.UUID, name, description string) (*domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrProjectName
	}

	project := &domain.Project{
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	if err := u.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (u *ProjectUsecase) Get(ctx context.Context, ownerID, projectID uuid.UUID) (*domain.Project, error) {
	return u.ownedProject(ctx, ownerID, projectID)
}

func (u *ProjectUsecase) List(ctx context.Context, ownerID uuid.UUID, includeArchived bool, limit, offset int) ([]*domain.Project, int, error) {
	return u.projectRepo.ListByOwner(ctx, ownerID, includeArchived, limit, offset)
}

func (u *ProjectUsecase) Update(ctx context.Context, ownerID, projectID uuid.UUID, name, description string) (*domain.Project, error) {
	project, err := u.ownedProject(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}

	if name = strings.TrimSpace(name); name != "" {
		project.Name = name
	}
	project.Description = strings.TrimSpace(description)

	if err := u.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (u *ProjectUsecase) SetArchived(ctx context.Context, ownerID, projectID uuid.UUID, archived bool) error {
	if _, err := u.ownedProject(ctx, ownerID, projectID); err != nil {
		return err
	}
	return u.projectRepo.SetArchived(ctx, projectID, archived)
}

func (u *ProjectUsecase) ownedProject(ctx context.Context, ownerID, projectID uuid.UUID) (*domain.Project, error) {
	project, err := u.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if project.OwnerID != ownerID {
		return nil, ErrNotProjectOwner
	}
	return project, nil
}
