package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hearth-app/backend/internal/domain"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskTitle    = errors.New("task title is required")
	ErrTaskStatus   = errors.New("unknown task status")
	ErrNotTaskOwner = errors.New("task belongs to another user")
)

type TaskUsecase struct {
	taskRepo    domain.TaskRepository
	projectRepo domain.ProjectRepository
}

func NewTaskUsecase(taskRepo domain.TaskRepository, projectRepo domain.ProjectRepository) *TaskUsecase {
	return &TaskUsecase{taskRepo: taskRepo, projectRepo: projectRepo}
}

type CreateTaskInput struct {
	Title string     `json:"title"`
	Notes string     `json:"notes"`
	DueAt *time.Time `json:"due_at"`
}

func (u *TaskUsecase) Create(ctx context.Context, ownerID, projectID uuid.UUID, input *CreateTaskInput) (*domain.Task, error) {
	if err := u.checkProjectOwner(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTaskTitle
	}

	task := &domain.Task{
		ProjectID: projectID,
		OwnerID:   ownerID,
		Title:     title,
		Notes:     strings.TrimSpace(input.Notes),
		Status:    domain.TaskStatusTodo,
		DueAt:     input.DueAt,
	}
	if err := u.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (u *TaskUsecase) ListByProject(ctx context.Context, ownerID, projectID uuid.UUID, status string, limit, offset int) ([]*domain.Task, int, error) {
	if status != "" && !domain.ValidTaskStatus(status) {
		return nil, 0, ErrTaskStatus
	}
	if err := u.checkProjectOwner(ctx, ownerID, projectID); err != nil {
		return nil, 0, err
	}
	return u.taskRepo.ListByProject(ctx, projectID, status, limit, offset)
}

type UpdateTaskInput struct {
	Title  *string    `json:"title"`
	Notes  *string    `json:"notes"`
	Status *string    `json:"status"`
	DueAt  *time.Time `json:"due_at"`
}

func (u *TaskUsecase) Update(ctx context.Context, ownerID, taskID uuid.UUID, input *UpdateTaskInput) (*domain.Task, error) {
	task, err := u.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrTaskTitle
		}
		task.Title = title
	}
	if input.Notes != nil {
		task.Notes = strings.TrimSpace(*input.Notes)
	}
	if input.Status != nil {
		if !domain.ValidTaskStatus(*input.Status) {
			return nil, ErrTaskStatus
		}
		task.Status = *input.Status
	}
	if input.DueAt != nil {
		task.DueAt = input.DueAt
	}

	if err := u.taskRepo.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (u *TaskUsecase) Complete(ctx context.Context, ownerID, taskID uuid.UUID) (*domain.Task, error) {
	task, err := u.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	task.Status = domain.TaskStatusDone
	if err := u.taskRepo.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (u *TaskUsecase) Delete(ctx context.Context, ownerID, taskID uuid.UUID) error {
	if _, err := u.ownedTask(ctx, ownerID, taskID); err != nil {
		return err
	}
	return u.taskRepo.Delete(ctx, taskID)
}

func (u *TaskUsecase) ownedTask(ctx context.Context, ownerID, taskID uuid.UUID) (*domain.Task, error) {
	task, err := u.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	if task.OwnerID != ownerID {
		return nil, ErrNotTaskOwner
	}
	return task, nil
}

func (u *TaskUsecase) checkProjectOwner(ctx context.Context, ownerID, projectID uuid.UUID) error {
	project, err := u.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrProjectNotFound
		}
		return err
	}
	if project.OwnerID != ownerID {
		return ErrNotProjectOwner
	}
	return nil
}
