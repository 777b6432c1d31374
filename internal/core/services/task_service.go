package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vncsmyrnk/taskboard/internal/core/domain"
	"github.com/vncsmyrnk/taskboard/internal/core/ports"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type taskService struct {
	repo   ports.TaskRepository
	logger *zap.Logger
}

func NewTaskService(repo ports.TaskRepository, logger *zap.Logger) ports.TaskService {
	return &taskService{
		repo:   repo,
		logger: logger.Named("task_service"),
	}
}

func (s *taskService) Create(ctx context.Context, id domain.Identity, input ports.CreateTaskInput) (*domain.Task, error) {
	input.Title = strings.TrimSpace(input.Title)
	if err := validate.Struct(input); err != nil {
		return nil, invalid(domain.ErrInvalidTask, err)
	}

	task := &domain.Task{
		ID:          uuid.New(),
		UserID:      id.UserID,
		Title:       input.Title,
		Description: input.Description,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) Get(ctx context.Context, id domain.Identity, taskID uuid.UUID) (*domain.Task, error) {
	task, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.OwnedBy(id) {
		return nil, domain.ErrTaskNotOwned
	}
	return task, nil
}

func (s *taskService) List(ctx context.Context, id domain.Identity, input ports.ListTasksInput) (*domain.TaskPage, error) {
	page := input.Page
	if page < 1 {
		page = 1
	}
	size := input.PageSize
	switch {
	case size < 1:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}

	tasks, total, err := s.repo.ListByUser(ctx, ports.TaskFilter{
		UserID:    id.UserID,
		Completed: input.Completed,
		Limit:     size,
		Offset:    (page - 1) * size,
	})
	if err != nil {
		return nil, err
	}

	return &domain.TaskPage{
		Items:      tasks,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: (total + size - 1) / size,
	}, nil
}

func (s *taskService) Update(ctx context.Context, id domain.Identity, taskID uuid.UUID, input ports.UpdateTaskInput) (*domain.Task, error) {
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		input.Title = &title
	}
	if err := validate.Struct(input); err != nil {
		return nil, invalid(domain.ErrInvalidTask, err)
	}

	return s.repo.UpdateFn(ctx, taskID, func(task *domain.Task) error {
		if !task.OwnedBy(id) {
			return domain.ErrTaskNotOwned
		}
		if input.Title != nil {
			task.Title = *input.Title
		}
		if input.Description != nil {
			task.Description = *input.Description
		}
		if input.Completed != nil {
			task.Completed = *input.Completed
		}
		return nil
	})
}

// Toggle flips the completion flag of a task owned by id. Load, flip and
// store happen under the repository's row lock, so two concurrent toggles
// always leave the task where it started.
func (s *taskService) Toggle(ctx context.Context, id domain.Identity, taskID uuid.UUID) (*domain.Task, error) {
	task, err := s.repo.UpdateFn(ctx, taskID, func(task *domain.Task) error {
		if !task.OwnedBy(id) {
			return domain.ErrTaskNotOwned
		}
		task.Completed = !task.Completed
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrTaskNotFound) && !errors.Is(err, domain.ErrTaskNotOwned) {
			s.logger.Error("toggle failed",
				zap.String("task_id", taskID.String()),
				zap.String("user_id", id.UserID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}
	return task, nil
}

func (s *taskService) Delete(ctx context.Context, id domain.Identity, taskID uuid.UUID) error {
	if err := s.repo.Delete(ctx, taskID, id.UserID); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}
