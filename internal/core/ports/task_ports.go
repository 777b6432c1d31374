package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/taskboard/internal/core/domain"
)

// TaskUpdateFunc mutates a loaded task in place. Returning an error aborts the
// update and nothing is written.
type TaskUpdateFunc func(task *domain.Task) error

type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	ListByUser(ctx context.Context, filter TaskFilter) ([]*domain.Task, int, error)
	// UpdateFn loads the task, applies fn and stores the result as one atomic
	// step. Concurrent calls for the same id are serialized.
	UpdateFn(ctx context.Context, id uuid.UUID, fn TaskUpdateFunc) (*domain.Task, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type TaskFilter struct {
	UserID    uuid.UUID
	Completed *bool
	Limit     int
	Offset    int
}

type CreateTaskInput struct {
	Title       string `validate:"required,max=255"`
	Description string `validate:"max=2000"`
}

// UpdateTaskInput is a partial update; nil fields are left unchanged.
type UpdateTaskInput struct {
	Title       *string `validate:"omitnil,min=1,max=255"`
	Description *string `validate:"omitnil,max=2000"`
	Completed   *bool
}

type ListTasksInput struct {
	Page      int
	PageSize  int
	Completed *bool
}

type TaskService interface {
	Create(ctx context.Context, id domain.Identity, input CreateTaskInput) (*domain.Task, error)
	Get(ctx context.Context, id domain.Identity, taskID uuid.UUID) (*domain.Task, error)
	List(ctx context.Context, id domain.Identity, input ListTasksInput) (*domain.TaskPage, error)
	Update(ctx context.Context, id domain.Identity, taskID uuid.UUID, input UpdateTaskInput) (*domain.Task, error)
	Toggle(ctx context.Context, id domain.Identity, taskID uuid.UUID) (*domain.Task, error)
	Delete(ctx context.Context, id domain.Identity, taskID uuid.UUID) error
}
