package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MaxTaskTitleLength       = 255
	MaxTaskDescriptionLength = 2000
)

type Task struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OwnedBy reports whether the task belongs to the given identity.
func (t *Task) OwnedBy(id Identity) bool {
	return t.UserID == id.UserID
}

// TaskPage is one page of a user's tasks.
type TaskPage struct {
	Items      []*Task `json:"items"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalPages int     `json:"total_pages"`
}
