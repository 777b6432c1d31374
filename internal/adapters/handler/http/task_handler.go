package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vncsmyrnk/taskboard/internal/core/domain"
	"github.com/vncsmyrnk/taskboard/internal/core/ports"
)

type TaskHandler struct {
	service ports.TaskService
	metrics *Metrics
	logger  *zap.Logger
}

func NewTaskHandler(service ports.TaskService, metrics *Metrics, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		metrics: metrics,
		logger:  logger.Named("task_handler"),
	}
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// taskRequest extracts the caller and the task id. A malformed id answers
// 404 like any other unknown task.
func taskRequest(w http.ResponseWriter, r *http.Request) (domain.Identity, uuid.UUID, bool) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return domain.Identity{}, uuid.Nil, false
	}
	taskID, err := uuid.Parse(chi.URLParam(r, "task_id"))
	if err != nil {
		writeError(w, http.StatusNotFound, msgTaskNotFound)
		return domain.Identity{}, uuid.Nil, false
	}
	return id, taskID, true
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var input ports.ListTasksInput
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		input.Page = page
	}
	if v := q.Get("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 {
			writeError(w, http.StatusBadRequest, "page_size must be a positive integer")
			return
		}
		input.PageSize = size
	}
	if v := q.Get("completed"); v != "" {
		completed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "completed must be true or false")
			return
		}
		input.Completed = &completed
	}

	page, err := h.service.List(r.Context(), id, input)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	task, err := h.service.Create(r.Context(), id, ports.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, taskID, ok := taskRequest(w, r)
	if !ok {
		return
	}

	task, err := h.service.Get(r.Context(), id, taskID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, taskID, ok := taskRequest(w, r)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	task, err := h.service.Update(r.Context(), id, taskID, ports.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Toggle godoc
// @Summary      Toggles task completion
// @Description  Flips the completed flag of a task owned by the caller and returns the task.
// @Tags         tasks
// @Produce      json
// @Param        task_id  path  string  true  "Task ID"
// @Success      200
// @Failure      401
// @Failure      403
// @Failure      404
// @Failure      429
// @Router       /tasks/{task_id}/toggle [put]
func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, taskID, ok := taskRequest(w, r)
	if !ok {
		return
	}

	task, err := h.service.Toggle(r.Context(), id, taskID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.metrics.tasksToggled.Inc()
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, taskID, ok := taskRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id, taskID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
