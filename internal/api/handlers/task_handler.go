package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/todo-api/internal/services"
	"github.com/rs/zerolog/log"
)

// TaskHandler handles HTTP requests related to tasks.
type TaskHandler struct {
	service services.TaskServiceProvider
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(service services.TaskServiceProvider) *TaskHandler {
	return &TaskHandler{service: service}
}

// Create handles the request to create a new task.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(w, r)
	if err != nil {
		writeError(w, err, nil, "")
		return
	}
	vals, err := p.required("title", "description")
	if err != nil {
		writeError(w, err, nil, "")
		return
	}

	task, err := h.service.Create(r.Context(), vals[0], vals[1])
	if err != nil {
		writeError(w, err, log.Error(), "Failed to create task")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// GetAll handles the request to list every task.
func (h *TaskHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err, log.Error(), "Failed to retrieve tasks")
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

// Get handles the request to get a single task by its ID.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, err, nil, "")
		return
	}

	task, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err, log.Error().Int64("task_id", id), "Failed to get task")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Delete handles the request to delete a task.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, err, nil, "")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeError(w, err, log.Error().Int64("task_id", id), "Failed to delete task")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}

func taskID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: task id must be an integer, got %q", services.ErrValidation, raw)
	}
	return id, nil
}
