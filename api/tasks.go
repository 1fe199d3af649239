package api

import (
	"net/http"
	"strings"

	"taskchat/errors"
	"taskchat/logger"
	"taskchat/tasks"
	"taskchat/tasks/service"
)

type createTaskRequest struct {
	Owner       string  `json:"owner"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// updateTaskRequest carries only the fields the client sent; absent fields stay untouched.
type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type completeTaskRequest struct {
	Completed *bool `json:"completed"`
}

// NewCreateTaskHandler handles POST /tasks. Requests without an owner create tasks for defaultOwner.
func NewCreateTaskHandler(svc service.Service, defaultOwner string, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTaskRequest
		if taskErr := decodeJSON(w, r, &req); taskErr != nil {
			respondWithError(w, taskErr, lg)
			return
		}

		owner := strings.TrimSpace(req.Owner)
		if owner == "" {
			owner = defaultOwner
		}

		task, err := svc.CreateTask(r.Context(), owner, req.Title, req.Description)
		if err != nil {
			respondWithFailure(w, err, lg)
			return
		}

		respondJSON(w, http.StatusCreated, task, lg)
	}
}

// NewListTasksHandler handles GET /tasks?owner=&status=.
func NewListTasksHandler(svc service.Service, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		filter, err := tasks.ParseFilter(query.Get("status"))
		if err != nil {
			respondWithError(w, errors.NewValidationError("invalid status filter", map[string]any{
				"status":  query.Get("status"),
				"allowed": []string{"all", "pending", "completed"},
			}), lg)
			return
		}

		list, err := svc.ListTasks(r.Context(), strings.TrimSpace(query.Get("owner")), filter)
		if err != nil {
			respondWithFailure(w, err, lg)
			return
		}
		if list == nil {
			list = []*tasks.Task{}
		}

		respondJSON(w, http.StatusOK, list, lg)
	}
}

// NewGetTaskHandler handles GET /tasks/{id}. The id may be a unique prefix.
func NewGetTaskHandler(svc service.Service, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := svc.GetTask(r.Context(), r.PathValue("id"))
		if err != nil {
			respondWithFailure(w, err, lg)
			return
		}
		respondJSON(w, http.StatusOK, task, lg)
	}
}

// NewUpdateTaskHandler handles PATCH /tasks/{id}.
func NewUpdateTaskHandler(svc service.Service, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateTaskRequest
		if taskErr := decodeJSON(w, r, &req); taskErr != nil {
			respondWithError(w, taskErr, lg)
			return
		}

		task, err := svc.UpdateTask(r.Context(), r.PathValue("id"), tasks.Fields{
			Title:       req.Title,
			Description: req.Description,
		})
		if err != nil {
			respondWithFailure(w, err, lg)
			return
		}
		respondJSON(w, http.StatusOK, task, lg)
	}
}

// NewCompleteTaskHandler handles PATCH /tasks/{id}/complete. An empty body marks the task complete.
func NewCompleteTaskHandler(svc service.Service, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req completeTaskRequest
		if taskErr := decodeOptionalJSON(w, r, &req); taskErr != nil {
			respondWithError(w, taskErr, lg)
			return
		}
		completed := true
		if req.Completed != nil {
			completed = *req.Completed
		}

		task, err := svc.SetCompletion(r.Context(), r.PathValue("id"), completed)
		if err != nil {
			respondWithFailure(w, err, lg)
			return
		}
		respondJSON(w, http.StatusOK, task, lg)
	}
}

// NewDeleteTaskHandler handles DELETE /tasks/{id}.
func NewDeleteTaskHandler(svc service.Service, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
			respondWithFailure(w, err, lg)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
