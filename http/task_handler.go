package http

import (
	"net/http"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/task"
)

// TaskHandler serves task queries and acknowledgment.
type TaskHandler struct {
	chi.Router

	api ErrorHandler
	log *zap.Logger

	coordinator *task.Coordinator
}

// NewTaskHandler returns a handler over the coordinator.
func NewTaskHandler(log *zap.Logger, c *task.Coordinator) *TaskHandler {
	h := &TaskHandler{
		Router:      chi.NewRouter(),
		api:         NewErrorHandler(log),
		log:         log,
		coordinator: c,
	}

	h.Route("/", func(r chi.Router) {
		r.Get("/", h.handleGetTasks)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetTask)
			r.Delete("/", h.handleAcknowledgeTask)
		})
	})

	return h
}

func (h *TaskHandler) handleGetTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var filter task.TaskFilter
	if kind := r.URL.Query().Get("kind"); kind != "" {
		filter.Kind = &kind
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := task.Status(status)
		filter.Status = &s
	}

	ts, err := h.coordinator.FindTasks(ctx, filter)
	if err != nil {
		h.api.HandleHTTPError(ctx, err, w)
		return
	}
	if err := encodeResponse(ctx, w, http.StatusOK, ts); err != nil {
		h.api.HandleHTTPError(ctx, err, w)
	}
}

func (h *TaskHandler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := volauth.ID(chi.URLParam(r, "id"))

	var (
		t   *task.Task
		err error
	)
	// wait=true holds the request open until the task finishes or the
	// request context ends.
	if r.URL.Query().Get("wait") == "true" {
		t, err = h.coordinator.WaitForTask(ctx, id)
	} else {
		t, err = h.coordinator.FindTaskByID(ctx, id)
	}
	if err != nil {
		h.api.HandleHTTPError(ctx, err, w)
		return
	}
	if err := encodeResponse(ctx, w, http.StatusOK, t); err != nil {
		h.api.HandleHTTPError(ctx, err, w)
	}
}

func (h *TaskHandler) handleAcknowledgeTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := volauth.ID(chi.URLParam(r, "id"))

	if err := h.coordinator.Acknowledge(ctx, id); err != nil {
		h.api.HandleHTTPError(ctx, err, w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
