package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/volaas/volauth"
)

// AuthorizeHandler serves the synchronous decision endpoint used by the
// volume plugin on every operation.
type AuthorizeHandler struct {
	chi.Router

	api ErrorHandler
	log *zap.Logger

	engine volauth.AuthorizationService
}

// NewAuthorizeHandler returns a handler over the authorization engine.
func NewAuthorizeHandler(log *zap.Logger, engine volauth.AuthorizationService) *AuthorizeHandler {
	h := &AuthorizeHandler{
		Router: chi.NewRouter(),
		api:    NewErrorHandler(log),
		log:    log,
		engine: engine,
	}

	h.Post("/", h.handleAuthorize)

	return h
}

func (h *AuthorizeHandler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req volauth.AuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.api.HandleHTTPError(ctx, invalidErr("invalid authorize body", err), w)
		return
	}

	d, err := h.engine.Authorize(ctx, req)
	if err != nil {
		h.api.HandleHTTPError(ctx, err, w)
		return
	}
	// A denial is a successful decision; the outcome travels in the body.
	if err := encodeResponse(ctx, w, http.StatusOK, d); err != nil {
		h.api.HandleHTTPError(ctx, err, w)
	}
}
