package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/task"
)

// TenantHandler serves the tenant and privilege management API. Every
// mutating route enqueues the operation through the task service and
// answers 202 Accepted with the task handle; reads answer synchronously.
type TenantHandler struct {
	chi.Router

	api ErrorHandler
	log *zap.Logger

	tasks  *task.Service
	ledger volauth.UsageLedger
}

// NewTenantHandler returns a handler over the asynchronous management
// service and the usage ledger.
func NewTenantHandler(log *zap.Logger, tasks *task.Service, ledger volauth.UsageLedger) *TenantHandler {
	h := &TenantHandler{
		Router: chi.NewRouter(),
		api:    NewErrorHandler(log),
		log:    log,
		tasks:  tasks,
		ledger: ledger,
	}

	h.Route("/", func(r chi.Router) {
		r.Get("/", h.handleGetTenants)
		r.Post("/", h.handlePostTenant)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetTenant)
			r.Patch("/", h.handlePatchTenant)
			r.Delete("/", h.handleDeleteTenant)

			r.Get("/vms", h.handleGetTenantVMs)
			r.Post("/vms", h.handlePostTenantVMs)
			r.Put("/vms", h.handlePutTenantVMs)
			r.Delete("/vms", h.handleDeleteTenantVMs)

			r.Get("/privileges", h.handleGetPrivileges)
			r.Put("/privileges", h.handlePutPrivileges)
			r.Post("/privileges", h.handlePostPrivilege)
			r.Patch("/privileges/{datastore}", h.handlePatchPrivilege)
			r.Delete("/privileges/{datastore}", h.handleDeletePrivilege)

			r.Get("/usage", h.handleGetUsage)
		})
	})

	return h
}

// acceptTask answers a mutating request with the queued task handle.
func (h *TenantHandler) acceptTask(w http.ResponseWriter, r *http.Request, t *task.Task) {
	w.Header().Set("Location", "/api/v1/tasks/"+string(t.ID))
	if err := encodeResponse(r.Context(), w, http.StatusAccepted, t); err != nil {
		h.api.HandleHTTPError(r.Context(), err, w)
	}
}

func (h *TenantHandler) handleGetTenants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if name := r.URL.Query().Get("name"); name != "" {
		t, err := h.tasks.FindTenant(ctx, volauth.TenantFilter{Name: &name})
		if err != nil {
			h.api.HandleHTTPError(ctx, err, w)
			return
		}
		if err := encodeResponse(ctx, w, http.StatusOK, []*volauth.Tenant{t}); err != nil {
			h.api.HandleHTTPError(ctx, err, w)
		}
		return
	}

	ts, err := h.tasks.ListTenants(ctx)
	if err != nil {
		h.api.HandleHTTPError(ctx, err, w)
		return
	}
	if err := encodeResponse(ctx, w, http.StatusOK, ts); err != nil {
		h.api.HandleHTTPError(ctx, err, w)
	}
}

type postTenantRequest struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	VMs         []volauth.VMID            `json:"vms,omitempty"`
	Privileges  []volauth.AccessPrivilege `json:"privileges,omitempty"`
}

func (h *TenantHandler) handlePostTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req postTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.api.HandleHTTPError(ctx, invalidErr("invalid tenant body", err), w)
		return
	}

	t := h.tasks.CreateTenant(ctx, &volauth.Tenant{
		Name:        req.Name,
		Description: req.Description,
	}, req.VMs, req.Privileges)
	h.acceptTask(w, r, t)
}

func (h *TenantHandler) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := volauth.ID(chi.URLParam(r, "id"))

	t, err := h.tasks.FindTenantByID(ctx, id)
	if err != nil {
		h.api.HandleHTTPError(ctx, err, w)
		return
	}
	if err := encodeResponse(ctx, w, http.StatusOK, t); err != nil {
		h.api.HandleHTTPError(ctx, err, w)
	}
}

func (h *TenantHandler) handlePatchTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := volauth.ID(chi.URLParam(r, "id"))

	var upd volauth.TenantUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.api.HandleHTTPError(ctx, invalidErr("invalid tenant update body", err), w)
		return
	}

	h.acceptTask(w, r, h.tasks.UpdateTenant(ctx, id, upd))
}

func (h *TenantHandler) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := volauth.ID(chi.URLParam(r, "id"))
	deleteVolumes := r.URL.Query().Get("deleteVolumes") == "true"

	h.acceptTask(w, r, h.tasks.RemoveTenant(ctx, id, deleteVolumes))
}

type vmsRequest struct {
	VMs []volauth.VMID `json:"vms"`
}

func (h *TenantHandler) decodeVMs(w http.ResponseWriter, r *http.Request) ([]volauth.VMID, bool) {
	var req vmsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.api.HandleHTTPError(r.Context(), invalidErr("invalid vms body", err), w)
		return nil, false
	}
	return req.VMs, true
}

func (h *TenantHandler) handleGetTenantVMs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := volauth.ID(chi.URLParam(r, "id"))

	vms, err := h.tasks.TenantVMs(ctx, id)
	if err != nil {
		h.api.HandleHTTPError(ctx, err, w)
		return
	}
	if err := encodeResponse(ctx, w, http.StatusOK, vmsRequest{VMs: vms}); err != nil {
		h.api.HandleHTTPError(ctx, err, w)
	}
}

func (h *TenantHandler) handlePostTenantVMs(w http.ResponseWriter, r *http.Request) {
	id := volauth.ID(chi.URLParam(r, "id"))
	vms, ok := h.decodeVMs(w, r)
	if !ok {
		return
	}
	h.acceptTask(w, r, h.tasks.AddVMs(r.Context(), id, vms))
}

func (h *TenantHandler) handlePutTenantVMs(w http.ResponseWriter, r *http.Request) {
	id := volauth.ID(chi.URLParam(r, "id"))
	vms, ok := h.decodeVMs(w, r)
	if !ok {
		return
	}
	h.acceptTask(w, r, h.tasks.ReplaceVMs(r.Context(), id, vms))
}

func (h *TenantHandler) handleDeleteTenantVMs(w http.ResponseWriter, r *http.Request) {
	id := volauth.ID(chi.URLParam(r, "id"))
	vms, ok := h.decodeVMs(w, r)
	if !ok {
		return
	}
	h.acceptTask(w, r, h.tasks.RemoveVMs(r.Context(), id, vms))
}

func (h *TenantHandler) handleGetPrivileges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := volauth.ID(chi.URLParam(r, "id"))

	ps, err := h.tasks.ListPrivileges(ctx, id)
	if err != nil {
		h.api.HandleHTTPError(ctx, err, w)
		return
	}
	if err := encodeResponse(ctx, w, http.StatusOK, ps); err != nil {
		h.api.HandleHTTPError(ctx, err, w)
	}
}

func (h *TenantHandler) handlePutPrivileges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := volauth.ID(chi.URLParam(r, "id"))

	var ps []volauth.AccessPrivilege
	if err := json.NewDecoder(r.Body).Decode(&ps); err != nil {
		h.api.HandleHTTPError(ctx, invalidErr("invalid privileges body", err), w)
		return
	}

	h.acceptTask(w, r, h.tasks.SetAccessPrivileges(ctx, id, ps))
}

type postPrivilegeRequest struct {
	volauth.AccessPrivilege
	Default bool `json:"default,omitempty"`
}

func (h *TenantHandler) handlePostPrivilege(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := volauth.ID(chi.URLParam(r, "id"))

	var req postPrivilegeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.api.HandleHTTPError(ctx, invalidErr("invalid privilege body", err), w)
		return
	}

	h.acceptTask(w, r, h.tasks.AddAccessPrivilege(ctx, id, req.AccessPrivilege, req.Default))
}

func (h *TenantHandler) handlePatchPrivilege(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := volauth.ID(chi.URLParam(r, "id"))
	ds := volauth.DatastoreID(chi.URLParam(r, "datastore"))

	var upd volauth.PrivilegeUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.api.HandleHTTPError(ctx, invalidErr("invalid privilege update body", err), w)
		return
	}

	h.acceptTask(w, r, h.tasks.UpdateAccessPrivilege(ctx, id, ds, upd))
}

func (h *TenantHandler) handleDeletePrivilege(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := volauth.ID(chi.URLParam(r, "id"))
	ds := volauth.DatastoreID(chi.URLParam(r, "datastore"))

	h.acceptTask(w, r, h.tasks.RemoveAccessPrivilege(ctx, id, ds))
}

func (h *TenantHandler) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := volauth.ID(chi.URLParam(r, "id"))

	usage, err := h.ledger.TenantUsage(ctx, id)
	if err != nil {
		h.api.HandleHTTPError(ctx, err, w)
		return
	}
	if err := encodeResponse(ctx, w, http.StatusOK, usage); err != nil {
		h.api.HandleHTTPError(ctx, err, w)
	}
}
