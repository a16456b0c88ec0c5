package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/quayside/authgate/internal/domain/model"
	"github.com/quayside/authgate/internal/service"
)

// ClientHandlers provides HTTP handlers for API-client management. All
// routes require a verified session; the per-operation scope checks live in
// the service.
type ClientHandlers struct {
	Svc *service.ClientService
}

func requireCaller(w http.ResponseWriter, r *http.Request) (service.Caller, bool) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
	}
	return caller, ok
}

// Create handles POST /v1/clients.
func (h *ClientHandlers) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req model.CreateClientRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	client, err := h.Svc.Create(r.Context(), caller, &req)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, client)
}

// Get handles GET /v1/clients/{id}.
func (h *ClientHandlers) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	client, err := h.Svc.Get(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, client)
}

// clientListResponse pairs a page of clients with the unpaged total.
type clientListResponse struct {
	Clients []*model.APIClient `json:"clients"`
	Total   int                `json:"total"`
}

// List handles GET /v1/clients.
func (h *ClientHandlers) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	opts := model.ClientsListOptions{}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation", Err: errors.New("limit must be a non-negative integer")})
			return
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation", Err: errors.New("offset must be a non-negative integer")})
			return
		}
		opts.Offset = n
	}
	if v := q.Get("user"); v != "" {
		opts.UserID = &v
	}

	clients, total, err := h.Svc.List(r.Context(), caller, opts)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if clients == nil {
		clients = []*model.APIClient{}
	}
	WriteJSON(w, http.StatusOK, clientListResponse{Clients: clients, Total: total})
}

// Update handles PATCH /v1/clients/{id}.
func (h *ClientHandlers) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req model.UpdateClientRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	client, err := h.Svc.Update(r.Context(), caller, r.PathValue("id"), req)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, client)
}

// Delete handles DELETE /v1/clients/{id}.
func (h *ClientHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	if err := h.Svc.Delete(r.Context(), caller, r.PathValue("id")); err != nil {
		WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
