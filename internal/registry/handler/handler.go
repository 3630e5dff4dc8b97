package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"smartid/internal/registry/models"
	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
	"smartid/pkg/platform/httputil"
	"smartid/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context) (*models.Registry, error)
	Get(ctx context.Context, id domain.RegistryID) (*models.Registry, error)
	SubmitContract(ctx context.Context, id domain.RegistryID, h domain.Hash) error
	ApproveContract(ctx context.Context, id domain.RegistryID, h domain.Hash) error
	RejectContract(ctx context.Context, id domain.RegistryID, h domain.Hash) error
	DeleteContract(ctx context.Context, id domain.RegistryID, h domain.Hash) error
	IsValidContract(ctx context.Context, id domain.RegistryID, h domain.Hash) error
	GetContract(ctx context.Context, id domain.RegistryID, h domain.Hash) (models.ContractStatus, error)
}

type Handler struct {
	registries Service
	logger     *slog.Logger
}

func New(registries Service, logger *slog.Logger) *Handler {
	return &Handler{registries: registries, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/registries", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/contracts", h.handleSubmit)
			r.Route("/contracts/{hash}", func(r chi.Router) {
				r.Get("/", h.handleGetContract)
				r.Delete("/", h.handleDelete)
				r.Post("/approve", h.handleApprove)
				r.Post("/reject", h.handleReject)
				r.Get("/valid", h.handleValid)
			})
		})
	})
}

type submitRequest struct {
	Hash string `json:"hash"`
}

type registryResponse struct {
	ID        domain.RegistryID `json:"id"`
	Owner     domain.AccountID  `json:"owner"`
	Contracts int               `json:"contracts"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type contractResponse struct {
	Hash   domain.Hash           `json:"hash"`
	Status models.ContractStatus `json:"status"`
}

type validityResponse struct {
	Valid bool `json:"valid"`
}

func toRegistryResponse(reg *models.Registry) registryResponse {
	return registryResponse{
		ID:        reg.ID,
		Owner:     reg.Owner,
		Contracts: len(reg.Contracts),
		CreatedAt: reg.CreatedAt,
		UpdatedAt: reg.UpdatedAt,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reg, err := h.registries.Create(r.Context())
	if err != nil {
		h.writeError(w, r, err, "create registry")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRegistryResponse(reg))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.registryID(w, r)
	if !ok {
		return
	}
	reg, err := h.registries.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "get registry")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRegistryResponse(reg))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.registryID(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err, "decode request")
		return
	}
	contract, err := parseHash(req.Hash)
	if err != nil {
		h.writeError(w, r, err, "submit contract")
		return
	}
	if err := h.registries.SubmitContract(r.Context(), id, contract); err != nil {
		h.writeError(w, r, err, "submit contract")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, contractResponse{Hash: contract, Status: models.ContractSubmitted})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.registries.ApproveContract, models.ContractApproved, "approve contract")
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.registries.RejectContract, models.ContractRejected, "reject contract")
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, apply func(context.Context, domain.RegistryID, domain.Hash) error, status models.ContractStatus, action string) {
	id, contract, ok := h.contractParams(w, r)
	if !ok {
		return
	}
	if err := apply(r.Context(), id, contract); err != nil {
		h.writeError(w, r, err, action)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contractResponse{Hash: contract, Status: status})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, contract, ok := h.contractParams(w, r)
	if !ok {
		return
	}
	if err := h.registries.DeleteContract(r.Context(), id, contract); err != nil {
		h.writeError(w, r, err, "delete contract")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetContract(w http.ResponseWriter, r *http.Request) {
	id, contract, ok := h.contractParams(w, r)
	if !ok {
		return
	}
	status, err := h.registries.GetContract(r.Context(), id, contract)
	if err != nil {
		h.writeError(w, r, err, "get contract")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contractResponse{Hash: contract, Status: status})
}

// handleValid answers 200 for approved contracts and 422 otherwise, so
// callers can gate on the status code alone.
func (h *Handler) handleValid(w http.ResponseWriter, r *http.Request) {
	id, contract, ok := h.contractParams(w, r)
	if !ok {
		return
	}
	if err := h.registries.IsValidContract(r.Context(), id, contract); err != nil {
		h.writeError(w, r, err, "check contract")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, validityResponse{Valid: true})
}

func (h *Handler) registryID(w http.ResponseWriter, r *http.Request) (domain.RegistryID, bool) {
	id, err := domain.ParseRegistryID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, "parse registry ID")
		return domain.RegistryID{}, false
	}
	return id, true
}

func (h *Handler) contractParams(w http.ResponseWriter, r *http.Request) (domain.RegistryID, domain.Hash, bool) {
	id, ok := h.registryID(w, r)
	if !ok {
		return domain.RegistryID{}, domain.Hash{}, false
	}
	contract, err := parseHash(chi.URLParam(r, "hash"))
	if err != nil {
		h.writeError(w, r, err, "parse contract hash")
		return domain.RegistryID{}, domain.Hash{}, false
	}
	return id, contract, true
}

func parseHash(s string) (domain.Hash, error) {
	h, err := domain.ParseHash(s)
	if err != nil {
		return domain.Hash{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid contract hash")
	}
	return h, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, action string) {
	ctx := r.Context()
	if h.logger != nil {
		attrs := []any{
			"error", err,
			"action", action,
			"request_id", requestcontext.RequestID(ctx),
		}
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "registry request failed", attrs...)
		} else {
			h.logger.WarnContext(ctx, "registry request refused", attrs...)
		}
	}
	httputil.WriteError(w, err)
}
