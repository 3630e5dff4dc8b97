package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"smartid/internal/identity/models"
	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
	"smartid/pkg/platform/httputil"
	"smartid/pkg/requestcontext"
)

// Service is the identity application service as seen by HTTP.
type Service interface {
	Create(ctx context.Context) (*models.Identity, models.Result, error)
	Get(ctx context.Context, id domain.IdentityID) (models.Summary, error)
	GetController(ctx context.Context, id domain.IdentityID) (domain.AccountID, error)
	GetOverride(ctx context.Context, id domain.IdentityID) (domain.AccountID, error)
	SetController(ctx context.Context, id domain.IdentityID, next domain.AccountID) (models.Result, error)
	SetOverride(ctx context.Context, id domain.IdentityID, next domain.AccountID) (models.Result, error)
	BlocksUntilTransfer(ctx context.Context, id domain.IdentityID) (uint64, error)
	AddAttribute(ctx context.Context, id domain.IdentityID, h domain.Hash) (models.Result, error)
	RemoveAttribute(ctx context.Context, id domain.IdentityID, h domain.Hash) (models.Result, error)
	UpdateAttribute(ctx context.Context, id domain.IdentityID, old, next domain.Hash) (models.Result, error)
	HasAttribute(ctx context.Context, id domain.IdentityID, h domain.Hash) (bool, error)
	AddEndorsement(ctx context.Context, id domain.IdentityID, key models.EndorsementKey) (models.Result, error)
	AcceptEndorsement(ctx context.Context, id domain.IdentityID, key models.EndorsementKey) (models.Result, error)
	RemoveEndorsement(ctx context.Context, id domain.IdentityID, key models.EndorsementKey) (models.Result, error)
	CheckEndorsement(ctx context.Context, id domain.IdentityID, key models.EndorsementKey) (bool, error)
	GetEndorsement(ctx context.Context, id domain.IdentityID, key models.EndorsementKey) (models.EndorsementView, error)
	SetSigningKey(ctx context.Context, id domain.IdentityID, key []byte) (models.Result, error)
	SetEncryptionKey(ctx context.Context, id domain.IdentityID, key []byte) (models.Result, error)
	GetSigningKey(ctx context.Context, id domain.IdentityID) ([]byte, error)
	GetEncryptionKey(ctx context.Context, id domain.IdentityID) ([]byte, error)
	Deposit(ctx context.Context, id domain.IdentityID, amount uint64) (models.Result, error)
	Dispose(ctx context.Context, id domain.IdentityID) (models.Result, uint64, error)
}

// Handler serves the identity endpoints.
type Handler struct {
	identities Service
	logger     *slog.Logger
}

func New(identities Service, logger *slog.Logger) *Handler {
	return &Handler{identities: identities, logger: logger}
}

// Register mounts the identity routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/identities", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleDispose)
			r.Post("/deposit", h.handleDeposit)

			r.Get("/controller", h.handleGetController)
			r.Put("/controller", h.handleSetController)
			r.Get("/override", h.handleGetOverride)
			r.Put("/override", h.handleSetOverride)
			r.Get("/blocklock", h.handleBlocklock)

			r.Post("/attributes", h.handleAddAttribute)
			r.Route("/attributes/{hash}", func(r chi.Router) {
				r.Get("/", h.handleHasAttribute)
				r.Put("/", h.handleUpdateAttribute)
				r.Delete("/", h.handleRemoveAttribute)

				r.Post("/endorsements", h.handleAddEndorsement)
				r.Get("/endorsements/{end}", h.handleGetEndorsement)
				r.Delete("/endorsements/{end}", h.handleRemoveEndorsement)
				r.Post("/endorsements/{end}/accept", h.handleAcceptEndorsement)
				r.Get("/endorsements/{end}/valid", h.handleCheckEndorsement)
			})

			r.Get("/keys/signing", h.handleGetSigningKey)
			r.Put("/keys/signing", h.handleSetSigningKey)
			r.Get("/keys/encryption", h.handleGetEncryptionKey)
			r.Put("/keys/encryption", h.handleSetEncryptionKey)
		})
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	rec, res, err := h.identities.Create(r.Context())
	if err != nil {
		h.writeError(w, r, err, "create identity")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, createResponse{ID: rec.ID, Result: res})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identityID(w, r)
	if !ok {
		return
	}
	summary, err := h.identities.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "get identity")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identityID(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.identities.Deposit(r.Context(), id, req.Amount)
	h.writeResult(w, r, http.StatusOK, res, err, "deposit")
}

func (h *Handler) handleDispose(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identityID(w, r)
	if !ok {
		return
	}
	res, refund, err := h.identities.Dispose(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "dispose identity")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, disposeResponse{Result: res, Refund: refund})
}

func (h *Handler) handleGetController(w http.ResponseWriter, r *http.Request) {
	h.readRole(w, r, h.identities.GetController, "get controller")
}

func (h *Handler) handleGetOverride(w http.ResponseWriter, r *http.Request) {
	h.readRole(w, r, h.identities.GetOverride, "get override")
}

func (h *Handler) handleSetController(w http.ResponseWriter, r *http.Request) {
	h.writeRole(w, r, h.identities.SetController, "set controller")
}

func (h *Handler) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	h.writeRole(w, r, h.identities.SetOverride, "set override")
}

func (h *Handler) handleBlocklock(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identityID(w, r)
	if !ok {
		return
	}
	left, err := h.identities.BlocksUntilTransfer(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "read blocklock")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, blocklockResponse{BlocksRemaining: left})
}

func (h *Handler) readRole(w http.ResponseWriter, r *http.Request, get func(context.Context, domain.IdentityID) (domain.AccountID, error), action string) {
	id, ok := h.identityID(w, r)
	if !ok {
		return
	}
	account, err := get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, action)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, accountResponse{Account: account})
}

func (h *Handler) writeRole(w http.ResponseWriter, r *http.Request, set func(context.Context, domain.IdentityID, domain.AccountID) (models.Result, error), action string) {
	id, ok := h.identityID(w, r)
	if !ok {
		return
	}
	var req accountRequest
	if !h.decode(w, r, &req) {
		return
	}
	next, err := parseAccount(req.Account)
	if err != nil {
		h.writeError(w, r, err, action)
		return
	}
	res, err := set(r.Context(), id, next)
	h.writeResult(w, r, http.StatusOK, res, err, action)
}

func (h *Handler) handleAddAttribute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identityID(w, r)
	if !ok {
		return
	}
	var req attributeRequest
	if !h.decode(w, r, &req) {
		return
	}
	attr, err := parseHash(req.Hash, "attribute hash")
	if err != nil {
		h.writeError(w, r, err, "add attribute")
		return
	}
	res, err := h.identities.AddAttribute(r.Context(), id, attr)
	h.writeResult(w, r, http.StatusCreated, res, err, "add attribute")
}

func (h *Handler) handleHasAttribute(w http.ResponseWriter, r *http.Request) {
	id, attr, ok := h.attributePath(w, r)
	if !ok {
		return
	}
	present, err := h.identities.HasAttribute(r.Context(), id, attr)
	if err != nil {
		h.writeError(w, r, err, "has attribute")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, presenceResponse{Present: present})
}

func (h *Handler) handleUpdateAttribute(w http.ResponseWriter, r *http.Request) {
	id, old, ok := h.attributePath(w, r)
	if !ok {
		return
	}
	var req updateAttributeRequest
	if !h.decode(w, r, &req) {
		return
	}
	next, err := parseHash(req.New, "new attribute hash")
	if err != nil {
		h.writeError(w, r, err, "update attribute")
		return
	}
	res, err := h.identities.UpdateAttribute(r.Context(), id, old, next)
	h.writeResult(w, r, http.StatusOK, res, err, "update attribute")
}

func (h *Handler) handleRemoveAttribute(w http.ResponseWriter, r *http.Request) {
	id, attr, ok := h.attributePath(w, r)
	if !ok {
		return
	}
	res, err := h.identities.RemoveAttribute(r.Context(), id, attr)
	h.writeResult(w, r, http.StatusOK, res, err, "remove attribute")
}

func (h *Handler) handleAddEndorsement(w http.ResponseWriter, r *http.Request) {
	id, attr, ok := h.attributePath(w, r)
	if !ok {
		return
	}
	var req endorsementRequest
	if !h.decode(w, r, &req) {
		return
	}
	end, err := parseHash(req.Endorsement, "endorsement hash")
	if err != nil {
		h.writeError(w, r, err, "add endorsement")
		return
	}
	key := models.EndorsementKey{Attribute: attr, Endorsement: end}
	res, err := h.identities.AddEndorsement(r.Context(), id, key)
	h.writeResult(w, r, http.StatusCreated, res, err, "add endorsement")
}

func (h *Handler) handleAcceptEndorsement(w http.ResponseWriter, r *http.Request) {
	id, key, ok := h.endorsementPath(w, r)
	if !ok {
		return
	}
	res, err := h.identities.AcceptEndorsement(r.Context(), id, key)
	h.writeResult(w, r, http.StatusOK, res, err, "accept endorsement")
}

func (h *Handler) handleRemoveEndorsement(w http.ResponseWriter, r *http.Request) {
	id, key, ok := h.endorsementPath(w, r)
	if !ok {
		return
	}
	res, err := h.identities.RemoveEndorsement(r.Context(), id, key)
	h.writeResult(w, r, http.StatusOK, res, err, "remove endorsement")
}

func (h *Handler) handleGetEndorsement(w http.ResponseWriter, r *http.Request) {
	id, key, ok := h.endorsementPath(w, r)
	if !ok {
		return
	}
	view, err := h.identities.GetEndorsement(r.Context(), id, key)
	if err != nil {
		h.writeError(w, r, err, "get endorsement")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleCheckEndorsement(w http.ResponseWriter, r *http.Request) {
	id, key, ok := h.endorsementPath(w, r)
	if !ok {
		return
	}
	valid, err := h.identities.CheckEndorsement(r.Context(), id, key)
	if err != nil {
		h.writeError(w, r, err, "check endorsement")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, validityResponse{Valid: valid})
}

func (h *Handler) handleGetSigningKey(w http.ResponseWriter, r *http.Request) {
	h.readKey(w, r, h.identities.GetSigningKey, "get signing key")
}

func (h *Handler) handleGetEncryptionKey(w http.ResponseWriter, r *http.Request) {
	h.readKey(w, r, h.identities.GetEncryptionKey, "get encryption key")
}

func (h *Handler) handleSetSigningKey(w http.ResponseWriter, r *http.Request) {
	h.writeKey(w, r, h.identities.SetSigningKey, "set signing key")
}

func (h *Handler) handleSetEncryptionKey(w http.ResponseWriter, r *http.Request) {
	h.writeKey(w, r, h.identities.SetEncryptionKey, "set encryption key")
}

func (h *Handler) readKey(w http.ResponseWriter, r *http.Request, get func(context.Context, domain.IdentityID) ([]byte, error), action string) {
	id, ok := h.identityID(w, r)
	if !ok {
		return
	}
	key, err := get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, action)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toKeyResponse(key))
}

func (h *Handler) writeKey(w http.ResponseWriter, r *http.Request, set func(context.Context, domain.IdentityID, []byte) (models.Result, error), action string) {
	id, ok := h.identityID(w, r)
	if !ok {
		return
	}
	var req keyRequest
	if !h.decode(w, r, &req) {
		return
	}
	key, err := req.decode()
	if err != nil {
		h.writeError(w, r, err, action)
		return
	}
	res, err := set(r.Context(), id, key)
	h.writeResult(w, r, http.StatusOK, res, err, action)
}

func (h *Handler) identityID(w http.ResponseWriter, r *http.Request) (domain.IdentityID, bool) {
	id, err := domain.ParseIdentityID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, "parse identity ID")
		return domain.IdentityID{}, false
	}
	return id, true
}

func (h *Handler) attributePath(w http.ResponseWriter, r *http.Request) (domain.IdentityID, domain.Hash, bool) {
	id, ok := h.identityID(w, r)
	if !ok {
		return domain.IdentityID{}, domain.Hash{}, false
	}
	attr, err := parseHash(chi.URLParam(r, "hash"), "attribute hash")
	if err != nil {
		h.writeError(w, r, err, "parse attribute hash")
		return domain.IdentityID{}, domain.Hash{}, false
	}
	return id, attr, true
}

func (h *Handler) endorsementPath(w http.ResponseWriter, r *http.Request) (domain.IdentityID, models.EndorsementKey, bool) {
	id, attr, ok := h.attributePath(w, r)
	if !ok {
		return domain.IdentityID{}, models.EndorsementKey{}, false
	}
	end, err := parseHash(chi.URLParam(r, "end"), "endorsement hash")
	if err != nil {
		h.writeError(w, r, err, "parse endorsement hash")
		return domain.IdentityID{}, models.EndorsementKey{}, false
	}
	return id, models.EndorsementKey{Attribute: attr, Endorsement: end}, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httputil.DecodeJSON(r, v); err != nil {
		h.writeError(w, r, err, "decode request")
		return false
	}
	return true
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, status int, res models.Result, err error, action string) {
	if err != nil {
		h.writeError(w, r, err, action)
		return
	}
	httputil.WriteJSON(w, status, res)
}

// writeError logs at error level only for internal failures; domain refusals
// are routine and logged at warn.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, action string) {
	ctx := r.Context()
	if h.logger != nil {
		attrs := []any{
			"error", err,
			"action", action,
			"request_id", requestcontext.RequestID(ctx),
		}
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "identity request failed", attrs...)
		} else {
			h.logger.WarnContext(ctx, "identity request refused", attrs...)
		}
	}
	httputil.WriteError(w, err)
}
