package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
	"smartid/pkg/platform/httputil"
	"smartid/pkg/requestcontext"
)

// Clock is the ledger height source shared with the services.
type Clock interface {
	Height(ctx context.Context) (domain.Height, error)
	Advance(ctx context.Context, blocks uint64) (domain.Height, error)
}

// HeightObserver receives every height the handler reads or produces.
type HeightObserver func(domain.Height)

// LedgerHandler exposes the ledger height and lets operators mine blocks to
// move time forward for blocklock checks.
type LedgerHandler struct {
	clock    Clock
	logger   *slog.Logger
	observer HeightObserver
}

func NewLedgerHandler(clock Clock, logger *slog.Logger, observer HeightObserver) *LedgerHandler {
	return &LedgerHandler{clock: clock, logger: logger, observer: observer}
}

type heightResponse struct {
	Height domain.Height `json:"height"`
}

type mineRequest struct {
	Blocks uint64 `json:"blocks"`
}

const maxBlocksPerMine = 10_000

func (h *LedgerHandler) handleHeight(w http.ResponseWriter, r *http.Request) {
	height, err := h.clock.Height(r.Context())
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger height"))
		return
	}
	h.observe(height)
	httputil.WriteJSON(w, http.StatusOK, heightResponse{Height: height})
}

func (h *LedgerHandler) handleMine(w http.ResponseWriter, r *http.Request) {
	req := mineRequest{Blocks: 1}
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	if req.Blocks == 0 || req.Blocks > maxBlocksPerMine {
		h.writeError(w, r, dErrors.New(dErrors.CodeValidation, "blocks must be between 1 and 10000"))
		return
	}
	height, err := h.clock.Advance(r.Context(), req.Blocks)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance ledger"))
		return
	}
	h.observe(height)
	if h.logger != nil {
		h.logger.InfoContext(r.Context(), "ledger advanced",
			"blocks", req.Blocks,
			"height", uint64(height),
			"request_id", requestcontext.RequestID(r.Context()),
		)
	}
	httputil.WriteJSON(w, http.StatusOK, heightResponse{Height: height})
}

func (h *LedgerHandler) observe(height domain.Height) {
	if h.observer != nil {
		h.observer(height)
	}
}

func (h *LedgerHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if h.logger != nil && dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), "ledger request failed",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
	}
	httputil.WriteError(w, err)
}
