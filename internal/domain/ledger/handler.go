package ledger

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quizbirr/quizbirr-api/internal/pkg/errorhandler"
	"github.com/quizbirr/quizbirr-api/internal/pkg/response"
)

// Handler exposes read-only ledger inspection to admins.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Audit handles GET /admin/ledger/audit
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.UnbalancedEntries(r.Context())
	if err != nil {
		errorhandler.Internal(r.Context(), w, err)
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	response.OK(w, map[string]any{
		"balanced":           len(ids) == 0,
		"unbalanced_entries": ids,
	})
}

// Accounts handles GET /admin/ledger/accounts
func (h *Handler) Accounts(w http.ResponseWriter, r *http.Request) {
	balances, err := h.svc.SystemBalances(r.Context())
	if err != nil {
		errorhandler.Internal(r.Context(), w, err)
		return
	}
	response.OK(w, balances)
}

// Entry handles GET /admin/ledger/entries/{key}
func (h *Handler) Entry(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		response.BadRequest(w, "idempotency key is required")
		return
	}
	entry, err := h.svc.GetEntry(r.Context(), key)
	if err != nil {
		errorhandler.Internal(r.Context(), w, err)
		return
	}
	if entry == nil {
		response.NotFound(w, "ledger entry not found")
		return
	}
	response.OK(w, entry)
}

// RegisterAdmin adds ledger inspection endpoints to an admin router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/ledger/audit", h.Audit)
	r.Get("/ledger/accounts", h.Accounts)
	r.Get("/ledger/entries/{key}", h.Entry)
}
