package wallet

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
	"github.com/quizbirr/quizbirr-api/internal/domain/user"
	"github.com/quizbirr/quizbirr-api/internal/middleware"
	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
	"github.com/quizbirr/quizbirr-api/internal/pkg/errorhandler"
	"github.com/quizbirr/quizbirr-api/internal/pkg/money"
	"github.com/quizbirr/quizbirr-api/internal/pkg/response"
	"github.com/quizbirr/quizbirr-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Balance handles GET /wallet/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, balance)
}

// Transactions handles GET /wallet/transactions
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	page, limit := PageParams(r)
	result, err := h.svc.History(r.Context(), userID, page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WritePage(w, result)
}

// Withdraw handles POST /wallet/withdraw
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req withdrawRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	amount, err := money.ParseMajor(req.Amount)
	if err != nil {
		response.BadRequest(w, "invalid amount")
		return
	}

	t, err := h.svc.InitiateWithdrawal(r.Context(), WithdrawalRequest{
		UserID:      userID,
		AmountMinor: amount,
		Destination: req.Destination,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, NewTransactionView(*t))
}

// ProcessWithdrawal handles POST /admin/withdrawals/{id}/process
func (h *Handler) ProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetUserID(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid transaction id")
		return
	}

	var req processWithdrawalRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	t, err := h.svc.ProcessWithdrawal(r.Context(), WithdrawalDecision{
		TransactionID: id,
		AdminID:       adminID,
		Approved:      req.Approved,
		Reason:        req.Reason,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, NewTransactionView(*t))
}

// ListTransactions handles GET /admin/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	page, limit := PageParams(r)
	q := r.URL.Query()
	f := transaction.Filter{
		Type:   transaction.Type(q.Get("type")),
		Status: transaction.Status(q.Get("status")),
		Page:   page,
		Limit:  limit,
	}
	if raw := q.Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "invalid user_id")
			return
		}
		f.UserID = id
	}
	if f.Type != "" && !f.Type.Valid() {
		response.BadRequest(w, "invalid type")
		return
	}

	result, err := h.svc.ListTransactions(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WritePage(w, result)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrInsufficientBalance):
		response.Error(w, http.StatusBadRequest, "INSUFFICIENT_BALANCE", "insufficient wallet balance")
	case errors.Is(err, ErrTasksNotApproved):
		response.Error(w, http.StatusBadRequest, "TASKS_NOT_APPROVED", err.Error())
	case errors.Is(err, ErrNoGatingTasks):
		response.Error(w, http.StatusBadRequest, "NO_GATING_TASKS", "withdrawals are unavailable right now")
	case errors.Is(err, ErrNotWithdrawal):
		response.BadRequest(w, err.Error())
	case errors.Is(err, transaction.ErrNotFound), errors.Is(err, user.ErrUserNotFound):
		response.NotFound(w, "not found")
	case errors.Is(err, transaction.ErrAlreadyProcessed):
		response.Error(w, http.StatusConflict, "ALREADY_PROCESSED", "transaction already processed")
	case errors.Is(err, database.ErrTxConflict):
		response.ServiceUnavailable(w, "please retry")
	default:
		errorhandler.Internal(r.Context(), w, err)
	}
}

// Routes mounts the user wallet endpoints.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/balance", h.Balance)
	r.Get("/transactions", h.Transactions)
	r.Post("/withdraw", h.Withdraw)
	return r
}

// RegisterAdmin adds the admin wallet endpoints to an admin router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/withdrawals/{id}/process", h.ProcessWithdrawal)
	r.Get("/transactions", h.ListTransactions)
}

// PageParams reads page and limit query parameters.
func PageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return transaction.NormalizePage(page, limit)
}

// WritePage sends a transaction page with pagination metadata.
func WritePage(w http.ResponseWriter, p *transaction.Page) {
	response.WithMeta(w, NewTransactionViews(p.Items), response.NewMeta(p.Total, p.Page, p.Limit, p.TotalPages))
}
