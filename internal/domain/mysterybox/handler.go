package mysterybox

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
	"github.com/quizbirr/quizbirr-api/internal/domain/user"
	"github.com/quizbirr/quizbirr-api/internal/domain/wallet"
	"github.com/quizbirr/quizbirr-api/internal/middleware"
	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
	"github.com/quizbirr/quizbirr-api/internal/pkg/errorhandler"
	"github.com/quizbirr/quizbirr-api/internal/pkg/response"
	"github.com/quizbirr/quizbirr-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

type openRequest struct {
	PointsToSpend int `json:"points_to_spend" validate:"required,gt=0"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Eligibility handles GET /mystery-box/eligibility
func (h *Handler) Eligibility(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	e, err := h.svc.CheckEligibility(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, e)
}

// Open handles POST /mystery-box/open
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req openRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.svc.Open(r.Context(), userID, req.PointsToSpend)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, result)
}

// History handles GET /mystery-box/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	page, limit := wallet.PageParams(r)
	boxes, total, page, limit, err := h.svc.History(r.Context(), userID, page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.WithMeta(w, boxes, response.NewMeta(total, page, limit, transaction.TotalPages(total, limit)))
}

// Stats handles GET /mystery-box/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	st, err := h.svc.Stats(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, st)
}

// Activity handles GET /admin/mystery-boxes
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	page, limit := wallet.PageParams(r)
	boxes, total, page, limit, err := h.svc.Activity(r.Context(), page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.WithMeta(w, boxes, response.NewMeta(total, page, limit, transaction.TotalPages(total, limit)))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrAlreadyOpened):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrBelowMinimum), errors.Is(err, ErrInsufficientPoints):
		response.Unprocessable(w, "INSUFFICIENT_POINTS", err.Error())
	case errors.Is(err, user.ErrUserNotFound):
		response.NotFound(w, "user not found")
	case errors.Is(err, database.ErrTxConflict):
		response.ServiceUnavailable(w, "please retry")
	default:
		errorhandler.Internal(r.Context(), w, err)
	}
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/eligibility", h.Eligibility)
	r.Post("/open", h.Open)
	r.Get("/history", h.History)
	r.Get("/stats", h.Stats)
	return r
}

// RegisterAdmin adds mystery box reporting to an admin router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/mystery-boxes", h.Activity)
}
