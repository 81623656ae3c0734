package referral

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quizbirr/quizbirr-api/internal/domain/user"
	"github.com/quizbirr/quizbirr-api/internal/middleware"
	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
	"github.com/quizbirr/quizbirr-api/internal/pkg/errorhandler"
	"github.com/quizbirr/quizbirr-api/internal/pkg/response"
	"github.com/quizbirr/quizbirr-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

type applyCodeRequest struct {
	Code string `json:"code" validate:"required,alphanum,min=4,max=16"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Apply handles POST /referral/apply
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req applyCodeRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := h.svc.ApplyCode(r.Context(), userID, req.Code); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, map[string]string{"message": "Referral code applied successfully"})
}

// Stats handles GET /referral/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	stats, err := h.svc.Stats(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, stats)
}

// Referrals handles GET /referral/users
func (h *Handler) Referrals(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	result, err := h.svc.ReferredUsers(r.Context(), userID, page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.WithMeta(w, result.Referrals, response.NewMeta(result.Total, result.Page, result.Limit, result.TotalPages))
}

// DailyBonus handles POST /referral/daily-bonus
func (h *Handler) DailyBonus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	result, err := h.svc.ClaimDailyBonus(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, result)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrAlreadyReferred):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrInvalidCode), errors.Is(err, ErrSelfReferral):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrDailyBonusClaimed):
		response.Error(w, http.StatusConflict, "ALREADY_CLAIMED", err.Error())
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
	r.Post("/apply", h.Apply)
	r.Get("/stats", h.Stats)
	r.Get("/users", h.Referrals)
	r.Post("/daily-bonus", h.DailyBonus)
	return r
}
