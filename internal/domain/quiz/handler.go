package quiz

import (
	"database/sql"
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
	"github.com/quizbirr/quizbirr-api/internal/pkg/response"
	"github.com/quizbirr/quizbirr-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

type answerRequest struct {
	Answer *bool `json:"answer" validate:"required"`
}

type quizRequest struct {
	Question    string `json:"question" validate:"required,min=5,max=500"`
	Answer      *bool  `json:"answer" validate:"required"`
	Points      int    `json:"points" validate:"gte=0,lte=1000"`
	Difficulty  string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	WeightMinor int64  `json:"weight_minor" validate:"gte=0"`
	IsActive    *bool  `json:"is_active"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Random handles GET /quiz/random
func (h *Handler) Random(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}
	q, err := h.svc.RandomQuiz(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, q)
}

// Answer handles POST /quiz/{id}/answer
func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}
	quizID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid quiz id")
		return
	}

	var req answerRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.svc.SubmitAnswer(r.Context(), userID, quizID, *req.Answer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, result)
}

// Stats handles GET /quiz/stats
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

// Create handles POST /admin/quizzes
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	q, ok := decodeQuiz(w, r)
	if !ok {
		return
	}
	if err := h.svc.Create(r.Context(), q); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, q)
}

// Update handles PUT /admin/quizzes/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid quiz id")
		return
	}
	q, ok := decodeQuiz(w, r)
	if !ok {
		return
	}
	q.ID = id
	if err := h.svc.Update(r.Context(), q); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, q)
}

// List handles GET /admin/quizzes
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	quizzes, total, page, limit, err := h.svc.List(r.Context(), page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.WithMeta(w, quizzes, response.NewMeta(total, page, limit, transaction.TotalPages(total, limit)))
}

func decodeQuiz(w http.ResponseWriter, r *http.Request) (*Quiz, bool) {
	var req quizRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return nil, false
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return nil, false
	}

	q := &Quiz{
		Question:   req.Question,
		Answer:     *req.Answer,
		Points:     req.Points,
		Difficulty: req.Difficulty,
		IsActive:   true,
	}
	if req.Points == 0 {
		q.Points = 1
	}
	if req.WeightMinor > 0 {
		q.WeightMinor = sql.NullInt64{Int64: req.WeightMinor, Valid: true}
	}
	if req.IsActive != nil {
		q.IsActive = *req.IsActive
	}
	return q, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrQuizNotFound), errors.Is(err, user.ErrUserNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNoQuizAvailable):
		response.NotFound(w, "no more quizzes available")
	case errors.Is(err, ErrQuizInactive), errors.Is(err, ErrInvalidPoints):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrAlreadyAnswered):
		response.Error(w, http.StatusConflict, "ALREADY_ANSWERED", err.Error())
	case errors.Is(err, database.ErrTxConflict):
		response.ServiceUnavailable(w, "please retry")
	default:
		errorhandler.Internal(r.Context(), w, err)
	}
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/random", h.Random)
	r.Get("/stats", h.Stats)
	r.Post("/{id}/answer", h.Answer)
	return r
}

// RegisterAdmin adds quiz administration endpoints to an admin router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/quizzes", h.List)
	r.Post("/quizzes", h.Create)
	r.Put("/quizzes/{id}", h.Update)
}
