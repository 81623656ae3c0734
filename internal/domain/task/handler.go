package task

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

// List handles GET /tasks
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ListActive(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, TaskResponseFromEntity(&tasks[i]))
	}
	response.OK(w, out)
}

// Get handles GET /tasks/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid task id")
		return
	}
	t, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, TaskResponseFromEntity(t))
}

// Submit handles POST /tasks/{id}/submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}
	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid task id")
		return
	}

	var req submitRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	sub, err := h.svc.Submit(r.Context(), userID, taskID, req.Proof)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, SubmissionResponseFromEntity(sub))
}

// Submissions handles GET /tasks/submissions
func (h *Handler) Submissions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}
	subs, err := h.svc.UserSubmissions(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, submissionResponses(subs))
}

// Pending handles GET /admin/submissions/pending
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	subs, total, page, limit, err := h.svc.PendingSubmissions(r.Context(), page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pages := (total + limit - 1) / limit
	response.WithMeta(w, submissionResponses(subs), response.NewMeta(total, page, limit, pages))
}

// Review handles POST /admin/submissions/{id}/review
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetUserID(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid submission id")
		return
	}

	var req reviewRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.svc.Review(r.Context(), id, adminID, req.Approved, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"submission":     SubmissionResponseFromEntity(result.Submission),
		"points_added":   result.PointsAdded,
		"reward":         money.ToMajor(result.RewardMinor),
		"reference":      result.Reference,
		"first_approval": result.FirstApproval,
	})
}

// ListAll handles GET /admin/tasks
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	tasks, total, err := h.svc.ListAll(r.Context(), page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, TaskResponseFromEntity(&tasks[i]))
	}
	response.WithMeta(w, out, response.NewMeta(total, page, limit, (total+limit-1)/limit))
}

// Create handles POST /admin/tasks
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	t, ok := h.decodeTask(w, r)
	if !ok {
		return
	}
	if err := h.svc.CreateTask(r.Context(), t); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, TaskResponseFromEntity(t))
}

// Update handles PUT /admin/tasks/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid task id")
		return
	}
	t, ok := h.decodeTask(w, r)
	if !ok {
		return
	}
	t.ID = id
	if err := h.svc.UpdateTask(r.Context(), t); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, TaskResponseFromEntity(t))
}

func (h *Handler) decodeTask(w http.ResponseWriter, r *http.Request) (*Task, bool) {
	var req taskRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return nil, false
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return nil, false
	}
	reward, err := money.ParseMajor(req.Reward)
	if err != nil {
		response.BadRequest(w, "invalid reward")
		return nil, false
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &Task{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		URL:         req.URL,
		RewardMinor: reward,
		IsActive:    active,
	}, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, ErrSubmissionNotFound), errors.Is(err, user.ErrUserNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrTaskInactive), errors.Is(err, ErrInvalidReward), errors.Is(err, ErrRejectionReasonSize):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrAlreadySubmitted), errors.Is(err, ErrAlreadyReviewed):
		response.Conflict(w, err.Error())
	case errors.Is(err, database.ErrTxConflict):
		response.ServiceUnavailable(w, "please retry")
	default:
		errorhandler.Internal(r.Context(), w, err)
	}
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// Routes mounts the user task endpoints.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/submissions", h.Submissions)
		r.Post("/{id}/submit", h.Submit)
	})
	r.Get("/{id}", h.Get)
	return r
}

// RegisterAdmin adds task administration endpoints to an admin router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/tasks", h.ListAll)
	r.Post("/tasks", h.Create)
	r.Put("/tasks/{id}", h.Update)
	r.Get("/submissions/pending", h.Pending)
	r.Post("/submissions/{id}/review", h.Review)
}
