package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
	"github.com/quizbirr/quizbirr-api/internal/domain/user"
	"github.com/quizbirr/quizbirr-api/internal/domain/wallet"
	"github.com/quizbirr/quizbirr-api/internal/middleware"
	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
	"github.com/quizbirr/quizbirr-api/internal/pkg/errorhandler"
	"github.com/quizbirr/quizbirr-api/internal/pkg/lock"
	"github.com/quizbirr/quizbirr-api/internal/pkg/money"
	providers "github.com/quizbirr/quizbirr-api/internal/pkg/payment"
	"github.com/quizbirr/quizbirr-api/internal/pkg/response"
	"github.com/quizbirr/quizbirr-api/internal/pkg/storage"
	"github.com/quizbirr/quizbirr-api/internal/pkg/validator"
)

const maxWebhookBody = 1 << 20

// Signature headers per provider, first match wins.
var signatureHeaders = map[string][]string{
	providers.ProviderTelebirr: {"x-telebirr-signature", "x-signature"},
	providers.ProviderChapa:    {"chapa-signature", "x-chapa-signature"},
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// InitDeposit handles POST /wallet/deposit
func (h *Handler) InitDeposit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req depositRequest
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

	result, err := h.svc.InitDeposit(r.Context(), userID, req.Provider, amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, result)
}

// BankDeposit handles POST /wallet/deposit/bank (multipart: amount, receipt)
func (h *Handler) BankDeposit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	file, ok := receiptFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	form := bankDepositForm{Amount: r.FormValue("amount")}
	if errs := validator.Validate(form); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	amount, err := money.ParseMajor(form.Amount)
	if err != nil {
		response.BadRequest(w, "invalid amount")
		return
	}

	result, err := h.svc.SubmitBankDeposit(r.Context(), userID, amount, file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, result)
}

// AttachReceipt handles POST /wallet/deposit/{id}/receipt
func (h *Handler) AttachReceipt(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid transaction id")
		return
	}

	file, ok := receiptFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	t, err := h.svc.AttachReceipt(r.Context(), userID, id, file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, wallet.NewTransactionView(*t))
}

func receiptFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxReceiptSize+(1<<20))
	if err := r.ParseMultipartForm(storage.MaxReceiptSize); err != nil {
		response.BadRequest(w, "invalid multipart form")
		return nil, false
	}
	file, _, err := r.FormFile("receipt")
	if err != nil {
		response.BadRequest(w, "receipt file is required")
		return nil, false
	}
	return file, true
}

// TelebirrWebhook handles POST /webhooks/telebirr
func (h *Handler) TelebirrWebhook(w http.ResponseWriter, r *http.Request) {
	h.webhook(w, r, providers.ProviderTelebirr)
}

// ChapaWebhook handles POST /webhooks/chapa
func (h *Handler) ChapaWebhook(w http.ResponseWriter, r *http.Request) {
	h.webhook(w, r, providers.ProviderChapa)
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request, provider string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "unreadable body")
		return
	}

	var signature string
	for _, name := range signatureHeaders[provider] {
		if signature = r.Header.Get(name); signature != "" {
			break
		}
	}

	result, err := h.svc.HandleWebhook(r.Context(), provider, body, signature)
	if err != nil {
		log.Warn().Err(err).Str("provider", provider).Msg("webhook rejected")
		h.writeError(w, r, err)
		return
	}
	response.OK(w, result)
}

// Verify handles GET /payments/{provider}/verify/{reference}
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.VerifyPayment(r.Context(), chi.URLParam(r, "provider"), chi.URLParam(r, "reference"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, result)
}

// ConfirmDeposit handles POST /admin/deposits/{id}/confirm
func (h *Handler) ConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetUserID(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid transaction id")
		return
	}

	result, err := h.svc.ConfirmDeposit(r.Context(), id, adminID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, result)
}

// RejectDeposit handles POST /admin/deposits/{id}/reject
func (h *Handler) RejectDeposit(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetUserID(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid transaction id")
		return
	}

	var req rejectDepositRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	t, err := h.svc.RejectDeposit(r.Context(), id, adminID, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, wallet.NewTransactionView(*t))
}

// Receipt handles GET /admin/deposits/{id}/receipt
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid transaction id")
		return
	}

	rc, contentType, err := h.svc.OpenReceipt(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		log.Warn().Err(err).Str("transaction_id", id.String()).Msg("receipt stream interrupted")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrAmountOutOfRange):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrInvalidSignature):
		response.Unauthorized(w, "invalid signature")
	case errors.Is(err, providers.ErrInvalidPayload):
		response.BadRequest(w, "invalid webhook payload")
	case errors.Is(err, ErrAmountMismatch):
		response.Unprocessable(w, "AMOUNT_MISMATCH", err.Error())
	case errors.Is(err, ErrProviderUnavailable):
		response.BadGateway(w, "payment provider unavailable, please retry")
	case errors.Is(err, ErrInvalidReceipt):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrNotDeposit), errors.Is(err, ErrVerifyUnsupported):
		response.BadRequest(w, err.Error())
	case errors.Is(err, providers.ErrProviderNotFound):
		response.NotFound(w, "unknown payment provider")
	case errors.Is(err, transaction.ErrNotFound), errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, ErrNoReceipt), errors.Is(err, storage.ErrNotFound):
		response.NotFound(w, "not found")
	case errors.Is(err, transaction.ErrAlreadyProcessed):
		response.Error(w, http.StatusConflict, "ALREADY_PROCESSED", "transaction already processed")
	case errors.Is(err, ErrReceiptsDisabled):
		response.Error(w, http.StatusServiceUnavailable, "RECEIPTS_DISABLED", err.Error())
	case errors.Is(err, lock.ErrLocked), errors.Is(err, database.ErrTxConflict):
		response.ServiceUnavailable(w, "please retry")
	default:
		errorhandler.Internal(r.Context(), w, err)
	}
}

// Routes are mounted at /wallet/deposit.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.InitDeposit)
	r.Post("/bank", h.BankDeposit)
	r.Post("/{id}/receipt", h.AttachReceipt)
	return r
}

// WebhookRoutes returns webhook router (no auth, but signature verification)
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/telebirr", h.TelebirrWebhook)
	r.Post("/chapa", h.ChapaWebhook)
	return r
}

// PublicRoutes are mounted at /payments.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{provider}/verify/{reference}", h.Verify)
	return r
}

// RegisterAdmin adds deposit administration endpoints to an admin router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/deposits/{id}/confirm", h.ConfirmDeposit)
	r.Post("/deposits/{id}/reject", h.RejectDeposit)
	r.Get("/deposits/{id}/receipt", h.Receipt)
}
