package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/quizbirr/quizbirr-api/internal/domain/ledger"
	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
	"github.com/quizbirr/quizbirr-api/internal/domain/user"
	"github.com/quizbirr/quizbirr-api/internal/domain/wallet"
	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
	"github.com/quizbirr/quizbirr-api/internal/pkg/errorhandler"
	"github.com/quizbirr/quizbirr-api/internal/pkg/lock"
	"github.com/quizbirr/quizbirr-api/internal/pkg/logger"
	"github.com/quizbirr/quizbirr-api/internal/pkg/metrics"
	"github.com/quizbirr/quizbirr-api/internal/pkg/money"
	providers "github.com/quizbirr/quizbirr-api/internal/pkg/payment"
)

const settleLockWait = 10 * time.Second

// URLs are passed to providers when a checkout is created.
type URLs struct {
	WebhookBase string // provider -> backend notifications arrive at <WebhookBase>/<provider>
	ReturnURL   string // provider -> user after payment
}

func (u URLs) callback(provider string) string {
	if u.WebhookBase == "" {
		return ""
	}
	return strings.TrimRight(u.WebhookBase, "/") + "/" + provider
}

// Service runs deposits from checkout to settlement.
type Service struct {
	db        *sqlx.DB
	uow       database.TxRunner
	ledger    *ledger.Service
	txns      *transaction.Service
	users     user.Repository
	providers *providers.ProviderFactory
	locker    *lock.Locker
	urls      URLs
	receipts  *Receipts
	events    *wallet.Events
}

// NewService creates payment service
func NewService(db *sqlx.DB, uow database.TxRunner, ledgerSvc *ledger.Service, txns *transaction.Service, users user.Repository, factory *providers.ProviderFactory, locker *lock.Locker, urls URLs) *Service {
	return &Service{
		db:        db,
		uow:       uow,
		ledger:    ledgerSvc,
		txns:      txns,
		users:     users,
		providers: factory,
		locker:    locker,
		urls:      urls,
	}
}

// SetReceipts enables bank receipt uploads (optional)
func (s *Service) SetReceipts(r *Receipts) {
	s.receipts = r
}

// SetEvents sets the realtime notifier (optional)
func (s *Service) SetEvents(events *wallet.Events) {
	s.events = events
}

func checkAmount(amountMinor int64) error {
	if amountMinor < MinDepositMinor || amountMinor > MaxDepositMinor {
		return ErrAmountOutOfRange
	}
	return nil
}

// InitDeposit creates a pending deposit and a provider checkout for it.
// A failed provider call fails the deposit before returning ErrProviderUnavailable.
func (s *Service) InitDeposit(ctx context.Context, userID uuid.UUID, method string, amountMinor int64) (*DepositResult, error) {
	if err := checkAmount(amountMinor); err != nil {
		return nil, err
	}
	provider, err := s.providers.Get(method)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, user.ErrUserNotFound
	}

	var t *transaction.Transaction
	err = s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		t, err = s.txns.Create(ctx, tx, transaction.CreateParams{
			UserID:      userID,
			Type:        transaction.TypeDeposit,
			AmountMinor: amountMinor,
			Prefix:      transaction.PrefixDeposit,
			Description: "Deposit via " + method,
			Metadata: transaction.Metadata{Deposit: &transaction.DepositMeta{
				Method: transaction.PaymentMethod(method),
			}},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := provider.CreatePayment(ctx, providers.ProviderPaymentRequest{
		AmountMinor: amountMinor,
		Reference:   t.Reference,
		Description: fmt.Sprintf("QuizBirr wallet deposit - %s ETB", money.Format(amountMinor)),
		UserID:      userID.String(),
		PhoneNumber: u.PhoneNumber,
		CallbackURL: s.urls.callback(method),
		ReturnURL:   s.urls.ReturnURL,
	})
	observeProviderCall(method, "create_payment", start, err)
	if err != nil {
		status, body := providers.UpstreamDetails(err)
		errorhandler.LogExternalServiceError(ctx, method, "create_payment", status, err, body)
		s.failDeposit(context.WithoutCancel(ctx), t.ID, "provider checkout failed: "+err.Error())
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	err = s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		_, err := s.txns.UpdatePending(ctx, tx, t.ID, func(m *transaction.Metadata) {
			m.Deposit.CheckoutURL = resp.PaymentURL
			m.Deposit.ProviderRef = resp.PaymentID
		})
		return err
	})
	if err != nil && !errors.Is(err, transaction.ErrAlreadyProcessed) {
		// The checkout exists; the webhook settles by reference regardless.
		logger.FromContext(ctx).Warn().Err(err).Str("reference", t.Reference).Msg("failed to store checkout url")
	}

	return &DepositResult{
		TransactionID: t.ID,
		Reference:     t.Reference,
		Amount:        money.ToMajor(amountMinor),
		AmountMinor:   amountMinor,
		Method:        method,
		Status:        transaction.StatusPending,
		CheckoutURL:   resp.PaymentURL,
	}, nil
}

func observeProviderCall(provider, op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ProviderCalls.WithLabelValues(provider, op, result).Observe(time.Since(start).Seconds())
}

func (s *Service) failDeposit(ctx context.Context, id uuid.UUID, reason string) {
	err := s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		_, err := s.txns.MarkFailed(ctx, tx, id, func(m *transaction.Metadata) {
			if m.Deposit == nil {
				m.Deposit = &transaction.DepositMeta{}
			}
			m.Deposit.FailureReason = reason
		})
		return err
	})
	if err != nil && !errors.Is(err, transaction.ErrAlreadyProcessed) {
		log.Error().Err(err).Str("transaction_id", id.String()).Msg("failed to mark deposit failed")
	}
}

// ConfirmByReference settles the pending deposit with reference. ev carries what the
// provider reported and may be nil. A deposit that is no longer pending is reported as
// already processed without side effects.
func (s *Service) ConfirmByReference(ctx context.Context, reference string, ev *providers.WebhookEvent) (*SettlementResult, error) {
	release, err := s.locker.Acquire(ctx, "settle:"+reference, settleLockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	var result *SettlementResult
	err = s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		result = nil

		t, err := s.txns.LockByReference(ctx, tx, reference)
		if err != nil {
			return err
		}
		if t.Type != transaction.TypeDeposit {
			return ErrNotDeposit
		}
		if !t.IsPending() {
			result = newSettlement(t, false)
			return nil
		}
		if ev != nil && ev.AmountMinor != nil && *ev.AmountMinor != t.AmountMinor {
			return fmt.Errorf("%w: expected %s, got %s", ErrAmountMismatch,
				money.Format(t.AmountMinor), money.Format(*ev.AmountMinor))
		}

		done, err := s.settle(ctx, tx, t, func(m *transaction.Metadata) {
			if ev == nil {
				return
			}
			if ev.ExternalID != "" {
				m.Deposit.ProviderRef = ev.ExternalID
			}
			m.Deposit.ProviderStatus = ev.EventType
			m.Deposit.ProviderPayload = ev.RawData
		})
		if err != nil {
			return err
		}
		result = newSettlement(done, true)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Settled {
		s.events.WalletUpdated(ctx, result.transaction.UserID, reference)
		log.Info().
			Str("reference", reference).
			Str("user_id", result.transaction.UserID.String()).
			Int64("amount_minor", result.transaction.AmountMinor).
			Msg("deposit settled")
	}
	return result, nil
}

// settle completes t and posts platform_liability -> user wallet inside tx.
func (s *Service) settle(ctx context.Context, tx *sqlx.Tx, t *transaction.Transaction, patch transaction.Patch) (*transaction.Transaction, error) {
	done, err := s.txns.MarkCompleted(ctx, tx, t.ID, func(m *transaction.Metadata) {
		if m.Deposit == nil {
			m.Deposit = &transaction.DepositMeta{}
		}
		patch(m)
	})
	if err != nil {
		return nil, err
	}
	meta := ledger.Meta{
		"kind":           "deposit",
		"transaction_id": t.ID.String(),
	}
	if done.Metadata.Deposit != nil {
		meta["method"] = string(done.Metadata.Deposit.Method)
	}
	if _, err := s.ledger.CreditUser(ctx, tx, DepositKey(t.Reference), t.UserID, t.AmountMinor, meta); err != nil {
		return nil, err
	}
	return done, nil
}

// ConfirmDeposit is the admin settlement of a pending deposit, typically a bank transfer.
func (s *Service) ConfirmDeposit(ctx context.Context, transactionID, adminID uuid.UUID) (*SettlementResult, error) {
	var result *SettlementResult
	err := s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		result = nil

		t, err := s.txns.Lock(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if t.Type != transaction.TypeDeposit {
			return ErrNotDeposit
		}
		if !t.IsPending() {
			return fmt.Errorf("%w: %s is %s", transaction.ErrAlreadyProcessed, t.Reference, t.Status)
		}

		admin := adminID
		done, err := s.settle(ctx, tx, t, func(m *transaction.Metadata) {
			m.Deposit.ConfirmedBy = &admin
		})
		if err != nil {
			return err
		}
		result = newSettlement(done, true)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.WalletUpdated(ctx, result.transaction.UserID, result.Reference)
	log.Info().
		Str("reference", result.Reference).
		Str("admin_id", adminID.String()).
		Msg("deposit confirmed by admin")
	return result, nil
}

// RejectDeposit cancels a pending deposit without moving money.
func (s *Service) RejectDeposit(ctx context.Context, transactionID, adminID uuid.UUID, reason string) (*transaction.Transaction, error) {
	var out *transaction.Transaction
	err := s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		t, err := s.txns.Lock(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if t.Type != transaction.TypeDeposit {
			return ErrNotDeposit
		}
		admin := adminID
		out, err = s.txns.MarkCancelled(ctx, tx, transactionID, func(m *transaction.Metadata) {
			if m.Deposit == nil {
				m.Deposit = &transaction.DepositMeta{}
			}
			m.Deposit.ConfirmedBy = &admin
			m.Deposit.FailureReason = reason
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HandleWebhook verifies and applies a provider notification. Only events that
// confirm payment settle; failures fail the pending deposit; anything else is ignored.
func (s *Service) HandleWebhook(ctx context.Context, providerName string, body []byte, signature string) (*WebhookResult, error) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}
	if !provider.VerifyWebhook(body, signature) {
		metrics.Webhooks.WithLabelValues(providerName, "invalid_signature").Inc()
		return nil, ErrInvalidSignature
	}
	ev, err := provider.ParseWebhook(body)
	if err != nil {
		metrics.Webhooks.WithLabelValues(providerName, "invalid_payload").Inc()
		return nil, err
	}

	switch ev.Status {
	case providers.StatusCompleted:
	case providers.StatusFailed:
		metrics.Webhooks.WithLabelValues(providerName, "failed").Inc()
		if err := s.failByReference(ctx, ev); err != nil {
			return nil, err
		}
		return &WebhookResult{Reference: ev.Reference, Reason: "payment failed"}, nil
	default:
		metrics.Webhooks.WithLabelValues(providerName, "ignored").Inc()
		return &WebhookResult{Reference: ev.Reference, Reason: "event not handled"}, nil
	}

	res, err := s.ConfirmByReference(ctx, ev.Reference, ev)
	if err != nil {
		metrics.Webhooks.WithLabelValues(providerName, "error").Inc()
		return nil, err
	}
	if res.AlreadyProcessed {
		metrics.Webhooks.WithLabelValues(providerName, "duplicate").Inc()
		return &WebhookResult{Reference: ev.Reference, Reason: "transaction already processed"}, nil
	}
	metrics.Webhooks.WithLabelValues(providerName, "settled").Inc()
	return &WebhookResult{Processed: true, Reference: ev.Reference}, nil
}

func (s *Service) failByReference(ctx context.Context, ev *providers.WebhookEvent) error {
	release, err := s.locker.Acquire(ctx, "settle:"+ev.Reference, settleLockWait)
	if err != nil {
		return err
	}
	defer release()

	return s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		t, err := s.txns.LockByReference(ctx, tx, ev.Reference)
		if err != nil {
			return err
		}
		if t.Type != transaction.TypeDeposit {
			return ErrNotDeposit
		}
		if !t.IsPending() {
			return nil
		}
		_, err = s.txns.MarkFailed(ctx, tx, t.ID, func(m *transaction.Metadata) {
			if m.Deposit == nil {
				m.Deposit = &transaction.DepositMeta{}
			}
			m.Deposit.ProviderStatus = ev.EventType
			m.Deposit.ProviderPayload = ev.RawData
			m.Deposit.FailureReason = "provider reported failure"
		})
		return err
	})
}

// VerifyPayment polls the provider for reference and settles when it reports payment.
func (s *Service) VerifyPayment(ctx context.Context, providerName, reference string) (*SettlementResult, error) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}
	verifier, ok := provider.(providers.Verifier)
	if !ok {
		return nil, ErrVerifyUnsupported
	}

	t, err := s.txns.GetByReference(ctx, s.db, reference)
	if err != nil {
		return nil, err
	}
	if t.Type != transaction.TypeDeposit {
		return nil, ErrNotDeposit
	}
	if !t.IsPending() {
		return newSettlement(t, false), nil
	}

	start := time.Now()
	ev, err := verifier.VerifyPayment(ctx, reference)
	observeProviderCall(providerName, "verify", start, err)
	if err != nil {
		status, body := providers.UpstreamDetails(err)
		errorhandler.LogExternalServiceError(ctx, providerName, "verify", status, err, body)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if !ev.Succeeded() {
		return &SettlementResult{Reference: reference, Status: t.Status, transaction: t}, nil
	}
	return s.ConfirmByReference(ctx, reference, ev)
}

// SubmitBankDeposit stores a receipt and creates a pending bank deposit for admin review.
func (s *Service) SubmitBankDeposit(ctx context.Context, userID uuid.UUID, amountMinor int64, receipt io.Reader) (*DepositResult, error) {
	if err := checkAmount(amountMinor); err != nil {
		return nil, err
	}
	if s.receipts == nil {
		return nil, ErrReceiptsDisabled
	}

	key, err := s.receipts.Save(ctx, userID, receipt)
	if err != nil {
		return nil, err
	}

	var t *transaction.Transaction
	err = s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		t, err = s.txns.Create(ctx, tx, transaction.CreateParams{
			UserID:      userID,
			Type:        transaction.TypeDeposit,
			AmountMinor: amountMinor,
			Prefix:      transaction.PrefixDeposit,
			Description: "Deposit via bank (receipt uploaded)",
			Metadata: transaction.Metadata{Deposit: &transaction.DepositMeta{
				Method:      transaction.MethodBank,
				ReceiptPath: key,
			}},
		})
		return err
	})
	if err != nil {
		s.receipts.Delete(context.WithoutCancel(ctx), key)
		return nil, err
	}

	return &DepositResult{
		TransactionID: t.ID,
		Reference:     t.Reference,
		Amount:        money.ToMajor(amountMinor),
		AmountMinor:   amountMinor,
		Method:        string(transaction.MethodBank),
		Status:        t.Status,
	}, nil
}

// AttachReceipt adds a receipt to the user's pending deposit, turning it into a bank
// deposit awaiting admin review.
func (s *Service) AttachReceipt(ctx context.Context, userID, transactionID uuid.UUID, receipt io.Reader) (*transaction.Transaction, error) {
	if s.receipts == nil {
		return nil, ErrReceiptsDisabled
	}
	t, err := s.txns.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, transaction.ErrNotFound
	}
	if t.Type != transaction.TypeDeposit {
		return nil, ErrNotDeposit
	}
	if !t.IsPending() {
		return nil, transaction.ErrAlreadyProcessed
	}

	key, err := s.receipts.Save(ctx, userID, receipt)
	if err != nil {
		return nil, err
	}

	var previous string
	var out *transaction.Transaction
	err = s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		previous = ""
		var err error
		out, err = s.txns.UpdatePending(ctx, tx, transactionID, func(m *transaction.Metadata) {
			if m.Deposit == nil {
				m.Deposit = &transaction.DepositMeta{}
			}
			previous = m.Deposit.ReceiptPath
			m.Deposit.Method = transaction.MethodBank
			m.Deposit.ReceiptPath = key
		})
		return err
	})
	if err != nil {
		s.receipts.Delete(context.WithoutCancel(ctx), key)
		return nil, err
	}
	if previous != "" && previous != key {
		s.receipts.Delete(ctx, previous)
	}
	return out, nil
}

// OpenReceipt streams the receipt of a deposit for admins.
func (s *Service) OpenReceipt(ctx context.Context, transactionID uuid.UUID) (io.ReadCloser, string, error) {
	if s.receipts == nil {
		return nil, "", ErrReceiptsDisabled
	}
	t, err := s.txns.GetByID(ctx, transactionID)
	if err != nil {
		return nil, "", err
	}
	if t.Type != transaction.TypeDeposit {
		return nil, "", ErrNotDeposit
	}
	if t.Metadata.Deposit == nil || t.Metadata.Deposit.ReceiptPath == "" {
		return nil, "", ErrNoReceipt
	}
	return s.receipts.Open(ctx, t.Metadata.Deposit.ReceiptPath)
}
