package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/quizbirr/quizbirr-api/internal/pkg/metrics"
)

// Service implements the double-entry engine and account provisioning.
//
// Every write takes the caller's unit-of-work handle: the ledger never opens its own
// transaction, so an entry always commits together with the business mutation it records.
type Service struct {
	repo *Repository
}

// NewService creates ledger service
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// ValidateLines checks the structural invariants of a posting.
func ValidateLines(lines []LineInput) error {
	if len(lines) < 2 {
		return ErrTooFewLines
	}

	var debit, credit int64
	for _, l := range lines {
		if l.AccountID == uuid.Nil {
			return ErrInvalidAccountID
		}
		if l.DebitMinor < 0 || l.CreditMinor < 0 {
			return ErrNegativeAmount
		}
		debit += l.DebitMinor
		credit += l.CreditMinor
	}

	if debit != credit {
		return fmt.Errorf("%w: debit %d != credit %d", ErrUnbalancedEntry, debit, credit)
	}
	if debit == 0 {
		return ErrEmptyEntry
	}
	return nil
}

// PostEntry persists a balanced entry keyed by idempotencyKey.
// When the key already exists the stored entry is returned unchanged and nothing is written.
func (s *Service) PostEntry(ctx context.Context, tx sqlx.ExtContext, idempotencyKey string, lines []LineInput, meta Meta) (*Entry, error) {
	if idempotencyKey == "" {
		return nil, ErrMissingKey
	}
	if err := ValidateLines(lines); err != nil {
		metrics.LedgerEntries.WithLabelValues("rejected").Inc()
		return nil, err
	}

	existing, err := s.repo.GetEntryByKey(ctx, tx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		metrics.LedgerEntries.WithLabelValues("replayed").Inc()
		log.Debug().Str("idempotency_key", idempotencyKey).Msg("ledger entry replayed")
		return existing, nil
	}

	if meta == nil {
		meta = Meta{}
	}
	entry := &Entry{
		ID:             uuid.New(),
		IdempotencyKey: idempotencyKey,
		Metadata:       meta,
	}

	inserted, err := s.repo.InsertEntry(ctx, tx, entry)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// A concurrent unit of work committed the same key first.
		existing, err := s.repo.GetEntryByKey(ctx, tx, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("ledger entry %q conflicted but is not visible", idempotencyKey)
		}
		metrics.LedgerEntries.WithLabelValues("replayed").Inc()
		return existing, nil
	}

	var moved int64
	entry.Lines = make([]Line, 0, len(lines))
	for _, in := range lines {
		line := Line{
			ID:          uuid.New(),
			EntryID:     entry.ID,
			AccountID:   in.AccountID,
			DebitMinor:  in.DebitMinor,
			CreditMinor: in.CreditMinor,
		}
		if err := s.repo.InsertLine(ctx, tx, &line); err != nil {
			return nil, err
		}
		moved += in.DebitMinor
		entry.Lines = append(entry.Lines, line)
	}

	metrics.LedgerEntries.WithLabelValues("posted").Inc()
	metrics.LedgerMinorUnits.WithLabelValues(meta.Kind()).Add(float64(moved))
	log.Debug().
		Str("idempotency_key", idempotencyKey).
		Int64("amount_minor", moved).
		Int("lines", len(lines)).
		Msg("ledger entry posted")

	return entry, nil
}

// EntryExists reports whether idempotencyKey has already been posted.
func (s *Service) EntryExists(ctx context.Context, q sqlx.ExtContext, idempotencyKey string) (bool, error) {
	return s.repo.EntryExists(ctx, q, idempotencyKey)
}

// GetEntry returns the entry stored under idempotencyKey, or nil.
func (s *Service) GetEntry(ctx context.Context, idempotencyKey string) (*Entry, error) {
	return s.repo.GetEntryByKey(ctx, s.repo.DB(), idempotencyKey)
}

// GetAccountByType looks up a system account by type when userID is uuid.Nil, otherwise the
// (type, user) account. Returns nil, nil if absent.
func (s *Service) GetAccountByType(ctx context.Context, q sqlx.ExtContext, t AccountType, userID uuid.UUID) (*Account, error) {
	if userID == uuid.Nil {
		if !t.IsSystem() {
			return nil, fmt.Errorf("%w: %s needs a user", ErrInvalidAccountType, t)
		}
		return s.repo.GetSystemAccount(ctx, q, t)
	}
	return s.repo.GetUserAccount(ctx, q, t, userID)
}

// SystemAccount returns the system account of type t, provisioning it when a fresh
// database has not been seeded yet. ErrAccountsMissing means provisioning itself failed.
func (s *Service) SystemAccount(ctx context.Context, q sqlx.ExtContext, t AccountType) (*Account, error) {
	acc, err := s.repo.GetSystemAccount(ctx, q, t)
	if err != nil {
		return nil, err
	}
	if acc != nil {
		return acc, nil
	}

	if err := s.repo.EnsureSystemAccount(ctx, q, t); err != nil {
		return nil, err
	}
	acc, err = s.repo.GetSystemAccount(ctx, q, t)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountsMissing, t)
	}
	return acc, nil
}

// EnsureSystemAccounts creates every system account that does not exist yet.
func (s *Service) EnsureSystemAccounts(ctx context.Context, q sqlx.ExtContext) error {
	for _, t := range SystemAccountTypes {
		if err := s.repo.EnsureSystemAccount(ctx, q, t); err != nil {
			return fmt.Errorf("ensure %s account: %w", t, err)
		}
	}
	return nil
}

// EnsureUserWallet returns the user's wallet, creating it on first use.
func (s *Service) EnsureUserWallet(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID) (*Account, error) {
	return s.repo.EnsureUserAccount(ctx, q, AccountUserWallet, userID)
}

// LockUserWallet ensures the wallet exists and row-locks it for the rest of tx.
// Money-out operations take this lock before reading the balance they check.
func (s *Service) LockUserWallet(ctx context.Context, tx sqlx.ExtContext, userID uuid.UUID) (*Account, error) {
	acc, err := s.EnsureUserWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.LockAccount(ctx, tx, acc.ID); err != nil {
		return nil, err
	}
	return acc, nil
}

// GetUserBalanceMinor computes the user's wallet balance from the ledger.
// Returns 0 when the wallet has not been provisioned.
func (s *Service) GetUserBalanceMinor(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.UserBalanceMinor(ctx, s.repo.DB(), userID)
}

// UserBalanceMinor is GetUserBalanceMinor on an explicit handle, for reads inside a unit of work.
func (s *Service) UserBalanceMinor(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID) (int64, error) {
	acc, err := s.repo.GetUserAccount(ctx, q, AccountUserWallet, userID)
	if err != nil {
		return 0, err
	}
	if acc == nil {
		return 0, nil
	}
	return s.repo.Balance(ctx, q, acc.ID)
}

// AccountBalanceMinor returns the balance of any account.
func (s *Service) AccountBalanceMinor(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return s.repo.Balance(ctx, s.repo.DB(), accountID)
}

// CreditUser posts platform_liability -> user wallet for amountMinor.
func (s *Service) CreditUser(ctx context.Context, tx sqlx.ExtContext, key string, userID uuid.UUID, amountMinor int64, meta Meta) (*Entry, error) {
	platform, err := s.SystemAccount(ctx, tx, AccountPlatformLiability)
	if err != nil {
		return nil, err
	}
	wallet, err := s.EnsureUserWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return s.PostEntry(ctx, tx, key, Transfer(platform.ID, wallet.ID, amountMinor), meta)
}

// DebitUser posts user wallet -> counterparty system account for amountMinor.
func (s *Service) DebitUser(ctx context.Context, tx sqlx.ExtContext, key string, userID uuid.UUID, to AccountType, amountMinor int64, meta Meta) (*Entry, error) {
	dest, err := s.SystemAccount(ctx, tx, to)
	if err != nil {
		return nil, err
	}
	wallet, err := s.EnsureUserWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return s.PostEntry(ctx, tx, key, Transfer(wallet.ID, dest.ID, amountMinor), meta)
}

// SystemBalance is the derived balance of one system account.
type SystemBalance struct {
	Type         AccountType `json:"type"`
	AccountID    uuid.UUID   `json:"account_id"`
	BalanceMinor int64       `json:"balance_minor"`
}

// SystemBalances reports every provisioned system account. User wallets plus these
// balances always sum to zero.
func (s *Service) SystemBalances(ctx context.Context) ([]SystemBalance, error) {
	out := make([]SystemBalance, 0, len(SystemAccountTypes))
	for _, t := range SystemAccountTypes {
		acc, err := s.GetAccountByType(ctx, s.repo.DB(), t, uuid.Nil)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			continue
		}
		bal, err := s.AccountBalanceMinor(ctx, acc.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, SystemBalance{Type: t, AccountID: acc.ID, BalanceMinor: bal})
	}
	return out, nil
}

// UnbalancedEntries audits the whole ledger and returns offending entry ids.
func (s *Service) UnbalancedEntries(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.UnbalancedEntries(ctx)
}
