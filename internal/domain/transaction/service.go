package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/quizbirr/quizbirr-api/internal/pkg/metrics"
)

// CreateParams describes a new transaction.
type CreateParams struct {
	UserID      uuid.UUID
	Type        Type
	AmountMinor int64
	Prefix      string
	Description string
	Metadata    Metadata
}

// Service manages the transaction lifecycle.
type Service struct {
	repo *Repository
	now  func() time.Time
}

// NewService creates transaction service
func NewService(repo *Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create inserts a pending transaction with a fresh reference.
func (s *Service) Create(ctx context.Context, q sqlx.ExtContext, p CreateParams) (*Transaction, error) {
	return s.insert(ctx, q, p, StatusPending)
}

// CreateCompleted inserts a transaction that settles in the same unit of work that
// creates it, such as quiz payouts and bonuses.
func (s *Service) CreateCompleted(ctx context.Context, q sqlx.ExtContext, p CreateParams) (*Transaction, error) {
	return s.insert(ctx, q, p, StatusCompleted)
}

func (s *Service) insert(ctx context.Context, q sqlx.ExtContext, p CreateParams, status Status) (*Transaction, error) {
	if !p.Type.Valid() {
		return nil, ErrInvalidType
	}
	if err := p.Metadata.CheckShape(p.Type); err != nil {
		return nil, err
	}
	if p.Prefix == "" {
		return nil, fmt.Errorf("transaction reference prefix is required")
	}

	ref, err := NewReference(p.Prefix)
	if err != nil {
		return nil, fmt.Errorf("generate reference: %w", err)
	}

	t := &Transaction{
		ID:          uuid.New(),
		UserID:      p.UserID,
		Type:        p.Type,
		AmountMinor: p.AmountMinor,
		Status:      status,
		Reference:   ref,
		Description: p.Description,
		Metadata:    p.Metadata,
	}
	if status.IsTerminal() {
		at := s.now()
		t.ProcessedAt = &at
		metrics.Settlements.WithLabelValues(string(p.Type), string(status)).Inc()
	}

	if err := s.repo.Insert(ctx, q, t); err != nil {
		return nil, err
	}
	return t, nil
}

// MarkCompleted settles a pending transaction.
func (s *Service) MarkCompleted(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, patch Patch) (*Transaction, error) {
	return s.transition(ctx, q, id, StatusCompleted, patch)
}

// MarkFailed fails a pending transaction.
func (s *Service) MarkFailed(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, patch Patch) (*Transaction, error) {
	return s.transition(ctx, q, id, StatusFailed, patch)
}

// MarkCancelled cancels a pending transaction.
func (s *Service) MarkCancelled(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, patch Patch) (*Transaction, error) {
	return s.transition(ctx, q, id, StatusCancelled, patch)
}

func (s *Service) transition(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, to Status, patch Patch) (*Transaction, error) {
	if !to.IsTerminal() {
		return nil, ErrInvalidStatus
	}

	t, err := s.repo.GetForUpdate(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	if !t.IsPending() {
		return t, fmt.Errorf("%w: %s is %s", ErrAlreadyProcessed, t.Reference, t.Status)
	}

	if patch != nil {
		patch(&t.Metadata)
	}
	if err := t.Metadata.CheckShape(t.Type); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, q, id, to, t.Metadata)
	if err != nil {
		return nil, err
	}
	if !updated {
		return t, fmt.Errorf("%w: %s", ErrAlreadyProcessed, t.Reference)
	}

	at := s.now()
	t.Status = to
	t.ProcessedAt = &at

	metrics.Settlements.WithLabelValues(string(t.Type), string(to)).Inc()
	log.Info().
		Str("reference", t.Reference).
		Str("user_id", t.UserID.String()).
		Str("type", string(t.Type)).
		Str("status", string(to)).
		Int64("amount_minor", t.AmountMinor).
		Msg("transaction transitioned")

	return t, nil
}

// UpdatePending applies patch to a still-pending transaction without changing its status.
func (s *Service) UpdatePending(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, patch Patch) (*Transaction, error) {
	t, err := s.repo.GetForUpdate(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	if !t.IsPending() {
		return t, fmt.Errorf("%w: %s is %s", ErrAlreadyProcessed, t.Reference, t.Status)
	}

	patch(&t.Metadata)
	if err := t.Metadata.CheckShape(t.Type); err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateMetadata(ctx, q, id, t.Metadata)
	if err != nil {
		return nil, err
	}
	if !updated {
		return t, ErrAlreadyProcessed
	}
	return t, nil
}

// GetByID returns the transaction or ErrNotFound.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	t, err := s.repo.GetByID(ctx, s.repo.DB(), id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	return t, nil
}

// GetByReference returns the transaction or ErrNotFound.
func (s *Service) GetByReference(ctx context.Context, q sqlx.ExtContext, reference string) (*Transaction, error) {
	t, err := s.repo.GetByReference(ctx, q, reference)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	return t, nil
}

// LockByReference row-locks the transaction with reference, or returns ErrNotFound.
func (s *Service) LockByReference(ctx context.Context, q sqlx.ExtContext, reference string) (*Transaction, error) {
	t, err := s.repo.GetByReferenceForUpdate(ctx, q, reference)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	return t, nil
}

// Lock row-locks the transaction with id, or returns ErrNotFound.
func (s *Service) Lock(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*Transaction, error) {
	t, err := s.repo.GetForUpdate(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	return t, nil
}

// History returns the user's transactions, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, page, limit int) (*Page, error) {
	return s.List(ctx, Filter{UserID: userID, Page: page, Limit: limit})
}

// List returns a filtered page for admins.
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	f.Page, f.Limit = NormalizePage(f.Page, f.Limit)
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Page{
		Items:      items,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: TotalPages(total, f.Limit),
	}, nil
}

// ListStaleProviderDeposits returns pending telebirr and chapa deposits older than maxAge,
// oldest first. Bank deposits wait for an admin and are never returned.
func (s *Service) ListStaleProviderDeposits(ctx context.Context, maxAge time.Duration, limit int) ([]Transaction, error) {
	return s.repo.ListStaleDeposits(ctx, ProviderMethods, s.now().Add(-maxAge), limit)
}

// SumCompleted totals the user's completed transactions of type t in minor units.
func (s *Service) SumCompleted(ctx context.Context, userID uuid.UUID, t Type) (int64, error) {
	return s.repo.SumCompleted(ctx, userID, t)
}
