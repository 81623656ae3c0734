package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/quizbirr/quizbirr-api/internal/domain/ledger"
	"github.com/quizbirr/quizbirr-api/internal/domain/user"
	"github.com/quizbirr/quizbirr-api/internal/pkg/realtime"
)

// EventWalletUpdated is pushed after every committed money movement.
const EventWalletUpdated = "wallet.updated"

// Events notifies users about committed wallet changes.
// A nil *Events is valid and does nothing.
type Events struct {
	db        *sqlx.DB
	ledger    *ledger.Service
	users     user.Repository
	publisher realtime.Publisher
}

// NewEvents creates the wallet notifier.
func NewEvents(db *sqlx.DB, ledgerSvc *ledger.Service, users user.Repository, publisher realtime.Publisher) *Events {
	if publisher == nil {
		publisher = realtime.Noop{}
	}
	return &Events{db: db, ledger: ledgerSvc, users: users, publisher: publisher}
}

// WalletUpdated publishes the user's fresh balance and points. Call only after commit.
func (e *Events) WalletUpdated(ctx context.Context, userID uuid.UUID, reference string) {
	if e == nil {
		return
	}

	balance, err := e.ledger.GetUserBalanceMinor(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("wallet event: balance read failed")
		return
	}
	points := 0
	if u, err := e.users.GetByID(ctx, e.db, userID); err == nil && u != nil {
		points = u.Points
	}

	b := NewBalance(balance, points)
	e.publisher.Publish(ctx, userID, realtime.Event{
		Type: EventWalletUpdated,
		Data: map[string]any{
			"balance":       b.Balance,
			"balance_minor": b.BalanceMinor,
			"points":        b.Points,
			"reference":     reference,
		},
	})
}
