package wallet_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
	"github.com/quizbirr/quizbirr-api/internal/domain/wallet"
	"github.com/quizbirr/quizbirr-api/internal/pkg/testdb"
)

func (f *fixture) pendingDeposit(t *testing.T, userID uuid.UUID, method transaction.PaymentMethod, age time.Duration) *transaction.Transaction {
	t.Helper()
	ctx := context.Background()
	dep, err := f.txns.Create(ctx, f.db, transaction.CreateParams{
		UserID:      userID,
		Type:        transaction.TypeDeposit,
		AmountMinor: 5000,
		Prefix:      transaction.PrefixDeposit,
		Metadata:    transaction.Metadata{Deposit: &transaction.DepositMeta{Method: method}},
	})
	require.NoError(t, err)
	_, err = f.db.ExecContext(ctx, `UPDATE transactions SET created_at = now() - make_interval(secs => $2) WHERE id = $1`,
		dep.ID, age.Seconds())
	require.NoError(t, err)
	return dep
}

func TestSweeper_FailsStaleProviderDepositsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := testdb.CreateUser(t, f.db, 0)

	stale := f.pendingDeposit(t, userID, transaction.MethodChapa, 3*time.Hour)
	fresh := f.pendingDeposit(t, userID, transaction.MethodTelebirr, time.Minute)
	bank := f.pendingDeposit(t, userID, transaction.MethodBank, 3*time.Hour)

	n, err := wallet.NewSweeper(f.uow, f.txns, time.Hour).Sweep(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	got, err := f.txns.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusFailed, got.Status)
	assert.NotEmpty(t, got.Metadata.Deposit.FailureReason)

	got, err = f.txns.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusPending, got.Status)

	got, err = f.txns.GetByID(ctx, bank.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusPending, got.Status)

	balance, err := f.ledger.GetUserBalanceMinor(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestSweeper_BankBacklogDoesNotBlockProviderDeposits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := testdb.CreateUser(t, f.db, 0)

	// Older than anything else in the table so they would fill an unfiltered page.
	for i := 0; i < 120; i++ {
		f.pendingDeposit(t, userID, transaction.MethodBank, 90*24*time.Hour)
	}
	dep := f.pendingDeposit(t, userID, transaction.MethodTelebirr, 2*time.Hour)

	sweeper := wallet.NewSweeper(f.uow, f.txns, time.Hour)
	for i := 0; i < 5; i++ {
		got, err := f.txns.GetByID(ctx, dep.ID)
		require.NoError(t, err)
		if got.Status != transaction.StatusPending {
			break
		}
		_, err = sweeper.Sweep(ctx)
		require.NoError(t, err)
	}

	got, err := f.txns.GetByID(ctx, dep.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusFailed, got.Status)

	page, err := f.txns.History(ctx, userID, 1, 100)
	require.NoError(t, err)
	for _, tx := range page.Items {
		if tx.Metadata.Deposit != nil && tx.Metadata.Deposit.Method == transaction.MethodBank {
			assert.Equal(t, transaction.StatusPending, tx.Status)
		}
	}
}

func TestSweeper_StartRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, wallet.NewSweeper(f.uow, f.txns, time.Hour).Start("not a schedule"))
}
