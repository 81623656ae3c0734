package wallet_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizbirr/quizbirr-api/internal/domain/ledger"
	"github.com/quizbirr/quizbirr-api/internal/domain/task"
	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
	"github.com/quizbirr/quizbirr-api/internal/domain/user"
	"github.com/quizbirr/quizbirr-api/internal/domain/wallet"
	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
	"github.com/quizbirr/quizbirr-api/internal/pkg/testdb"
)

type fixture struct {
	db     *sqlx.DB
	uow    *database.TxManager
	ledger *ledger.Service
	txns   *transaction.Service
	wallet *wallet.Service
	tasks  *task.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.Open(t)
	uow := testdb.TxManager(db)
	ledgerSvc := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, ledgerSvc.EnsureSystemAccounts(context.Background(), db))
	txns := transaction.NewService(transaction.NewRepository(db))
	users := user.NewRepository(db)
	taskRepo := task.NewRepository(db)

	// Guarantees at least WithdrawalTaskCount active tasks.
	for i := 0; i < wallet.WithdrawalTaskCount; i++ {
		testdb.CreateTask(t, db, 0)
	}

	return &fixture{
		db:     db,
		uow:    uow,
		ledger: ledgerSvc,
		txns:   txns,
		wallet: wallet.NewService(db, uow, ledgerSvc, txns, users, taskRepo),
		tasks:  task.NewService(uow, taskRepo, ledgerSvc, txns, users, nil),
	}
}

func (f *fixture) fund(t *testing.T, userID uuid.UUID, amountMinor int64) {
	t.Helper()
	err := f.uow.WithinTx(context.Background(), func(tx *sqlx.Tx) error {
		_, err := f.ledger.CreditUser(context.Background(), tx, "test-fund:"+uuid.NewString(), userID, amountMinor, ledger.Meta{"kind": "test"})
		return err
	})
	require.NoError(t, err)
}

func (f *fixture) approveAll(t *testing.T, userID uuid.UUID, taskIDs []uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	admin := uuid.New()
	for _, id := range taskIDs {
		sub, err := f.tasks.Submit(ctx, userID, id, "done")
		require.NoError(t, err)
		_, err = f.tasks.Review(ctx, sub.ID, admin, true, "")
		require.NoError(t, err)
	}
}

func TestWithdrawal_GatedOnTasksThenDebits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := testdb.CreateUser(t, f.db, 0)
	adminID := testdb.CreateUser(t, f.db, 0)
	f.fund(t, userID, 10000)

	w, err := f.wallet.InitiateWithdrawal(ctx, wallet.WithdrawalRequest{UserID: userID, AmountMinor: 4000, Destination: "0911000000"})
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusPending, w.Status)
	required := w.Metadata.Withdrawal.TasksRequired
	require.Len(t, required, wallet.WithdrawalTaskCount)

	// Nothing moves while pending.
	balance, err := f.ledger.GetUserBalanceMinor(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), balance)

	_, err = f.wallet.ProcessWithdrawal(ctx, wallet.WithdrawalDecision{TransactionID: w.ID, AdminID: adminID, Approved: true})
	assert.ErrorIs(t, err, wallet.ErrTasksNotApproved)

	f.approveAll(t, userID, required)

	done, err := f.wallet.ProcessWithdrawal(ctx, wallet.WithdrawalDecision{TransactionID: w.ID, AdminID: adminID, Approved: true})
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCompleted, done.Status)
	require.NotNil(t, done.Metadata.Withdrawal.ProcessedBy)
	assert.Equal(t, adminID, *done.Metadata.Withdrawal.ProcessedBy)

	balance, err = f.ledger.GetUserBalanceMinor(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), balance)

	entry, err := f.ledger.GetEntry(ctx, wallet.WithdrawalKey(w.Reference))
	require.NoError(t, err)
	require.NotNil(t, entry)

	_, err = f.wallet.ProcessWithdrawal(ctx, wallet.WithdrawalDecision{TransactionID: w.ID, AdminID: adminID, Approved: true})
	assert.ErrorIs(t, err, transaction.ErrAlreadyProcessed)
}

func TestWithdrawal_RejectMovesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := testdb.CreateUser(t, f.db, 0)
	f.fund(t, userID, 5000)

	w, err := f.wallet.InitiateWithdrawal(ctx, wallet.WithdrawalRequest{UserID: userID, AmountMinor: 5000})
	require.NoError(t, err)

	rejected, err := f.wallet.ProcessWithdrawal(ctx, wallet.WithdrawalDecision{TransactionID: w.ID, AdminID: uuid.New(), Reason: "wrong account"})
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCancelled, rejected.Status)
	assert.Equal(t, "wrong account", rejected.Metadata.Withdrawal.RejectionReason)

	balance, err := f.ledger.GetUserBalanceMinor(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)
}

func TestWithdrawal_InitiateRejectsOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := testdb.CreateUser(t, f.db, 0)
	f.fund(t, userID, 1000)

	_, err := f.wallet.InitiateWithdrawal(ctx, wallet.WithdrawalRequest{UserID: userID, AmountMinor: 1001})
	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)
	_, err = f.wallet.InitiateWithdrawal(ctx, wallet.WithdrawalRequest{UserID: userID, AmountMinor: 0})
	assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
}

func TestWithdrawal_ConcurrentApprovalsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := testdb.CreateUser(t, f.db, 0)
	f.fund(t, userID, 6000)

	// Both requests fit the balance alone; only one fits once the other is paid.
	var ids []uuid.UUID
	var required []uuid.UUID
	for i := 0; i < 2; i++ {
		w, err := f.wallet.InitiateWithdrawal(ctx, wallet.WithdrawalRequest{UserID: userID, AmountMinor: 4000})
		require.NoError(t, err)
		ids = append(ids, w.ID)
		required = w.Metadata.Withdrawal.TasksRequired
	}
	f.approveAll(t, userID, required)

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.wallet.ProcessWithdrawal(ctx, wallet.WithdrawalDecision{TransactionID: id, AdminID: uuid.New(), Approved: true})
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 1, succeeded)

	balance, err := f.ledger.GetUserBalanceMinor(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), balance)
}

func TestBalance_IncludesPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := testdb.CreateUser(t, f.db, 42)
	f.fund(t, userID, 1234)

	b, err := f.wallet.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), b.BalanceMinor)
	assert.Equal(t, "12.34", b.Balance.StringFixed(2))
	assert.Equal(t, 42, b.Points)

	_, err = f.wallet.GetBalance(ctx, uuid.New())
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}
