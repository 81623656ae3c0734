package transaction

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var txColumns = []string{"id", "user_id", "type", "amount", "status", "reference", "description", "metadata", "created_at", "processed_at"}

func newMockService(t *testing.T) (*Service, *sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	db := sqlx.NewDb(raw, "sqlmock")
	return NewService(NewRepository(db)), db, mock
}

func TestNewReference(t *testing.T) {
	pattern := regexp.MustCompile(`^DEP-[0-9A-F]{16}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		ref, err := NewReference(PrefixDeposit)
		require.NoError(t, err)
		assert.Regexp(t, pattern, ref)
		assert.False(t, seen[ref])
		seen[ref] = true
	}
}

func TestMetadataCheckShape(t *testing.T) {
	assert.NoError(t, Metadata{Deposit: &DepositMeta{Method: MethodBank}}.CheckShape(TypeDeposit))
	assert.NoError(t, Metadata{}.CheckShape(TypeQuiz))
	assert.NoError(t, Metadata{Reward: &RewardMeta{Source: SourceReferral}}.CheckShape(TypeReferral))
	assert.Error(t, Metadata{Quiz: &QuizMeta{}}.CheckShape(TypeDeposit))
	assert.Error(t, Metadata{Deposit: &DepositMeta{}, Reward: &RewardMeta{}}.CheckShape(TypeBonus))
	assert.ErrorIs(t, Metadata{}.CheckShape(Type("lottery")), ErrInvalidType)
}

func TestMetadataRoundTripThroughColumn(t *testing.T) {
	taskID := uuid.New()
	in := Metadata{Withdrawal: &WithdrawalMeta{TasksRequired: []uuid.UUID{taskID}}}
	v, err := in.Value()
	require.NoError(t, err)

	var out Metadata
	require.NoError(t, out.Scan(v))
	require.NotNil(t, out.Withdrawal)
	assert.Equal(t, []uuid.UUID{taskID}, out.Withdrawal.TasksRequired)
}

func TestNormalizePage(t *testing.T) {
	p, l := NormalizePage(0, 0)
	assert.Equal(t, 1, p)
	assert.Equal(t, 20, l)

	_, l = NormalizePage(3, 1000)
	assert.Equal(t, 100, l)

	assert.Equal(t, 3, TotalPages(41, 20))
	assert.Equal(t, 0, TotalPages(0, 20))
}

func TestMarkCompleted_PendingTransaction(t *testing.T) {
	svc, db, mock := newMockService(t)
	id, userID := uuid.New(), uuid.New()

	mock.ExpectQuery(`FROM transactions WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(txColumns).AddRow(
			id.String(), userID.String(), "deposit", "10.00", "pending", "DEP-00AA", "Deposit",
			[]byte(`{"deposit":{"method":"bank"}}`), time.Now(), nil))
	mock.ExpectExec("UPDATE transactions").
		WithArgs(id, StatusCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	adminID := uuid.New()
	tx, err := svc.MarkCompleted(context.Background(), db, id, func(m *Metadata) {
		m.Deposit.ConfirmedBy = &adminID
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, tx.Status)
	assert.Equal(t, int64(1000), tx.AmountMinor)
	assert.NotNil(t, tx.ProcessedAt)
	assert.Equal(t, &adminID, tx.Metadata.Deposit.ConfirmedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCompleted_TerminalTransaction(t *testing.T) {
	svc, db, mock := newMockService(t)
	id := uuid.New()

	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(txColumns).AddRow(
			id.String(), uuid.NewString(), "withdrawal", "5.00", "cancelled", "WD-01", "",
			[]byte(`{}`), time.Now(), time.Now()))

	_, err := svc.MarkCompleted(context.Background(), db, id, nil)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailed_LostRace(t *testing.T) {
	svc, db, mock := newMockService(t)
	id := uuid.New()

	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(txColumns).AddRow(
			id.String(), uuid.NewString(), "deposit", "1.00", "pending", "DEP-02", "",
			[]byte(`{"deposit":{"method":"chapa"}}`), time.Now(), nil))
	mock.ExpectExec("UPDATE transactions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := svc.MarkFailed(context.Background(), db, id, nil)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCancelled_NotFound(t *testing.T) {
	svc, db, mock := newMockService(t)
	id := uuid.New()

	mock.ExpectQuery(`FOR UPDATE`).WithArgs(id).WillReturnRows(sqlmock.NewRows(txColumns))

	_, err := svc.MarkCancelled(context.Background(), db, id, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_RejectsMismatchedMetadata(t *testing.T) {
	svc, db, mock := newMockService(t)

	_, err := svc.Create(context.Background(), db, CreateParams{
		UserID:   uuid.New(),
		Type:     TypeWithdrawal,
		Prefix:   PrefixWithdrawal,
		Metadata: Metadata{Deposit: &DepositMeta{Method: MethodBank}},
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_InsertsPending(t *testing.T) {
	svc, db, mock := newMockService(t)
	userID := uuid.New()

	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), userID, TypeDeposit, sqlmock.AnyArg(), StatusPending,
			sqlmock.AnyArg(), "Telebirr deposit", sqlmock.AnyArg(), nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	tx, err := svc.Create(context.Background(), db, CreateParams{
		UserID:      userID,
		Type:        TypeDeposit,
		AmountMinor: 2500,
		Prefix:      PrefixDeposit,
		Description: "Telebirr deposit",
		Metadata:    Metadata{Deposit: &DepositMeta{Method: MethodTelebirr}},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, tx.Status)
	assert.Nil(t, tx.ProcessedAt)
	assert.Regexp(t, `^DEP-[0-9A-F]{16}$`, tx.Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStaleProviderDeposits_FiltersMethodInQuery(t *testing.T) {
	svc, _, mock := newMockService(t)
	id := uuid.New()

	mock.ExpectQuery(`type = 'deposit' AND status = 'pending' AND created_at < \$1\s+AND metadata->'deposit'->>'method' = ANY\(\$2\)\s+ORDER BY created_at\s+LIMIT \$3`).
		WithArgs(sqlmock.AnyArg(), `{"telebirr","chapa"}`, 100).
		WillReturnRows(sqlmock.NewRows(txColumns).AddRow(
			id.String(), uuid.NewString(), "deposit", "25.00", "pending", "DEP-03", "",
			[]byte(`{"deposit":{"method":"telebirr"}}`), time.Now().Add(-48*time.Hour), nil))

	items, err := svc.ListStaleProviderDeposits(context.Background(), 24*time.Hour, 100)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, MethodTelebirr, items[0].Metadata.Deposit.Method)
	assert.NoError(t, mock.ExpectationsWereMet())
}
