package mysterybox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizbirr/quizbirr-api/internal/domain/ledger"
	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
	"github.com/quizbirr/quizbirr-api/internal/domain/user"
	"github.com/quizbirr/quizbirr-api/internal/pkg/clock"
	"github.com/quizbirr/quizbirr-api/internal/pkg/testdb"
)

// Wednesday, so the week started on 2026-10-12.
var testNow = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, db *sqlx.DB, now time.Time) (*Service, *ledger.Service) {
	t.Helper()
	ledgerSvc := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, ledgerSvc.EnsureSystemAccounts(context.Background(), db))
	svc := NewService(db, testdb.TxManager(db), NewRepository(db), ledgerSvc,
		transaction.NewService(transaction.NewRepository(db)), user.NewRepository(db),
		clock.Fixed(now), time.UTC)
	return svc, ledgerSvc
}

func TestMysteryBox_OpenCreditsRewardOncePerWeek(t *testing.T) {
	db := testdb.Open(t)
	svc, ledgerSvc := newTestService(t, db, testNow)
	svc.roll = func() float64 { return 0.7 }
	ctx := context.Background()
	userID := testdb.CreateUser(t, db, 300)

	e, err := svc.CheckEligibility(ctx, userID)
	require.NoError(t, err)
	assert.True(t, e.Eligible)
	assert.Nil(t, e.NextEligibleDate)

	result, err := svc.Open(ctx, userID, 150)
	require.NoError(t, err)
	assert.Equal(t, "medium", result.RewardType)
	assert.Equal(t, int64(500), result.AmountMinor)
	assert.Equal(t, 150, result.NewPoints)
	assert.Contains(t, result.Reference, transaction.PrefixMystery)

	balance, err := ledgerSvc.GetUserBalanceMinor(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	entry, err := ledgerSvc.GetEntry(ctx, LedgerKey(result.BoxID))
	require.NoError(t, err)
	require.NotNil(t, entry)

	_, err = svc.Open(ctx, userID, 50)
	assert.ErrorIs(t, err, ErrAlreadyOpened)

	e, err = svc.CheckEligibility(ctx, userID)
	require.NoError(t, err)
	assert.False(t, e.Eligible)
	assert.True(t, e.AlreadyOpened)
	require.NotNil(t, e.NextEligibleDate)
	assert.True(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC).Equal(*e.NextEligibleDate))

	// A new week opens a new box.
	nextWeek, _ := newTestService(t, db, testNow.AddDate(0, 0, 7))
	nextWeek.roll = func() float64 { return 0 }
	_, err = nextWeek.Open(ctx, userID, 50)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalBoxesOpened)
	assert.Equal(t, 200, stats.TotalPointsSpent)
	assert.Equal(t, int64(600), stats.TotalRewardsMinor)
	assert.Len(t, stats.RewardBreakdown, 2)
}

func TestMysteryBox_RejectsMoreThanCurrentPoints(t *testing.T) {
	db := testdb.Open(t)
	svc, ledgerSvc := newTestService(t, db, testNow)
	ctx := context.Background()
	userID := testdb.CreateUser(t, db, 60)

	_, err := svc.Open(ctx, userID, 100)
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	balance, err := ledgerSvc.GetUserBalanceMinor(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	e, err := svc.CheckEligibility(ctx, userID)
	require.NoError(t, err)
	assert.True(t, e.Eligible)
}

func TestMysteryBox_ConcurrentOpensPayOnce(t *testing.T) {
	db := testdb.Open(t)
	svc, ledgerSvc := newTestService(t, db, testNow)
	svc.roll = func() float64 { return 0 }
	ctx := context.Background()
	userID := testdb.CreateUser(t, db, 1000)

	const workers = 5
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Open(ctx, userID, 50)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyOpened)
	}
	assert.Equal(t, 1, succeeded)

	balance, err := ledgerSvc.GetUserBalanceMinor(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	boxes, total, _, _, err := svc.History(ctx, userID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, boxes, 1)
}

func TestMysteryBox_ActivityMasksPhones(t *testing.T) {
	db := testdb.Open(t)
	svc, _ := newTestService(t, db, testNow)
	svc.roll = func() float64 { return 0 }
	ctx := context.Background()
	userID := testdb.CreateUser(t, db, 100)
	_, err := svc.Open(ctx, userID, 50)
	require.NoError(t, err)

	boxes, _, _, _, err := svc.Activity(ctx, 1, 100)
	require.NoError(t, err)
	require.NotEmpty(t, boxes)
	found := false
	for _, b := range boxes {
		assert.NotContains(t, b.UserPhone, "+251")
		if b.UserID == userID {
			found = true
			assert.Equal(t, 50, b.PointsSpent)
		}
	}
	assert.True(t, found)
}
