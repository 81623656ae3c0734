package referral

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizbirr/quizbirr-api/internal/domain/ledger"
	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
	"github.com/quizbirr/quizbirr-api/internal/domain/user"
	"github.com/quizbirr/quizbirr-api/internal/pkg/testdb"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, clk *stepClock) (*Service, *sqlx.DB, *ledger.Service) {
	t.Helper()
	db := testdb.Open(t)
	ledgerSvc := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, ledgerSvc.EnsureSystemAccounts(context.Background(), db))
	txns := transaction.NewService(transaction.NewRepository(db))
	svc := NewService(db, testdb.TxManager(db), NewRepository(db), ledgerSvc, txns, user.NewRepository(db), clk, time.UTC)
	return svc, db, ledgerSvc
}

func TestApplyCode(t *testing.T) {
	svc, db, _ := newTestService(t, &stepClock{now: time.Now()})
	ctx := context.Background()
	referrer := testdb.CreateUser(t, db, 0)
	newcomer := testdb.CreateUser(t, db, 0)
	code := testdb.ReferralCode(referrer)

	assert.ErrorIs(t, svc.ApplyCode(ctx, newcomer, "NOPE0000000"), ErrInvalidCode)
	assert.ErrorIs(t, svc.ApplyCode(ctx, referrer, code), ErrSelfReferral)
	require.NoError(t, svc.ApplyCode(ctx, newcomer, code))
	assert.ErrorIs(t, svc.ApplyCode(ctx, newcomer, code), ErrAlreadyReferred)

	st, err := svc.Stats(ctx, referrer)
	require.NoError(t, err)
	assert.Equal(t, code, st.ReferralCode)
	assert.Equal(t, 1, st.TotalReferrals)
}

func TestAwardBonus_PaysOnce(t *testing.T) {
	svc, db, ledgerSvc := newTestService(t, &stepClock{now: time.Now()})
	ctx := context.Background()
	referrer := testdb.CreateUser(t, db, 0)
	referred := testdb.CreateUserWithReferrer(t, db, 0, testdb.ReferralCode(referrer))

	const calls = 4
	var wg sync.WaitGroup
	results := make([]*BonusResult, calls)
	errs := make([]error, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.AwardBonus(ctx, referred)
		}(i)
	}
	wg.Wait()

	awarded := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i].Awarded {
			awarded++
		} else {
			assert.Equal(t, ReasonAlreadyAwarded, results[i].Reason)
		}
	}
	assert.Equal(t, 1, awarded)

	balance, err := ledgerSvc.GetUserBalanceMinor(ctx, referrer)
	require.NoError(t, err)
	assert.Equal(t, int64(BonusMinor), balance)

	var points int
	require.NoError(t, db.Get(&points, `SELECT points FROM users WHERE id = $1`, referrer))
	assert.Equal(t, BonusPoints, points)

	st, err := svc.Stats(ctx, referrer)
	require.NoError(t, err)
	assert.Equal(t, int64(BonusMinor), st.TotalEarningsMinor)
	assert.Equal(t, 1, st.TotalReferrals)
}

func TestAwardBonus_NoReferrer(t *testing.T) {
	svc, db, _ := newTestService(t, &stepClock{now: time.Now()})
	ctx := context.Background()
	loner := testdb.CreateUser(t, db, 0)

	res, err := svc.AwardBonus(ctx, loner)
	require.NoError(t, err)
	assert.False(t, res.Awarded)
	assert.Equal(t, ReasonNoReferrer, res.Reason)

	_, err = svc.AwardBonus(ctx, uuid.New())
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestClaimDailyBonus_Streak(t *testing.T) {
	clk := &stepClock{now: time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)}
	svc, db, ledgerSvc := newTestService(t, clk)
	ctx := context.Background()
	userID := testdb.CreateUser(t, db, 0)

	res, err := svc.ClaimDailyBonus(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, 5, res.PointsAwarded)
	assert.Equal(t, int64(50), res.AmountMinor)

	_, err = svc.ClaimDailyBonus(ctx, userID)
	assert.ErrorIs(t, err, ErrDailyBonusClaimed)

	clk.now = clk.now.Add(24 * time.Hour)
	res, err = svc.ClaimDailyBonus(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Streak)
	assert.Equal(t, 10, res.PointsAwarded)
	assert.Equal(t, 15, res.NewPoints)

	// A missed day resets the streak.
	clk.now = clk.now.Add(48 * time.Hour)
	res, err = svc.ClaimDailyBonus(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)

	balance, err := ledgerSvc.GetUserBalanceMinor(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(50+100+50), balance)
}
