package referral

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDailyPoints_Capped(t *testing.T) {
	assert.Equal(t, 5, DailyPoints(1))
	assert.Equal(t, 35, DailyPoints(7))
	assert.Equal(t, DailyMaxPoints, DailyPoints(10))
	assert.Equal(t, DailyMaxPoints, DailyPoints(365))
}

func TestKeys(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.NotEqual(t, BonusKey(a, b), BonusKey(b, a))
	assert.Equal(t, "daily:"+a.String()+":2026-10-17", DailyKey(a, "2026-10-17"))
}
