package mysterybox

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinPoints(t *testing.T) {
	assert.Equal(t, 50, MinPoints(DefaultTiers))
	assert.Equal(t, 0, MinPoints(nil))
}

func TestAffordable(t *testing.T) {
	tests := []struct {
		points int
		want   []string
	}{
		{49, nil},
		{50, []string{"small"}},
		{150, []string{"small", "medium"}},
		{499, []string{"small", "medium", "large"}},
		{500, []string{"small", "medium", "large", "jackpot"}},
	}
	for _, tt := range tests {
		var got []string
		for _, tier := range Affordable(DefaultTiers, tt.points) {
			got = append(got, tier.Type)
		}
		assert.Equal(t, tt.want, got, "points=%d", tt.points)
	}
}

func TestSelect_RenormalisesOverAffordableTiers(t *testing.T) {
	// small 0.50 and medium 0.30 become 0.625 and 0.375.
	tiers := Affordable(DefaultTiers, 100)

	tier, ok := Select(tiers, 0.0)
	require.True(t, ok)
	assert.Equal(t, "small", tier.Type)

	tier, _ = Select(tiers, 0.62)
	assert.Equal(t, "small", tier.Type)

	tier, _ = Select(tiers, 0.63)
	assert.Equal(t, "medium", tier.Type)

	tier, _ = Select(tiers, 0.999999)
	assert.Equal(t, "medium", tier.Type)
}

func TestSelect_AllTiers(t *testing.T) {
	tests := []struct {
		roll float64
		want string
	}{
		{0.10, "small"},
		{0.49, "small"},
		{0.51, "medium"},
		{0.79, "medium"},
		{0.81, "large"},
		{0.94, "large"},
		{0.96, "jackpot"},
	}
	for _, tt := range tests {
		tier, ok := Select(DefaultTiers, tt.roll)
		require.True(t, ok)
		assert.Equal(t, tt.want, tier.Type, "roll=%v", tt.roll)
	}
}

func TestSelect_FallsBackToLastTier(t *testing.T) {
	tier, ok := Select(DefaultTiers, 1.0)
	require.True(t, ok)
	assert.Equal(t, "jackpot", tier.Type)

	_, ok = Select(nil, 0.5)
	assert.False(t, ok)
}

func TestOpen_BelowMinimumNeedsNoDatabase(t *testing.T) {
	svc := &Service{tiers: DefaultTiers, roll: func() float64 { return 0 }}
	_, err := svc.Open(context.Background(), uuid.New(), 49)
	assert.ErrorIs(t, err, ErrBelowMinimum)
}

func TestLedgerKey(t *testing.T) {
	id := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	assert.Equal(t, "mysterybox:7c9e6679-7425-40de-944b-e07fc1f90ae7", LedgerKey(id))
}
