package quiz

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPointsDelta(t *testing.T) {
	tests := []struct {
		correct bool
		points  int
		want    int
	}{
		{true, 20, 20},
		{false, 20, -10},
		{false, 15, -7},
		{false, 1, 0},
		{true, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PointsDelta(tt.correct, tt.points), "correct=%v points=%d", tt.correct, tt.points)
	}
}

func TestWeight_FallsBackToDefault(t *testing.T) {
	q := Quiz{}
	assert.Equal(t, int64(100), q.Weight(100))

	q.WeightMinor = sql.NullInt64{Int64: 250, Valid: true}
	assert.Equal(t, int64(250), q.Weight(100))

	q.WeightMinor = sql.NullInt64{Int64: 0, Valid: true}
	assert.Equal(t, int64(100), q.Weight(100))
}

func TestSettlementKey_DistinguishesOutcome(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "quiz:correct:"+id.String(), SettlementKey(true, id))
	assert.Equal(t, "quiz:wrong:"+id.String(), SettlementKey(false, id))
}

func TestPublic_HidesAnswer(t *testing.T) {
	q := Quiz{ID: uuid.New(), Question: "Addis Ababa is the capital of Ethiopia", Answer: true, Points: 20}
	p := q.Public()
	assert.Equal(t, q.ID, p.ID)
	assert.Equal(t, q.Question, p.Question)
	assert.Equal(t, 20, p.Points)
}
