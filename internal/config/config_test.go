package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QUIZ_WEIGHT_MINOR", "")
	t.Setenv("PENDING_DEPOSIT_TTL", "")
	t.Setenv("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")

	cfg := Load()

	assert.Equal(t, int64(100), cfg.QuizWeightMinor)
	assert.Equal(t, 24*time.Hour, cfg.PendingDepositTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QUIZ_WEIGHT_MINOR", "250")
	t.Setenv("CHAPA_TIMEOUT", "5s")
	t.Setenv("APP_TIMEZONE", "Nowhere/Invalid")

	cfg := Load()

	assert.Equal(t, int64(250), cfg.QuizWeightMinor)
	assert.Equal(t, 5*time.Second, cfg.ChapaTimeout)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadSweeperInProcess(t *testing.T) {
	t.Setenv("SWEEPER_IN_PROCESS", "false")
	assert.False(t, Load().SweeperInProcess)

	t.Setenv("SWEEPER_IN_PROCESS", "maybe")
	assert.True(t, Load().SweeperInProcess)
}

func TestLoadTxRetryBackoff(t *testing.T) {
	t.Setenv("DB_TX_RETRY_BACKOFF", "")
	assert.Equal(t, 20*time.Millisecond, Load().DBTxRetryBackoff)

	t.Setenv("DB_TX_RETRY_BACKOFF", "75ms")
	assert.Equal(t, 75*time.Millisecond, Load().DBTxRetryBackoff)
}
