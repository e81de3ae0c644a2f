package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("does-not-exist.yaml", true)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "pessimistic", cfg.Bidding.Strategy)
	assert.Equal(t, "1.00", cfg.Bidding.MinIncrement)
	assert.Equal(t, 5, cfg.Bidding.MaxRetries)
	assert.Equal(t, 25*time.Millisecond, cfg.Bidding.RetryBackoff)
	assert.Equal(t, 5*time.Second, cfg.Bidding.TxTimeout)
	assert.Equal(t, "@every 1m", cfg.Settlement.Schedule)
	assert.Equal(t, 7, cfg.Settlement.PaymentDueDays)
	assert.Equal(t, 5*time.Minute, cfg.Settlement.EndingSoonWindow)
	assert.True(t, cfg.Cron.Enabled)
	assert.Equal(t, 1024, cfg.Notify.QueueSize)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("AUCTION_BIDDING_STRATEGY", "optimistic")
	t.Setenv("AUCTION_DB_DRIVER", "memory")

	cfg, err := Load("does-not-exist.yaml", true)
	require.NoError(t, err)
	assert.Equal(t, "optimistic", cfg.Bidding.Strategy)
	assert.Equal(t, "memory", cfg.DB.Driver)
}
