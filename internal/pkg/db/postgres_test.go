package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gacha-bot/internal/config"
)

func TestPoolConfig_Defaults(t *testing.T) {
	pc, err := PoolConfig(&config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "gacha", Password: "secret", Name: "gacha", PoolSize: 20,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(20), pc.MaxConns)
	assert.Equal(t, int32(5), pc.MinConns)
	assert.Equal(t, defaultConnectTimeout, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, defaultMaxConnLifetime, pc.MaxConnLifetime)
	assert.Equal(t, defaultMaxConnIdleTime, pc.MaxConnIdleTime)
	assert.Equal(t, "gacha", pc.ConnConfig.Database)
}

func TestPoolConfig_Overrides(t *testing.T) {
	pc, err := PoolConfig(&config.DatabaseConfig{
		Host: "db", Port: 6543, User: "u", Name: "n", PoolSize: 2,
		ConnectTimeout: 3 * time.Second, MaxConnLifetime: time.Minute, MaxConnIdleTime: 20 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(2), pc.MaxConns)
	assert.Equal(t, int32(1), pc.MinConns)
	assert.Equal(t, 3*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, 20*time.Second, pc.MaxConnIdleTime)
	assert.Equal(t, uint16(6543), pc.ConnConfig.Port)
}
