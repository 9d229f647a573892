package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abduss/stopsurvey/internal/config"
)

func TestPostgresPoolConfig(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:           "db",
		Port:           5433,
		User:           "survey",
		Password:       "secret",
		Database:       "ledgers",
		SSLMode:        "disable",
		MaxConns:       7,
		ConnectTimeout: 2 * time.Second,
	}

	poolCfg, err := postgresPoolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(7), poolCfg.MaxConns)
	assert.Equal(t, 2*time.Second, poolCfg.ConnConfig.ConnectTimeout)
	assert.Equal(t, "db", poolCfg.ConnConfig.Host)
	assert.Equal(t, uint16(5433), poolCfg.ConnConfig.Port)
	assert.Equal(t, "ledgers", poolCfg.ConnConfig.Database)
	assert.Equal(t, applicationName, poolCfg.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, healthCheckPeriod, poolCfg.HealthCheckPeriod)
}

func TestPostgresPoolConfigKeepsDriverDefaults(t *testing.T) {
	poolCfg, err := postgresPoolConfig(config.PostgresConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable",
	})
	require.NoError(t, err)
	assert.Positive(t, poolCfg.MaxConns)
}
