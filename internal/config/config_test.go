package config

import (
	"testing"
	"time"

	"github.com/tonglam/letletme-data-sub005/internal/utils/testutil"
)

func TestNew(t *testing.T) {
	require := testutil.Require(t)

	cfg, err := New()
	require.NoError(err)
	require.Equal("letletme-data", cfg.App.Name)
	require.Equal(time.August, cfg.Season.StartMonth)
	require.Equal(time.May, cfg.Season.EndMonth)
	require.Equal(3, cfg.Queue.MaxAttempts)
	require.Equal(time.Minute, cfg.Queue.BackoffBase)
	require.NotEmpty(cfg.Server.BindAddress)
	require.GreaterOrEqual(cfg.Executor.Workers, 1)
}

func TestNew_Environments(t *testing.T) {
	tests := []struct {
		env     Env
		backend QueueBackend
	}{
		{
			env:     EnvLocal,
			backend: QueueBackendMemory,
		},
		{
			env:     EnvDevelopment,
			backend: QueueBackendSQLite,
		},
		{
			env:     EnvProduction,
			backend: QueueBackendSQLite,
		},
	}
	for _, test := range tests {
		t.Run(string(test.env), func(t *testing.T) {
			require := testutil.Require(t)

			cfg, err := New(WithEnvironment(test.env))
			require.NoError(err)
			require.Equal(test.env, cfg.Env())
			require.Equal(test.backend, cfg.Queue.Backend)
		})
	}
}

func TestNew_WindowDefaults(t *testing.T) {
	require := testutil.Require(t)

	cfg, err := New()
	require.NoError(err)
	require.Equal(2*time.Hour, cfg.Windows.MatchBuffer)
	require.Equal("06:00", cfg.Windows.SelectionFallbackStart)
	require.Equal("20:00", cfg.Windows.SelectionFallbackEnd)
}
