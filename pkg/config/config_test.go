package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "0.01", cfg.MinProfitThreshold.String())
	assert.Equal(t, 30, cfg.MaxDaysUntilResolution)
	assert.Equal(t, 10, cfg.NumWSConnections)
	assert.Equal(t, 10*time.Minute, cfg.MetadataRefreshEvery)
	assert.Equal(t, 30*time.Second, cfg.WatchdogInterval)
	assert.Equal(t, 60*time.Second, cfg.StaleConnTimeout)
	assert.Equal(t, "console", cfg.StorageMode)
	assert.True(t, cfg.DryRun)
	assert.False(t, cfg.Live)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("MIN_PROFIT_THRESHOLD", "0.02")
	t.Setenv("NUM_WS_CONNECTIONS", "4")
	t.Setenv("MAX_POSITION_SIZE", "250.50")
	t.Setenv("WS_RECONNECT_WAIT_CAP", "15s")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.02", cfg.MinProfitThreshold.String())
	assert.Equal(t, 4, cfg.NumWSConnections)
	assert.Equal(t, "250.5", cfg.MaxPositionSize.String())
	assert.Equal(t, 15*time.Second, cfg.WSReconnectWaitCap)
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"threshold too high", "MIN_PROFIT_THRESHOLD", "0.5", "MIN_PROFIT_THRESHOLD"},
		{"threshold negative", "MIN_PROFIT_THRESHOLD", "-0.01", "MIN_PROFIT_THRESHOLD"},
		{"max days zero", "MAX_DAYS_UNTIL_RESOLUTION", "0", "MAX_DAYS_UNTIL_RESOLUTION"},
		{"max days too large", "MAX_DAYS_UNTIL_RESOLUTION", "400", "MAX_DAYS_UNTIL_RESOLUTION"},
		{"ws connections zero", "NUM_WS_CONNECTIONS", "0", "NUM_WS_CONNECTIONS"},
		{"ws connections too many", "NUM_WS_CONNECTIONS", "21", "NUM_WS_CONNECTIONS"},
		{"bad storage mode", "STORAGE_MODE", "mysql", "STORAGE_MODE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMalformedEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("MIN_PROFIT_THRESHOLD", "not-a-number")
	t.Setenv("NUM_WS_CONNECTIONS", "many")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.01", cfg.MinProfitThreshold.String())
	assert.Equal(t, 10, cfg.NumWSConnections)
}

func TestRequireLiveCredentials(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireLiveCredentials())

	cfg.PrivateKey = "0xkey"
	cfg.APIKey = "api-key"
	cfg.APISecret = "secret"
	assert.Error(t, cfg.RequireLiveCredentials())

	cfg.APIPassphrase = "pass"
	assert.NoError(t, cfg.RequireLiveCredentials())
}

func TestOrderProxyURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty disables proxy", "", ""},
		{"socks5 passes through", "socks5://user:pw@10.0.0.1:1080", "socks5://user:pw@10.0.0.1:1080"},
		{"socks5h mapped to socks5", "socks5h://proxy.internal:1080", "socks5://proxy.internal:1080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{ProxyURL: tt.in}
			assert.Equal(t, tt.want, cfg.OrderProxyURL())
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost: "db",
		PostgresPort: "5433",
		PostgresUser: "u",
		PostgresPass: "p",
		PostgresDB:   "rarb",
		PostgresSSL:  "disable",
	}

	assert.Equal(t, "host=db port=5433 user=u password=p dbname=rarb sslmode=disable", cfg.PostgresDSN())
}
