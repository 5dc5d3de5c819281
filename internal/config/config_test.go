package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Environment: "test",
		LogLevel:    "debug",
		Data: DataConfig{
			Dir:    "data",
			Assets: map[string]string{"bitcoin": "bitcoin_data.csv"},
		},
		Analysis: AnalysisConfig{
			BBWindow:         20,
			BBStdDev:         2,
			MACDFast:         12,
			MACDSlow:         26,
			MACDSignal:       9,
			RSIWindow:        14,
			VolatilityWindow: 30,
		},
		Forecast: ForecastConfig{Model: ForecastModelHolt, Horizon: 180},
		Cache:    CacheConfig{TTL: "1h"},
	}
}

func TestLoad_WithDefaults(t *testing.T) {
	viper.Reset()
	// Clear any existing environment variables that might interfere
	os.Clearenv()

	config, err := Load()
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "data", config.Data.Dir)
	assert.Equal(t, []string{"bitcoin", "gold", "sp500"}, config.Data.AssetKeys())
	assert.Equal(t, "or_data.csv", config.Data.Assets["gold"])
	assert.Equal(t, 20, config.Analysis.BBWindow)
	assert.Equal(t, 2.0, config.Analysis.BBStdDev)
	assert.Equal(t, 12, config.Analysis.MACDFast)
	assert.Equal(t, 26, config.Analysis.MACDSlow)
	assert.Equal(t, 9, config.Analysis.MACDSignal)
	assert.Equal(t, 14, config.Analysis.RSIWindow)
	assert.Equal(t, []int{50, 200}, config.Analysis.EMASpans)
	assert.Equal(t, 30, config.Analysis.VolatilityWindow)
	assert.True(t, config.Analysis.Annualize)
	assert.Equal(t, time.Hour, config.Cache.CacheTTL())
	assert.False(t, config.Redis.Enabled)
	assert.Equal(t, ForecastModelHolt, config.Forecast.Model)
	assert.Equal(t, 180, config.Forecast.Horizon)
	assert.Equal(t, 0.5, config.Forecast.Alpha)
	assert.Equal(t, 0.1, config.Forecast.Beta)
	assert.Equal(t, 5, config.Forecast.BreakerFailures)
	assert.Equal(t, "30s", config.Forecast.BreakerCooldown)
	assert.Equal(t, 2, config.Forecast.Retries)
	assert.False(t, config.Telemetry.Enabled)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	viper.Reset()
	t.Setenv("ENVIRONMENT", "PRODUCTION")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "prod-redis.example.com")
	t.Setenv("FORECAST_HORIZON", "30")
	t.Setenv("ANALYSIS_RSI_WINDOW", "21")

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, "error", config.LogLevel)
	assert.Equal(t, 9000, config.Server.Port)
	assert.True(t, config.Redis.Enabled)
	assert.Equal(t, "prod-redis.example.com", config.Redis.Host)
	assert.Equal(t, 30, config.Forecast.Horizon)
	assert.Equal(t, 21, config.Analysis.RSIWindow)
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	yaml := `
data:
  dir: /srv/prices
  assets:
    eth: eth.csv
analysis:
  bb_window: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/prices", config.Data.Dir)
	assert.Equal(t, "eth.csv", config.Data.Assets["eth"])
	assert.Equal(t, 10, config.Analysis.BBWindow)
	assert.Equal(t, "Eth", config.Data.DisplayName("eth"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "no assets", mutate: func(c *Config) { c.Data.Assets = nil }, wantErr: "data.assets"},
		{name: "bb window", mutate: func(c *Config) { c.Analysis.BBWindow = 1 }, wantErr: "bb_window"},
		{name: "macd order", mutate: func(c *Config) { c.Analysis.MACDFast = 30 }, wantErr: "macd_fast"},
		{name: "horizon low", mutate: func(c *Config) { c.Forecast.Horizon = 0 }, wantErr: "forecast.horizon"},
		{name: "horizon high", mutate: func(c *Config) { c.Forecast.Horizon = 366 }, wantErr: "forecast.horizon"},
		{name: "unknown model", mutate: func(c *Config) { c.Forecast.Model = "prophet" }, wantErr: "forecast.model"},
		{
			name: "remote without url",
			mutate: func(c *Config) {
				c.Forecast.Model = ForecastModelRemote
				c.Forecast.ServiceURL = ""
			},
			wantErr: "service_url",
		},
		{name: "bad ttl", mutate: func(c *Config) { c.Cache.TTL = "soon" }, wantErr: "cache.ttl"},
		{name: "negative retries", mutate: func(c *Config) { c.Forecast.Retries = -1 }, wantErr: "forecast.retries"},
		{name: "bad cooldown", mutate: func(c *Config) { c.Forecast.BreakerCooldown = "later" }, wantErr: "breaker_cooldown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDataConfig_DisplayName(t *testing.T) {
	d := DataConfig{DisplayNames: map[string]string{"sp500": "S&P 500"}}
	assert.Equal(t, "S&P 500", d.DisplayName("sp500"))
	assert.Equal(t, "Crude Oil", d.DisplayName("crude_oil"))
}

func TestParseDurationOr(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseDurationOr("5s", time.Minute))
	assert.Equal(t, time.Minute, ParseDurationOr("", time.Minute))
	assert.Equal(t, time.Minute, ParseDurationOr("bogus", time.Minute))
}

func TestForecastConfig_Getters(t *testing.T) {
	c := ForecastConfig{ServiceURL: "http://forecast:3001", Timeout: 12}
	assert.Equal(t, "http://forecast:3001", c.GetServiceURL())
	assert.Equal(t, 12, c.GetTimeout())
}
