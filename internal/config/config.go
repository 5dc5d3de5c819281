package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Data        DataConfig      `mapstructure:"data"`
	Analysis    AnalysisConfig  `mapstructure:"analysis"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Forecast    ForecastConfig  `mapstructure:"forecast"`
	Report      ReportConfig    `mapstructure:"report"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	ReadTimeout     string   `mapstructure:"read_timeout"`
	WriteTimeout    string   `mapstructure:"write_timeout"`
	ShutdownTimeout string   `mapstructure:"shutdown_timeout"`
}

// DataConfig maps asset keys to CSV files under Dir.
type DataConfig struct {
	Dir          string            `mapstructure:"dir"`
	Assets       map[string]string `mapstructure:"assets"`
	DisplayNames map[string]string `mapstructure:"display_names"`
	MaxRows      int               `mapstructure:"max_rows"`
}

type AnalysisConfig struct {
	BBWindow         int     `mapstructure:"bb_window"`
	BBStdDev         float64 `mapstructure:"bb_std_dev"`
	MACDFast         int     `mapstructure:"macd_fast"`
	MACDSlow         int     `mapstructure:"macd_slow"`
	MACDSignal       int     `mapstructure:"macd_signal"`
	RSIWindow        int     `mapstructure:"rsi_window"`
	EMASpans         []int   `mapstructure:"ema_spans"`
	SMAPeriods       []int   `mapstructure:"sma_periods"`
	ATRPeriod        int     `mapstructure:"atr_period"`
	OBVEnabled       bool    `mapstructure:"obv_enabled"`
	VolatilityWindow int     `mapstructure:"volatility_window"`
	Annualize        bool    `mapstructure:"annualize"`
	MaxParallel      int     `mapstructure:"max_parallel"`
}

type CacheConfig struct {
	TTL         string `mapstructure:"ttl"`
	RefreshCron string `mapstructure:"refresh_cron"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ForecastConfig struct {
	Model      string  `mapstructure:"model"`
	Horizon    int     `mapstructure:"horizon"`
	ServiceURL string  `mapstructure:"service_url"`
	Timeout    int     `mapstructure:"timeout"`
	Alpha      float64 `mapstructure:"alpha"`
	Beta       float64 `mapstructure:"beta"`
	// Breaker settings apply to the remote model only.
	BreakerFailures int    `mapstructure:"breaker_failures"`
	BreakerCooldown string `mapstructure:"breaker_cooldown"`
	Retries         int    `mapstructure:"retries"`
}

type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// Forecast model names.
const (
	ForecastModelHolt   = "holt"
	ForecastModelRemote = "remote"
)

// Forecast horizon bounds in days.
const (
	MinForecastHorizon = 1
	MaxForecastHorizon = 365
)

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)
	config.Forecast.Model = strings.ToLower(config.Forecast.Model)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.Data.Assets) == 0 {
		return fmt.Errorf("data.assets must list at least one asset")
	}
	if c.Analysis.BBWindow < 2 {
		return fmt.Errorf("analysis.bb_window must be at least 2, got %d", c.Analysis.BBWindow)
	}
	if c.Analysis.MACDFast >= c.Analysis.MACDSlow {
		return fmt.Errorf("analysis.macd_fast (%d) must be below analysis.macd_slow (%d)",
			c.Analysis.MACDFast, c.Analysis.MACDSlow)
	}
	if c.Analysis.RSIWindow < 1 {
		return fmt.Errorf("analysis.rsi_window must be positive, got %d", c.Analysis.RSIWindow)
	}
	if c.Analysis.VolatilityWindow < 2 {
		return fmt.Errorf("analysis.volatility_window must be at least 2, got %d", c.Analysis.VolatilityWindow)
	}
	if c.Forecast.Horizon < MinForecastHorizon || c.Forecast.Horizon > MaxForecastHorizon {
		return fmt.Errorf("forecast.horizon must be between %d and %d, got %d",
			MinForecastHorizon, MaxForecastHorizon, c.Forecast.Horizon)
	}
	switch c.Forecast.Model {
	case ForecastModelHolt:
	case ForecastModelRemote:
		if c.Forecast.ServiceURL == "" {
			return fmt.Errorf("forecast.service_url is required for the remote model")
		}
	default:
		return fmt.Errorf("unknown forecast.model %q", c.Forecast.Model)
	}
	if c.Forecast.Retries < 0 {
		return fmt.Errorf("forecast.retries must not be negative, got %d", c.Forecast.Retries)
	}
	if c.Forecast.BreakerCooldown != "" {
		if _, err := time.ParseDuration(c.Forecast.BreakerCooldown); err != nil {
			return fmt.Errorf("invalid forecast.breaker_cooldown duration: %w", err)
		}
	}
	if c.Cache.TTL != "" {
		if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
			return fmt.Errorf("invalid cache.ttl duration: %w", err)
		}
	}
	for _, d := range []string{c.Server.ReadTimeout, c.Server.WriteTimeout, c.Server.ShutdownTimeout} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("invalid server timeout: %w", err)
		}
	}
	return nil
}

// AssetKeys returns the configured asset keys in sorted order.
func (d DataConfig) AssetKeys() []string {
	keys := make([]string, 0, len(d.Assets))
	for k := range d.Assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DisplayName returns the configured label for key, or a title-cased form
// of the key itself.
func (d DataConfig) DisplayName(key string) string {
	if name, ok := d.DisplayNames[key]; ok && name != "" {
		return name
	}
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}

// CacheTTL parses Cache.TTL. Zero means entries never expire.
func (c CacheConfig) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0
	}
	return d
}

// GetServiceURL returns the remote forecaster base URL.
func (c *ForecastConfig) GetServiceURL() string {
	return c.ServiceURL
}

// GetTimeout returns the remote forecaster timeout in seconds.
func (c *ForecastConfig) GetTimeout() int {
	return c.Timeout
}

// ParseDurationOr parses s, returning fallback when s is empty or invalid.
func ParseDurationOr(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return fallback
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:8501"})
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.shutdown_timeout", "10s")

	// Data
	viper.SetDefault("data.dir", "data")
	viper.SetDefault("data.assets", map[string]string{
		"bitcoin": "bitcoin_data.csv",
		"sp500":   "s&p_500_data.csv",
		"gold":    "or_data.csv",
	})
	viper.SetDefault("data.display_names", map[string]string{
		"bitcoin": "Bitcoin",
		"sp500":   "S&P 500",
		"gold":    "Gold",
	})
	viper.SetDefault("data.max_rows", 0)

	// Analysis
	viper.SetDefault("analysis.bb_window", 20)
	viper.SetDefault("analysis.bb_std_dev", 2.0)
	viper.SetDefault("analysis.macd_fast", 12)
	viper.SetDefault("analysis.macd_slow", 26)
	viper.SetDefault("analysis.macd_signal", 9)
	viper.SetDefault("analysis.rsi_window", 14)
	viper.SetDefault("analysis.ema_spans", []int{50, 200})
	viper.SetDefault("analysis.sma_periods", []int{20, 50})
	viper.SetDefault("analysis.atr_period", 14)
	viper.SetDefault("analysis.obv_enabled", true)
	viper.SetDefault("analysis.volatility_window", 30)
	viper.SetDefault("analysis.annualize", true)
	viper.SetDefault("analysis.max_parallel", 4)

	// Cache
	viper.SetDefault("cache.ttl", "1h")
	viper.SetDefault("cache.refresh_cron", "@every 5m")

	// Redis
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Forecast
	viper.SetDefault("forecast.model", ForecastModelHolt)
	viper.SetDefault("forecast.horizon", 180)
	viper.SetDefault("forecast.service_url", "http://localhost:3001")
	viper.SetDefault("forecast.timeout", 30)
	viper.SetDefault("forecast.alpha", 0.5)
	viper.SetDefault("forecast.beta", 0.1)
	viper.SetDefault("forecast.breaker_failures", 5)
	viper.SetDefault("forecast.breaker_cooldown", "30s")
	viper.SetDefault("forecast.retries", 2)

	// Report
	viper.SetDefault("report.output_dir", "data")

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.exporter", "stdout")
	viper.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	viper.SetDefault("telemetry.service_name", "celebrum-analytics")
	viper.SetDefault("telemetry.sample_rate", 1.0)
}
