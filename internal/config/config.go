package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Weather     WeatherConfig   `mapstructure:"weather"`
	Detection   DetectionConfig `mapstructure:"detection"`
	Baseline    BaselineConfig  `mapstructure:"baseline"`
	Forecast    ForecastConfig  `mapstructure:"forecast"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WeatherConfig struct {
	ServiceURL      string `mapstructure:"service_url"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	MatchToleranceM int    `mapstructure:"match_tolerance_minutes"`
}

// DetectionConfig carries the tuning defaults for new systems. The constants
// are tuning choices, not contracts, so they are configurable here with the
// shipped values as defaults.
type DetectionConfig struct {
	ZScoreThreshold      float64 `mapstructure:"z_score_threshold"`
	DeviationThreshold   float64 `mapstructure:"deviation_threshold"`
	DegradationSlope     float64 `mapstructure:"degradation_slope"`
	DeratingFactor       float64 `mapstructure:"derating_factor"`
	MinIrradianceWM2     float64 `mapstructure:"min_irradiance_wm2"`
	MinTrendSamples      int     `mapstructure:"min_trend_samples"`
	PerformanceRatioMin  float64 `mapstructure:"performance_ratio_min"`
	VoltageMinV          float64 `mapstructure:"voltage_min_v"`
	VoltageMaxV          float64 `mapstructure:"voltage_max_v"`
	FrequencyMinHz       float64 `mapstructure:"frequency_min_hz"`
	FrequencyMaxHz       float64 `mapstructure:"frequency_max_hz"`
	ACDCToleranceFrac    float64 `mapstructure:"ac_dc_tolerance_frac"`
	MaxEfficiency        float64 `mapstructure:"max_efficiency"`
	MaxAnomaliesPerHour  int     `mapstructure:"max_anomalies_per_hour"`
	MaxAnomaliesPerDay   int     `mapstructure:"max_anomalies_per_day"`
	CooldownMinutes      int     `mapstructure:"cooldown_minutes"`
	HistoryCacheSize     int     `mapstructure:"history_cache_size"`
	EnergyPriceKWh       float64 `mapstructure:"energy_price_kwh"`
	CO2FactorKgPerKWh    float64 `mapstructure:"co2_factor_kg_per_kwh"`
	ScoreThresholdInfo   float64 `mapstructure:"score_threshold_info"`
	ScoreThresholdWarn   float64 `mapstructure:"score_threshold_warning"`
	ScoreThresholdCrit   float64 `mapstructure:"score_threshold_critical"`
	ImpactMinProdLossKWh float64 `mapstructure:"impact_min_production_loss_kwh"`
	ImpactMinEffDropPct  float64 `mapstructure:"impact_min_efficiency_drop_pct"`
	ImpactMinFinancial   float64 `mapstructure:"impact_min_financial"`
}

type BaselineConfig struct {
	WindowDays        int `mapstructure:"window_days"`
	MinimumDataPoints int `mapstructure:"minimum_data_points"`
	CacheTTLMinutes   int `mapstructure:"cache_ttl_minutes"`
}

type ForecastConfig struct {
	MovingAverageWindow int     `mapstructure:"moving_average_window"`
	SeasonalMinSamples  int     `mapstructure:"seasonal_min_samples"`
	ConfidenceHour      float64 `mapstructure:"confidence_hour"`
	ConfidenceDay       float64 `mapstructure:"confidence_day"`
	ConfidenceWeek      float64 `mapstructure:"confidence_week"`
	ConfidenceMonth     float64 `mapstructure:"confidence_month"`
	WeatherRangeFrac    float64 `mapstructure:"weather_range_frac"`
	CacheTTLMinutes     int     `mapstructure:"cache_ttl_minutes"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

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

	config.Environment = strings.ToLower(config.Environment)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Baseline.MinimumDataPoints < 2 {
		return fmt.Errorf("baseline.minimum_data_points must be at least 2, got %d", c.Baseline.MinimumDataPoints)
	}
	if !(c.Detection.ScoreThresholdInfo < c.Detection.ScoreThresholdWarn &&
		c.Detection.ScoreThresholdWarn < c.Detection.ScoreThresholdCrit) {
		return fmt.Errorf("detection score thresholds must be strictly increasing")
	}
	if c.Detection.ZScoreThreshold <= 0 {
		return fmt.Errorf("detection.z_score_threshold must be positive")
	}
	if c.Forecast.SeasonalMinSamples < 1 {
		return fmt.Errorf("forecast.seasonal_min_samples must be positive")
	}
	return nil
}

// WeatherTimeout returns the weather client timeout as a duration.
func (c *WeatherConfig) WeatherTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MatchTolerance returns the weather sample matching window as a duration.
func (c *WeatherConfig) MatchTolerance() time.Duration {
	return time.Duration(c.MatchToleranceM) * time.Minute
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "heliowatch")
	viper.SetDefault("database.sslmode", "disable")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Weather integration
	viper.SetDefault("weather.service_url", "http://localhost:3001")
	viper.SetDefault("weather.timeout_seconds", 10)
	viper.SetDefault("weather.match_tolerance_minutes", 30)

	// Detection tuning
	viper.SetDefault("detection.z_score_threshold", 2.5)
	viper.SetDefault("detection.deviation_threshold", 0.20)
	viper.SetDefault("detection.degradation_slope", -0.01)
	viper.SetDefault("detection.derating_factor", 0.8)
	viper.SetDefault("detection.min_irradiance_wm2", 100.0)
	viper.SetDefault("detection.min_trend_samples", 10)
	viper.SetDefault("detection.performance_ratio_min", 0.5)
	viper.SetDefault("detection.voltage_min_v", 200.0)
	viper.SetDefault("detection.voltage_max_v", 260.0)
	viper.SetDefault("detection.frequency_min_hz", 49.0)
	viper.SetDefault("detection.frequency_max_hz", 61.0)
	viper.SetDefault("detection.ac_dc_tolerance_frac", 0.05)
	viper.SetDefault("detection.max_efficiency", 0.25)
	viper.SetDefault("detection.max_anomalies_per_hour", 5)
	viper.SetDefault("detection.max_anomalies_per_day", 20)
	viper.SetDefault("detection.cooldown_minutes", 30)
	viper.SetDefault("detection.history_cache_size", 256)
	viper.SetDefault("detection.energy_price_kwh", 0.15)
	viper.SetDefault("detection.co2_factor_kg_per_kwh", 0.4)
	viper.SetDefault("detection.score_threshold_info", 0.2)
	viper.SetDefault("detection.score_threshold_warning", 0.5)
	viper.SetDefault("detection.score_threshold_critical", 0.8)
	viper.SetDefault("detection.impact_min_production_loss_kwh", 0.5)
	viper.SetDefault("detection.impact_min_efficiency_drop_pct", 2.0)
	viper.SetDefault("detection.impact_min_financial", 1.0)

	// Baseline
	viper.SetDefault("baseline.window_days", 30)
	viper.SetDefault("baseline.minimum_data_points", 100)
	viper.SetDefault("baseline.cache_ttl_minutes", 60)

	// Forecast
	viper.SetDefault("forecast.moving_average_window", 7)
	viper.SetDefault("forecast.seasonal_min_samples", 365)
	viper.SetDefault("forecast.confidence_hour", 0.85)
	viper.SetDefault("forecast.confidence_day", 0.75)
	viper.SetDefault("forecast.confidence_week", 0.65)
	viper.SetDefault("forecast.confidence_month", 0.55)
	viper.SetDefault("forecast.weather_range_frac", 0.20)
	viper.SetDefault("forecast.cache_ttl_minutes", 15)

	// Telemetry export
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	viper.SetDefault("telemetry.service_name", "heliowatch")
}
