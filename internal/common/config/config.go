// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Boards    BoardsConfig    `mapstructure:"boards"`
	GenAI     GenAIConfig     `mapstructure:"genai"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Quality   QualityConfig   `mapstructure:"quality"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// BoardsConfig identifies the two source boards and the shared join key.
// Everything else about the boards is data, not configuration.
type BoardsConfig struct {
	APIURL           string `mapstructure:"api_url"`
	APIKey           string `mapstructure:"api_key"`
	DealBoardID      string `mapstructure:"deal_board_id"`
	WorkOrderBoardID string `mapstructure:"work_order_board_id"`
	SchemaPath       string `mapstructure:"schema_path"` // optional field-mapping registry file
	PageLimit        int    `mapstructure:"page_limit"`
	Timeout          int    `mapstructure:"timeout"` // milliseconds
}

// GenAIConfig holds settings for the intent classification and narration calls.
type GenAIConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxRetries int    `mapstructure:"max_retries"`
}

type CacheConfig struct {
	Redis      RedisConfig `mapstructure:"redis"`
	TTLSeconds int         `mapstructure:"ttl_seconds"`
}

// TTL returns the board snapshot freshness window.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AnalyticsConfig exposes the analysis thresholds as configuration with the
// observed production defaults, rather than as fixed business rules.
type AnalyticsConfig struct {
	StalledAfterDays  int     `mapstructure:"stalled_after_days"`
	StaleCreatedDays  int     `mapstructure:"stale_created_days"`
	LowProbability    float64 `mapstructure:"low_probability"`    // 0-100
	TopValueQuantile  float64 `mapstructure:"top_value_quantile"` // 0-1
	HighProbability   float64 `mapstructure:"high_probability"`   // bucket boundary
	MediumProbability float64 `mapstructure:"medium_probability"` // bucket boundary
}

// QualityConfig sets the fractional reporting thresholds for the quality log.
type QualityConfig struct {
	MissingReportPct   float64 `mapstructure:"missing_report_pct"`
	UnmatchedReportPct float64 `mapstructure:"unmatched_report_pct"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
