// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like BOARDS_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored when not present.
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideFromEnv(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from multiple possible locations (running from different directories).
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "intelliquery"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.Boards.APIURL == "" {
		cfg.Boards.APIURL = "https://api.monday.com/v2"
	}
	if cfg.Boards.PageLimit == 0 {
		cfg.Boards.PageLimit = 500
	}
	if cfg.Boards.Timeout == 0 {
		cfg.Boards.Timeout = 30000
	}
	if cfg.GenAI.Model == "" {
		cfg.GenAI.Model = "gemini-1.5-flash-001"
	}
	if cfg.GenAI.Timeout == 0 {
		cfg.GenAI.Timeout = 30000
	}
	if cfg.GenAI.MaxRetries == 0 {
		cfg.GenAI.MaxRetries = 2
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 3600
	}
	if cfg.Analytics.StalledAfterDays == 0 {
		cfg.Analytics.StalledAfterDays = 90
	}
	if cfg.Analytics.StaleCreatedDays == 0 {
		cfg.Analytics.StaleCreatedDays = 180
	}
	if cfg.Analytics.LowProbability == 0 {
		cfg.Analytics.LowProbability = 30
	}
	if cfg.Analytics.TopValueQuantile == 0 {
		cfg.Analytics.TopValueQuantile = 0.75
	}
	if cfg.Analytics.HighProbability == 0 {
		cfg.Analytics.HighProbability = 70
	}
	if cfg.Analytics.MediumProbability == 0 {
		cfg.Analytics.MediumProbability = 40
	}
	if cfg.Quality.MissingReportPct == 0 {
		cfg.Quality.MissingReportPct = 10
	}
	if cfg.Quality.UnmatchedReportPct == 0 {
		cfg.Quality.UnmatchedReportPct = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Direct env fallbacks for secrets that are commonly set outside any config file.
func overrideFromEnv(cfg *Config) {
	if cfg.Boards.APIKey == "" {
		cfg.Boards.APIKey = os.Getenv("MONDAY_API_KEY")
	}
	if cfg.Boards.DealBoardID == "" {
		cfg.Boards.DealBoardID = os.Getenv("DEAL_BOARD_ID")
	}
	if cfg.Boards.WorkOrderBoardID == "" {
		cfg.Boards.WorkOrderBoardID = os.Getenv("WORK_ORDER_BOARD_ID")
	}
	if cfg.GenAI.APIKey == "" {
		cfg.GenAI.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.GenAI.BaseURL == "" {
		cfg.GenAI.BaseURL = os.Getenv("GENAI_BASE_URL")
	}
	if cfg.Cache.Redis.Address == "" {
		cfg.Cache.Redis.Address = os.Getenv("REDIS_ADDRESS")
	}
}

func validateConfig(cfg *Config) error {
	missing := []string{}
	if cfg.Boards.APIKey == "" {
		missing = append(missing, "boards.api_key")
	}
	if cfg.Boards.DealBoardID == "" {
		missing = append(missing, "boards.deal_board_id")
	}
	if cfg.Boards.WorkOrderBoardID == "" {
		missing = append(missing, "boards.work_order_board_id")
	}
	if cfg.GenAI.BaseURL == "" && cfg.GenAI.APIKey == "" {
		missing = append(missing, "genai.base_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	if cfg.Analytics.TopValueQuantile <= 0 || cfg.Analytics.TopValueQuantile >= 1 {
		return fmt.Errorf("analytics.top_value_quantile must be in (0, 1), got %v", cfg.Analytics.TopValueQuantile)
	}
	return nil
}
