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

	// Enable ENV override like AGGREGATOR_API_KEY
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

	// Environment-specific overlay, ignored when not present
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from multiple possible locations (for running from different directories)
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

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "intent-orchestrator"
	}
	if cfg.App.MetricsPort == 0 {
		cfg.App.MetricsPort = 9102
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://127.0.0.1:4222"
	}
	if cfg.NATS.ChatSubject == "" {
		cfg.NATS.ChatSubject = "chat.prompt"
	}
	if cfg.NATS.RequestTimeout == 0 {
		cfg.NATS.RequestTimeout = 30000
	}
	if cfg.Database.Redis.SessionTTL == 0 {
		cfg.Database.Redis.SessionTTL = 3600
	}
	if cfg.Chain.Confirmations == 0 {
		cfg.Chain.Confirmations = 1
	}
	if cfg.Chain.ReceiptTimeout == 0 {
		cfg.Chain.ReceiptTimeout = 90000
	}
	if cfg.Chain.PollInterval == 0 {
		cfg.Chain.PollInterval = 1500
	}
	if cfg.Aggregator.Timeout == 0 {
		cfg.Aggregator.Timeout = 15000
	}
	if cfg.Aggregator.MaxRetries == 0 {
		cfg.Aggregator.MaxRetries = 3
	}
	if cfg.IPFS.Timeout == 0 {
		cfg.IPFS.Timeout = 30000
	}
	if cfg.Detector.Timeout == 0 {
		cfg.Detector.Timeout = 10000
	}
	if cfg.Orchestrator.ParseTimeout == 0 {
		cfg.Orchestrator.ParseTimeout = 5000
	}
	if cfg.Orchestrator.ExecuteTimeout == 0 {
		cfg.Orchestrator.ExecuteTimeout = 180000
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Aggregator.APIKey == "" {
		if val := os.Getenv("AGGREGATOR_API_KEY"); val != "" {
			cfg.Aggregator.APIKey = val
		}
	}
	if cfg.IPFS.APIKey == "" {
		if val := os.Getenv("PINNING_API_KEY"); val != "" {
			cfg.IPFS.APIKey = val
		}
	}
	if cfg.Detector.APIKey == "" {
		if val := os.Getenv("DETECTOR_API_KEY"); val != "" {
			cfg.Detector.APIKey = val
		}
	}
	if cfg.Chain.PrivateKey == "" {
		if val := os.Getenv("CHAIN_PRIVATE_KEY"); val != "" {
			cfg.Chain.PrivateKey = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	seen := make(map[string]bool, len(cfg.Tokens))
	for i, tok := range cfg.Tokens {
		if tok.Symbol == "" {
			return fmt.Errorf("tokens[%d]: symbol is required", i)
		}
		if tok.Address == "" {
			return fmt.Errorf("tokens[%d] (%s): address is required", i, tok.Symbol)
		}
		key := strings.ToLower(tok.Symbol)
		if seen[key] {
			return fmt.Errorf("tokens[%d]: duplicate symbol %q", i, tok.Symbol)
		}
		seen[key] = true
	}
	return nil
}
