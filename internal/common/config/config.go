// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	NATS         NATSConfig         `mapstructure:"nats"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Chain        ChainConfig        `mapstructure:"chain"`
	Aggregator   AggregatorConfig   `mapstructure:"aggregator"`
	IPFS         IPFSConfig         `mapstructure:"ipfs"`
	Detector     DetectorConfig     `mapstructure:"detector"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Tokens       []TokenConfig      `mapstructure:"tokens"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type NATSConfig struct {
	URL            string `mapstructure:"url"`
	ChatSubject    string `mapstructure:"chat_subject"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address    string `mapstructure:"address"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	SessionTTL int    `mapstructure:"session_ttl"` // seconds
}

// --- Chain / external service sections ---

// ChainConfig holds the EVM endpoint and signing settings for the swap
// and registration agents.
type ChainConfig struct {
	RPCURL          string `mapstructure:"rpc_url"`
	ChainID         int64  `mapstructure:"chain_id"`
	PrivateKey      string `mapstructure:"private_key"`
	SPGCollection   string `mapstructure:"spg_collection"`
	RegistryAddress string `mapstructure:"registry_address"`
	Confirmations   uint64 `mapstructure:"confirmations"`
	ReceiptTimeout  int    `mapstructure:"receipt_timeout"` // milliseconds
	PollInterval    int    `mapstructure:"poll_interval"`   // milliseconds
}

type AggregatorConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxRetries int    `mapstructure:"max_retries"`
}

type IPFSConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Gateway string `mapstructure:"gateway"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type DetectorConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// OrchestratorConfig holds timeouts applied around agent parse/execute calls.
type OrchestratorConfig struct {
	ParseTimeout   int `mapstructure:"parse_timeout"`   // milliseconds
	ExecuteTimeout int `mapstructure:"execute_timeout"` // milliseconds
}

// TokenConfig is one entry of the static token registry.
type TokenConfig struct {
	Symbol   string   `mapstructure:"symbol"`
	Address  string   `mapstructure:"address"`
	Aliases  []string `mapstructure:"aliases"`
	Decimals int      `mapstructure:"decimals"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
