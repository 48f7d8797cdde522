// Package config loads funding-oracle configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for funding-oracle.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values. Secrets (passwords, API
// keys, the chain signing key) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// MigrationsPath is the directory holding SQL migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// Arkiv chain-state store configuration
	Arkiv ArkivConfig `yaml:"arkiv"`

	// AI scoring configuration
	AI AIConfig `yaml:"ai"`

	// Escrow deployer configuration
	Escrow EscrowConfig `yaml:"escrow"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"oracle"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"funding_oracle"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// ArkivConfig holds chain-state store settings. The store assigns an immutable
// entity key per created record; all point-reads go through that key.
type ArkivConfig struct {
	// RPCURL is the Arkiv JSON-RPC endpoint.
	RPCURL string `yaml:"rpc_url" env:"ARKIV_RPC_URL" env-default:"https://mendoza.hoodi.arkiv.network/rpc"`
	// PrivateKey signs entity writes. Secret - env only.
	PrivateKey string `yaml:"-" env:"ARKIV_PRIVATE_KEY"`
	// AccountName labels the signing account on the node.
	AccountName string `yaml:"account_name" env:"ARKIV_ACCOUNT_NAME" env-default:"funding-oracle"`
	// TimeoutSeconds bounds each RPC call.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"ARKIV_TIMEOUT_SECONDS" env-default:"30"`
}

// Timeout returns the per-call deadline for chain-state operations.
func (c *ArkivConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AIConfig holds AI scoring service settings. When Endpoint is empty the
// evaluation coordinator falls back to the built-in heuristic scorer.
type AIConfig struct {
	// Provider selects the client implementation: "openai" (any
	// OpenAI-compatible endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`
	Endpoint string `yaml:"endpoint" env:"AI_ENDPOINT" env-default:""`
	Model    string `yaml:"model" env:"AI_MODEL" env-default:"gpt-4o-mini"`
	APIKey   string `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML
	// TimeoutSeconds bounds each scoring call.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"AI_TIMEOUT_SECONDS" env-default:"60"`
}

// Timeout returns the per-call deadline for scoring operations.
func (c *AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EscrowConfig holds escrow deployer settings.
type EscrowConfig struct {
	// DeployerURL is the base URL of the escrow deployer service.
	DeployerURL string `yaml:"deployer_url" env:"ESCROW_DEPLOYER_URL" env-default:"http://localhost:9944"`
	// Chain is the target chain identifier, fixed at aggregate creation.
	Chain string `yaml:"chain" env:"ESCROW_CHAIN" env-default:"asset_hub"`
	// MilestoneCount is how many release tranches the contract is split into.
	MilestoneCount int `yaml:"milestone_count" env:"ESCROW_MILESTONE_COUNT" env-default:"4"`
	// TimeoutSeconds bounds each deployment call.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"ESCROW_TIMEOUT_SECONDS" env-default:"120"`
}

// Timeout returns the per-call deadline for deployment operations.
func (c *EscrowConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads configuration from config.yaml with environment variable
// overrides. A missing config.yaml is not an error; everything has an env
// binding and a default. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	return cfg, nil
}
