package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// OwnerAddress is the hex identity that owns the vault registry.
	OwnerAddress string
	// VaultAddress is the hex identity the vault holds balances under.
	VaultAddress string
	// OracleAddress is the hex identity recognized as the oracle callback sender.
	OracleAddress string

	// AssetsFile is the path to the YAML asset manifest.
	AssetsFile string

	// RebalanceCron is the cron expression for scheduled rebalance attempts.
	RebalanceCron string

	// WebPort is the port for the HTTP API server.
	WebPort uint64

	// LogLevel controls zerolog verbosity ("debug", "info", ...).
	LogLevel string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	OwnerAddress, err = getEnv("VAULT_OWNER_ADDRESS")
	if err != nil {
		return err
	}

	VaultAddress, err = getEnv("VAULT_ADDRESS")
	if err != nil {
		return err
	}

	OracleAddress, err = getEnv("ORACLE_ADDRESS")
	if err != nil {
		return err
	}

	AssetsFile, err = getEnv("ASSETS_FILE")
	if err != nil {
		return err
	}

	RebalanceCron, err = getEnv("REBALANCE_CRON")
	if err != nil {
		return err
	}

	WebPort, err = getEnvAsUint64("WEB_PORT")
	if err != nil {
		return err
	}

	LogLevel, err = getEnv("LOG_LEVEL")
	if err != nil {
		return err
	}

	// Load database configuration
	if err := loadDatabaseConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("OwnerAddress", OwnerAddress).
		Str("VaultAddress", VaultAddress).
		Str("AssetsFile", AssetsFile).
		Uint64("WebPort", WebPort).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an int. Returns error if not set or invalid.
func getEnvAsInt(key string) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}
