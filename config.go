package main

import (
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/erc7824/docvault/pkg/log"
)

const (
	configDirPathEnv     = "DOCVAULT_CONFIG_DIR_PATH"
	defaultConfigDirPath = "."
)

// EnvConfig is the part of the configuration read from the environment.
type EnvConfig struct {
	PrivateKeyHex     string `env:"DOCVAULT_PRIVATE_KEY" env-required:"true"`
	KDSURL            string `env:"DOCVAULT_KDS_URL" env-required:"true"`
	RPCListenAddr     string `env:"DOCVAULT_RPC_LISTEN_ADDR" env-default:":8000"`
	MetricsListenAddr string `env:"DOCVAULT_METRICS_LISTEN_ADDR" env-default:":4242"`
	OtelEndpoint      string `env:"DOCVAULT_OTEL_ENDPOINT"`
	State             StateConfig
}

// Config represents the overall application configuration.
type Config struct {
	EnvConfig
	VetKD VetKDConfig
}

// LoadConfig loads the optional .env file from the config directory, then
// reads the environment and vetkd.yaml.
func LoadConfig(logger log.Logger) (*Config, error) {
	logger = logger.WithName("config")

	configDirPath := os.Getenv(configDirPathEnv)
	if configDirPath == "" {
		configDirPath = defaultConfigDirPath
	}

	configDotEnvPath := filepath.Join(configDirPath, ".env")
	logger.Info("loading .env file", "path", configDotEnvPath)
	if err := godotenv.Load(configDotEnvPath); err != nil {
		logger.Warn(".env file not found")
	}

	var envConf EnvConfig
	if err := cleanenv.ReadEnv(&envConf); err != nil {
		logger.Error("failed to read env", "error", err)
		return nil, err
	}

	vetkdConf, err := LoadVetKDConfig(configDirPath)
	if err != nil {
		logger.Error("failed to load key derivation config", "error", err)
		return nil, err
	}
	logger.Info("loaded key derivation config",
		"serviceID", vetkdConf.ServiceAddress(),
		"keyID", vetkdConf.KeyID,
		"purposes", len(vetkdConf.Purposes))

	return &Config{EnvConfig: envConf, VetKD: vetkdConf}, nil
}
