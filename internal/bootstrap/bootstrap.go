// Package bootstrap performs the one-time startup sequence shared by all
// commands: load .env, resolve and read the config file, apply environment
// overrides. Configuration is read here exactly once; nothing re-reads it
// while the process runs.
package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/translatd/translatd/internal/cli/env"
	"github.com/translatd/translatd/internal/config"
	log "github.com/translatd/translatd/internal/logging"
)

// Result is the bootstrapped application state.
type Result struct {
	Config         *config.Config
	ConfigFilePath string
}

// Bootstrap loads the configuration for one command invocation. An explicit
// configPath must exist; with no path the working directory is searched for
// config.json, config.yaml, then config.yml, and a starter config is written
// on first run.
func Bootstrap(configPath string) (*Result, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warnf("failed to load .env file")
		}
	}

	var cfg *config.Config
	var configFilePath string

	if configPath != "" {
		configFilePath = configPath
		cfg, err = config.Load(configPath)
	} else {
		configFilePath, cfg, err = loadDefaultConfig(wd)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	applyEnvOverrides(cfg)
	cfg.Normalize()

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", cfg.StateDir, err)
	}
	if cfg.StoreDSN == "" {
		cfg.StoreDSN = "sqlite://" + filepath.Join(cfg.StateDir, "translatd.db")
	}

	return &Result{Config: cfg, ConfigFilePath: configFilePath}, nil
}

// loadDefaultConfig picks the first config file present in the working
// directory. When none exists a commented starter config is written so the
// first run leaves something to edit.
func loadDefaultConfig(wd string) (string, *config.Config, error) {
	candidates := []string{
		filepath.Join(wd, "config.json"),
		filepath.Join(wd, "config.yaml"),
		filepath.Join(wd, "config.yml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			cfg, err := config.Load(path)
			return path, cfg, err
		}
	}

	path := candidates[1]
	autoInitConfig(path)
	cfg, err := config.LoadOptional(path, true)
	return path, cfg, err
}

func autoInitConfig(path string) {
	if err := os.WriteFile(path, config.GenerateDefaultConfigYAML(), 0o600); err != nil {
		log.WithError(err).Warnf("could not write starter config %s", path)
		return
	}
	log.Infof("created starter config at %s", path)
}

// applyEnvOverrides lets deployments adjust the file config without editing
// it. Credential values are never logged, only counted.
func applyEnvOverrides(cfg *config.Config) {
	if host, ok := env.LookupEnv("TRANSLATD_HOST"); ok {
		cfg.Host = host
		log.Infof("host overridden by env: %s", host)
	}
	if port, ok := env.LookupEnvInt("TRANSLATD_PORT"); ok {
		cfg.Port = port
		log.Infof("port overridden by env: %d", port)
	}
	if debug, ok := env.LookupEnvBool("TRANSLATD_DEBUG"); ok {
		cfg.Debug = debug
		log.Infof("debug overridden by env: %v", debug)
	}
	if logFile, ok := env.LookupEnv("TRANSLATD_LOG_FILE"); ok {
		cfg.LogFile = logFile
		log.Infof("log file overridden by env: %s", logFile)
	}
	if stateDir, ok := env.LookupEnv("TRANSLATD_STATE_DIR"); ok {
		cfg.StateDir = stateDir
		log.Infof("state dir overridden by env: %s", stateDir)
	}
	if dsn, ok := env.LookupEnv("TRANSLATD_STORE_DSN"); ok {
		cfg.StoreDSN = dsn
		log.Infof("store DSN overridden by env")
	}
	if name, ok := env.LookupEnv("TRANSLATD_DEFAULT_PROVIDER"); ok {
		cfg.DefaultProvider = name
		log.Infof("default provider overridden by env: %s", name)
	}
	overrideProviderKeys(cfg, "TRANSLATD_GEMINI_API_KEYS", config.ProviderTypeGemini)
	overrideProviderKeys(cfg, "TRANSLATD_OPENAI_API_KEYS", config.ProviderTypeOpenAI)
}

// overrideProviderKeys replaces the credential list of the first provider of
// the given type, adding the provider when the file config lacks one.
func overrideProviderKeys(cfg *config.Config, envName string, providerType config.ProviderType) {
	raw, ok := env.LookupEnv(envName)
	if !ok {
		return
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(k); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	if len(keys) == 0 {
		return
	}

	for i := range cfg.Providers {
		if cfg.Providers[i].Type == providerType {
			cfg.Providers[i].APIKey = ""
			cfg.Providers[i].APIKeys = keys
			log.Infof("%s credentials overridden by env: %d key(s)", providerType, len(keys))
			return
		}
	}
	cfg.Providers = append(cfg.Providers, config.Provider{Type: providerType, APIKeys: keys})
	log.Infof("%s provider added from env: %d key(s)", providerType, len(keys))
}
