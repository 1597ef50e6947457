package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
	"github.com/translatd/translatd/internal/json"
	"gopkg.in/yaml.v3"
)

// Load reads, parses, and normalizes the config file at path.
// JSON configs may carry comments and trailing commas (JWCC); YAML is
// selected by file extension.
func Load(path string) (*Config, error) {
	cfg, err := LoadOptional(path, false)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOptional behaves like Load but returns (nil, nil) for a missing file
// when optional is true, letting callers fall back to defaults.
func LoadOptional(path string, optional bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if isJSONConfig(path, data) {
		std, errStd := hujson.Standardize(data)
		if errStd != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, errStd)
		}
		if errJSON := json.Unmarshal(std, cfg); errJSON != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, errJSON)
		}
	} else {
		if errYAML := yaml.Unmarshal(data, cfg); errYAML != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, errYAML)
		}
	}

	cfg.Normalize()
	return cfg, nil
}

// isJSONConfig picks the parser by extension, falling back to a content
// sniff for extensionless paths.
func isJSONConfig(path string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jwcc":
		return true
	case ".yaml", ".yml":
		return false
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// GenerateDefaultConfigYAML returns a commented starter config written on
// first run.
func GenerateDefaultConfigYAML() []byte {
	return []byte(`# translatd configuration
# The server binds to loopback; it is meant to be driven by the local UI.
host: 127.0.0.1
port: 5000

# Mirror logs into a rotated file next to the binary. Remove to log to
# stdout only.
log-file: translatd.log

providers:
  - type: gemini
    # Credentials are tried in order; the first one the vendor accepts wins.
    api-keys:
      - YOUR_GEMINI_API_KEY
    # Served when live model discovery fails.
    fallback-models:
      - gemini-2.0-flash
      - gemini-1.5-pro
  # - type: openai
  #   api-key: YOUR_OPENAI_API_KEY
  #   fallback-models:
  #     - gpt-4o-mini
`)
}
