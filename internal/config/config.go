package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/roundtable/engine/pkg/types"
)

// Load loads configuration from multiple sources, in priority order:
//  1. Global config (~/.config/discussiond/discussiond.json)
//  2. Project config (<directory>/.discussiond/discussiond.json)
//  3. Environment variables
func Load(directory string) (*types.Config, error) {
	cfg := &types.Config{
		Provider: make(map[string]types.ProviderConfig),
	}

	globalPath := GetPaths().Config
	loadConfigFile(filepath.Join(globalPath, "discussiond.json"), cfg)
	loadConfigFile(filepath.Join(globalPath, "discussiond.jsonc"), cfg)

	if directory != "" {
		loadConfigFile(filepath.Join(directory, ".discussiond", "discussiond.json"), cfg)
		loadConfigFile(filepath.Join(directory, ".discussiond", "discussiond.jsonc"), cfg)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadConfigFile loads a single config file and merges it into cfg.
func loadConfigFile(path string, cfg *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = stripJSONComments(data)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(cfg, &fileConfig)
	return nil
}

// stripJSONComments removes // and /* */ comments from JSONC.
func stripJSONComments(data []byte) []byte {
	singleLine := regexp.MustCompile(`//.*$`)
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		lines[i] = singleLine.ReplaceAll(line, nil)
	}
	data = bytes.Join(lines, []byte("\n"))

	multiLine := regexp.MustCompile(`/\*[\s\S]*?\*/`)
	return multiLine.ReplaceAll(data, nil)
}

// mergeConfig merges source into target, overwriting scalars and unioning maps.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.Server.Addr != "" {
		target.Server.Addr = source.Server.Addr
	}
	if len(source.Server.CORSOrigins) > 0 {
		target.Server.CORSOrigins = source.Server.CORSOrigins
	}
	if source.Server.RateLimitRPS > 0 {
		target.Server.RateLimitRPS = source.Server.RateLimitRPS
	}
	if source.Server.RateLimitBurst > 0 {
		target.Server.RateLimitBurst = source.Server.RateLimitBurst
	}

	if source.Provider != nil {
		if target.Provider == nil {
			target.Provider = make(map[string]types.ProviderConfig)
		}
		for k, v := range source.Provider {
			target.Provider[k] = v
		}
	}

	if source.DefaultTemperature != nil {
		target.DefaultTemperature = source.DefaultTemperature
	}
	if source.DefaultTopP != nil {
		target.DefaultTopP = source.DefaultTopP
	}
	if source.DefaultMaxContext > 0 {
		target.DefaultMaxContext = source.DefaultMaxContext
	}

	if source.EventLog.MaxSize > 0 {
		target.EventLog.MaxSize = source.EventLog.MaxSize
	}
	if source.EventLog.PruneStrategy != "" {
		target.EventLog.PruneStrategy = source.EventLog.PruneStrategy
	}

	if source.ScenarioDir != "" {
		target.ScenarioDir = source.ScenarioDir
	}
}

// providerEnvVars maps a provider id to the environment variable carrying
// its API key.
var providerEnvVars = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"ark":       "ARK_API_KEY",
	"bedrock":   "AWS_ACCESS_KEY_ID",
}

// applyEnvOverrides applies environment variable overrides. These take
// precedence over anything loaded from a config file.
func applyEnvOverrides(cfg *types.Config) {
	for providerID, envVar := range providerEnvVars {
		apiKey := os.Getenv(envVar)
		if apiKey == "" {
			continue
		}
		if cfg.Provider == nil {
			cfg.Provider = make(map[string]types.ProviderConfig)
		}
		p := cfg.Provider[providerID]
		p.APIKey = apiKey
		cfg.Provider[providerID] = p
	}

	if addr := os.Getenv("DISCUSSIOND_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if dir := os.Getenv("DISCUSSIOND_SCENARIO_DIR"); dir != "" {
		cfg.ScenarioDir = dir
	}
	if v := os.Getenv("WE_EVENT_LOG_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EventLog.MaxSize = n
		}
	}
}

// Save writes cfg as indented JSON to path, creating parent directories as
// needed.
func Save(cfg *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
