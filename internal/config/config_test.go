package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withIsolatedHome(t *testing.T) string {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "discussiond-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	oldXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Unsetenv("XDG_CONFIG_HOME")
	t.Cleanup(func() {
		os.Setenv("HOME", oldHome)
		if oldXDG != "" {
			os.Setenv("XDG_CONFIG_HOME", oldXDG)
		}
	})
	return tmpDir
}

func TestLoadGlobalConfig(t *testing.T) {
	tmpDir := withIsolatedHome(t)

	raw := `{
		"$schema": "https://roundtable.dev/config.json",
		"server": {"addr": ":9090", "rateLimitRPS": 50},
		"provider": {
			"anthropic": {"apiKey": "sk-ant-test123"}
		},
		"scenarioDir": "/scenarios"
	}`

	configPath := filepath.Join(tmpDir, ".config", "discussiond", "discussiond.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	require.NoError(t, os.WriteFile(configPath, []byte(raw), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://roundtable.dev/config.json", cfg.Schema)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 50.0, cfg.Server.RateLimitRPS)
	assert.Equal(t, "sk-ant-test123", cfg.Provider["anthropic"].APIKey)
	assert.Equal(t, "/scenarios", cfg.ScenarioDir)
}

func TestJSONCComments(t *testing.T) {
	tmpDir := withIsolatedHome(t)

	jsonc := `{
		// a comment
		"server": {"addr": ":9091"},
		/* multi
		   line */
		"scenarioDir": "/tmp/scenarios" // trailing comment
	}`

	configPath := filepath.Join(tmpDir, ".config", "discussiond", "discussiond.jsonc")
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	require.NoError(t, os.WriteFile(configPath, []byte(jsonc), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9091", cfg.Server.Addr)
	assert.Equal(t, "/tmp/scenarios", cfg.ScenarioDir)
}

func TestProjectConfigOverridesGlobal(t *testing.T) {
	tmpDir := withIsolatedHome(t)

	globalPath := filepath.Join(tmpDir, ".config", "discussiond", "discussiond.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(globalPath), 0755))
	require.NoError(t, os.WriteFile(globalPath, []byte(`{"server":{"addr":":1111"}}`), 0644))

	projectDir := filepath.Join(tmpDir, "project")
	projectPath := filepath.Join(projectDir, ".discussiond", "discussiond.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(projectPath), 0755))
	require.NoError(t, os.WriteFile(projectPath, []byte(`{"server":{"addr":":2222"}}`), 0644))

	cfg, err := Load(projectDir)
	require.NoError(t, err)

	assert.Equal(t, ":2222", cfg.Server.Addr)
}

func TestEnvOverridesAPIKey(t *testing.T) {
	withIsolatedHome(t)

	os.Setenv("ANTHROPIC_API_KEY", "env-key")
	t.Cleanup(func() { os.Unsetenv("ANTHROPIC_API_KEY") })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Provider["anthropic"].APIKey)
}

func TestEnvOverridesAddrAndScenarioDir(t *testing.T) {
	withIsolatedHome(t)

	os.Setenv("DISCUSSIOND_ADDR", ":3030")
	os.Setenv("DISCUSSIOND_SCENARIO_DIR", "/custom/scenarios")
	t.Cleanup(func() {
		os.Unsetenv("DISCUSSIOND_ADDR")
		os.Unsetenv("DISCUSSIOND_SCENARIO_DIR")
	})

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3030", cfg.Server.Addr)
	assert.Equal(t, "/custom/scenarios", cfg.ScenarioDir)
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := withIsolatedHome(t)

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Server.Addr = ":4040"
	cfg.ScenarioDir = "/saved/scenarios"

	savePath := filepath.Join(tmpDir, "saved.json")
	require.NoError(t, Save(cfg, savePath))

	data, err := os.ReadFile(savePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), ":4040")
	assert.Contains(t, string(data), "/saved/scenarios")
}
