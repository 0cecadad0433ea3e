package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
organization = "Impertio"

[nextcloud]
url = "https://cloud.example.com"

[store]
data_dir = "/var/lib/talkbot"

[tasks]
close_delay = "5s"

[bots.maarten]
secret = "s1"
nextcloud_user = "maarten"
nextcloud_password = "pw1"
erpnext_user = "maarten@example.com"
working_dir = "/opt/bots/maarten"
config_dir = "/opt/bots/maarten/.config"

[bots.albert]
secret = "s2"
nextcloud_user = "albert"
nextcloud_password = "pw2"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talkbot.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "Impertio", cfg.Organization)
	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Tasks.CloseDelay)
	assert.Equal(t, 10*time.Minute, cfg.Reasoning.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Transcription.Timeout)
	assert.Equal(t, 50, cfg.Store.Window)
	assert.Equal(t, "/var/lib/talkbot/conversation_history.json", cfg.Store.HistoryPath())
	assert.Equal(t, "/var/lib/talkbot/key_facts.json", cfg.Store.FactsPath())
	assert.Equal(t, 2, cfg.Nextcloud.Retry.MaxRetries)

	want := BotIdentity{
		Name:              "maarten",
		Secret:            "s1",
		NextcloudUser:     "maarten",
		NextcloudPassword: "pw1",
		ERPNextUser:       "maarten@example.com",
		WorkingDir:        "/opt/bots/maarten",
		ConfigDir:         "/opt/bots/maarten/.config",
	}
	if diff := cmp.Diff(want, cfg.Bots["maarten"]); diff != "" {
		t.Errorf("bot identity mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"albert", "maarten"}, cfg.BotNames())
	assert.Empty(t, cfg.DefaultBot)
	assert.NoError(t, Validate(cfg))
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("TALKBOT_SERVER__PORT", "9090")
	t.Setenv("TALKBOT_BOTS__MAARTEN__SECRET", "from-env")
	t.Setenv("TALKBOT_REASONING__CLI__PATH", "/usr/local/bin/claude")

	cfg, err := LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Bots["maarten"].Secret)
	assert.Equal(t, "/usr/local/bin/claude", cfg.Reasoning.CLI.Path)
}

func TestSingleBotBecomesDefault(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
[nextcloud]
url = "https://cloud.example.com"
[bots.solo]
secret = "s"
nextcloud_user = "solo"
nextcloud_password = "pw"
`))
	require.NoError(t, err)
	assert.Equal(t, "solo", cfg.DefaultBot)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		cfg, err := LoadConfig(writeConfig(t, testConfig))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing nextcloud url", func(c *Config) { c.Nextcloud.URL = "" }},
		{"bad nextcloud scheme", func(c *Config) { c.Nextcloud.URL = "cloud.example.com" }},
		{"no bots", func(c *Config) { c.Bots = nil }},
		{"missing secret", func(c *Config) {
			b := c.Bots["albert"]
			b.Secret = ""
			c.Bots["albert"] = b
		}},
		{"missing password", func(c *Config) {
			b := c.Bots["albert"]
			b.NextcloudPassword = ""
			c.Bots["albert"] = b
		}},
		{"unknown default bot", func(c *Config) { c.DefaultBot = "henk" }},
		{"unknown reasoning backend", func(c *Config) { c.Reasoning.Backend = "magic" }},
		{"langchain without provider", func(c *Config) { c.Reasoning.Backend = "langchain" }},
		{"river without database", func(c *Config) { c.Jobs.Backend = "river" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "talkbot.toml")
	require.NoError(t, InitConfig(path))
	assert.Error(t, InitConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "maarten", cfg.DefaultBot)
	assert.NoError(t, Validate(cfg))
}
