package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "TELEGRAM_BOT_TOKEN", "TRADESTEIN_TOKEN_SALT", "TRADESTEIN_DB", "PORT", "TRADESTEIN_PORT"} {
		t.Setenv(key, "")
	}
}

func TestLoad_CreatesTemplatesAndUsesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "config.toml"))
	info, err := os.Stat(filepath.Join(dir, "credentials.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	assert.Equal(t, dir, cfg.Dir)
	assert.Equal(t, 8787, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "journal.db"), cfg.Store.Path)
	assert.Equal(t, 50, cfg.AI.Window)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 720*time.Hour, cfg.Security.SessionTTL)
	assert.Equal(t, "0 0 * * * *", cfg.Scheduler.PurgeSessions)
	assert.False(t, cfg.HasOpenAI())

	// Credentials template carries a generated salt usable by serve.
	assert.Len(t, cfg.Credentials.TokenSalt, 48)
	assert.NoError(t, cfg.ValidateForServe())

	// A second load reads the written templates back.
	again, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.Credentials.TokenSalt, again.Credentials.TokenSalt)
	assert.Equal(t, cfg.Server, again.Server)
}

func TestLoad_ReadsFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[server]
port = 9000
ai_burst = 2

[ai]
window = 20
timeout = "5s"

[logging]
level = "debug"

[scheduler]
digest = ""

[notifications]
webhook_url = "https://hooks.example.com/digest"
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "credentials.toml"), []byte(`
token_salt = "0123456789abcdef0123"

[openai]
api_key = "sk-file"

[telegram]
bot_token = "123:abc"
`), 0600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Server.AIBurst)
	assert.Equal(t, 20, cfg.AI.Window)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "", cfg.Scheduler.Digest)
	assert.Equal(t, "https://hooks.example.com/digest", cfg.Notify.WebhookURL)
	assert.Equal(t, "sk-file", cfg.Credentials.OpenAI.APIKey)
	assert.Equal(t, "123:abc", cfg.Credentials.Telegram.BotToken)
	assert.True(t, cfg.HasOpenAI())
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("TRADESTEIN_DB", "/tmp/other.db")
	t.Setenv("TRADESTEIN_TOKEN_SALT", "salt-from-environment")
	t.Setenv("PORT", "7000")
	t.Setenv("TRADESTEIN_PORT", "7100")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.Credentials.OpenAI.APIKey)
	assert.Equal(t, "/tmp/other.db", cfg.Store.Path)
	assert.Equal(t, "salt-from-environment", cfg.Credentials.TokenSalt)
	assert.Equal(t, 7100, cfg.Server.Port)
}

func TestLoad_InvalidPortEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestLoad_DotEnvInConfigDir(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("OPENAI_API_KEY")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=sk-dotenv\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("OPENAI_API_KEY") })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sk-dotenv", cfg.Credentials.OpenAI.APIKey)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base, err := Load(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"ai rate", func(c *Config) { c.Server.AIRatePerMinute = 0 }},
		{"ai burst", func(c *Config) { c.Server.AIBurst = 0 }},
		{"store path", func(c *Config) { c.Store.Path = " " }},
		{"window", func(c *Config) { c.AI.Window = 0 }},
		{"timeout", func(c *Config) { c.AI.Timeout = 0 }},
		{"retries", func(c *Config) { c.AI.MaxRetries = 0 }},
		{"level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"session ttl", func(c *Config) { c.Security.SessionTTL = time.Second }},
		{"iterations", func(c *Config) { c.Security.PBKDF2Iterations = 10 }},
		{"webhook", func(c *Config) { c.Notify.WebhookURL = "ftp://example.com" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	short := *base
	short.Credentials.TokenSalt = "short"
	assert.Error(t, short.ValidateForServe())
}
