package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Tradestein Configuration

[server]
# Listen address
host = "127.0.0.1"
port = 8787
# AI endpoints: sustained requests per minute and burst, per user
ai_rate_per_minute = 12.0
ai_burst = 5
# Maximum JSON request body
max_body_bytes = 1048576

[store]
# SQLite database file (defaults to journal.db in this directory)
# path = "/var/lib/tradestein/journal.db"
# Rows written per transaction on CSV import
import_batch_size = 200

[ai]
# Model for structured insight reports
report_model = "gpt-4o-mini"
# Model for coaching chat
chat_model = "gpt-4o"
# Most recent trades sent with a report request
window = 50
timeout = "60s"
max_retries = 3
# OpenAI-compatible endpoint; empty uses api.openai.com
base_url = ""

[logging]
# debug, info, warn, error
level = "info"
console = true
file = true
max_size = 100
max_backups = 7
max_age = 30

[security]
# Bearer session lifetime (e.g., "720h", "24h")
session_ttl = "720h"
# PBKDF2 rounds for token hashing
pbkdf2_iterations = 10000
# Write the JSON-lines audit trail
audit_enabled = true
# Reject text containing SQL or script injection patterns
strict_validation = false

[scheduler]
enabled = true
# Six-field cron specs (seconds first); empty disables a job
purge_sessions = "0 0 * * * *"
digest = "0 0 22 * * *"
prune_limiters = "0 */10 * * * *"

[notifications]
# Nightly digest delivery; leave empty to only log digests
webhook_url = ""
# Requires [telegram] bot_token in credentials.toml
telegram_chat_id = ""
`

const credentialsTemplate = `# Tradestein Credentials
# Keep this file private. Environment variables override these values.

# Salt for hashing bearer tokens (TRADESTEIN_TOKEN_SALT).
# Changing it invalidates every issued token.
token_salt = "%s"

[openai]
# OPENAI_API_KEY
api_key = ""

[telegram]
# TELEGRAM_BOT_TOKEN
bot_token = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

// createTemplateCredentials writes credentials.toml with a freshly generated
// token salt.
func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	salt := make([]byte, 24)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generating token salt: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Use restricted permissions for credentials file
	content := fmt.Sprintf(credentialsTemplate, hex.EncodeToString(salt))
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}
	return nil
}

// ConfigPath returns the path of config.toml in configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}
