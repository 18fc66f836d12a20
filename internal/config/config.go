package config

import (
	"os"
	"strconv"
	"time"
)

var (
	// Voice folder settings
	VoiceFolder    = os.Getenv("VOICE_FOLDER")
	AudioExtension = getEnvWithDefault("AUDIO_EXTENSION", ".m4a")

	// Polling settings
	PollInterval        = time.Duration(getEnvInt("POLL_INTERVAL_MS", 30000)) * time.Millisecond
	DownloadWaitTimeout = time.Duration(getEnvInt("DOWNLOAD_WAIT_TIMEOUT_MS", 60000)) * time.Millisecond

	// Cloud CLI settings
	CloudBinary     = getEnvWithDefault("CLOUD_BINARY", "icloudctl")
	CloudRetryCount = getEnvInt("CLOUD_RETRY_COUNT", 3)

	// Ledger (SQLite)
	LedgerPath = getEnvWithDefault("LEDGER_PATH", "memovault.db")

	// Fingerprint set and export queue (Valkey/Redis)
	ValkeyHost = getEnvWithDefault("VALKEY_HOST", "localhost")
	ValkeyPort = getEnvInt("VALKEY_PORT", 6379)

	// Vault settings
	VaultBackend     = getEnvWithDefault("VAULT_BACKEND", "local") // "local" or "gdrive"
	VaultDir         = getEnvWithDefault("VAULT_DIR", "vault")
	VaultDriveFolder = os.Getenv("VAULT_DRIVE_FOLDER")

	// Status API
	Port = getEnvWithDefault("PORT", "8080")
)

// Scopes used when the vault backend is Google Drive
var Scopes = []string{"https://www.googleapis.com/auth/drive"}

// WatermarkKey is the sync_state cursor owned by the voice poller.
const WatermarkKey = "voice_last_poll"

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
