// Package config holds the explicit runtime configuration. Components take
// the pieces they need at construction; nothing reads the environment at
// call time.
package config

import (
	"errors"
	"fmt"

	"github.com/Spountil/watermark-gdrive/internal/utils"
)

const (
	DefaultAddr      = "127.0.0.1:8080"
	DefaultRateLimit = "60-M"

	// Store backends for cursor, watermark and ledger state.
	BackendSqlite = "sqlite"
	BackendFile   = "file"
)

type Config struct {
	HTTP  HTTPConfig
	Drive DriveConfig
	Sync  SyncConfig

	// DataDir roots all local state: databases, cached settings assets.
	DataDir string
	// Backend selects the persistence flavor, BackendSqlite or BackendFile.
	Backend string
}

type HTTPConfig struct {
	Addr      string
	CertFile  string
	KeyFile   string
	RateLimit string
}

type DriveConfig struct {
	// CredentialsFile is the service account key JSON.
	CredentialsFile string
	// ChannelToken authenticates inbound notifications; a mismatch is
	// rejected before any state is touched.
	ChannelToken string
	// WebhookURL is the public address notifications are delivered to,
	// used when subscribing a channel.
	WebhookURL string

	WatchedFolderID  string
	SettingsFolderID string
	ResultsFolderID  string
}

type SyncConfig struct {
	Workers   int
	QueueSize int
	// SettingsBeforeMime lets settings.json through the image filter.
	SettingsBeforeMime bool
	// IgnorePatterns are gitignore-style name patterns the processor skips.
	IgnorePatterns []string
}

func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:      DefaultAddr,
			RateLimit: DefaultRateLimit,
		},
		Sync: SyncConfig{
			SettingsBeforeMime: true,
		},
		Backend: BackendSqlite,
	}
}

func (c *Config) Validate() error {
	if c.Drive.ChannelToken == "" {
		return errors.New("config: channel token is required")
	}
	if c.Drive.CredentialsFile == "" {
		return errors.New("config: credentials file is required")
	}
	if c.Drive.WatchedFolderID == "" {
		return errors.New("config: watched folder id is required")
	}
	if c.Backend != BackendSqlite && c.Backend != BackendFile {
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.DataDir == "" {
		return errors.New("config: data dir is required")
	}

	dataDir, err := utils.ResolvePath(c.DataDir)
	if err != nil {
		return fmt.Errorf("config: resolve data dir: %w", err)
	}
	c.DataDir = dataDir
	return nil
}
