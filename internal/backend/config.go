package backend

import (
	"fmt"
	"time"

	"presupuesto/internal/config"
)

// BackendType selects the remote store.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SheetsBackend BackendType = "sheets"
	WebAppBackend BackendType = "webapp"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SheetsBackend, WebAppBackend:
		return true
	default:
		return false
	}
}

// LocalCacheType selects the local fallback store.
type LocalCacheType string

const (
	SQLiteCache LocalCacheType = "sqlite"
	BoltCache   LocalCacheType = "bolt"
)

func (lt LocalCacheType) IsValid() bool {
	return lt == SQLiteCache || lt == BoltCache
}

// Config holds what the factory needs to build a gateway.
type Config struct {
	Type          BackendType
	RemoteTimeout time.Duration

	// Local cache
	LocalCache   LocalCacheType
	SQLiteDBPath string
	BoltDBPath   string

	// AMQP is optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientJSON    string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string

	// Apps Script web app
	WebAppURL string

	// Memory backend seeds categories from DataDirectory
	DataDirectory     string
	DefaultCategories []string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:          backendType,
		RemoteTimeout: appConfig.RemoteTimeout,

		LocalCache:   LocalCacheType(appConfig.LocalCache),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		BoltDBPath:   appConfig.BoltDBPath,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleOAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
		GoogleOAuthClientFile:    appConfig.GoogleOAuthClientFile,
		GoogleOAuthTokenFile:     appConfig.GoogleOAuthTokenFile,

		WebAppURL: appConfig.WebAppURL,

		DataDirectory:     appConfig.DataDirectory,
		DefaultCategories: appConfig.Settings.Categories,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if !c.LocalCache.IsValid() {
		return fmt.Errorf("invalid local cache type: %s", c.LocalCache)
	}

	switch c.LocalCache {
	case SQLiteCache:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite cache")
		}
	case BoltCache:
		if c.BoltDBPath == "" {
			return fmt.Errorf("bolt database path is required for bolt cache")
		}
	}

	switch c.Type {
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
	case WebAppBackend:
		if c.WebAppURL == "" {
			return fmt.Errorf("web app URL is required for webapp backend")
		}
	case MemoryBackend:
		// DataDirectory defaults to "data"
	}

	return nil
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := []BackendType{MemoryBackend, SheetsBackend, WebAppBackend}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
