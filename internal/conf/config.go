// Package conf handles loading and validation of application settings.
package conf

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"

	"github.com/examforge/examforge/internal/errors"
)

// Store dialect identifiers, chosen once per deployment.
const (
	DialectSQLServer = "sqlserver"
	DialectSQLite    = "sqlite"
	DialectMySQL     = "mysql"
)

// StoreSettings selects the primary store and its connection string.
type StoreSettings struct {
	Dialect string `mapstructure:"dialect"` // sqlserver, sqlite or mysql
	DSN     string `mapstructure:"dsn"`     // driver connection string
}

// ArchiveSettings configures the secondary archive store.
type ArchiveSettings struct {
	Path string `mapstructure:"path"` // SQLite file path for archived rows
}

// LogSettings configures logging output.
type LogSettings struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// Settings holds the full application configuration.
type Settings struct {
	Store   StoreSettings   `mapstructure:"store"`
	Archive ArchiveSettings `mapstructure:"archive"`
	Log     LogSettings     `mapstructure:"log"`
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a
// Settings struct, applies defaults, and validates the result.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// GetSettings returns the previously loaded settings, or nil before Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/examforge")
	viper.AddConfigPath("/etc/examforge")

	viper.SetEnvPrefix("examforge")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file is fine, defaults and env cover it
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// setDefaultConfig sets default values for each configuration parameter.
func setDefaultConfig() {
	viper.SetDefault("store.dialect", DialectSQLite)
	viper.SetDefault("store.dsn", "examforge.db")
	viper.SetDefault("archive.path", "examforge-archive.db")
	viper.SetDefault("log.level", "info")
}

// ValidateSettings checks the loaded settings for inconsistencies.
func ValidateSettings(settings *Settings) error {
	switch settings.Store.Dialect {
	case DialectSQLServer, DialectSQLite, DialectMySQL:
	default:
		return errors.Newf("unsupported store dialect: %q", settings.Store.Dialect).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.Store.DSN == "" {
		return errors.Newf("store dsn must not be empty").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.Archive.Path == "" {
		return errors.Newf("archive path must not be empty").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}
