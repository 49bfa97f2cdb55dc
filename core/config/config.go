package config

import (
	"fmt"
	"reflect"
	"strings"

	"sqlmerge/core/database"
	"sqlmerge/core/logger"
	"sqlmerge/core/reconcile"
	"sqlmerge/core/server"
	"sqlmerge/core/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the object storage used by the storage metadata recorder.
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the database connection.
	Database database.Config `mapstructure:"database"`
	// Merge holds defaults applied to every merge.
	Merge reconcile.Config `mapstructure:"merge"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env file if it exists
	// We construct the path to .env
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. SERVER_PORT -> server.port)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks enumerated settings that Viper cannot.
func (c *Config) Validate() error {
	if !c.Database.IsValidDriver() {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if !c.Database.SupportsMerge() {
		return fmt.Errorf("database driver %q cannot run MERGE statements, use %q", c.Database.Driver, database.DriverSQLServer)
	}
	if !c.Merge.IsValidRecorder() {
		return fmt.Errorf("unsupported merge recorder %q", c.Merge.Recorder)
	}
	if _, err := reconcile.ParseThreshold(c.Merge.DefaultThreshold); err != nil {
		return fmt.Errorf("merge default threshold: %w", err)
	}
	return nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		// If it's a nested struct, recurse
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
