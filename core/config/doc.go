// Package config provides configuration management for the merge service.
//
// It utilizes Viper for loading configuration from environment variables and
// an optional .env file. Defaults come from the `default` struct tags of each
// section.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, API key)
//   - Database: connection details and driver (sqlserver, mysql, sqlite)
//   - Storage: S3/MinIO credentials for the storage metadata recorder
//   - Log: Logging level and format
//   - Merge: metadata key, recorder and default variance threshold
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Merge.MetadataKey)
package config
