package server

import "time"

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API.
	ApiKey string `mapstructure:"api_key" default:""`
	// ShutdownSeconds bounds graceful shutdown.
	ShutdownSeconds int `mapstructure:"shutdown_seconds" default:"10"`
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}

// ShutdownTimeout returns the graceful shutdown bound, defaulting to ten seconds.
func (c Config) ShutdownTimeout() time.Duration {
	if c.ShutdownSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ShutdownSeconds) * time.Second
}
