package database

// Config holds configuration for the database connection.
type Config struct {
	// Driver is the database driver (sqlserver, mysql, sqlite).
	Driver string `mapstructure:"driver" default:"sqlserver"`
	// Host is the database host.
	Host string `mapstructure:"host" default:"localhost"`
	// Port is the database port.
	Port int `mapstructure:"port" default:"1433"`
	// User is the database user.
	User string `mapstructure:"user" default:"sa"`
	// Password is the database password.
	Password string `mapstructure:"password" default:""`
	// Name is the database name. For sqlite this is the file path or ":memory:".
	Name string `mapstructure:"name" default:"master"`
	// TimeoutSeconds bounds connection setup and the initial ping.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}

const (
	DriverSQLServer = "sqlserver"
	DriverMySQL     = "mysql"
	DriverSQLite    = "sqlite"
)

// IsValidDriver checks if the configured driver is supported.
func (c Config) IsValidDriver() bool {
	switch c.Driver {
	case DriverSQLServer, DriverMySQL, DriverSQLite:
		return true
	default:
		return false
	}
}

// SupportsMerge reports whether the driver can execute the T-SQL MERGE
// statements the engine renders. mysql and sqlite connections only serve
// schema inspection and tests.
func (c Config) SupportsMerge() bool {
	return c.Driver == DriverSQLServer
}
