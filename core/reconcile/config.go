package reconcile

// Config holds defaults applied to every merge.
type Config struct {
	// MetadataKey is the property stamped on the target after a commit.
	MetadataKey string `mapstructure:"metadata_key" default:"LastMergedAt"`
	// Recorder selects where the stamp is written (database, storage, none).
	Recorder string `mapstructure:"recorder" default:"database"`
	// MetadataPrefix is the object prefix used by the storage recorder.
	MetadataPrefix string `mapstructure:"metadata_prefix" default:"merge-metadata"`
	// DefaultThreshold applies when a request sets no threshold, e.g. "15%".
	DefaultThreshold string `mapstructure:"default_threshold" default:""`
}

const (
	RecorderDatabase = "database"
	RecorderStorage  = "storage"
	RecorderNone     = "none"
)

// DefaultMetadataKey is used when Config.MetadataKey is empty.
const DefaultMetadataKey = "LastMergedAt"

// IsValidRecorder checks if the configured recorder is supported.
func (c Config) IsValidRecorder() bool {
	switch c.Recorder {
	case RecorderDatabase, RecorderStorage, RecorderNone:
		return true
	default:
		return false
	}
}
