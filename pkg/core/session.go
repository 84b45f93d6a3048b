package core

// Session configuration defaults.
const (
	DefaultChunkSize    = 500
	DefaultTableName    = "data"
	DefaultQueryPattern = "SELECT * FROM ${tableName}"
)

// SessionConfig holds the settings a session reads once at start.
// Only AutoQuery may change afterwards, through a config message.
type SessionConfig struct {
	// ChunkSize is the number of rows fetched per page.
	ChunkSize int
	// AutoQuery submits the query whenever the text changes and loses focus.
	AutoQuery bool
	// TableName is the fixed name of the backing view.
	TableName string
	// UseFileNameAsTableName derives the view name from the file's base name.
	UseFileNameAsTableName bool
	// DefaultQuery is the initial query template. ${tableName} is substituted.
	DefaultQuery string
}

// DefaultSessionConfig returns a SessionConfig with default values.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ChunkSize:    DefaultChunkSize,
		AutoQuery:    true,
		TableName:    DefaultTableName,
		DefaultQuery: DefaultQueryPattern,
	}
}

// ApplyDefaults fills unset fields with default values.
func (c *SessionConfig) ApplyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.TableName == "" {
		c.TableName = DefaultTableName
	}
	if c.DefaultQuery == "" {
		c.DefaultQuery = DefaultQueryPattern
	}
}
