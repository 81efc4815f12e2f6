package redis

// Config holds Redis connection settings
type Config struct {
	// URL is the Redis connection URL (e.g. redis://localhost:6379/0)
	URL string
	// KeyPrefix namespaces all keys written by this instance
	KeyPrefix string
	// PoolSize is the maximum number of connections
	PoolSize int
	// MinIdleConns is the minimum number of idle connections
	MinIdleConns int
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379/0",
		KeyPrefix:    "discordgate",
		PoolSize:     10,
		MinIdleConns: 2,
	}
}
