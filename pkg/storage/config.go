// Package storage holds the configuration shared by the persistence
// backends: PostgreSQL for user records and audit logs, Redis for the
// read-through user cache, S3 for uploaded profile images.
package storage

import "time"

// Config holds storage backend configuration
type Config struct {
	// PostgreSQL
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration

	// Redis cache
	RedisURL      string
	RedisPassword string
	RedisDB       int
	CacheEnabled  bool
	CacheTTL      time.Duration

	// S3 (profile images)
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

// DefaultConfig returns the default storage configuration
func DefaultConfig() Config {
	return Config{
		PostgresMaxConns: 25,
		PostgresMinConns: 5,
		PostgresTimeout:  10 * time.Second,
		RedisDB:          0,
		CacheEnabled:     true,
		CacheTTL:         15 * time.Minute,
		S3Region:         "us-east-1",
	}
}
