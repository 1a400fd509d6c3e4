package config

import (
	"io"
	"time"
)

// TimeConfig defines helpers for reading duration values stored as plain
// integers in the configuration file.
type TimeConfig interface {
	// GetSecond reads the value for key as a number of seconds.
	GetSecond(key string) time.Duration

	// GetMinute reads the value for key as a number of minutes.
	GetMinute(key string) time.Duration

	// GetHour reads the value for key as a number of hours.
	GetHour(key string) time.Duration
}

// Config is the read surface for runtime configuration.
//
// Implementations own type conversion and default handling; a missing key
// yields the zero value for the requested type.
type Config interface {
	io.Closer
	TimeConfig

	// GetBool reads the value for key as a bool.
	GetBool(key string) bool

	// GetInt reads the value for key as an int.
	GetInt(key string) int

	// GetInt32 reads the value for key as an int32.
	GetInt32(key string) int32

	// GetInt64 reads the value for key as an int64.
	GetInt64(key string) int64

	// GetFloat64 reads the value for key as a float64.
	GetFloat64(key string) float64

	// GetString reads the value for key as a string.
	GetString(key string) string

	// GetArray reads the value for key as a string slice.
	// The stored format is <element1>,<element2>,...
	GetArray(key string) []string

	// GetMap reads the value for key as a string map.
	// The stored format is <key1>:<value1>,<key2>:<value2>,...
	GetMap(key string) map[string]string
}
