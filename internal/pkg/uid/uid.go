// Package uid provides identifier generators behind small interfaces so
// callers can swap the concrete scheme (snowflake, uuid) without caring
// which one produced a value.
package uid

// NumberID generates unique numeric identifiers.
type NumberID interface {
	Generate() int64
}

// StringID generates unique string identifiers.
type StringID interface {
	Generate() string
}
