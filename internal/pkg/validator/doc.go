// Package validator wraps struct validation behind a small interface so
// usecases can declare constraints with tags and tests can substitute a
// no-op implementation.
package validator
