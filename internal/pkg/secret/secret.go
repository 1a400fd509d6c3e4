package secret

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

var (
	// ErrInvalidLength is returned for code lengths outside [MinLength, MaxLength].
	ErrInvalidLength = errors.New("secret: code length must be between 4 and 10")
	// ErrSourceUnavailable is returned when the secure random source fails.
	ErrSourceUnavailable = errors.New("secret: secure random source unavailable")
)

const (
	// DefaultLength is the common verification code length.
	DefaultLength = 6
	// MinLength is the shortest allowed code.
	MinLength = 4
	// MaxLength is the longest allowed code.
	MaxLength = 10
)

// Generator produces unpredictable verification codes.
type Generator interface {
	// Generate returns a decimal code of exactly length digits.
	Generate(length int) (string, error)
}

// Numeric is a Generator drawing uniformly from [0, 10^length) using a
// cryptographically secure source. There is no fallback: if the source
// fails, code issuance must fail with it.
type Numeric struct {
	source io.Reader
}

// NewNumeric returns a Numeric generator backed by crypto/rand.
func NewNumeric() *Numeric {
	return &Numeric{source: rand.Reader}
}

// NewNumericWithSource returns a generator reading from the given source.
// Intended for tests that need deterministic or failing randomness.
func NewNumericWithSource(source io.Reader) *Numeric {
	return &Numeric{source: source}
}

// Generate returns a decimal string of exactly length digits, left-padded
// with zeros. Codes must stay strings end to end; parsing them as integers
// would drop leading zeros.
func (g *Numeric) Generate(length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", ErrInvalidLength
	}

	bound := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)

	n, err := rand.Int(g.source, bound)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	return fmt.Sprintf("%0*d", length, n), nil
}
