package secret_test

import (
	"errors"
	"io"
	"testing"

	"github.com/sendratama/otpgate/internal/pkg/secret"
)

func TestGenerateLengthAndCharset(t *testing.T) {
	g := secret.NewNumeric()

	for _, length := range []int{4, 6, 10} {
		code, err := g.Generate(length)
		if err != nil {
			t.Fatalf("generate length %d: %v", length, err)
		}
		if len(code) != length {
			t.Fatalf("len(%q) = %d, want %d", code, len(code), length)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit %q", code, r)
			}
		}
	}
}

func TestGenerateKeepsLeadingZeros(t *testing.T) {
	// A zero source always draws 0, which must render as all zeros
	// rather than collapsing to "0".
	g := secret.NewNumericWithSource(zeroReader{})

	code, err := g.Generate(6)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if code != "000000" {
		t.Fatalf("code = %q, want %q", code, "000000")
	}
}

func TestGenerateInvalidLength(t *testing.T) {
	g := secret.NewNumeric()

	for _, length := range []int{0, 3, 11} {
		if _, err := g.Generate(length); !errors.Is(err, secret.ErrInvalidLength) {
			t.Fatalf("length %d: expected ErrInvalidLength, got %v", length, err)
		}
	}
}

func TestGenerateSourceFailure(t *testing.T) {
	g := secret.NewNumericWithSource(failReader{})

	if _, err := g.Generate(6); !errors.Is(err, secret.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type failReader struct{}

func (failReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
