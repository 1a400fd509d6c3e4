package hash_test

import (
	"strings"
	"testing"

	"github.com/sendratama/otpgate/internal/pkg/hash"
)

func TestBcryptRoundTrip(t *testing.T) {
	h := hash.NewBcrypt(4, "pepper")

	hashed, err := h.Hash("123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if !h.Verify(string(hashed), "123456") {
		t.Fatal("expected match for the original plaintext")
	}
	if h.Verify(string(hashed), "123457") {
		t.Fatal("expected mismatch for a different plaintext")
	}
	if h.Verify(string(hashed), "12345") {
		t.Fatal("expected mismatch for a prefix")
	}
}

func TestBcryptPepperBindsHash(t *testing.T) {
	withPepper := hash.NewBcrypt(4, "pepper")
	withoutPepper := hash.NewBcrypt(4, "")

	hashed, err := withPepper.Hash("123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if withoutPepper.Verify(string(hashed), "123456") {
		t.Fatal("hash must not verify without the pepper")
	}
}

func TestArgon2idRoundTrip(t *testing.T) {
	h := hash.NewArgon2id("pepper")

	hashed, err := h.Hash("123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(string(hashed), "$argon2id$") {
		t.Fatalf("unexpected encoding %q", hashed)
	}

	if !h.Verify(string(hashed), "123456") {
		t.Fatal("expected match for the original plaintext")
	}
	if h.Verify(string(hashed), "654321") {
		t.Fatal("expected mismatch for a different plaintext")
	}
}

func TestArgon2idSaltsDiffer(t *testing.T) {
	h := hash.NewArgon2id("")

	a, err := h.Hash("123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := h.Hash("123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if string(a) == string(b) {
		t.Fatal("two hashes of the same plaintext should differ by salt")
	}
}

func TestArgon2idRejectsMalformed(t *testing.T) {
	h := hash.NewArgon2id("")

	for _, bad := range []string{"", "plain", "$bcrypt$v=19$x$y$z", "$argon2id$v=19$m=1,t=1,p=1$!!$!!"} {
		if h.Verify(bad, "123456") {
			t.Fatalf("malformed hash %q should not verify", bad)
		}
	}
}

func TestCrossHasherRejection(t *testing.T) {
	b := hash.NewBcrypt(4, "")
	a := hash.NewArgon2id("")

	hashed, err := b.Hash("123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a.Verify(string(hashed), "123456") {
		t.Fatal("a bcrypt hash should not verify under argon2id")
	}
}
