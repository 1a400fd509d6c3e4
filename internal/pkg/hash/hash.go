package hash

// Hash is a one-way hash of a secret with a matching verifier.
//
// Implementations must use a deliberately slow, salted construction suitable
// for low-entropy secrets (verification codes, passwords), and Verify must
// compare in constant time with respect to the secret content.
type Hash interface {
	// Hash returns the encoded hash of plaintext.
	Hash(plaintext string) ([]byte, error)
	// Verify reports whether plaintext matches the encoded hash.
	Verify(hashed, plaintext string) bool
}
