// Package hash provides slow, salted hashing for short-lived secrets.
//
// Verification codes are low-entropy (a 6-digit code has one million
// possibilities), so the stored form must be expensive to brute-force within
// the code's expiration window. Implementations live behind the Hash
// interface: bcrypt is the default, argon2id an alternative driver.
package hash
