// Package mail defines a small outbound email abstraction and an SMTP
// implementation used for delivering verification codes.
package mail
