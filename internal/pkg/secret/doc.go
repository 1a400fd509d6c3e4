// Package secret generates the numeric one-time codes handed to subjects.
//
// Codes are uniform over the full decimal space for their length and may
// start with zeros, so they are generated, stored, and compared as strings.
package secret
