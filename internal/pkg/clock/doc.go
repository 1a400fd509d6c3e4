// Package clock provides a tiny time abstraction.
//
// Challenge expiry and cooldown math depend on the current time; production
// code takes a Clocker instead of calling time.Now() so tests can pin the
// clock and exercise expiration deterministically.
package clock
