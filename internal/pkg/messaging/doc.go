// Package messaging provides a broker-agnostic API for publishing and
// consuming messages.
//
// Business code depends on the interfaces here and stays independent from
// the underlying messaging system (Kafka or NATS), so the broker can be
// swapped through configuration alone.
package messaging
