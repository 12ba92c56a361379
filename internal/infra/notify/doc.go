// Package notify is an in-process publish/subscribe event bus.
//
// Events are delivered on one dispatcher goroutine in publish order.
// Subscribers select events by type name. Delivery is at-least-once
// from the subscriber's point of view: handlers must be idempotent.
package notify
