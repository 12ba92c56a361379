// Package schedule runs delayed and fixed-delay tasks on a bounded worker pool.
//
// Timers come from a clockwork.Clock so tests can drive time with a fake
// clock. Timer callbacks never run task bodies themselves: they hand the
// task to the worker pool, so a slow task cannot stall other timers.
// Every task body runs under panic recovery and a panicking periodic task
// stays scheduled.
package schedule
