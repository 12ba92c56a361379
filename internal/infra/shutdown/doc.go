// Package shutdown runs registered hooks when the process is asked to stop.
//
// Hooks run in reverse order of registration under a shared timeout, so
// components registered last in the startup sequence stop first. A
// shutdown starts on SIGINT or SIGTERM, or when the context passed to Wait
// is cancelled.
package shutdown
