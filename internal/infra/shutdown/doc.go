// Package shutdown provides graceful shutdown handling.
//
// It waits for SIGINT or SIGTERM and runs registered cleanup hooks in
// reverse order of registration, under a configurable timeout.
package shutdown
