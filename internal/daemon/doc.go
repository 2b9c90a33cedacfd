// Package daemon runs the long-lived inkframe HTTP server.
//
// It owns the single-instance flock, the listener, and graceful shutdown,
// and periodically runs housekeeping (history pruning, log retention) while
// the server is up. Request handling itself lives in the server package; the
// daemon only focuses on startup, shutdown, and the maintenance loop.
package daemon
