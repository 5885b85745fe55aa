// Package server holds the HTTP server configuration.
//
// While the main application entry point handles the server startup, this package
// defines the configuration structure for server settings: the listen port,
// allowed CORS origins, session cookie hardening, and the cron schedule for
// the reservation expiry sweep.
//
// # Usage
//
// This package is primarily used by the core/config package to embed server
// settings and by the start command to wire middleware and the sweeper.
package server
