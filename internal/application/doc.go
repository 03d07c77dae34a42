// Package application wires resolved settings into a running service: it
// opens the default database, builds the static file server and the
// middleware chain, and configures the HTTP server. The main package only
// deals with CLI parsing and process lifecycle.
package application
