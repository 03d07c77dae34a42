// Package settings applies the production overlay to the base configuration.
//
// Build is a pure function of the environment and the base config: it reads
// DEBUG, SECRET_KEY, ALLOWED_HOSTS, DATABASE_URL, SECURE_SSL_REDIRECT and
// DJANGO_LOG_LEVEL, resolves the default database, inserts the static file
// middleware right after the security middleware, hardens the security flags
// unless DEBUG is on, and describes the logging sinks. The result is never
// mutated after startup.
package settings
