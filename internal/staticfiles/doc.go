// Package staticfiles collects static assets into a single root with
// content-hashed names and gzip siblings, and serves them with long-lived
// cache headers.
package staticfiles
