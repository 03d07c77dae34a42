// Package config loads the base configuration the production overlay builds
// on (YAML file, environment variables, CLI flags) with precedence: CLI flags >
// YAML config > Environment variables > Defaults. It also provides the typed
// environment readers and the error taxonomy shared by the settings layer.
package config
