package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Env is a source of environment variables.
type Env interface {
	LookupEnv(key string) (string, bool)
}

// OSEnv reads the process environment.
type OSEnv struct{}

// LookupEnv implements Env.
func (OSEnv) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapEnv is an in-memory Env, used for .env files and tests.
type MapEnv map[string]string

// LookupEnv implements Env.
func (m MapEnv) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Layered consults each Env in order and returns the first hit.
type Layered []Env

// LookupEnv implements Env.
func (l Layered) LookupEnv(key string) (string, bool) {
	for _, env := range l {
		if env == nil {
			continue
		}
		if v, ok := env.LookupEnv(key); ok {
			return v, true
		}
	}
	return "", false
}

// LoadEnvFile reads a dotenv file without touching the process environment.
func LoadEnvFile(path string) (MapEnv, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return MapEnv(values), nil
}

// String returns the raw value of key, or def when it is not set.
// A variable set to the empty string is returned as such.
func String(env Env, key, def string) string {
	if v, ok := env.LookupEnv(key); ok {
		return v
	}
	return def
}

// Bool reads key as a boolean, returning def when it is not set.
func Bool(env Env, key string, def bool) (bool, error) {
	raw, ok := env.LookupEnv(key)
	if !ok {
		return def, nil
	}
	v, err := ParseBool(raw)
	if err != nil {
		return false, &CastError{Key: key, Value: raw, Type: "bool", Err: err}
	}
	return v, nil
}

// List reads key as a comma-separated list. def uses the same format.
func List(env Env, key, def string) []string {
	return ParseList(String(env, key, def))
}

// ParseBool accepts 1/yes/true/on and 0/no/false/off in any case. The empty
// string is false. Surrounding whitespace is not stripped.
func ParseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "1", "yes", "true", "on":
		return true, nil
	case "0", "no", "false", "off", "":
		return false, nil
	default:
		return false, ErrInvalidBool
	}
}

// ParseList splits raw on commas and trims each element. Order and empty
// elements are preserved; a blank raw value is the empty list.
func ParseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}
