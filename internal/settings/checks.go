package settings

import (
	"fmt"
	"strings"
)

const (
	minSecretKeyLength      = 50
	minSecretKeyUniqueChars = 5
	insecureSecretPrefix    = "django-insecure-"
)

// Warning is a deployment check finding.
type Warning struct {
	ID      string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.ID, w.Message)
}

// Check reports settings that are unsafe for a public deployment.
func Check(s Settings) []Warning {
	var warnings []Warning
	add := func(id, msg string) {
		warnings = append(warnings, Warning{ID: id, Message: msg})
	}

	if s.Security.SecureHSTSSeconds == 0 {
		add("security.W004", "SECURE_HSTS_SECONDS is not set; browsers will keep allowing plain HTTP")
	}
	if !s.Security.SecureSSLRedirect {
		add("security.W008", "SECURE_SSL_REDIRECT is off; HTTP requests are not redirected to HTTPS")
	}
	if weakSecretKey(s.SecretKey) {
		add("security.W009", "SECRET_KEY is the built-in placeholder or too weak; set a long random SECRET_KEY")
	}
	if !s.Security.SessionCookieSecure {
		add("security.W012", "SESSION_COOKIE_SECURE is off; session cookies can leak over HTTP")
	}
	if !s.Security.CSRFCookieSecure {
		add("security.W016", "CSRF_COOKIE_SECURE is off; CSRF cookies can leak over HTTP")
	}
	if s.Debug {
		add("security.W018", "DEBUG is on; do not run with DEBUG in production")
	}
	if len(s.AllowedHosts) == 0 {
		add("security.W020", "ALLOWED_HOSTS is empty; every request will be rejected")
	}

	return warnings
}

func weakSecretKey(key string) bool {
	if key == InsecureSecretKey || strings.HasPrefix(key, insecureSecretPrefix) {
		return true
	}
	if len(key) < minSecretKeyLength {
		return true
	}
	unique := make(map[rune]struct{})
	for _, r := range key {
		unique[r] = struct{}{}
	}
	return len(unique) < minSecretKeyUniqueChars
}
