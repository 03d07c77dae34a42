package settings

import (
	"strings"
	"testing"

	"github.com/Rohith-Pavan/Dare-Exchange/internal/config"
)

func warningIDs(ws []Warning) map[string]bool {
	out := make(map[string]bool, len(ws))
	for _, w := range ws {
		out[w.ID] = true
	}
	return out
}

func TestCheckFlagsPlaceholderSecret(t *testing.T) {
	s := mustBuild(t, config.MapEnv{}, baseConfig(t))

	ids := warningIDs(Check(s))
	if !ids["security.W009"] {
		t.Fatalf("expected placeholder secret warning, got %v", ids)
	}
	if len(ids) != 1 {
		t.Fatalf("expected only the secret warning for hardened defaults, got %v", ids)
	}
}

func TestCheckCleanProduction(t *testing.T) {
	env := config.MapEnv{
		"SECRET_KEY": strings.Repeat("abcdefghij", 6),
	}
	s := mustBuild(t, env, baseConfig(t))

	if ws := Check(s); len(ws) != 0 {
		t.Fatalf("expected no warnings, got %v", ws)
	}
}

func TestCheckDebug(t *testing.T) {
	s := mustBuild(t, config.MapEnv{"DEBUG": "1", "ALLOWED_HOSTS": ""}, baseConfig(t))

	ids := warningIDs(Check(s))
	for _, id := range []string{"security.W004", "security.W008", "security.W012", "security.W016", "security.W018", "security.W020"} {
		if !ids[id] {
			t.Fatalf("expected %s in %v", id, ids)
		}
	}
}

func TestWeakSecretKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{key: InsecureSecretKey, want: true},
		{key: "short", want: true},
		{key: strings.Repeat("ab", 40), want: true},
		{key: "django-insecure-" + strings.Repeat("x1y2z3", 10), want: true},
		{key: strings.Repeat("a1b2c3d4e5", 6), want: false},
	}
	for _, tt := range tests {
		if got := weakSecretKey(tt.key); got != tt.want {
			t.Fatalf("weakSecretKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}
