package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/afero"

	"github.com/Rohith-Pavan/Dare-Exchange/internal/config"
	"github.com/Rohith-Pavan/Dare-Exchange/internal/database"
	"github.com/Rohith-Pavan/Dare-Exchange/internal/settings"
)

func init() {
	color.NoColor = true
}

func parse(t *testing.T, args ...string) (*cli, string, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	c := newCLI(&out)
	cmd, err := c.app.Parse(args)
	if err != nil {
		t.Fatalf("Parse(%v) returned error: %v", args, err)
	}
	return c, cmd, &out
}

func TestServeIsDefaultCommand(t *testing.T) {
	c, cmd, _ := parse(t)
	if cmd != c.serve.FullCommand() {
		t.Fatalf("expected serve to be the default command, got %q", cmd)
	}
}

func TestLoadSettingsAppliesFlags(t *testing.T) {
	dir := t.TempDir()
	c, _, _ := parse(t, "--base-dir", dir, "--port", "9000", "--rate-limit-rps", "0", "--env-file", "", "check")

	s, err := c.loadSettings(config.MapEnv{"DEBUG": "true", "PORT": "7000"})
	if err != nil {
		t.Fatalf("loadSettings returned error: %v", err)
	}
	if s.BaseDir != dir {
		t.Fatalf("expected base dir %s, got %s", dir, s.BaseDir)
	}
	if s.Server.Port != "9000" {
		t.Fatalf("expected CLI port to win, got %s", s.Server.Port)
	}
	if s.Server.RateLimitRPS != 0 {
		t.Fatalf("expected rate limit override, got %v", s.Server.RateLimitRPS)
	}
	if s.Server.RateLimitBurst != 50 {
		t.Fatalf("expected default burst, got %d", s.Server.RateLimitBurst)
	}
}

func TestLoadSettingsReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "prod.env")
	if err := os.WriteFile(envFile, []byte("DEBUG=true\nSECRET_KEY=from-file\nALLOWED_HOSTS=file.test\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	c, _, _ := parse(t, "--base-dir", dir, "--env-file", envFile, "check")
	s, err := c.loadSettings(config.MapEnv{"ALLOWED_HOSTS": "process.test"})
	if err != nil {
		t.Fatalf("loadSettings returned error: %v", err)
	}
	if !s.Debug || s.SecretKey != "from-file" {
		t.Fatalf("expected values from env file, got debug=%v key=%q", s.Debug, s.SecretKey)
	}
	if len(s.AllowedHosts) != 1 || s.AllowedHosts[0] != "process.test" {
		t.Fatalf("expected process env to win over file, got %v", s.AllowedHosts)
	}
}

func TestLoadSettingsEnvFileMissing(t *testing.T) {
	dir := t.TempDir()

	c, _, _ := parse(t, "--base-dir", dir, "--env-file", filepath.Join(dir, "missing.env"), "check")
	if _, err := c.loadSettings(config.MapEnv{}); err == nil {
		t.Fatalf("expected error for explicit missing env file")
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	c, _, _ = parse(t, "--base-dir", dir, "check")
	if _, err := c.loadSettings(config.MapEnv{}); err != nil {
		t.Fatalf("expected missing default .env to be ignored, got %v", err)
	}
}

func TestLoadSettingsReportsCastError(t *testing.T) {
	c, _, _ := parse(t, "--base-dir", t.TempDir(), "--env-file", "", "check")

	_, err := c.loadSettings(config.MapEnv{"DEBUG": "maybe"})
	var castErr *config.CastError
	if !errors.As(err, &castErr) {
		t.Fatalf("expected CastError, got %v", err)
	}
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()

	c, cmd, out := parse(t, "--base-dir", dir, "--env-file", "", "check")
	if err := c.run(cmd, config.MapEnv{"DEBUG": "true"}, afero.NewMemMapFs()); err != nil {
		t.Fatalf("check returned error: %v", err)
	}
	if !strings.Contains(out.String(), "no issues") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestCheckDeployReportsWarnings(t *testing.T) {
	dir := t.TempDir()

	c, cmd, out := parse(t, "--base-dir", dir, "--env-file", "", "check", "--deploy")
	err := c.run(cmd, config.MapEnv{"DEBUG": "true"}, afero.NewMemMapFs())
	if !errors.Is(err, errChecksFailed) {
		t.Fatalf("expected errChecksFailed, got %v", err)
	}
	for _, id := range []string{"security.W009", "security.W018"} {
		if !strings.Contains(out.String(), id) {
			t.Fatalf("expected %s in output %q", id, out.String())
		}
	}
}

func TestCheckDumpMasksSecrets(t *testing.T) {
	dir := t.TempDir()

	c, cmd, out := parse(t, "--base-dir", dir, "--env-file", "", "check", "--dump")
	env := config.MapEnv{
		"DEBUG":        "true",
		"SECRET_KEY":   "super-secret-value",
		"DATABASE_URL": "mysql://root:hunter2@db:3306/exchange",
	}
	if err := c.run(cmd, env, afero.NewMemMapFs()); err != nil {
		t.Fatalf("check returned error: %v", err)
	}
	for _, secret := range []string{"super-secret-value", "hunter2"} {
		if strings.Contains(out.String(), secret) {
			t.Fatalf("dump leaks %q", secret)
		}
	}
	if !strings.Contains(out.String(), "secret_key: '********'") && !strings.Contains(out.String(), `secret_key: "********"`) {
		t.Fatalf("expected masked secret key in %q", out.String())
	}
}

func TestCollectStaticCommand(t *testing.T) {
	dir := t.TempDir()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, filepath.Join(dir, "static", "app.js"), []byte(strings.Repeat("var x = 1;\n", 20)), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	c, cmd, out := parse(t, "--base-dir", dir, "--env-file", "", "collectstatic")
	if err := c.run(cmd, config.MapEnv{"DEBUG": "true"}, fs); err != nil {
		t.Fatalf("collectstatic returned error: %v", err)
	}
	if !strings.Contains(out.String(), "1 static files copied") {
		t.Fatalf("unexpected output %q", out.String())
	}
	if ok, _ := afero.Exists(fs, filepath.Join(dir, "staticfiles", "staticfiles.json")); !ok {
		t.Fatalf("expected manifest to be written")
	}
}

func TestMaskSecretsDoesNotMutateInput(t *testing.T) {
	s := settings.Settings{
		SecretKey: "k",
		Databases: map[string]database.Descriptor{"default": {Password: "pw"}},
	}
	m := maskSecrets(s)
	if m.SecretKey != masked || m.Databases["default"].Password != masked {
		t.Fatalf("expected secrets to be masked, got %+v", m)
	}
	if s.SecretKey != "k" || s.Databases["default"].Password != "pw" {
		t.Fatalf("input was mutated")
	}
}
