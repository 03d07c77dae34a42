package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Rohith-Pavan/Dare-Exchange/internal/application"
	"github.com/Rohith-Pavan/Dare-Exchange/internal/config"
	"github.com/Rohith-Pavan/Dare-Exchange/internal/database"
	"github.com/Rohith-Pavan/Dare-Exchange/internal/logging"
	"github.com/Rohith-Pavan/Dare-Exchange/internal/settings"
	"github.com/Rohith-Pavan/Dare-Exchange/internal/staticfiles"
	"github.com/Rohith-Pavan/Dare-Exchange/internal/version"
)

const (
	defaultEnvFile = ".env"
	startupTimeout = 10 * time.Second
	masked         = "********"
)

var signalNotify = signal.Notify

var errChecksFailed = errors.New("deployment checks reported issues")

type cli struct {
	app *kingpin.Application
	out io.Writer

	configFile     *string
	port           *string
	baseDir        *string
	envFile        *string
	envFileSet     bool
	rateLimitRPS   *float64
	rateLimitBurst *int

	serve   *kingpin.CmdClause
	check   *kingpin.CmdClause
	deploy  *bool
	dump    *bool
	collect *kingpin.CmdClause
}

func newCLI(out io.Writer) *cli {
	c := &cli{out: out}
	c.app = kingpin.New("dare-exchange", "Dare Exchange web service")
	c.app.Version(version.String())
	c.app.UsageWriter(out)

	c.configFile = c.app.Flag("config", "Path to YAML configuration file").String()
	c.port = c.app.Flag("port", "HTTP port exposed by the service").String()
	c.baseDir = c.app.Flag("base-dir", "Project base directory").String()
	c.envFile = c.app.Flag("env-file", "Dotenv file read after the process environment").
		Default(defaultEnvFile).IsSetByUser(&c.envFileSet).String()
	c.rateLimitRPS = c.app.Flag("rate-limit-rps", "Requests per second allowed per client (set 0 to disable)").Default("-1").Float64()
	c.rateLimitBurst = c.app.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	c.serve = c.app.Command("serve", "Run the HTTP server").Default()

	c.check = c.app.Command("check", "Validate settings")
	c.deploy = c.check.Flag("deploy", "Also run the deployment security checks").Bool()
	c.dump = c.check.Flag("dump", "Print the resolved settings as YAML with secrets masked").Bool()

	c.collect = c.app.Command("collectstatic", "Collect static files into the static root")

	return c
}

func main() {
	c := newCLI(os.Stdout)
	cmd, err := c.app.Parse(os.Args[1:])
	c.app.FatalIfError(err, "")

	err = c.run(cmd, config.OSEnv{}, afero.NewOsFs())
	if errors.Is(err, errChecksFailed) {
		os.Exit(1)
	}
	c.app.FatalIfError(err, "")
}

func (c *cli) run(cmd string, processEnv config.Env, fs afero.Fs) error {
	s, err := c.loadSettings(processEnv)
	if err != nil {
		return err
	}

	switch cmd {
	case c.check.FullCommand():
		return c.runCheck(s)
	case c.collect.FullCommand():
		return c.runCollect(fs, s)
	default:
		return c.runServe(s)
	}
}

func (c *cli) loadSettings(processEnv config.Env) (settings.Settings, error) {
	env := processEnv
	if *c.envFile != "" {
		fileEnv, err := config.LoadEnvFile(*c.envFile)
		switch {
		case err == nil:
			env = config.Layered{processEnv, fileEnv}
		case errors.Is(err, os.ErrNotExist) && !c.envFileSet:
			// the default .env is optional
		default:
			return settings.Settings{}, err
		}
	}

	overrides := &config.CLIOverrides{
		ConfigFile: *c.configFile,
	}
	if *c.port != "" {
		overrides.Port = c.port
	}
	if *c.baseDir != "" {
		overrides.BaseDir = c.baseDir
	}
	if *c.rateLimitRPS >= 0 {
		overrides.RateLimitRPS = c.rateLimitRPS
	}
	if *c.rateLimitBurst >= 0 {
		overrides.RateLimitBurst = c.rateLimitBurst
	}

	base, err := config.LoadFrom(env, overrides)
	if err != nil {
		return settings.Settings{}, fmt.Errorf("failed to load configuration: %w", err)
	}

	s, err := settings.Build(env, base)
	if err != nil {
		return settings.Settings{}, fmt.Errorf("failed to build settings: %w", err)
	}
	return s, nil
}

func (c *cli) runServe(s settings.Settings) error {
	loggers, err := logging.New(s.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = loggers.Sync()
	}()
	logger := loggers.Named(logging.FrameworkLogger)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	app, err := application.New(ctx, s, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}()

	logger.Info("starting", zap.String("version", version.String()))
	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	shutdown(app.Server(), s.Server.ShutdownGracePeriod, logger)
	return nil
}

func (c *cli) runCheck(s settings.Settings) error {
	if *c.dump {
		data, err := yaml.Marshal(maskSecrets(s))
		if err != nil {
			return fmt.Errorf("failed to encode settings: %w", err)
		}
		if _, err := c.out.Write(data); err != nil {
			return err
		}
	}

	if err := s.DefaultDatabase().Validate(); err != nil {
		return err
	}

	var warnings []settings.Warning
	if *c.deploy {
		warnings = settings.Check(s)
	}
	if len(warnings) == 0 {
		color.New(color.FgGreen).Fprintln(c.out, "System check identified no issues.")
		return nil
	}

	yellow := color.New(color.FgYellow)
	bold := color.New(color.Bold)
	bold.Fprintln(c.out, "System check identified some issues:")
	fmt.Fprintln(c.out)
	bold.Fprintln(c.out, "WARNINGS:")
	for _, w := range warnings {
		yellow.Fprintf(c.out, "?: (%s) ", w.ID)
		fmt.Fprintln(c.out, w.Message)
	}
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "System check identified %d issues.\n", len(warnings))
	return errChecksFailed
}

func (c *cli) runCollect(fs afero.Fs, s settings.Settings) error {
	res, err := staticfiles.Collect(fs, s.StaticFilesDirs, s.StaticRoot)
	if err != nil {
		return fmt.Errorf("collectstatic failed: %w", err)
	}
	for _, dir := range res.Skipped {
		color.New(color.FgYellow).Fprintf(c.out, "Skipping missing directory %s\n", dir)
	}
	color.New(color.FgGreen).Fprintf(c.out, "%d static files copied to '%s', %d compressed.\n",
		res.Copied, s.StaticRoot, res.Compressed)
	return nil
}

// maskSecrets returns a copy of s that is safe to print.
func maskSecrets(s settings.Settings) settings.Settings {
	if s.SecretKey != "" {
		s.SecretKey = masked
	}
	dbs := make(map[string]database.Descriptor, len(s.Databases))
	for alias, d := range s.Databases {
		if d.Password != "" {
			d.Password = masked
		}
		dbs[alias] = d
	}
	s.Databases = dbs
	return s
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
