package settings

import (
	"path/filepath"
	"strings"

	"github.com/Rohith-Pavan/Dare-Exchange/internal/config"
	"github.com/Rohith-Pavan/Dare-Exchange/internal/database"
	"github.com/Rohith-Pavan/Dare-Exchange/internal/logging"
)

const (
	// InsecureSecretKey is used when SECRET_KEY is not provided. It is public
	// and must be overridden in any real deployment.
	InsecureSecretKey = "django-insecure-1-2kv@wzc#y258(oji%8-q#@irdi6j-cfihgd!(ey#ap6!9+)6"

	defaultAllowedHosts = "localhost,127.0.0.1"
	defaultLogLevel     = "INFO"

	// StorageCompressedManifest selects hashed, precompressed static files.
	StorageCompressedManifest = "compressed-manifest"

	hstsOneYear = 31536000
)

// Settings is the fully resolved production configuration. It is built once
// at startup and treated as read-only afterwards.
type Settings struct {
	BaseDir            string                         `yaml:"base_dir"`
	Debug              bool                           `yaml:"debug"`
	SecretKey          string                         `yaml:"secret_key"`
	AllowedHosts       []string                       `yaml:"allowed_hosts"`
	Databases          map[string]database.Descriptor `yaml:"databases"`
	StaticURL          string                         `yaml:"static_url"`
	StaticRoot         string                         `yaml:"static_root"`
	StaticFilesDirs    []string                       `yaml:"staticfiles_dirs"`
	StaticFilesStorage string                         `yaml:"staticfiles_storage"`
	Middleware         []string                       `yaml:"middleware"`
	Security           config.SecurityConfig          `yaml:"security"`
	MediaURL           string                         `yaml:"media_url"`
	MediaRoot          string                         `yaml:"media_root"`
	Logging            logging.Config                 `yaml:"logging"`
	Server             config.ServerConfig            `yaml:"server"`
}

// DefaultDatabase returns the "default" connection descriptor.
func (s Settings) DefaultDatabase() database.Descriptor {
	return s.Databases["default"]
}

// Build applies the production overlay to base using values from env. It
// does not modify base.
func Build(env config.Env, base config.Config) (Settings, error) {
	if strings.TrimSpace(base.BaseDir) == "" {
		return Settings{}, &config.ConfigurationError{Key: "BASE_DIR", Reason: "must not be empty"}
	}

	debug, err := config.Bool(env, "DEBUG", false)
	if err != nil {
		return Settings{}, err
	}

	db, err := resolveDatabase(env, base.BaseDir)
	if err != nil {
		return Settings{}, err
	}

	middleware, err := insertAt(base.Middleware, 1, config.MiddlewareStatic)
	if err != nil {
		return Settings{}, err
	}

	security := copySecurity(base.Security)
	if !debug {
		sslRedirect, err := config.Bool(env, "SECURE_SSL_REDIRECT", true)
		if err != nil {
			return Settings{}, err
		}
		security.SecureBrowserXSSFilter = true
		security.SecureContentTypeNosniff = true
		security.SecureHSTSIncludeSubdomains = true
		security.SecureHSTSSeconds = hstsOneYear
		security.SecureRedirectExempt = []string{}
		security.SecureSSLRedirect = sslRedirect
		security.SessionCookieSecure = true
		security.CSRFCookieSecure = true
		security.SecureHSTSPreload = true
	}

	logCfg, err := loggingConfig(env)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		BaseDir:      base.BaseDir,
		Debug:        debug,
		SecretKey:    config.String(env, "SECRET_KEY", InsecureSecretKey),
		AllowedHosts: config.List(env, "ALLOWED_HOSTS", defaultAllowedHosts),
		Databases: map[string]database.Descriptor{
			"default": db,
		},
		StaticURL:          "/static/",
		StaticRoot:         filepath.Join(base.BaseDir, "staticfiles"),
		StaticFilesDirs:    []string{filepath.Join(base.BaseDir, "static")},
		StaticFilesStorage: StorageCompressedManifest,
		Middleware:         middleware,
		Security:           security,
		MediaURL:           "/media/",
		MediaRoot:          filepath.Join(base.BaseDir, "media"),
		Logging:            logCfg,
		Server:             base.Server,
	}, nil
}

func resolveDatabase(env config.Env, baseDir string) (database.Descriptor, error) {
	raw := strings.TrimSpace(config.String(env, "DATABASE_URL", ""))
	if raw == "" {
		raw = database.SQLiteURL(baseDir, "db.sqlite3")
	}
	return database.Parse(raw)
}

// insertAt returns a copy of list with item inserted at index.
func insertAt(list []string, index int, item string) ([]string, error) {
	if len(list) < index {
		return nil, &config.ConfigurationError{
			Key:    "MIDDLEWARE",
			Reason: "base middleware must contain at least one entry",
		}
	}
	out := make([]string, 0, len(list)+1)
	out = append(out, list[:index]...)
	out = append(out, item)
	out = append(out, list[index:]...)
	return out, nil
}

func copySecurity(in config.SecurityConfig) config.SecurityConfig {
	out := in
	if in.SecureRedirectExempt != nil {
		out.SecureRedirectExempt = append([]string(nil), in.SecureRedirectExempt...)
	}
	return out
}

func loggingConfig(env config.Env) (logging.Config, error) {
	level := config.String(env, "DJANGO_LOG_LEVEL", defaultLogLevel)
	if _, err := logging.ParseLevel(level); err != nil {
		return logging.Config{}, &config.CastError{Key: "DJANGO_LOG_LEVEL", Value: level, Type: "log level", Err: config.ErrInvalidLevel}
	}

	return logging.Config{
		Version:                1,
		DisableExistingLoggers: false,
		Handlers: map[string]logging.HandlerConfig{
			"console": {Class: logging.ClassStream},
		},
		Root: logging.LoggerConfig{
			Handlers: []string{"console"},
		},
		Loggers: map[string]logging.LoggerConfig{
			logging.FrameworkLogger: {
				Handlers:  []string{"console"},
				Level:     level,
				Propagate: false,
			},
		},
	}, nil
}
