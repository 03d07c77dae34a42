package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Rohith-Pavan/Dare-Exchange/internal/api"
	"github.com/Rohith-Pavan/Dare-Exchange/internal/config"
	"github.com/Rohith-Pavan/Dare-Exchange/internal/database"
	"github.com/Rohith-Pavan/Dare-Exchange/internal/settings"
	"github.com/Rohith-Pavan/Dare-Exchange/internal/staticfiles"
)

// debugAllowedHosts are accepted when DEBUG is on and ALLOWED_HOSTS is empty.
var debugAllowedHosts = []string{"localhost", "127.0.0.1", "::1"}

// App encapsulates the application dependencies and HTTP server.
type App struct {
	settings settings.Settings
	db       *sql.DB
	ownsDB   bool
	static   *staticfiles.Server
	handler  *api.Handler
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
}

// Option customises New.
type Option func(*options)

type options struct {
	fs afero.Fs
	db *sql.DB
}

// WithFs sets the filesystem used for static and media files.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithDB uses an already opened database instead of opening the default
// one. The caller keeps ownership.
func WithDB(db *sql.DB) Option {
	return func(o *options) {
		o.db = db
	}
}

// New initializes the application from resolved settings.
func New(ctx context.Context, s settings.Settings, logger *zap.Logger, opts ...Option) (*App, error) {
	o := options{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(&o)
	}

	for _, w := range settings.Check(s) {
		logger.Warn("deployment check failed", zap.String("id", w.ID), zap.String("message", w.Message))
	}

	app := &App{
		settings: s,
		db:       o.db,
		logger:   logger,
	}
	if app.db == nil {
		desc := s.DefaultDatabase()
		db, err := database.Open(ctx, desc)
		if err != nil {
			return nil, fmt.Errorf("failed to open database %s: %w", desc.URL(), err)
		}
		app.db = db
		app.ownsDB = true
	}

	router, err := app.buildRouter(o.fs)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.router = router
	app.server = NewServer(s.Server, router)

	return app, nil
}

func (a *App) buildRouter(fs afero.Fs) (http.Handler, error) {
	s := a.settings

	static, err := staticfiles.NewServer(fs, s.StaticRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load static files: %w", err)
	}
	a.static = static
	a.logger.Debug("static files loaded", zap.String("root", s.StaticRoot), zap.Int("files", static.Len()))

	hosts := s.AllowedHosts
	if s.Debug && len(hosts) == 0 {
		hosts = debugAllowedHosts
	}

	opts := []api.RouterOption{
		api.WithLogging(s.Server.EnableRequestLogging),
		api.WithRateLimit(s.Server.RateLimitRPS, s.Server.RateLimitBurst),
		api.WithMiddleware(s.Middleware),
		api.WithAllowedHosts(hosts),
		api.WithSecurity(s.Security, s.Server.SecureProxySSLHeader),
		api.WithStaticFiles(s.StaticURL, static),
	}
	if media := mediaHandler(fs, s.MediaURL, s.MediaRoot); media != nil {
		opts = append(opts, api.WithMount(http.MethodGet+" "+s.MediaURL, media))
	}

	a.handler = api.NewHandler(a.db)
	router, err := api.NewRouter(a.handler, a.logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP handler: %w", err)
	}
	return router, nil
}

func mediaHandler(fs afero.Fs, urlPrefix, root string) http.Handler {
	if !strings.HasPrefix(urlPrefix, "/") || !strings.HasSuffix(urlPrefix, "/") || root == "" {
		return nil
	}
	files := http.FileServer(noListingFS{afero.NewHttpFs(fs).Dir(root)})
	return http.StripPrefix(strings.TrimSuffix(urlPrefix, "/"), files)
}

// noListingFS hides directories so uploaded files cannot be enumerated.
type noListingFS struct {
	http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening",
			zap.String("addr", a.server.Addr),
			zap.Bool("debug", a.settings.Debug),
			zap.String("database", string(a.settings.DefaultDatabase().Engine)),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Close releases the database when New opened it.
func (a *App) Close() error {
	if a.ownsDB && a.db != nil {
		return a.db.Close()
	}
	return nil
}
