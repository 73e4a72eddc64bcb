package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cli/browser"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	appconfig "github.com/onosproject/gui-devproxy/internal/config"
	"github.com/onosproject/gui-devproxy/internal/health"
	"github.com/onosproject/gui-devproxy/internal/livereload"
	"github.com/onosproject/gui-devproxy/internal/metrics"
	"github.com/onosproject/gui-devproxy/internal/router"
	"github.com/onosproject/gui-devproxy/internal/server"
	"github.com/onosproject/gui-devproxy/internal/views"
)

const (
	shutdownTimeout    = 10 * time.Second
	healthCheckTimeout = 5 * time.Second
)

// Version is injected at build time using ldflags.
var Version = "(unknown)"

// options holds the command line. Zero values mean "not given" and leave the
// config file or default in place.
type options struct {
	ShowVersion  bool
	ConfigFile   string
	EnvFile      string
	LogFormat    string
	LogLevel     string
	Port         int
	ProxyTarget  string
	SourceTarget string
	SourceDir    string
	ViewDir      string
	Open         *bool
	NoLiveReload bool
}

func main() {
	// Quick check for version flag before full config loading
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			fmt.Printf("gui-devproxy version %s\n", Version)
			return
		}
	}

	if err := loadEnvFile(envFileArg(os.Args[1:])); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts, err := loadOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// envFileArg returns the value of -envfile, which has to be known before the
// flags are parsed because it feeds their environment defaults.
func envFileArg(args []string) string {
	for i, arg := range args {
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		if v, ok := strings.CutPrefix(name, "envfile="); ok {
			return v
		}
		if name == "envfile" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. Without a path, a .env in the working directory is
// loaded when present.
func loadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %q: %w", path, err)
	}
	return nil
}

// loadOptions parses flags and environment variables with precedence: Flag > Env.
// Both override the config file, which overrides the defaults.
func loadOptions(args []string) (options, error) {
	fs := flag.NewFlagSet("gui-devproxy", flag.ContinueOnError)

	opts := options{}
	fs.BoolVar(&opts.ShowVersion, "version", false, "print version and exit")
	fs.StringVar(&opts.ConfigFile, "config", getEnv("CONFIG_FILE", ""), "path to a YAML or HCL config file")
	fs.StringVar(&opts.EnvFile, "envfile", "", "path to a .env file loaded before reading the environment")
	fs.StringVar(&opts.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "log format (json or text)")
	fs.StringVar(&opts.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level (debug, info, warn or error)")
	fs.IntVar(&opts.Port, "port", getEnvInt("PORT", 0), "listen port (default 3000)")
	fs.StringVar(&opts.ProxyTarget, "proxy-target", getEnv("PROXY_TARGET", ""), "ONOS backend URL (default http://localhost:8181)")
	fs.StringVar(&opts.SourceTarget, "source-target", getEnv("SOURCE_TARGET", ""), "source file server URL (default http://localhost:8182)")
	fs.StringVar(&opts.SourceDir, "source-dir", getEnv("SOURCE_DIR", ""), "serve sources from this directory instead of the source target")
	fs.StringVar(&opts.ViewDir, "view-dir", getEnv("VIEW_DIR", ""), "directory listing the core GUI views (default ./app/view/)")
	fs.BoolVar(&opts.NoLiveReload, "no-livereload", getEnvBool("NO_LIVERELOAD", false), "disable file watching and browser reload")
	open := fs.Bool("open", getEnvBool("OPEN", false), "open the GUI in a browser on start")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	openSet := false
	if _, ok := os.LookupEnv("OPEN"); ok {
		openSet = true
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "open" {
			openSet = true
		}
	})
	if openSet {
		opts.Open = open
	}

	if opts.LogFormat != "json" && opts.LogFormat != "text" {
		return options{}, fmt.Errorf("unsupported log format %q: must be \"json\" or \"text\"", opts.LogFormat)
	}
	if _, err := parseLevel(opts.LogLevel); err != nil {
		return options{}, err
	}
	if opts.Port < 0 || opts.Port > 65535 {
		return options{}, fmt.Errorf("port must be between 1 and 65535, got %d", opts.Port)
	}

	return opts, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fallback
		}
		return n
	}
	return fallback
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unsupported log level %q: must be debug, info, warn or error", s)
	}
	return level, nil
}

func setupLogger(format, level string) *slog.Logger {
	return setupLoggerWithWriter(format, level, os.Stdout)
}

func setupLoggerWithWriter(format, level string, writer io.Writer) *slog.Logger {
	lvl, err := parseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	} else {
		handler = slog.NewTextHandler(writer, handlerOpts)
	}
	return slog.New(handler)
}

// applyOptions lays the command line over the file configuration.
func applyOptions(cfg *appconfig.Config, opts options) {
	if opts.Port != 0 {
		cfg.Port = opts.Port
	}
	if opts.ProxyTarget != "" {
		cfg.ProxyTarget = opts.ProxyTarget
	}
	if opts.SourceTarget != "" {
		cfg.SourceTarget = opts.SourceTarget
	}
	if opts.SourceDir != "" {
		cfg.SourceDir = opts.SourceDir
	}
	if opts.ViewDir != "" {
		cfg.ViewDir = opts.ViewDir
	}
	if opts.Open != nil {
		cfg.Open = *opts.Open
	}
	if opts.NoLiveReload {
		cfg.LiveReload = false
	}
}

// loadAppConfig reads the config file, if any, and applies the command line.
func loadAppConfig(opts options) *appconfig.Config {
	cfg := appconfig.Default()
	if opts.ConfigFile != "" {
		fileCfg, configErrs := appconfig.Load(opts.ConfigFile)
		for _, e := range configErrs {
			if fileCfg == nil {
				slog.Error("Config parse failed, continuing with defaults", "error", e)
			} else {
				slog.Warn("Config validation warning", "error", e)
			}
		}
		if fileCfg != nil {
			cfg = fileCfg
			slog.Info("Config loaded", "file", opts.ConfigFile)
		}
	}
	applyOptions(cfg, opts)
	return cfg
}

// app is the assembled proxy.
type app struct {
	cfg     *appconfig.Config
	handler http.Handler
	hub     *livereload.Hub
	watcher *livereload.Watcher
	checker *health.Checker
	logger  *slog.Logger
}

func newApp(cfg *appconfig.Config, logger *slog.Logger) (*app, error) {
	registry, err := views.Scan(cfg.ViewDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read core views: %w", err)
	}
	logger.Info("Core views loaded", "dir", cfg.ViewDir, "count", registry.Len())

	m := metrics.New()

	primary, err := server.NewDevProxyHandler(string(router.OriginPrimary), cfg.ProxyTarget,
		server.WithEngineLogger(logger), server.WithEngineMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("failed to create primary proxy: %w", err)
	}

	origins := []health.Origin{{Name: string(router.OriginPrimary), URL: cfg.ProxyTarget}}

	var source http.Handler
	if cfg.SourceDir != "" {
		source, err = server.NewSourceHandler(cfg.SourceDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create source handler: %w", err)
		}
		logger.Info("Serving sources from disk", "dir", cfg.SourceDir)
	} else {
		source, err = server.NewDevProxyHandler(string(router.OriginSource), cfg.SourceTarget,
			server.WithEngineLogger(logger), server.WithEngineMetrics(m))
		if err != nil {
			return nil, fmt.Errorf("failed to create source proxy: %w", err)
		}
		logger.Info("Proxying sources", "url", cfg.SourceTarget)
		origins = append(origins, health.Origin{Name: string(router.OriginSource), URL: cfg.SourceTarget})
	}

	rt, err := router.New(cfg.Rules(), registry, source, router.WithLogger(logger), router.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	hcfg := server.HandlerConfig{
		Router:  rt,
		Primary: primary,
		Metrics: m,
		Views:   registry,
	}

	if interval := cfg.HealthCheckInterval(); interval > 0 {
		a.checker = health.NewChecker(origins, &http.Client{Timeout: healthCheckTimeout}, interval, logger, m)
		hcfg.Health = a.checker
	}

	if cfg.LiveReload {
		base, err := filepath.Abs(".")
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		patterns, err := livereload.CompilePatterns(base, cfg.Files)
		if err != nil {
			return nil, err
		}
		a.hub = livereload.NewHub(
			livereload.WithHubLogger(logger),
			livereload.WithHubMetrics(m),
			livereload.WithOriginPatterns("localhost:*", "127.0.0.1:*"),
		)
		a.watcher = livereload.NewWatcher(patterns, func(paths []string) {
			a.hub.Broadcast(paths)
		}, logger, livereload.WithDebounce(cfg.DebounceDuration()))
		hcfg.LiveReload = a.hub
		hcfg.LiveReloadEvents = a.hub.Events()
		hcfg.LiveReloadScript = livereload.ClientScript()
	}

	a.handler = server.NewHandler(hcfg)
	logger.Info("Proxying backend", "url", cfg.ProxyTarget)
	return a, nil
}

// serve runs the proxy on ln until ctx is cancelled, then shuts down
// gracefully.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Listening (HTTP)", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if a.watcher != nil {
		g.Go(func() error {
			return a.watcher.Run(gctx)
		})
	}

	if a.checker != nil {
		g.Go(func() error {
			return a.checker.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if a.hub != nil {
			a.hub.Close(shutdownCtx)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		a.logger.Info("Server stopped")
		return nil
	})

	return g.Wait()
}

// run starts the proxy and handles graceful shutdown.
func run(ctx context.Context, opts options) error {
	logger := setupLogger(opts.LogFormat, opts.LogLevel)
	slog.SetDefault(logger)

	slog.Info("Starting GUI dev proxy", "version", Version)

	cfg := loadAppConfig(opts)
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", cfg.Port, err)
	}

	if cfg.Open {
		url := fmt.Sprintf("http://localhost:%d%s", cfg.Port, cfg.Rules().MountPrefix)
		go func() {
			if err := browser.OpenURL(url); err != nil {
				slog.Warn("failed to open browser", "url", url, "error", err)
			}
		}()
	}

	return a.serve(ctx, ln)
}
