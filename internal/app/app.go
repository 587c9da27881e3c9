// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cvscout/cvscout/internal/auth"
	"github.com/cvscout/cvscout/internal/config"
	"github.com/cvscout/cvscout/internal/driver"
	"github.com/cvscout/cvscout/internal/proxy"
	"github.com/cvscout/cvscout/internal/retry"
	"github.com/cvscout/cvscout/internal/session"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config    *config.Config
	Logger    *zerolog.Logger
	Profiles  *auth.ProfileStore
	Registry  *session.Registry
	startTime time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Opens the browser profile store
//   - Creates the session registry with a browser driver factory
//
// If any step fails, an error is returned and no resources are allocated.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	// Initialize logger based on config
	logLevel := zerolog.ErrorLevel // default: suppress non-verbose info logs
	switch cfg.LogLevel {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	// Treat "info" as non-verbose (don't display info logs unless -v is used)
	default:
		logLevel = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	var logWriter io.Writer
	if cfg.JSONLog {
		// JSON logs to stderr
		logWriter = os.Stderr
	} else {
		// Human-friendly console output otherwise
		logWriter = zerolog.NewConsoleWriter()
	}

	logger := log.Output(logWriter).With().Timestamp().Logger()

	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	profileDir := cfg.ProfileDir
	if profileDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		profileDir = filepath.Join(home, ".cvscout", "profiles")
	}
	profiles, err := auth.NewProfileStore(profileDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	logger.Debug().Str("profile_dir", profileDir).Msg("Profile store opened")

	// Each browser session takes one proxy for its lifetime; the pool
	// spreads sessions across the configured upstreams.
	proxyPool := proxy.NewPool(cfg.Proxies)

	drivers := func(browserDir string) (driver.Driver, error) {
		px := proxyPool.Next()
		if px == "" {
			px = cfg.Proxy
		}
		drv, err := driver.NewChrome(driver.ChromeOptions{
			Headless:   cfg.BrowserHeadless,
			UserAgent:  cfg.UserAgent,
			Proxy:      px,
			ProfileDir: browserDir,
			ExecPath:   cfg.ChromePath,
			OpTimeout:  cfg.PageTimeout,
		})
		if err != nil && px != "" && px != cfg.Proxy {
			proxyPool.MarkFailed(px)
		}
		return drv, err
	}

	registry, err := session.NewRegistry(session.Config{
		BaseURL:           cfg.BaseURL,
		RequestsPerMinute: cfg.RequestsPerMinute,
		MinDelay:          cfg.MinDelay,
		MaxDelay:          cfg.MaxDelay,
		SessionTTL:        cfg.SessionTTL,
		WorkerPoolSize:    cfg.WorkerPoolSize,
		ResultTTL:         cfg.ResultTTL,
		ProfileStaleness:  cfg.ProfileStaleness,
		MaxPages:          cfg.MaxPages,
		Drivers:           drivers,
		Profiles:          profiles,
		Retry:             retry.DefaultConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session registry: %w", err)
	}
	logger.Debug().
		Str("base_url", cfg.BaseURL).
		Int("workers", cfg.WorkerPoolSize).
		Msg("Session registry initialized")

	app := &Application{
		Config:    cfg,
		Logger:    &logger,
		Profiles:  profiles,
		Registry:  registry,
		startTime: time.Now(),
	}

	logger.Info().Msg("Application initialized successfully")
	return app, nil
}

// Close gracefully shuts down the application and all its resources.
//
// The registry cancels in-flight crawls and closes every browser driver.
// Persisted login profiles are left on disk so later runs can restore them.
// Any errors during shutdown are logged but do not prevent other steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Info().Msg("Shutting down application")

	if a.Registry != nil {
		a.Registry.Close()
	}

	uptime := time.Since(a.startTime)
	a.Logger.Info().Dur("uptime", uptime).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
