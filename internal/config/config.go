package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string `toml:"log_level"`
	JSONLog  bool   `toml:"json_log"`

	// Portal
	BaseURL   string   `toml:"base_url"`
	UserAgent string   `toml:"user_agent"`
	Proxy     string   `toml:"proxy"`
	Proxies   []string `toml:"proxies"`

	// Rate Limiting
	RequestsPerMinute int           `toml:"requests_per_minute"`
	MinDelay          time.Duration `toml:"min_delay"`
	MaxDelay          time.Duration `toml:"max_delay"`

	// Browser
	BrowserHeadless bool          `toml:"headless"`
	ChromePath      string        `toml:"chrome_path"`
	PageTimeout     time.Duration `toml:"page_timeout"`

	// Sessions
	ProfileDir       string        `toml:"profile_dir"`
	ProfileStaleness time.Duration `toml:"profile_staleness"`
	SessionTTL       time.Duration `toml:"session_ttl"`
	WorkerPoolSize   int           `toml:"worker_pool_size"`
	ResultTTL        time.Duration `toml:"result_ttl"`

	// Crawling
	MaxPages int `toml:"max_pages"`
}

// Load builds a Config by combining defaults, an optional TOML config file,
// environment variables, and CLI flags, in that precedence order.
// Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := &Config{
		LogLevel:          DefaultLogLevel,
		JSONLog:           DefaultJSONLog,
		BaseURL:           DefaultBaseURL,
		UserAgent:         DefaultUserAgent,
		RequestsPerMinute: DefaultRequestsPerMinute,
		MinDelay:          DefaultMinDelay,
		MaxDelay:          DefaultMaxDelay,
		BrowserHeadless:   DefaultBrowserHeadless,
		PageTimeout:       DefaultPageTimeout,
		ProfileStaleness:  DefaultProfileStaleness,
		SessionTTL:        DefaultSessionTTL,
		WorkerPoolSize:    DefaultWorkerPoolSize,
		ResultTTL:         DefaultResultTTL,
		MaxPages:          DefaultMaxPages,
	}

	// Config file, when named on the command line or in the environment.
	path := os.Getenv("CVSCOUT_CONFIG")
	if cmd != nil {
		if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
			path = f.Value.String()
		}
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	// Override from environment variables (simple helpers)
	if v := os.Getenv("CVSCOUT_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("CVSCOUT_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("CVSCOUT_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CVSCOUT_CHROME_PATH"); v != "" {
		cfg.ChromePath = v
	}
	if v := os.Getenv("CVSCOUT_PROFILE_DIR"); v != "" {
		cfg.ProfileDir = v
	}
	if v := os.Getenv("CVSCOUT_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RequestsPerMinute = n
		}
	}

	// Read CLI flags if provided
	if cmd != nil {
		if f := cmd.Flags().Lookup("base-url"); f != nil {
			if s := f.Value.String(); s != "" {
				cfg.BaseURL = s
			}
		}
		if f := cmd.Flags().Lookup("proxy"); f != nil {
			if s := f.Value.String(); s != "" {
				cfg.Proxy = s
			}
		}
		if f := cmd.Flags().Lookup("timeout"); f != nil {
			if s := f.Value.String(); s != "" {
				if d, err := time.ParseDuration(s); err == nil {
					cfg.PageTimeout = d
				}
			}
		}
		if f := cmd.Flags().Lookup("headful"); f != nil {
			if f.Value.String() == "true" {
				cfg.BrowserHeadless = false
			}
		}
		if f := cmd.Flags().Lookup("json"); f != nil {
			if f.Value.String() == "true" {
				cfg.JSONLog = true
			}
		}
		if f := cmd.Flags().Lookup("verbose"); f != nil {
			if f.Value.String() == "true" {
				cfg.LogLevel = "debug"
			}
		}
		if f := cmd.Flags().Lookup("quiet"); f != nil {
			if f.Value.String() == "true" {
				cfg.LogLevel = "error"
			}
		}
		if f := cmd.Flags().Lookup("workers"); f != nil {
			if n, err := strconv.Atoi(f.Value.String()); err == nil && n > 0 {
				cfg.WorkerPoolSize = n
			}
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
