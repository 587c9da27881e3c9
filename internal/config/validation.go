package config

import "fmt"

func validate(c *Config) error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url must be set")
	}
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests per minute must be > 0")
	}
	if c.MinDelay < 0 || c.MaxDelay < c.MinDelay {
		return fmt.Errorf("delay range is invalid: min %s, max %s", c.MinDelay, c.MaxDelay)
	}
	if c.PageTimeout <= 0 {
		return fmt.Errorf("page timeout must be > 0")
	}
	if c.WorkerPoolSize <= 0 || c.WorkerPoolSize > DefaultMaxWorkerPoolSize {
		return fmt.Errorf("worker pool size must be between 1 and %d", DefaultMaxWorkerPoolSize)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be > 0")
	}
	return nil
}
