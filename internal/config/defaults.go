package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel          = "info"
	DefaultJSONLog           = false
	DefaultBaseURL           = "https://www.cv-library.co.uk"
	DefaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultRequestsPerMinute = 10
	DefaultMinDelay          = 2 * time.Second
	DefaultMaxDelay          = 5 * time.Second
	DefaultBrowserHeadless   = true
	DefaultPageTimeout       = 30 * time.Second
	DefaultProfileStaleness  = 24 * time.Hour
	DefaultSessionTTL        = time.Duration(0) // sessions live until closed
	DefaultWorkerPoolSize    = 4
	DefaultMaxWorkerPoolSize = 16
	DefaultResultTTL         = 30 * time.Minute
	DefaultMaxPages          = 25
)
