package kv

import "time"

// Config holds the reconcile section: call defaults and service limits.
type Config struct {
	// Provider is used when a request names none.
	Provider string `mapstructure:"provider" default:"consul"`
	// Host is used when a request names none. Providers with their own endpoint
	// settings (s3, sql, cloudfront) ignore it.
	Host string `mapstructure:"host" default:"127.0.0.1"`
	// Port overrides the provider default when a request names none. 0 keeps the default.
	// Like Host, it does not apply to providers with their own endpoint settings.
	Port int `mapstructure:"port" default:"0"`
	// Timeout bounds one reconciliation when the request sets neither timeout nor delay.
	Timeout time.Duration `mapstructure:"timeout" default:"300s"`
	// MaxAttempts bounds read-decide-apply rounds on token mismatch.
	MaxAttempts int `mapstructure:"max_attempts" default:"3"`
	// Concurrency bounds parallel reconciliations within one manifest.
	Concurrency int `mapstructure:"concurrency" default:"8"`
	// DisabledProviders are registered but resolve as unavailable.
	DisabledProviders []string `mapstructure:"disabled_providers" default:""`
}
