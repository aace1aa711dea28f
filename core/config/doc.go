// Package config provides configuration management for the reconciler.
//
// It loads an optional .env file with godotenv and reads environment variables through
// Viper. Defaults come from the `default` struct tags of every section.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP port, API key and body limit
//   - Log: logging level and format
//   - Reconcile: default provider and target, timeout, attempts, batch concurrency, disabled providers
//   - Consul, Etcd, Storage, Database, CloudFront: per-provider connection settings
//
// Nested keys map to environment variables by replacing dots with underscores, so
// reconcile.max_attempts is RECONCILE_MAX_ATTEMPTS. List values are comma separated.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Reconcile.Provider)
package config
