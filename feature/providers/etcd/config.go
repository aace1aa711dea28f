package etcd

import "time"

// Config holds configuration for the etcd provider.
type Config struct {
	// DialTimeout bounds establishing the client connection.
	DialTimeout time.Duration `mapstructure:"dial_timeout" default:"5s"`
	// Username for etcd authentication. Empty disables auth.
	Username string `mapstructure:"username" default:""`
	// Password for etcd authentication.
	Password string `mapstructure:"password" default:""`
}
