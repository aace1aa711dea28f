package config

import (
	"reflect"
	"strings"
	"time"

	"kv-reconciler/core/database"
	"kv-reconciler/core/logger"
	"kv-reconciler/core/server"
	"kv-reconciler/core/storage"
	"kv-reconciler/feature/kv"
	"kv-reconciler/feature/providers/cloudfront"
	"kv-reconciler/feature/providers/consul"
	"kv-reconciler/feature/providers/etcd"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Reconcile holds call defaults and limits.
	Reconcile kv.Config `mapstructure:"reconcile"`
	// Consul holds configuration for the Consul provider.
	Consul consul.Config `mapstructure:"consul"`
	// Etcd holds configuration for the etcd provider.
	Etcd etcd.Config `mapstructure:"etcd"`
	// Storage holds configuration for the S3 provider (e.g., S3, Minio).
	Storage storage.Config `mapstructure:"storage"`
	// Database holds configuration for the SQL provider.
	Database database.Config `mapstructure:"database"`
	// CloudFront holds configuration for the CloudFront KeyValueStore provider.
	CloudFront cloudfront.Config `mapstructure:"cloudfront"`
}

// Backends returns the per-provider configuration for the registry.
func (c *Config) Backends() kv.Backends {
	return kv.Backends{
		Consul:     c.Consul,
		Etcd:       c.Etcd,
		Storage:    c.Storage,
		Database:   c.Database,
		CloudFront: c.CloudFront,
	}
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. SERVER_PORT -> server.port)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		switch {
		case field.Type.Kind() == reflect.Slice:
			// Comma separated, so LIST=a,b and default:"a,b" decode alike
			items := []string{}
			for _, s := range strings.Split(defaultValue, ",") {
				if s = strings.TrimSpace(s); s != "" {
					items = append(items, s)
				}
			}
			v.SetDefault(key, items)
		case field.Type == durationType && defaultValue == "":
			v.SetDefault(key, "0s")
		default:
			// Always set default (even if empty) to register the key for AutomaticEnv
			v.SetDefault(key, defaultValue)
		}
	}
}
