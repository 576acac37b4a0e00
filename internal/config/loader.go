// Package config loads service configuration from an optional YAML file
// and HF_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfig returns the configuration before any file or env input.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Sanity: SanityConfig{
			Dataset:    "production",
			APIVersion: "2024-01-01",
			Timeout:    10 * time.Second,
		},
		Woo: WooConfig{
			Timeout: 15 * time.Second,
		},
		Resolver: ResolverConfig{
			CacheTTL: time.Minute,
		},
		Journal: JournalConfig{
			DBPath: filepath.Join(".hfcore", "journal.db"),
		},
	}
}

// Load reads configuration: defaults, then the YAML file at path (if
// path is empty, hfcore.yaml in the working directory, which may be
// absent), then HF_-prefixed environment variables, e.g.
// HF_STRIPE_WEBHOOK_SECRET overrides stripe.webhook_secret.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	bindDefaults(v, defaults)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("hfcore")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// bindDefaults registers every key so AutomaticEnv can see it even when
// neither the file nor the defaults set a value.
func bindDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.trigger_secret", d.Server.TriggerSecret)
	v.SetDefault("sanity.project_id", d.Sanity.ProjectID)
	v.SetDefault("sanity.dataset", d.Sanity.Dataset)
	v.SetDefault("sanity.api_version", d.Sanity.APIVersion)
	v.SetDefault("sanity.token", d.Sanity.Token)
	v.SetDefault("sanity.base_url", d.Sanity.BaseURL)
	v.SetDefault("sanity.timeout", d.Sanity.Timeout)
	v.SetDefault("woo.base_url", d.Woo.BaseURL)
	v.SetDefault("woo.consumer_key", d.Woo.ConsumerKey)
	v.SetDefault("woo.consumer_secret", d.Woo.ConsumerSecret)
	v.SetDefault("woo.timeout", d.Woo.Timeout)
	v.SetDefault("stripe.secret_key", d.Stripe.SecretKey)
	v.SetDefault("stripe.webhook_secret", d.Stripe.WebhookSecret)
	v.SetDefault("stripe.success_url", d.Stripe.SuccessURL)
	v.SetDefault("stripe.cancel_url", d.Stripe.CancelURL)
	v.SetDefault("resolver.cache_ttl", d.Resolver.CacheTTL)
	v.SetDefault("journal.db_path", d.Journal.DBPath)
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var missing []string
	if c.Server.TriggerSecret == "" {
		missing = append(missing, "server.trigger_secret")
	}
	if c.Sanity.ProjectID == "" && c.Sanity.BaseURL == "" {
		missing = append(missing, "sanity.project_id")
	}
	if c.Sanity.Token == "" {
		missing = append(missing, "sanity.token")
	}
	if c.Woo.BaseURL == "" {
		missing = append(missing, "woo.base_url")
	}
	if c.Woo.ConsumerKey == "" {
		missing = append(missing, "woo.consumer_key")
	}
	if c.Woo.ConsumerSecret == "" {
		missing = append(missing, "woo.consumer_secret")
	}
	if c.Stripe.WebhookSecret == "" {
		missing = append(missing, "stripe.webhook_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
