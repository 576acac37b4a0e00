package config

import "time"

// Config is the full service configuration. Everything is injected from
// here at construction time; no component reads the environment itself.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Sanity   SanityConfig   `mapstructure:"sanity"`
	Woo      WooConfig      `mapstructure:"woo"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Journal  JournalConfig  `mapstructure:"journal"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`

	// TriggerSecret authenticates service-to-service calls (content
	// store webhook, operator API). Distinct from any user session.
	TriggerSecret string `mapstructure:"trigger_secret"`
}

// SanityConfig configures the content store client.
type SanityConfig struct {
	ProjectID  string        `mapstructure:"project_id"`
	Dataset    string        `mapstructure:"dataset"`
	APIVersion string        `mapstructure:"api_version"`
	Token      string        `mapstructure:"token"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// WooConfig configures the commerce backend client.
type WooConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	ConsumerKey    string        `mapstructure:"consumer_key"`
	ConsumerSecret string        `mapstructure:"consumer_secret"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// StripeConfig configures the payment processor glue.
type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	SuccessURL    string `mapstructure:"success_url"`
	CancelURL     string `mapstructure:"cancel_url"`
}

// ResolverConfig configures the entitlement resolver.
type ResolverConfig struct {
	// CacheTTL bounds how long a determinate access decision is served
	// from memory. Zero disables the cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// JournalConfig configures the reconciliation journal.
type JournalConfig struct {
	DBPath string `mapstructure:"db_path"`
}
