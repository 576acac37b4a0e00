package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hfcore.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Given no file When loaded Then defaults apply", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if err == nil {
			t.Fatal("expected error for explicit missing file")
		}

		cfg, err = Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Server.Addr != ":8080" {
			t.Errorf("addr = %q, want :8080", cfg.Server.Addr)
		}
		if cfg.Sanity.Dataset != "production" || cfg.Sanity.APIVersion != "2024-01-01" {
			t.Errorf("sanity defaults = %+v", cfg.Sanity)
		}
		if cfg.Resolver.CacheTTL != time.Minute {
			t.Errorf("cache ttl = %s, want 1m", cfg.Resolver.CacheTTL)
		}
	})

	t.Run("Given a YAML file When loaded Then values override defaults", func(t *testing.T) {
		path := writeConfigFile(t, `
server:
  addr: ":9090"
  trigger_secret: "s3cret"
sanity:
  project_id: "abc123"
  token: "sk_test"
woo:
  base_url: "https://shop.helvetiforma.ch"
  consumer_key: "ck_x"
  consumer_secret: "cs_x"
stripe:
  webhook_secret: "whsec_x"
resolver:
  cache_ttl: 30s
`)

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Server.Addr != ":9090" {
			t.Errorf("addr = %q, want :9090", cfg.Server.Addr)
		}
		if cfg.Resolver.CacheTTL != 30*time.Second {
			t.Errorf("cache ttl = %s, want 30s", cfg.Resolver.CacheTTL)
		}
		if cfg.Sanity.Dataset != "production" {
			t.Errorf("dataset = %q, default lost", cfg.Sanity.Dataset)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate failed on a complete config: %v", err)
		}
	})

	t.Run("Given environment variables When loaded Then they override the file", func(t *testing.T) {
		path := writeConfigFile(t, `
stripe:
  webhook_secret: "whsec_file"
`)
		t.Setenv("HF_STRIPE_WEBHOOK_SECRET", "whsec_env")
		t.Setenv("HF_WOO_BASE_URL", "https://shop.helvetiforma.ch")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Stripe.WebhookSecret != "whsec_env" {
			t.Errorf("webhook secret = %q, want env value", cfg.Stripe.WebhookSecret)
		}
		if cfg.Woo.BaseURL != "https://shop.helvetiforma.ch" {
			t.Errorf("woo base url = %q, want env value", cfg.Woo.BaseURL)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("Given an empty config When validated Then every missing key is named", func(t *testing.T) {
		err := DefaultConfig().Validate()
		if err == nil {
			t.Fatal("expected validation error")
		}
		for _, key := range []string{
			"server.trigger_secret",
			"sanity.project_id",
			"sanity.token",
			"woo.base_url",
			"woo.consumer_key",
			"woo.consumer_secret",
			"stripe.webhook_secret",
		} {
			if !strings.Contains(err.Error(), key) {
				t.Errorf("error does not name %s: %v", key, err)
			}
		}
	})

	t.Run("Given a base URL instead of a project id When validated Then accepted", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.TriggerSecret = "s"
		cfg.Sanity.BaseURL = "http://localhost:3333"
		cfg.Sanity.Token = "tk"
		cfg.Woo.BaseURL = "https://shop.helvetiforma.ch"
		cfg.Woo.ConsumerKey = "ck"
		cfg.Woo.ConsumerSecret = "cs"
		cfg.Stripe.WebhookSecret = "whsec"

		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})
}
