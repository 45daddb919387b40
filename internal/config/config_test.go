package config

import "testing"

func TestLoad(t *testing.T) {
	t.Run("requires the gateway secret", func(t *testing.T) {
		t.Setenv("PAYSTACK_SECRET_KEY", "")
		if _, err := Load(); err == nil {
			t.Error("Expected an error without PAYSTACK_SECRET_KEY")
		}
	})

	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("PAYSTACK_SECRET_KEY", "sk_test_abc")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Port != "8080" {
			t.Errorf("Port = %q, want 8080", cfg.Port)
		}
		if cfg.WebhookWorkers != 4 {
			t.Errorf("WebhookWorkers = %d, want 4", cfg.WebhookWorkers)
		}
		if cfg.PaystackBaseURL != "https://api.paystack.co" {
			t.Errorf("PaystackBaseURL = %q", cfg.PaystackBaseURL)
		}
	})

	t.Run("reads overrides", func(t *testing.T) {
		t.Setenv("PAYSTACK_SECRET_KEY", "sk_test_abc")
		t.Setenv("PORT", "9090")
		t.Setenv("WEBHOOK_WORKERS", "16")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Port != "9090" || cfg.WebhookWorkers != 16 {
			t.Errorf("Overrides not applied: %+v", cfg)
		}
	})

	t.Run("rejects a bad worker count", func(t *testing.T) {
		t.Setenv("PAYSTACK_SECRET_KEY", "sk_test_abc")
		t.Setenv("WEBHOOK_WORKERS", "zero")
		if _, err := Load(); err == nil {
			t.Error("Expected an error for a non-numeric worker count")
		}
	})
}
