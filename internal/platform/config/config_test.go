package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Upstream.BaseURL != "" {
		t.Errorf("expected offline mode by default, got base url %s", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.CallTimeout != 5*time.Second {
		t.Errorf("unexpected upstream timeout: %s", cfg.Upstream.CallTimeout)
	}
	if cfg.Pricing.TaxRateBps != 800 {
		t.Errorf("expected default tax rate 800 bps, got %d", cfg.Pricing.TaxRateBps)
	}
	if cfg.Pricing.FreeShippingThreshold != 5000 {
		t.Errorf("expected free shipping over 5000, got %d", cfg.Pricing.FreeShippingThreshold)
	}
	if cfg.Pricing.FlatShippingFee != 599 {
		t.Errorf("expected flat shipping fee 599, got %d", cfg.Pricing.FlatShippingFee)
	}
	if !cfg.Features.EnablePaymentIntents {
		t.Errorf("expected payment intents enabled by default")
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_SERVER_PORT":                "9090",
		"STOREFRONT_SERVER_READ_TIMEOUT":        "20s",
		"STOREFRONT_SERVER_WRITE_TIMEOUT":       "25s",
		"STOREFRONT_SERVER_IDLE_TIMEOUT":        "2m",
		"STOREFRONT_UPSTREAM_BASE_URL":          "https://api.quickshop.example",
		"STOREFRONT_UPSTREAM_TIMEOUT":           "3s",
		"STOREFRONT_PRICING_TAX_RATE_BPS":       "725",
		"STOREFRONT_PRICING_FREE_SHIPPING_OVER": "10000",
		"STOREFRONT_PRICING_FLAT_SHIPPING_FEE":  "799",
		"STOREFRONT_FEATURE_PAYMENT_INTENTS":    "false",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 25*time.Second {
		t.Errorf("unexpected write timeout: %s", cfg.Server.WriteTimeout)
	}
	if cfg.Upstream.BaseURL != "https://api.quickshop.example" {
		t.Errorf("unexpected base url: %s", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.CallTimeout != 3*time.Second {
		t.Errorf("unexpected upstream timeout: %s", cfg.Upstream.CallTimeout)
	}
	if cfg.Pricing.TaxRateBps != 725 {
		t.Errorf("unexpected tax rate: %d", cfg.Pricing.TaxRateBps)
	}
	if cfg.Pricing.FreeShippingThreshold != 10000 {
		t.Errorf("unexpected free shipping threshold: %d", cfg.Pricing.FreeShippingThreshold)
	}
	if cfg.Pricing.FlatShippingFee != 799 {
		t.Errorf("unexpected flat shipping fee: %d", cfg.Pricing.FlatShippingFee)
	}
	if cfg.Features.EnablePaymentIntents {
		t.Errorf("expected payment intents disabled")
	}
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# local overrides\nexport STOREFRONT_SERVER_PORT=7070\nSTOREFRONT_UPSTREAM_BASE_URL=\"https://dev.quickshop.example\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load(WithoutSystemEnv(), WithEnvFile(envPath))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from .env, got %s", cfg.Server.Port)
	}
	if cfg.Upstream.BaseURL != "https://dev.quickshop.example" {
		t.Errorf("expected unquoted base url from .env, got %s", cfg.Upstream.BaseURL)
	}
}

func TestLoadEnvMapBeatsDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("STOREFRONT_SERVER_PORT=7070\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load(WithEnvMap(map[string]string{"STOREFRONT_SERVER_PORT": "6060"}), WithoutSystemEnv(), WithEnvFile(envPath))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "6060" {
		t.Errorf("expected explicit env map to win, got %s", cfg.Server.Port)
	}
}

func TestLoadValidation(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_UPSTREAM_BASE_URL":         "not-a-url",
		"STOREFRONT_PRICING_TAX_RATE_BPS":      "-1",
		"STOREFRONT_PRICING_FLAT_SHIPPING_FEE": "-5",
	}

	_, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	fields := validationErr.Fields()
	want := map[string]bool{
		"Upstream.BaseURL":        false,
		"Pricing.TaxRateBps":      false,
		"Pricing.FlatShippingFee": false,
	}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Errorf("expected %s reported invalid, got %v", field, fields)
		}
	}
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_SERVER_READ_TIMEOUT":  "soon",
		"STOREFRONT_PRICING_TAX_RATE_BPS": "eight percent",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("expected fallback read timeout, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Pricing.TaxRateBps != 800 {
		t.Errorf("expected fallback tax rate, got %d", cfg.Pricing.TaxRateBps)
	}
}
