package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/sophiasearch-2025/admin-interface/internal/domain"
)

func TestLoadConfig_FailsWhenUsersURLBlank(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("USERS_SERVICE_URL", "   ")

	cfg, err := LoadConfig()
	if err == nil {
		t.Fatal("expected empty USERS_SERVICE_URL to be rejected")
	}
	if !strings.Contains(err.Error(), "USERS_SERVICE_URL") {
		t.Fatalf("expected error to mention USERS_SERVICE_URL, got %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config on error")
	}
}

func TestLoadConfig_AppliesDefaultsWhenUnset(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("USERS_SERVICE_URL", "")
	t.Setenv("SUBSCRIPTIONS_SERVICE_URL", "")
	t.Setenv("ACCOUNT_STATE_STRATEGY", "")
	t.Setenv("REQUEST_TIMEOUT_MS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.UsersServiceURL != DefaultServiceURL || cfg.SubscriptionsServiceURL != DefaultServiceURL {
		t.Fatalf("expected both services to default to %q, got %q and %q", DefaultServiceURL, cfg.UsersServiceURL, cfg.SubscriptionsServiceURL)
	}
	if cfg.RequestTimeout() != 10*time.Second {
		t.Fatalf("expected 10s request timeout, got %s", cfg.RequestTimeout())
	}
	if cfg.VerifySettleDelay() != time.Second {
		t.Fatalf("expected 1s settle delay, got %s", cfg.VerifySettleDelay())
	}
	if cfg.StateAuthority() != domain.AuthoritySubscription {
		t.Fatalf("expected subscription authority by default, got %q", cfg.StateAuthority())
	}
	if cfg.DefaultPlanID != "basic" {
		t.Fatalf("expected default plan basic, got %q", cfg.DefaultPlanID)
	}
	if cfg.DashboardRefreshSchedule != "@every 30s" {
		t.Fatalf("expected 30s dashboard refresh, got %q", cfg.DashboardRefreshSchedule)
	}
}

func TestLoadConfig_ReadsOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("USERS_SERVICE_URL", "http://users:3000")
	t.Setenv("ACCOUNT_STATE_STRATEGY", "USER")
	t.Setenv("REQUEST_TIMEOUT_MS", "2500")
	t.Setenv("PORT", "9999")
	t.Setenv("CORS_ORIGINS", "https://admin.example.com, http://localhost:5173 ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.UsersServiceURL != "http://users:3000" {
		t.Fatalf("unexpected users url %q", cfg.UsersServiceURL)
	}
	if cfg.StateAuthority() != domain.AuthorityUser {
		t.Fatalf("expected user authority, got %q", cfg.StateAuthority())
	}
	if cfg.RequestTimeout() != 2500*time.Millisecond {
		t.Fatalf("unexpected timeout %s", cfg.RequestTimeout())
	}
	if cfg.ServerPort != "9999" {
		t.Fatalf("expected PORT to override SERVER_PORT, got %q", cfg.ServerPort)
	}
	if got := cfg.AllowedOrigins(); len(got) != 2 || got[0] != "https://admin.example.com" {
		t.Fatalf("unexpected origins %v", got)
	}
}

func TestLoadConfig_RejectsUnknownStrategy(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("ACCOUNT_STATE_STRATEGY", "both")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("expected unknown strategy to be rejected")
	}
	if !strings.Contains(err.Error(), "ACCOUNT_STATE_STRATEGY") {
		t.Fatalf("expected error to mention ACCOUNT_STATE_STRATEGY, got %v", err)
	}
}
