package infra

import (
	"errors"
	"strings"
	"testing"
	"time"

	"docbot/internal/domain"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("VERIF_LOGIN", "login")
	t.Setenv("VERIF_PASSWORD", "secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("POLL_TIMEOUT", "")
	t.Setenv("OPS_PORT", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("PollInterval mismatch: got %s", cfg.PollInterval)
	}
	if cfg.PollTimeout != 3*time.Minute {
		t.Fatalf("PollTimeout mismatch: got %s", cfg.PollTimeout)
	}
	if cfg.OpsPort != "9090" {
		t.Fatalf("OpsPort mismatch: got %q", cfg.OpsPort)
	}
	if cfg.ActiveProfile != "veriftools" {
		t.Fatalf("ActiveProfile mismatch: got %q", cfg.ActiveProfile)
	}
}

func TestLoadConfigMissingCredentials(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("VERIF_LOGIN", "login")
	t.Setenv("VERIF_PASSWORD", "")

	_, err := LoadConfig()
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	for _, key := range []string{"BOT_TOKEN", "VERIF_PASSWORD"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("error %q does not name %s", err, key)
		}
	}
}

func TestLoadConfigDurations(t *testing.T) {
	setRequired(t)
	t.Setenv("POLL_INTERVAL", "1")
	t.Setenv("POLL_TIMEOUT", "90s")
	t.Setenv("OPS_PORT", "off")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PollInterval != time.Second {
		t.Fatalf("PollInterval mismatch: got %s", cfg.PollInterval)
	}
	if cfg.PollTimeout != 90*time.Second {
		t.Fatalf("PollTimeout mismatch: got %s", cfg.PollTimeout)
	}
	if cfg.OpsPort != "" {
		t.Fatalf("OpsPort should be disabled, got %q", cfg.OpsPort)
	}
}

func TestLoadConfigRejectsTimeoutBelowInterval(t *testing.T) {
	setRequired(t)
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("POLL_TIMEOUT", "1s")

	if _, err := LoadConfig(); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
