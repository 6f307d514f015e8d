package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidateRejectsUnknownNetwork(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network = "not-a-network"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown network")
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name  string
		apply func(*Config)
	}{
		{"empty node_url", func(c *Config) { c.NodeURL = "" }},
		{"empty chain", func(c *Config) { c.ChainName = "" }},
		{"empty data_dir", func(c *Config) { c.DataDir = "" }},
		{"empty keystore_path", func(c *Config) { c.KeystorePath = "" }},
		{"zero poll_interval", func(c *Config) { c.PollInterval = Duration(0) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.apply(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestValidateTLSPartialConfigRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TLS = &TLSConfig{ClientCert: "client.pem"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when client_key is missing but client_cert is set")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollInterval = Duration(2500 * time.Millisecond)
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.NodeURL != cfg.NodeURL {
		t.Errorf("NodeURL mismatch: got %q want %q", loaded.NodeURL, cfg.NodeURL)
	}
	if loaded.PollInterval.Duration() != cfg.PollInterval.Duration() {
		t.Errorf("PollInterval mismatch: got %v want %v", loaded.PollInterval.Duration(), cfg.PollInterval.Duration())
	}
}

func TestPresetResolvesNetwork(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network = "zeronet"
	if cfg.Preset() != Presets["zeronet"] {
		t.Error("Preset() did not resolve to the zeronet preset")
	}
}
