package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TLSConfig holds paths to the PEM files needed to talk to the node over
// mTLS. When nil or all paths empty, the client falls back to plain HTTP(S)
// with the system root CA pool.
type TLSConfig struct {
	CACert     string `json:"ca_cert"`     // CA certificate PEM path, verifies the node
	ClientCert string `json:"client_cert"` // this baker's client certificate PEM path
	ClientKey  string `json:"client_key"`  // this baker's client private key PEM path
}

// Config holds all baker configuration.
type Config struct {
	NodeURL      string     `json:"node_url"`               // base URL of the trusted node's RPC endpoint
	ChainName    string     `json:"chain"`                  // RPC path segment, usually "main"
	Network      string     `json:"network"`                // selects a NetworkPreset: mainnet | testnet | zeronet
	DataDir      string     `json:"data_dir"`                // holds the nonce store LevelDB and history LevelDB
	KeystorePath string     `json:"keystore_path"`           // path to the encrypted delegate keystore
	PollInterval Duration   `json:"poll_interval"`            // Controller tick period, ~1s
	TLS          *TLSConfig `json:"tls,omitempty"`           // nil → plain HTTP(S)
	RPCAuthToken string     `json:"rpc_auth_token,omitempty"` // empty → no auth header sent
}

// Duration wraps time.Duration so config files can use human-readable
// strings ("1s", "500ms") instead of raw nanosecond integers.
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// DefaultConfig returns a single-delegate development configuration aimed at
// a locally running node.
func DefaultConfig() *Config {
	return &Config{
		NodeURL:      "http://127.0.0.1:8732",
		ChainName:    "main",
		Network:      "testnet",
		DataDir:      "./data",
		KeystorePath: "./baker.key",
		PollInterval: Duration(time.Second),
	}
}

// Load reads a JSON config file from path and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.NodeURL == "" {
		return fmt.Errorf("node_url must not be empty")
	}
	if c.ChainName == "" {
		return fmt.Errorf("chain must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.KeystorePath == "" {
		return fmt.Errorf("keystore_path must not be empty")
	}
	if _, ok := Presets[c.Network]; !ok {
		return fmt.Errorf("network %q is not a known preset (mainnet, testnet, zeronet)", c.Network)
	}
	if c.PollInterval.Duration() <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.TLS != nil {
		t := c.TLS
		allSet := t.ClientCert != "" && t.ClientKey != ""
		allEmpty := t.ClientCert == "" && t.ClientKey == ""
		if !allSet && !allEmpty {
			return fmt.Errorf("tls: client_cert and client_key must both be set or both empty")
		}
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Preset resolves the configured network name to its NetworkPreset.
// Validate must have been called (or the zero value returned) before this
// is safe to call unchecked.
func (c *Config) Preset() NetworkPreset {
	return Presets[c.Network]
}
