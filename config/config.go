// Package config loads the engine's on-disk settings: tree shape
// parameters, data directory, node-cache bound, and feature toggles.
// Grounded on _examples/ssargent-freyjadb/pkg/config/config.go's
// Config/DefaultConfig/LoadConfig trio over gopkg.in/yaml.v3, scoped
// down from an HTTP server's settings to this embeddable engine's.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rickcollette/bptreedb/bptree"
	"github.com/rickcollette/bptreedb/store"
)

// TreeParams mirrors store.TreeParams in YAML-tagged form.
type TreeParams struct {
	T           int `yaml:"t"`
	MinSizeRoot int `yaml:"min_size_root"`
	MinSizeLeaf int `yaml:"min_size_leaf"`
	MinSizeNode int `yaml:"min_size_node"`
}

// Security holds hex-encoded at-rest encryption and header
// authentication keys as loaded from YAML. No package in this module
// reads them: kv.Open takes its header HMAC key as an argument and
// store.NewEncryptedStore takes its key directly.
type Security struct {
	EncryptionKeyHex string `yaml:"encryption_key_hex"`
	HMACKeyHex       string `yaml:"hmac_key_hex"`
}

// Logging mirrors the teacher pack's layered logging config shape.
type Logging struct {
	Level string `yaml:"level"`
}

// Config is the engine's full on-disk configuration.
type Config struct {
	DataDir        string     `yaml:"data_dir"`
	TreeParams     TreeParams `yaml:"tree_params"`
	NodeCacheBound int        `yaml:"node_cache_bound"`
	MetricsEnabled bool       `yaml:"metrics_enabled"`
	Security       Security   `yaml:"security"`
	Logging        Logging    `yaml:"logging"`
}

// DefaultConfig returns the engine's defaults: t=100, leaf/node minima
// equal to t, root minimum of 2, per §6's config surface.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		TreeParams: TreeParams{
			T:           100,
			MinSizeRoot: 2,
			MinSizeLeaf: 100,
			MinSizeNode: 100,
		},
		NodeCacheBound: 0, // unbounded: eviction disabled by default
		MetricsEnabled: false,
		Logging:        Logging{Level: "info"},
	}
}

// TreeShape converts the YAML-facing TreeParams into bptree.Params, the
// form the core tree algorithms and node cache consume.
func (c *Config) TreeShape() bptree.Params {
	return bptree.Params{
		T:           c.TreeParams.T,
		MinSizeRoot: c.TreeParams.MinSizeRoot,
		MinSizeLeaf: c.TreeParams.MinSizeLeaf,
		MinSizeNode: c.TreeParams.MinSizeNode,
	}
}

// StorageTreeParams converts the YAML-facing TreeParams into
// store.TreeParams, the fixed-width form persisted in the params
// trailer (store.StorageParams.TreeParams).
func (c *Config) StorageTreeParams() store.TreeParams {
	return store.TreeParams{
		T:           uint32(c.TreeParams.T),
		MinSizeRoot: uint32(c.TreeParams.MinSizeRoot),
		MinSizeLeaf: uint32(c.TreeParams.MinSizeLeaf),
		MinSizeNode: uint32(c.TreeParams.MinSizeNode),
	}
}

// LoadConfig reads and parses a YAML config file, falling back to
// DefaultConfig's values for any field the file omits.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML, creating the parent directory
// if needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
