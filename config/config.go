package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk configuration for a registry node and the
// services it hosts.
type Config struct {
	DataDir        string `toml:"DataDir"`
	SnapshotDB     string `toml:"SnapshotDB"`
	StorageBackend string `toml:"StorageBackend"`
	LogLevel       string `toml:"LogLevel"`
	MetricsAddress string `toml:"MetricsAddress"`

	Registry RegistryConfig `toml:"registry"`
	Proxy    ProxyConfig    `toml:"proxy"`
}

// RegistryConfig configures the provisioning registry.
type RegistryConfig struct {
	Self        string   `toml:"Self"`
	Controllers []string `toml:"Controllers"`
	Admins      []string `toml:"Admins"`
	AssetHost   string   `toml:"AssetHost"`
}

// ProxyConfig configures the draft storage proxy.
type ProxyConfig struct {
	Controllers []string `toml:"Controllers"`
	DraftUnit   string   `toml:"DraftUnit"`
}

// Load loads the configuration from the given path, creating a default
// file when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./mintgate-data"
	}
	if strings.TrimSpace(cfg.SnapshotDB) == "" {
		cfg.SnapshotDB = filepath.Join(cfg.DataDir, "snapshots.db")
	}
	if strings.TrimSpace(cfg.StorageBackend) == "" {
		cfg.StorageBackend = "leveldb"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if strings.TrimSpace(cfg.Registry.AssetHost) == "" {
		cfg.Registry.AssetHost = "icp0.io"
	}
	if cfg.Registry.Controllers == nil {
		cfg.Registry.Controllers = []string{}
	}
	if cfg.Registry.Admins == nil {
		cfg.Registry.Admins = []string{}
	}
	if cfg.Proxy.Controllers == nil {
		cfg.Proxy.Controllers = []string{}
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:        "./mintgate-data",
		StorageBackend: "leveldb",
		LogLevel:       "info",
		MetricsAddress: ":9464",
		Registry: RegistryConfig{
			Controllers: []string{},
			Admins:      []string{},
			AssetHost:   "icp0.io",
		},
		Proxy: ProxyConfig{
			Controllers: []string{},
		},
	}
	applyDefaults(cfg)

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
