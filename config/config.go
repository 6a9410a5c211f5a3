package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"lendledger/native/lending"
	"lendledger/storage"
)

// Config is the ledger node configuration.
type Config struct {
	Lending   lending.Config `toml:"lending"`
	Storage   Storage        `toml:"storage"`
	Logging   Logging        `toml:"logging"`
	Telemetry Telemetry      `toml:"telemetry"`
	Journal   Journal        `toml:"journal"`
	Pauses    Pauses         `toml:"pauses"`
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		Lending: lending.DefaultConfig(),
		Storage: Storage{Backend: storage.BackendLevelDB, Path: "./lendledger-data"},
		Logging: Logging{
			Service:    "lendledger",
			Env:        "local",
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
		Telemetry: Telemetry{Insecure: true},
		Journal:   Journal{DSN: "./lendledger-data/journal.db"},
		Pauses:    Pauses{Actions: []string{}},
	}
}

// Load loads the configuration from the given path, writing the defaults
// there first when the file does not exist. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if cfg.Pauses.Actions == nil {
		cfg.Pauses.Actions = []string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
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
