package config

import (
	"fmt"
	"strings"

	"lendledger/native/lending"
	"lendledger/storage"
)

// Validate checks every section for values the node cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if err := c.Lending.Validate(); err != nil {
		return fmt.Errorf("lending: %w", err)
	}
	switch backend := strings.ToLower(strings.TrimSpace(c.Storage.Backend)); backend {
	case "", storage.BackendMemory:
	case storage.BackendLevelDB, storage.BackendBolt:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage: %s backend requires Path", backend)
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		return fmt.Errorf("logging: MaxSizeMB and MaxBackups must not be negative")
	}
	if r := c.Telemetry.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry: SampleRatio %v outside [0,1]", r)
	}
	known := make(map[string]struct{})
	for _, action := range lending.Actions() {
		known[action] = struct{}{}
	}
	for _, action := range c.Pauses.Actions {
		if _, ok := known[strings.TrimSpace(action)]; !ok {
			return fmt.Errorf("pauses: unknown lending action %q", action)
		}
	}
	return nil
}
