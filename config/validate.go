package config

import (
	"fmt"

	"mintgate/core/types"
)

var supportedBackends = map[string]bool{
	"memory":  true,
	"leveldb": true,
	"bolt":    true,
}

// Validate rejects configurations that could not be wired into running
// services.
func Validate(cfg *Config) error {
	if !supportedBackends[cfg.StorageBackend] {
		return fmt.Errorf("config: unsupported storage backend %q", cfg.StorageBackend)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unsupported log level %q", cfg.LogLevel)
	}
	if cfg.Registry.Self != "" {
		if _, err := types.PrincipalFromText(cfg.Registry.Self); err != nil {
			return fmt.Errorf("config: registry.Self: %w", err)
		}
	}
	if err := validPrincipals("registry.Controllers", cfg.Registry.Controllers); err != nil {
		return err
	}
	if err := validPrincipals("registry.Admins", cfg.Registry.Admins); err != nil {
		return err
	}
	if err := validPrincipals("proxy.Controllers", cfg.Proxy.Controllers); err != nil {
		return err
	}
	if cfg.Proxy.DraftUnit != "" {
		if _, err := types.PrincipalFromText(cfg.Proxy.DraftUnit); err != nil {
			return fmt.Errorf("config: proxy.DraftUnit: %w", err)
		}
	}
	return nil
}

func validPrincipals(field string, values []string) error {
	for _, value := range values {
		if _, err := types.PrincipalFromText(value); err != nil {
			return fmt.Errorf("config: %s entry %q: %w", field, value, err)
		}
	}
	return nil
}
