package config

import (
	"fmt"
	"strings"

	"stakevault/crypto"
	"stakevault/storage"
)

// Validate rejects configurations the engines would misbehave under.
func (c *Config) Validate() error {
	if err := c.VaultParams().Validate(); err != nil {
		return fmt.Errorf("protocol: %w", err)
	}
	if err := c.CollateralParams().Validate(); err != nil {
		return fmt.Errorf("collateral: %w", err)
	}
	if c.Epoch.EpochSeconds == 0 {
		return fmt.Errorf("epoch: EpochSeconds must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Backend)) {
	case "", storage.BackendLevelDB, storage.BackendBolt, storage.BackendSQLite:
		if strings.TrimSpace(c.Storage.DataDir) == "" {
			return fmt.Errorf("storage: DataDir required")
		}
	case storage.BackendPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage: DSN required for postgres")
		}
	default:
		return fmt.Errorf("storage: unknown Backend %q", c.Storage.Backend)
	}
	for name, value := range map[string]string{
		"Authority": c.Identities.Authority,
		"Treasury":  c.Identities.Treasury,
	} {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if _, err := crypto.ParseIdentity(value); err != nil {
			return fmt.Errorf("identities: invalid %s: %w", name, err)
		}
	}
	return nil
}
