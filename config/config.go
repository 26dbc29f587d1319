package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"stakevault/core/epoch"
	"stakevault/crypto"
	"stakevault/native/cdp"
	"stakevault/native/vault"
	"stakevault/storage"
)

// Config is the protocol configuration shared by every host of the engines.
type Config struct {
	Protocol   Protocol   `toml:"protocol"`
	Collateral Collateral `toml:"collateral"`
	Epoch      Epoch      `toml:"epoch"`
	Storage    Storage    `toml:"storage"`
	Identities Identities `toml:"identities"`
}

// Default returns the production parameters with a local data directory.
func Default() *Config {
	vp := vault.DefaultParams()
	cp := cdp.DefaultParams()
	ec := epoch.DefaultConfig()
	return &Config{
		Protocol: Protocol{
			ProtocolFeeBps:     vp.ProtocolFeeBps,
			MaxOperatorFeeBps:  vp.MaxOperatorFeeBps,
			MinStakeAmount:     vp.MinStakeAmount,
			MaxVaultNameLength: vp.MaxNameLength,
		},
		Collateral: Collateral{
			MinCollateralRatioBps:   cp.MinCollateralRatioBps,
			LiquidationThresholdBps: cp.LiquidationThresholdBps,
			LiquidationBonusBps:     cp.LiquidationBonusBps,
		},
		Epoch: Epoch{
			GenesisUnix:  ec.Genesis.Unix(),
			EpochSeconds: uint64(ec.Length.Seconds()),
		},
		Storage: Storage{Backend: storage.BackendLevelDB, DataDir: "./stakevault-data"},
	}
}

// Load loads the configuration from the given path, writing a default file
// when none exists. Sections missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// StorageOptions returns the backend selection for storage.Open.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend: c.Storage.Backend,
		DataDir: c.Storage.DataDir,
		DSN:     c.Storage.DSN,
	}
}

// AuthorityIdentity decodes the configured authority.
func (c *Config) AuthorityIdentity() ([20]byte, error) {
	return parseRequiredIdentity("Authority", c.Identities.Authority)
}

// TreasuryIdentity decodes the configured treasury.
func (c *Config) TreasuryIdentity() ([20]byte, error) {
	return parseRequiredIdentity("Treasury", c.Identities.Treasury)
}

func parseRequiredIdentity(name, value string) ([20]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, fmt.Errorf("identities: %s not configured", name)
	}
	id, err := crypto.ParseIdentity(value)
	if err != nil {
		return [20]byte{}, fmt.Errorf("identities: invalid %s: %w", name, err)
	}
	if crypto.FromArray(crypto.AccountPrefix, id).IsZero() {
		return [20]byte{}, fmt.Errorf("identities: %s must not be the zero identity", name)
	}
	return id, nil
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
