package config

import (
	"time"

	"stakevault/core/epoch"
	"stakevault/native/cdp"
	"stakevault/native/vault"
)

// Protocol holds the vault and fee limits.
type Protocol struct {
	ProtocolFeeBps     uint16 `toml:"ProtocolFeeBps"`
	MaxOperatorFeeBps  uint16 `toml:"MaxOperatorFeeBps"`
	MinStakeAmount     uint64 `toml:"MinStakeAmount"`
	MaxVaultNameLength int    `toml:"MaxVaultNameLength"`
}

// Collateral holds the controller parameters applied at initialisation.
type Collateral struct {
	MinCollateralRatioBps   uint64 `toml:"MinCollateralRatioBps"`
	LiquidationThresholdBps uint64 `toml:"LiquidationThresholdBps"`
	LiquidationBonusBps     uint64 `toml:"LiquidationBonusBps"`
}

// Epoch maps wall-clock time onto epochs.
type Epoch struct {
	GenesisUnix  int64  `toml:"GenesisUnix"`
	EpochSeconds uint64 `toml:"EpochSeconds"`
}

// Storage selects the record store. Backend is "leveldb", "bolt", "sqlite"
// or "postgres"; the last one connects through DSN instead of DataDir.
type Storage struct {
	Backend string `toml:"Backend"`
	DataDir string `toml:"DataDir"`
	DSN     string `toml:"DSN"`
}

// Identities names the registry authority and fee treasury in bech32 form.
// They are only consulted when the registry is first initialised.
type Identities struct {
	Authority string `toml:"Authority"`
	Treasury  string `toml:"Treasury"`
}

// VaultParams converts the [protocol] section into engine limits.
func (c *Config) VaultParams() vault.Params {
	return vault.Params{
		ProtocolFeeBps:    c.Protocol.ProtocolFeeBps,
		MaxOperatorFeeBps: c.Protocol.MaxOperatorFeeBps,
		MinStakeAmount:    c.Protocol.MinStakeAmount,
		MaxNameLength:     c.Protocol.MaxVaultNameLength,
	}
}

// CollateralParams converts the [collateral] section into controller params.
func (c *Config) CollateralParams() cdp.Params {
	return cdp.Params{
		MinCollateralRatioBps:   c.Collateral.MinCollateralRatioBps,
		LiquidationThresholdBps: c.Collateral.LiquidationThresholdBps,
		LiquidationBonusBps:     c.Collateral.LiquidationBonusBps,
	}
}

// EpochConfig converts the [epoch] section into an epoch source config.
func (c *Config) EpochConfig() epoch.Config {
	return epoch.Config{
		Genesis: time.Unix(c.Epoch.GenesisUnix, 0).UTC(),
		Length:  time.Duration(c.Epoch.EpochSeconds) * time.Second,
	}
}
