package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stakevault/crypto"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stakevault.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stakevault.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint16(100), cfg.Protocol.ProtocolFeeBps)
	require.Equal(t, uint64(11_000), cfg.Collateral.MinCollateralRatioBps)
	require.Equal(t, uint64(172_800), cfg.Epoch.EpochSeconds)

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadParsesSections(t *testing.T) {
	authority := crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0x01}, 20)).String()
	treasury := crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0x02}, 20)).String()
	path := writeConfig(t, `
[protocol]
ProtocolFeeBps = 250
MaxOperatorFeeBps = 1000

[collateral]
MinCollateralRatioBps = 12000
LiquidationThresholdBps = 11000

[epoch]
GenesisUnix = 1700000000
EpochSeconds = 3600

[storage]
Backend = "bolt"
DataDir = "/var/lib/stakevault"

[identities]
Authority = "`+authority+`"
Treasury = "`+treasury+`"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	params := cfg.VaultParams()
	require.Equal(t, uint16(250), params.ProtocolFeeBps)
	require.Equal(t, uint16(1000), params.MaxOperatorFeeBps)
	require.Equal(t, uint64(100_000_000), params.MinStakeAmount, "unset keys keep defaults")
	require.Equal(t, uint64(500), cfg.CollateralParams().LiquidationBonusBps)

	require.Equal(t, "bolt", cfg.Storage.Backend)
	require.Equal(t, "/var/lib/stakevault", cfg.StorageOptions().DataDir)

	ec := cfg.EpochConfig()
	require.Equal(t, time.Hour, ec.Length)
	require.Equal(t, int64(1_700_000_000), ec.Genesis.Unix())

	id, err := cfg.AuthorityIdentity()
	require.NoError(t, err)
	require.Equal(t, byte(0x01), id[0])
	id, err = cfg.TreasuryIdentity()
	require.NoError(t, err)
	require.Equal(t, byte(0x02), id[19])
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"threshold at minimum": "[collateral]\nMinCollateralRatioBps = 11000\nLiquidationThresholdBps = 11000\n",
		"fee cap":              "[protocol]\nMaxOperatorFeeBps = 1501\n",
		"min stake lowered":    "[protocol]\nMinStakeAmount = 99999999\n",
		"name field widened":   "[protocol]\nMaxVaultNameLength = 33\n",
		"zero epoch":           "[epoch]\nEpochSeconds = 0\n",
		"bad identity":         "[identities]\nAuthority = \"not-an-address\"\n",
		"unknown key":          "[protocol]\nSurprise = 1\n",
		"unknown backend":      "[storage]\nBackend = \"rocksdb\"\n",
		"postgres without dsn": "[storage]\nBackend = \"postgres\"\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, contents))
			require.Error(t, err)
		})
	}
}

func TestIdentitiesRequiredOnUse(t *testing.T) {
	cfg := Default()
	_, err := cfg.AuthorityIdentity()
	require.Error(t, err)
}

func TestZeroIdentityRejectedOnUse(t *testing.T) {
	cfg := Default()
	cfg.Identities.Treasury = crypto.FormatIdentity([20]byte{})
	_, err := cfg.TreasuryIdentity()
	require.ErrorContains(t, err, "zero identity")
}
