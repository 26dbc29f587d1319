package vault

import "stakevault/crypto"

// BaseAsset identifies the base staking asset in the token ledger.
var BaseAsset [20]byte

var (
	vaultSeed      = []byte("vault")
	shareMintSeed  = []byte("vault_shares")
	syntheticSeed  = []byte("synthetic_mint")
	controllerSeed = []byte("collateral_controller")
)

// Custody returns the identity that holds a vault's buffered liquidity.
func Custody(vaultID uint64) [20]byte {
	return crypto.Derive(vaultSeed, crypto.Uint64Seed(vaultID))
}

// ShareMintFor returns the share-token identity of a vault.
func ShareMintFor(vaultID uint64) [20]byte {
	return crypto.Derive(shareMintSeed, crypto.Uint64Seed(vaultID))
}

// SyntheticMint returns the synthetic liquidity token identity.
func SyntheticMint() [20]byte {
	return crypto.Derive(syntheticSeed)
}

// ControllerIdentity returns the collateral controller identity.
func ControllerIdentity() [20]byte {
	return crypto.Derive(controllerSeed)
}
