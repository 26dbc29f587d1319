package cdp

import "stakevault/crypto"

var positionSeed = []byte("position")

// PositionCustody returns the identity that holds a position's collateral.
func PositionCustody(owner [20]byte, vaultID uint64) [20]byte {
	return crypto.Derive(positionSeed, owner[:], crypto.Uint64Seed(vaultID))
}
