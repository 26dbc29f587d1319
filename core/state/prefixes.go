package state

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	registryKeyBytes    = []byte("protocol/registry")
	controllerKeyBytes  = []byte("cdp/controller")
	vaultPrefix         = []byte("vault/record/")
	ticketPrefix        = []byte("withdrawal/ticket/")
	ticketNoncePrefix   = []byte("withdrawal/nonce/")
	positionPrefix      = []byte("cdp/position/")
	balancePrefix       = []byte("ledger/balance/")
	tokenSupplyPrefix   = []byte("ledger/supply/")
	uint64KeyPartLength = 8
)

// compositeKey hashes prefix followed by the raw key parts. Parts are fixed
// width so no separator is needed.
func compositeKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

func uint64Part(v uint64) []byte {
	buf := make([]byte, uint64KeyPartLength)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func registryKey() []byte {
	return ethcrypto.Keccak256(registryKeyBytes)
}

func controllerKey() []byte {
	return ethcrypto.Keccak256(controllerKeyBytes)
}

func vaultKey(id uint64) []byte {
	return compositeKey(vaultPrefix, uint64Part(id))
}

func ticketKey(vaultID uint64, user [20]byte, id uint64) []byte {
	return compositeKey(ticketPrefix, uint64Part(vaultID), user[:], uint64Part(id))
}

func ticketNonceKey(vaultID uint64, user [20]byte) []byte {
	return compositeKey(ticketNoncePrefix, uint64Part(vaultID), user[:])
}

func positionKey(owner [20]byte, vaultID uint64) []byte {
	return compositeKey(positionPrefix, owner[:], uint64Part(vaultID))
}

func balanceKey(asset, holder [20]byte) []byte {
	return compositeKey(balancePrefix, asset[:], holder[:])
}

func tokenSupplyKey(asset [20]byte) []byte {
	return compositeKey(tokenSupplyPrefix, asset[:])
}
