package crypto

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the different types of human-readable address prefixes.
type AddressPrefix string

const (
	// AccountPrefix marks externally owned identities (depositors, operators,
	// liquidators, the treasury and the protocol authority).
	AccountPrefix AddressPrefix = "vlt"
	// CustodyPrefix marks protocol-derived identities that hold assets on
	// behalf of a vault or a collateral position.
	CustodyPrefix AddressPrefix = "vltc"
)

// AddressLength is the width of every identity in bytes.
const AddressLength = 20

// Address represents a 20-byte identity with a human-readable prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

// NewAddress wraps the raw identity bytes. It panics when b is not 20 bytes
// long.
func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != AddressLength {
		panic("address must be 20 bytes long")
	}
	cloned := append([]byte(nil), b...)
	return Address{prefix: prefix, bytes: cloned}
}

// FromArray wraps a fixed-size identity as stored in protocol records.
func FromArray(prefix AddressPrefix, id [AddressLength]byte) Address {
	return NewAddress(prefix, id[:])
}

func (a Address) String() string {
	if len(a.bytes) == 0 {
		return ""
	}
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return a.bytes
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// Array returns the identity in the fixed-width form used by records.
func (a Address) Array() [AddressLength]byte {
	var out [AddressLength]byte
	copy(out[:], a.bytes)
	return out
}

// IsZero reports whether the address is unset or all zero bytes.
func (a Address) IsZero() bool {
	for _, b := range a.bytes {
		if b != 0 {
			return false
		}
	}
	return true
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressLength, len(conv))
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// Derive computes a deterministic custody identity from the supplied seeds.
// Each seed is length-prefixed before hashing so that adjacent seeds cannot be
// re-split into a colliding sequence.
func Derive(seeds ...[]byte) [AddressLength]byte {
	size := 0
	for _, seed := range seeds {
		size += 4 + len(seed)
	}
	buf := make([]byte, 0, size)
	var lenBuf [4]byte
	for _, seed := range seeds {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(seed)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, seed...)
	}
	digest := ethcrypto.Keccak256(buf)
	var out [AddressLength]byte
	copy(out[:], digest[len(digest)-AddressLength:])
	return out
}

// Uint64Seed encodes a numeric seed for Derive.
func Uint64Seed(v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf[:]
}

// FormatIdentity renders a record identity with the account prefix.
func FormatIdentity(id [AddressLength]byte) string {
	return FromArray(AccountPrefix, id).String()
}

// ParseIdentity decodes a bech32 identity of any known prefix into its record
// form.
func ParseIdentity(addrStr string) ([AddressLength]byte, error) {
	addr, err := DecodeAddress(addrStr)
	if err != nil {
		return [AddressLength]byte{}, err
	}
	switch addr.Prefix() {
	case AccountPrefix, CustodyPrefix:
	default:
		return [AddressLength]byte{}, fmt.Errorf("unknown address prefix %q", addr.Prefix())
	}
	return addr.Array(), nil
}
