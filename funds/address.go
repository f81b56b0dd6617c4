package funds

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"golang.org/x/crypto/hkdf"
)

// Address is the base58check string form of a P2PKH address. The zero value ""
// is the null address and is rejected by every operation that moves value.
type Address string

// NullAddress is the zero Address.
const NullAddress Address = ""

// IsNull reports whether the address is the null address.
func (a Address) IsNull() bool { return a == NullAddress }

// ParseAddress validates s as a P2PKH address string.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return NullAddress, ErrNullAddress
	}
	if _, err := script.NewAddressFromString(s); err != nil {
		return NullAddress, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return Address(s), nil
}

// AddressFromPublicKey returns the mainnet P2PKH address for a public key.
func AddressFromPublicKey(pub *ec.PublicKey) (Address, error) {
	if pub == nil {
		return NullAddress, fmt.Errorf("%w: nil public key", ErrInvalidAddress)
	}
	addr, err := script.NewAddressFromPublicKey(pub, true)
	if err != nil {
		return NullAddress, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return Address(addr.AddressString), nil
}

// DeriveAddress deterministically derives a settlement account address from a
// master seed. The same (seed, index, info) triple always yields the same
// address, so components can recover their custody accounts after a restart.
//
// Derivation: priv = HKDF-SHA256(IKM=seed, salt=BigEndian64(index), Info=info),
// address = P2PKH(pubkey(priv)).
func DeriveAddress(seed []byte, index uint64, info string) (Address, error) {
	priv, err := DeriveKey(seed, index, info)
	if err != nil {
		return NullAddress, err
	}
	return AddressFromPublicKey(priv.PubKey())
}

// DeriveKey derives the private key behind DeriveAddress. Exposed so embedders
// that settle on-chain can sign for the derived accounts.
func DeriveKey(seed []byte, index uint64, info string) (*ec.PrivateKey, error) {
	if len(seed) == 0 {
		return nil, ErrEmptySeed
	}
	salt := make([]byte, 8)
	binary.BigEndian.PutUint64(salt, index)

	r := hkdf.New(sha256.New, seed, salt, []byte(info))
	buf := make([]byte, 32)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("funds: derive key: %w", err)
	}
	priv, _ := ec.PrivateKeyFromBytes(buf)
	return priv, nil
}
