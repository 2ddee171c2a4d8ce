package core

// Address & EIP-55 checksum handling for the agent wallet runtime.
//
// Grounded on the teacher's core/address_zero.go (package-level zero
// sentinel) and core/wallet.go (Hex/Short helpers on the address type),
// generalized from the teacher's 20-byte SHA-256/RIPEMD-160 scheme to
// EIP-55 checksummed secp256k1 addresses as required by this spec.

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Address is a raw 20-byte Ethereum account address.
type Address [20]byte

// AddressZero is the reserved all-zero sentinel address.
var AddressZero = Address{}

// IsZero reports whether a equals the reserved sentinel address.
func (a Address) IsZero() bool { return a == AddressZero }

// Bytes returns a copy of the raw 20 address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, 20)
	copy(out, a[:])
	return out
}

// Hex returns the EIP-55 checksummed textual form, "0x"-prefixed.
func (a Address) Hex() string {
	return Checksum(lowerHex(a[:]))
}

// String implements fmt.Stringer with the checksummed form.
func (a Address) String() string { return a.Hex() }

// Short returns a shortened form (first 4 + last 4 hex chars) for logging.
func (a Address) Short() string {
	full := hex.EncodeToString(a[:])
	if len(full) <= 8 {
		return full
	}
	return fmt.Sprintf("%s..%s", full[:4], full[len(full)-4:])
}

// Equal performs case-insensitive comparison on the hex form, matching the
// spec's data-model equality rule for Address.
func (a Address) Equal(b Address) bool { return a == b }

func lowerHex(b []byte) string { return "0x" + hex.EncodeToString(b) }

// ParseAddress accepts a checksummed, all-lowercase, or all-uppercase "0x…"
// 20-byte hex string and returns the decoded Address. Mixed-case input that
// does not match the EIP-55 recasing exactly is rejected.
func ParseAddress(s string) (Address, error) {
	raw := strings.TrimPrefix(s, "0x")
	raw = strings.TrimPrefix(raw, "0X")
	if len(raw) != 40 {
		return Address{}, fmt.Errorf("address: want 40 hex chars, got %d", len(raw))
	}
	lower := strings.ToLower(raw)
	upper := strings.ToUpper(raw)
	mixed := raw != lower && raw != upper

	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return Address{}, fmt.Errorf("address: invalid hex: %w", err)
	}
	var a Address
	copy(a[:], decoded)

	if mixed {
		want := Checksum(lowerHex(a[:]))
		if want != "0x"+raw {
			return Address{}, fmt.Errorf("address: checksum mismatch for %s", s)
		}
	}
	return a, nil
}

// Checksum produces the EIP-55 mixed-case checksummed address for a
// lowercase "0x…"-prefixed address string. Re-casing each hex nibble of the
// address uses the high nibbles of keccak256(ascii(lowercased address)).
func Checksum(lowercased string) string {
	body := strings.TrimPrefix(strings.ToLower(lowercased), "0x")
	hashed := crypto.Keccak256([]byte(body))
	hashHex := hex.EncodeToString(hashed)

	out := make([]byte, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c >= '0' && c <= '9' {
			out[i] = c
			continue
		}
		// nibble i of the hash decides the case of hex letter i.
		nibble := hashHex[i]
		if nibble >= '8' {
			out[i] = c - 32 // upper-case
		} else {
			out[i] = c
		}
	}
	return "0x" + string(out)
}

// FromCommonBytes builds an Address from any 20-byte slice (e.g. a
// go-ethereum common.Address's Bytes()), as the teacher's FromCommon did
// for its own address type in core/transactions.go.
func FromCommonBytes(b []byte) (Address, error) {
	if len(b) != 20 {
		return Address{}, fmt.Errorf("address: want 20 bytes, got %d", len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}
