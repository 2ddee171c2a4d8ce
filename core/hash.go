package core

import "encoding/hex"

// Hash is a 32-byte keccak/SHA digest, used for transaction, block, and
// message hashes throughout the runtime.
type Hash [32]byte

// Hex is an arbitrary-length byte string normalized to a lowercase
// "0x…"-prefixed external form (calldata, RLP payloads, signatures).
type Hex []byte

// Hex returns the lowercase "0x…" textual form.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// Short returns a shortened form for log lines.
func (h Hash) Short() string {
	full := hex.EncodeToString(h[:])
	return full[:6] + ".." + full[len(full)-4:]
}

// Bytes returns a copy of the underlying 32 bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, 32)
	copy(out, h[:])
	return out
}

// HashFromBytes builds a Hash from an arbitrary-length byte slice; slices
// shorter than 32 bytes are left-padded with zero, matching how digests are
// carried internally once truncated/extended at call boundaries.
func HashFromBytes(b []byte) Hash {
	var h Hash
	if len(b) >= 32 {
		copy(h[:], b[len(b)-32:])
		return h
	}
	copy(h[32-len(b):], b)
	return h
}

// String returns the lowercase "0x…" textual form of a variable-length byte
// string.
func (h Hex) String() string { return "0x" + hex.EncodeToString(h) }

// ParseHex decodes a "0x…"-prefixed (or bare) hex string into a Hex value.
func ParseHex(s string) (Hex, error) {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return Hex(b), nil
}
