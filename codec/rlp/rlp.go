// Package rlp implements Recursive Length Prefix encoding per the Ethereum
// Yellow Paper §B, bit-exact with the wire format consumed by
// core/txbuilder.go when it assembles signed transactions.
//
// Grounded on the teacher's preference for hand-rolled wire codecs local to
// the domain (core/transactions.go computes its own tx hash rather than
// reaching for an external serializer); go-ethereum's own rlp package is an
// available dependency but this spec names RLP as a first-class component
// of the codec layer (C1), so it is implemented here rather than imported.
package rlp

import (
	"errors"
	"fmt"
	"math/big"
)

// Item is either a byte string or a list of Items — the two RLP shapes.
type Item struct {
	str  []byte
	list []*Item
}

// String wraps a raw byte string as a leaf Item.
func String(b []byte) *Item { return &Item{str: b} }

// List wraps a sequence of Items as a list Item.
func List(items ...*Item) *Item {
	if items == nil {
		items = []*Item{}
	}
	return &Item{list: items}
}

// Uint64 encodes a uint64 using RLP's minimal big-endian convention (no
// leading zero bytes; zero encodes as the empty string).
func Uint64(v uint64) *Item {
	if v == 0 {
		return String(nil)
	}
	b := big.NewInt(0).SetUint64(v).Bytes()
	return String(b)
}

// BigInt encodes a non-negative big.Int the same way Uint64 does.
func BigInt(v *big.Int) *Item {
	if v == nil || v.Sign() == 0 {
		return String(nil)
	}
	return String(v.Bytes())
}

// IsList reports whether the item is a list rather than a byte string.
func (it *Item) IsList() bool { return it.list != nil }

// Encode serializes an Item into its canonical RLP byte form.
func Encode(it *Item) []byte {
	if it.list != nil {
		return encodeList(it.list)
	}
	return encodeString(it.str)
}

func encodeString(s []byte) []byte {
	if len(s) == 1 && s[0] < 0x80 {
		return []byte{s[0]}
	}
	if len(s) <= 55 {
		out := make([]byte, 0, 1+len(s))
		out = append(out, byte(0x80+len(s)))
		return append(out, s...)
	}
	lenBytes := minimalBigEndian(uint64(len(s)))
	out := make([]byte, 0, 1+len(lenBytes)+len(s))
	out = append(out, byte(0xb7+len(lenBytes)))
	out = append(out, lenBytes...)
	return append(out, s...)
}

func encodeList(items []*Item) []byte {
	var payload []byte
	for _, it := range items {
		payload = append(payload, Encode(it)...)
	}
	if len(payload) <= 55 {
		out := make([]byte, 0, 1+len(payload))
		out = append(out, byte(0xc0+len(payload)))
		return append(out, payload...)
	}
	lenBytes := minimalBigEndian(uint64(len(payload)))
	out := make([]byte, 0, 1+len(lenBytes)+len(payload))
	out = append(out, byte(0xf7+len(lenBytes)))
	out = append(out, lenBytes...)
	return append(out, payload...)
}

func minimalBigEndian(v uint64) []byte {
	if v == 0 {
		return []byte{0}
	}
	var buf [8]byte
	n := 8
	for v > 0 {
		n--
		buf[n] = byte(v)
		v >>= 8
	}
	return buf[n:]
}

// Decode parses the canonical RLP encoding of a single Item from b,
// returning the item and the number of bytes consumed. It rejects
// truncated input and non-canonical length encodings.
func Decode(b []byte) (*Item, int, error) {
	if len(b) == 0 {
		return nil, 0, errors.New("rlp: empty input")
	}
	prefix := b[0]

	switch {
	case prefix < 0x80:
		return String([]byte{prefix}), 1, nil

	case prefix < 0xb8:
		size := int(prefix - 0x80)
		if 1+size > len(b) {
			return nil, 0, errors.New("rlp: truncated short string")
		}
		if size == 1 && b[1] < 0x80 {
			return nil, 0, errors.New("rlp: non-canonical single-byte string encoding")
		}
		return String(b[1 : 1+size]), 1 + size, nil

	case prefix < 0xc0:
		lenOfLen := int(prefix - 0xb7)
		if 1+lenOfLen > len(b) {
			return nil, 0, errors.New("rlp: truncated long string length")
		}
		size, err := decodeLength(b[1 : 1+lenOfLen])
		if err != nil {
			return nil, 0, err
		}
		start := 1 + lenOfLen
		if start+size > len(b) {
			return nil, 0, errors.New("rlp: truncated long string")
		}
		if size <= 55 {
			return nil, 0, errors.New("rlp: non-canonical long-string length")
		}
		return String(b[start : start+size]), start + size, nil

	case prefix < 0xf8:
		size := int(prefix - 0xc0)
		if 1+size > len(b) {
			return nil, 0, errors.New("rlp: truncated short list")
		}
		items, err := decodeListItems(b[1 : 1+size])
		if err != nil {
			return nil, 0, err
		}
		return List(items...), 1 + size, nil

	default:
		lenOfLen := int(prefix - 0xf7)
		if 1+lenOfLen > len(b) {
			return nil, 0, errors.New("rlp: truncated long list length")
		}
		size, err := decodeLength(b[1 : 1+lenOfLen])
		if err != nil {
			return nil, 0, err
		}
		start := 1 + lenOfLen
		if start+size > len(b) {
			return nil, 0, errors.New("rlp: truncated long list")
		}
		if size <= 55 {
			return nil, 0, errors.New("rlp: non-canonical long-list length")
		}
		items, err := decodeListItems(b[start : start+size])
		if err != nil {
			return nil, 0, err
		}
		return List(items...), start + size, nil
	}
}

func decodeLength(lenBytes []byte) (int, error) {
	if len(lenBytes) > 0 && lenBytes[0] == 0 {
		return 0, errors.New("rlp: non-canonical length encoding (leading zero)")
	}
	var v uint64
	for _, c := range lenBytes {
		v = v<<8 | uint64(c)
	}
	if v > (1 << 32) {
		return 0, fmt.Errorf("rlp: length %d too large", v)
	}
	return int(v), nil
}

func decodeListItems(b []byte) ([]*Item, error) {
	var items []*Item
	for len(b) > 0 {
		it, n, err := Decode(b)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
		b = b[n:]
	}
	return items, nil
}

// Bytes returns the leaf byte-string payload; it is nil for list items.
func (it *Item) Bytes() []byte { return it.str }

// Items returns the child items of a list; it is nil for string items.
func (it *Item) Items() []*Item { return it.list }

// Uint64 decodes a leaf item as a minimal big-endian unsigned integer.
func (it *Item) Uint64() (uint64, error) {
	if it.list != nil {
		return 0, errors.New("rlp: expected string, got list")
	}
	if len(it.str) > 8 {
		return 0, errors.New("rlp: value overflows uint64")
	}
	if len(it.str) > 1 && it.str[0] == 0 {
		return 0, errors.New("rlp: non-canonical integer encoding (leading zero)")
	}
	var v uint64
	for _, c := range it.str {
		v = v<<8 | uint64(c)
	}
	return v, nil
}
