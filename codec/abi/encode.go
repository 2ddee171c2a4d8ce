package abi

import (
	"fmt"
	"math/big"
	"reflect"
)

// EncodingError is returned by Encode/Decode on any shape mismatch.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string { return "abi: " + e.Reason }

func encErr(format string, a ...any) error {
	return &EncodingError{Reason: fmt.Sprintf(format, a...)}
}

const wordSize = 32

// Encode ABI-encodes values against the given Solidity type strings using
// the head/tail layout from spec §4.1: static types occupy 32 bytes inline;
// dynamic types contribute a 32-byte offset in the head and their payload in
// the tail, offsets measured from the start of the enclosing tuple's data
// region.
func Encode(typeStrings []string, values []any) ([]byte, error) {
	if len(typeStrings) != len(values) {
		return nil, encErr("type/value count mismatch: %d types, %d values", len(typeStrings), len(values))
	}
	types := make([]Type, len(typeStrings))
	for i, s := range typeStrings {
		t, err := ParseType(s)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	return encodeTuple(types, values)
}

// encodeTuple encodes an ordered sequence of (type, value) pairs using the
// head/tail layout, as if they were the components of one tuple (or the
// top-level argument list, which is layout-identical).
func encodeTuple(types []Type, values []any) ([]byte, error) {
	headSize := 0
	for _, t := range types {
		if t.IsDynamic() {
			headSize += wordSize
		} else {
			headSize += wordSize * t.StaticSize()
		}
	}

	var head, tail []byte
	for i, t := range types {
		if t.IsDynamic() {
			offset := headSize + len(tail)
			head = append(head, leftPad32(big.NewInt(int64(offset)).Bytes())...)
			enc, err := encodeValue(t, values[i])
			if err != nil {
				return nil, err
			}
			tail = append(tail, enc...)
		} else {
			enc, err := encodeValue(t, values[i])
			if err != nil {
				return nil, err
			}
			head = append(head, enc...)
		}
	}
	return append(head, tail...), nil
}

func encodeValue(t Type, v any) ([]byte, error) {
	switch t.Kind {
	case KindAddress:
		addr, ok := toAddress(v)
		if !ok {
			return nil, encErr("expected address, got %T", v)
		}
		return leftPad32(addr[:]), nil

	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, encErr("expected bool, got %T", v)
		}
		if b {
			return leftPad32([]byte{1}), nil
		}
		return leftPad32(nil), nil

	case KindUint:
		n, ok := toBigInt(v)
		if !ok {
			return nil, encErr("expected integer, got %T", v)
		}
		if n.Sign() < 0 {
			return nil, encErr("uint%d: negative value", t.BitSize)
		}
		if n.BitLen() > t.BitSize {
			return nil, encErr("uint%d: value out of range", t.BitSize)
		}
		return leftPad32(n.Bytes()), nil

	case KindInt:
		n, ok := toBigInt(v)
		if !ok {
			return nil, encErr("expected integer, got %T", v)
		}
		return encodeSignedInt(n, t.BitSize)

	case KindBytesN:
		b, ok := v.([]byte)
		if !ok {
			return nil, encErr("expected []byte, got %T", v)
		}
		if len(b) != t.Size {
			return nil, encErr("bytes%d: got %d bytes", t.Size, len(b))
		}
		return rightPad32(b), nil

	case KindBytes:
		b, ok := v.([]byte)
		if !ok {
			return nil, encErr("bytes: expected []byte, got %T", v)
		}
		return encodeDynamicBytes(b), nil

	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, encErr("string: expected string, got %T", v)
		}
		return encodeDynamicBytes([]byte(s)), nil

	case KindArray:
		vals, ok := v.([]any)
		if !ok {
			return nil, encErr("array: expected []any, got %T", v)
		}
		if len(vals) != t.Size {
			return nil, encErr("array: expected %d elements, got %d", t.Size, len(vals))
		}
		return encodeFixedSequence(*t.Elem, vals)

	case KindSlice:
		vals, ok := v.([]any)
		if !ok {
			return nil, encErr("slice: expected []any, got %T", v)
		}
		payload, err := encodeFixedSequence(*t.Elem, vals)
		if err != nil {
			return nil, err
		}
		return append(leftPad32(big.NewInt(int64(len(vals))).Bytes()), payload...), nil

	case KindTuple:
		vals, ok := v.([]any)
		if !ok {
			return nil, encErr("tuple: expected []any, got %T", v)
		}
		if len(vals) != len(t.Components) {
			return nil, encErr("tuple: expected %d components, got %d", len(t.Components), len(vals))
		}
		return encodeTuple(t.Components, vals)

	default:
		return nil, encErr("unsupported type kind")
	}
}

// encodeFixedSequence encodes a fixed-count sequence of same-typed elements
// (the body of an array, fixed or dynamic-length) using head/tail layout
// when the element type is itself dynamic.
func encodeFixedSequence(elem Type, vals []any) ([]byte, error) {
	types := make([]Type, len(vals))
	for i := range vals {
		types[i] = elem
	}
	return encodeTuple(types, vals)
}

func encodeDynamicBytes(b []byte) []byte {
	out := leftPad32(big.NewInt(int64(len(b))).Bytes())
	return append(out, rightPad32(b)...)
}

func encodeSignedInt(n *big.Int, bits int) ([]byte, error) {
	max := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	min := new(big.Int).Neg(max)
	if n.Cmp(max) >= 0 || n.Cmp(min) < 0 {
		return nil, encErr("int%d: value out of range", bits)
	}
	if n.Sign() >= 0 {
		return leftPad32(n.Bytes()), nil
	}
	// two's complement over 256 bits
	mod := new(big.Int).Lsh(big.NewInt(1), 256)
	twos := new(big.Int).Add(mod, n)
	b := twos.Bytes()
	out := make([]byte, wordSize)
	copy(out[wordSize-len(b):], b)
	return out, nil
}

// rightPad32 right-pads to a 32-byte boundary (bytesN semantics).
func rightPad32(b []byte) []byte {
	padLen := (wordSize - len(b)%wordSize) % wordSize
	out := make([]byte, len(b)+padLen)
	copy(out, b)
	return out
}

// leftPad32 left-pads a value to exactly one 32-byte word.
func leftPad32(b []byte) []byte {
	if len(b) > wordSize {
		b = b[len(b)-wordSize:]
	}
	out := make([]byte, wordSize)
	copy(out[wordSize-len(b):], b)
	return out
}

func toBigInt(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case *big.Int:
		return n, true
	case int64:
		return big.NewInt(n), true
	case int:
		return big.NewInt(int64(n)), true
	case int32:
		return big.NewInt(int64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint:
		return new(big.Int).SetUint64(uint64(n)), true
	default:
		return nil, false
	}
}

// toAddress accepts [20]byte or any named type whose underlying
// representation is [20]byte (e.g. core.Address), so the codec stays
// decoupled from the core package's concrete address type.
func toAddress(v any) ([20]byte, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Array || rv.Len() != 20 || rv.Type().Elem().Kind() != reflect.Uint8 {
		return [20]byte{}, false
	}
	var out [20]byte
	reflect.Copy(reflect.ValueOf(&out).Elem(), rv)
	return out, true
}
