package abi

import "math/big"

// Decode reverses Encode: given the same type strings and the encoded
// bytes, it reconstructs the value tree. Addresses decode as [20]byte,
// integers as *big.Int, bytesN as []byte, bytes/string as []byte/string,
// arrays/slices/tuples as []any.
func Decode(typeStrings []string, data []byte) ([]any, error) {
	types := make([]Type, len(typeStrings))
	for i, s := range typeStrings {
		t, err := ParseType(s)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	return decodeTuple(types, data)
}

// decodeTuple decodes the head/tail region for an ordered type sequence
// against the enclosing region's bytes.
func decodeTuple(types []Type, region []byte) ([]any, error) {
	out := make([]any, len(types))
	headPos := 0
	for i, t := range types {
		if t.IsDynamic() {
			if headPos+wordSize > len(region) {
				return nil, encErr("head: insufficient bytes for offset word")
			}
			offset := int(new(big.Int).SetBytes(region[headPos : headPos+wordSize]).Int64())
			headPos += wordSize
			if offset < 0 || offset > len(region) {
				return nil, encErr("offset %d points outside enclosing region (len %d)", offset, len(region))
			}
			v, err := decodeValue(t, region[offset:])
			if err != nil {
				return nil, err
			}
			out[i] = v
		} else {
			size := wordSize * t.StaticSize()
			if headPos+size > len(region) {
				return nil, encErr("head: insufficient bytes for static value")
			}
			v, err := decodeValue(t, region[headPos:headPos+size])
			if err != nil {
				return nil, err
			}
			out[i] = v
			headPos += size
		}
	}
	return out, nil
}

func decodeValue(t Type, region []byte) (any, error) {
	switch t.Kind {
	case KindAddress:
		if len(region) < wordSize {
			return nil, encErr("address: insufficient bytes")
		}
		var a [20]byte
		copy(a[:], region[wordSize-20:wordSize])
		return a, nil

	case KindBool:
		if len(region) < wordSize {
			return nil, encErr("bool: insufficient bytes")
		}
		return region[wordSize-1] != 0, nil

	case KindUint:
		if len(region) < wordSize {
			return nil, encErr("uint%d: insufficient bytes", t.BitSize)
		}
		return new(big.Int).SetBytes(region[:wordSize]), nil

	case KindInt:
		if len(region) < wordSize {
			return nil, encErr("int%d: insufficient bytes", t.BitSize)
		}
		return decodeSignedInt(region[:wordSize]), nil

	case KindBytesN:
		if len(region) < wordSize {
			return nil, encErr("bytes%d: insufficient bytes", t.Size)
		}
		out := make([]byte, t.Size)
		copy(out, region[:t.Size])
		return out, nil

	case KindBytes:
		b, err := decodeDynamicBytes(region)
		if err != nil {
			return nil, err
		}
		return b, nil

	case KindString:
		b, err := decodeDynamicBytes(region)
		if err != nil {
			return nil, err
		}
		return string(b), nil

	case KindArray:
		return decodeFixedSequence(*t.Elem, t.Size, region)

	case KindSlice:
		if len(region) < wordSize {
			return nil, encErr("slice: insufficient bytes for length word")
		}
		count := int(new(big.Int).SetBytes(region[:wordSize]).Int64())
		if count < 0 {
			return nil, encErr("slice: negative length")
		}
		return decodeFixedSequence(*t.Elem, count, region[wordSize:])

	case KindTuple:
		return decodeTuple(t.Components, region)

	default:
		return nil, encErr("unsupported type kind")
	}
}

func decodeFixedSequence(elem Type, count int, region []byte) ([]any, error) {
	types := make([]Type, count)
	for i := range types {
		types[i] = elem
	}
	return decodeTuple(types, region)
}

func decodeDynamicBytes(region []byte) ([]byte, error) {
	if len(region) < wordSize {
		return nil, encErr("dynamic bytes: insufficient bytes for length word")
	}
	length := int(new(big.Int).SetBytes(region[:wordSize]).Int64())
	if length < 0 {
		return nil, encErr("dynamic bytes: negative length")
	}
	start := wordSize
	if start+length > len(region) {
		return nil, encErr("dynamic bytes: payload truncated")
	}
	out := make([]byte, length)
	copy(out, region[start:start+length])
	return out, nil
}

func decodeSignedInt(word []byte) *big.Int {
	n := new(big.Int).SetBytes(word)
	if word[0] < 0x80 {
		return n
	}
	mod := new(big.Int).Lsh(big.NewInt(1), 256)
	return n.Sub(n, mod)
}
