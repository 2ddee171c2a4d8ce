package abi

import (
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Normalize strips parameter names and whitespace from a human-written
// function/event signature, recursively expands tuple components into
// parenthesized lists, and preserves array suffixes — e.g.
// "transfer( address to , uint256 amount )" → "transfer(address,uint256)".
func Normalize(signature string) (string, error) {
	name, args, err := splitSignature(signature)
	if err != nil {
		return "", err
	}
	parts, err := splitTupleComponents(args)
	if err != nil {
		return "", err
	}
	norm := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := normalizeParam(p)
		if err != nil {
			return "", err
		}
		norm = append(norm, n)
	}
	return name + "(" + strings.Join(norm, ",") + ")", nil
}

// splitSignature splits "name(args)" into its name and argument-list body.
func splitSignature(sig string) (name, args string, err error) {
	sig = strings.TrimSpace(sig)
	open := strings.Index(sig, "(")
	if open < 0 || !strings.HasSuffix(sig, ")") {
		return "", "", encErr("malformed signature %q", sig)
	}
	return strings.TrimSpace(sig[:open]), sig[open+1 : len(sig)-1], nil
}

// normalizeParam normalizes a single parameter fragment, which may itself
// be a tuple "(type, type, …) paramName" with an array suffix trailing the
// closing paren, or a plain "type paramName".
func normalizeParam(p string) (string, error) {
	p = strings.TrimSpace(p)
	if strings.HasPrefix(p, "(") {
		close := matchingParen(p)
		if close < 0 {
			return "", encErr("unbalanced tuple in parameter %q", p)
		}
		inner := p[1:close]
		innerParts, err := splitTupleComponents(inner)
		if err != nil {
			return "", err
		}
		norm := make([]string, 0, len(innerParts))
		for _, ip := range innerParts {
			ip = strings.TrimSpace(ip)
			if ip == "" {
				continue
			}
			n, err := normalizeParam(ip)
			if err != nil {
				return "", err
			}
			norm = append(norm, n)
		}
		suffix := extractArraySuffix(p[close+1:])
		return "(" + strings.Join(norm, ",") + ")" + suffix, nil
	}

	// "type name" or "type name[]" or bare "type" / "type[]"
	fields := strings.Fields(p)
	if len(fields) == 0 {
		return "", encErr("empty parameter")
	}
	typ := fields[0]
	suffix := ""
	if open := strings.Index(typ, "["); open >= 0 {
		suffix = typ[open:]
		typ = typ[:open]
	}
	// any trailing array suffix may instead be attached to a following name
	// token, e.g. "uint256 amounts[]" is non-standard but tolerated.
	if len(fields) > 1 {
		last := fields[len(fields)-1]
		if open := strings.Index(last, "["); open >= 0 {
			suffix += last[open:]
		}
	}
	return typ + suffix, nil
}

func matchingParen(s string) int {
	depth := 0
	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func extractArraySuffix(rest string) string {
	var sb strings.Builder
	for i := 0; i < len(rest); i++ {
		if rest[i] == '[' {
			j := strings.Index(rest[i:], "]")
			if j < 0 {
				break
			}
			sb.WriteString(rest[i : i+j+1])
			i += j
		}
	}
	return sb.String()
}

// Selector returns the 4-byte function selector: the first 4 bytes of
// keccak256 of the normalized signature.
func Selector(signature string) ([4]byte, error) {
	norm, err := Normalize(signature)
	if err != nil {
		return [4]byte{}, err
	}
	hash := crypto.Keccak256([]byte(norm))
	var sel [4]byte
	copy(sel[:], hash[:4])
	return sel, nil
}

// EventTopic returns the full 32-byte topic-0 for an event: keccak256 of
// its normalized signature (no truncation, unlike a function selector).
func EventTopic(signature string) ([32]byte, error) {
	norm, err := Normalize(signature)
	if err != nil {
		return [32]byte{}, err
	}
	var topic [32]byte
	copy(topic[:], crypto.Keccak256([]byte(norm)))
	return topic, nil
}

// EncodeIndexedTopic encodes one indexed event parameter into its topic
// slot: a non-dynamic parameter occupies the slot as its padded encoding; a
// dynamic parameter (bytes/string/array) occupies the slot as
// keccak256(encoded-value).
func EncodeIndexedTopic(t Type, v any) ([32]byte, error) {
	var topic [32]byte
	if !t.IsDynamic() {
		enc, err := encodeValue(t, v)
		if err != nil {
			return topic, err
		}
		copy(topic[:], enc[:32])
		return topic, nil
	}
	enc, err := encodeValue(t, v)
	if err != nil {
		return topic, err
	}
	copy(topic[:], crypto.Keccak256(enc))
	return topic, nil
}
