package abi

import (
	"encoding/hex"
	"math/big"
	"testing"
)

func TestSelectorTransfer(t *testing.T) {
	sel, err := Selector("transfer(address,uint256)")
	if err != nil {
		t.Fatalf("selector: %v", err)
	}
	if hex.EncodeToString(sel[:]) != "a9059cbb" {
		t.Fatalf("got %x", sel)
	}
}

func TestSelectorIgnoresWhitespaceAndNames(t *testing.T) {
	sel, err := Selector("  transfer( address to , uint256 amount )")
	if err != nil {
		t.Fatalf("selector: %v", err)
	}
	if hex.EncodeToString(sel[:]) != "a9059cbb" {
		t.Fatalf("got %x", sel)
	}
}

func TestSelectorApproveAllowance(t *testing.T) {
	cases := map[string]string{
		"approve(address,uint256)":           "095ea7b3",
		"allowance(address,address)":         "dd62ed3e",
		"balanceOf(address)":                 "70a08231",
		"transfer(address,uint256)":          "a9059cbb",
	}
	for sig, want := range cases {
		sel, err := Selector(sig)
		if err != nil {
			t.Fatalf("%s: %v", sig, err)
		}
		if hex.EncodeToString(sel[:]) != want {
			t.Fatalf("%s: got %x want %s", sig, sel, want)
		}
	}
}

func TestEventTopicTransfer(t *testing.T) {
	topic, err := EventTopic("Transfer(address,address,uint256)")
	if err != nil {
		t.Fatalf("event topic: %v", err)
	}
	// keccak256("Transfer(address,address,uint256)")
	want := "ddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	if hex.EncodeToString(topic[:]) != want {
		t.Fatalf("got %x want %s", topic, want)
	}
}

func TestTupleRoundtrip(t *testing.T) {
	addr := [20]byte{0xd8, 0xda, 0x6b, 0xf2, 0x69, 0x64, 0xaf, 0x9d, 0x7e, 0xed,
		0x9e, 0x03, 0xe5, 0x34, 0x15, 0xd3, 0x7a, 0xa9, 0x60, 0x45}

	enc, err := Encode([]string{"(address,string,uint256)"}, []any{
		[]any{addr, "hello world", big.NewInt(42)},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	dec, err := Decode([]string{"(address,string,uint256)"}, enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	tuple := dec[0].([]any)
	gotAddr := tuple[0].([20]byte)
	if gotAddr != addr {
		t.Fatalf("address mismatch: %x", gotAddr)
	}
	if tuple[1].(string) != "hello world" {
		t.Fatalf("string mismatch: %v", tuple[1])
	}
	if tuple[2].(*big.Int).Int64() != 42 {
		t.Fatalf("uint mismatch: %v", tuple[2])
	}
}

func TestDynamicArrayRoundtrip(t *testing.T) {
	vals := []any{big.NewInt(1), big.NewInt(2), big.NewInt(3)}
	enc, err := Encode([]string{"uint256[]"}, []any{vals})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := Decode([]string{"uint256[]"}, enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := dec[0].([]any)
	if len(got) != 3 {
		t.Fatalf("want 3 elements, got %d", len(got))
	}
	for i, v := range vals {
		if got[i].(*big.Int).Cmp(v.(*big.Int)) != 0 {
			t.Fatalf("element %d mismatch", i)
		}
	}
}

func TestNestedTupleArrayRoundtrip(t *testing.T) {
	typeStr := "(address,uint256)[]"
	a1 := [20]byte{1}
	a2 := [20]byte{2}
	vals := []any{
		[]any{a1, big.NewInt(10)},
		[]any{a2, big.NewInt(20)},
	}
	enc, err := Encode([]string{typeStr}, []any{vals})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := Decode([]string{typeStr}, enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := dec[0].([]any)
	if len(got) != 2 {
		t.Fatalf("want 2, got %d", len(got))
	}
	first := got[0].([]any)
	if first[0].([20]byte) != a1 || first[1].(*big.Int).Int64() != 10 {
		t.Fatalf("first element mismatch: %+v", first)
	}
}

func TestEncodeRejectsTypeMismatch(t *testing.T) {
	_, err := Encode([]string{"uint256"}, []any{"not a number"})
	if err == nil {
		t.Fatalf("expected type mismatch error")
	}
}

func TestEncodeRejectsArraySizeMismatch(t *testing.T) {
	_, err := Encode([]string{"uint256[3]"}, []any{[]any{big.NewInt(1), big.NewInt(2)}})
	if err == nil {
		t.Fatalf("expected array size mismatch error")
	}
}

func TestEncodeRejectsOutOfRangeUint(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 8) // 256, doesn't fit in uint8
	_, err := Encode([]string{"uint8"}, []any{tooBig})
	if err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestDecodeRejectsInsufficientBytes(t *testing.T) {
	_, err := Decode([]string{"uint256"}, []byte{1, 2, 3})
	if err == nil {
		t.Fatalf("expected insufficient-bytes error")
	}
}

func TestDecodeRejectsOffsetOutsideRegion(t *testing.T) {
	// a single dynamic "bytes" arg whose head offset points past the data.
	head := leftPad32(big.NewInt(1000).Bytes())
	_, err := Decode([]string{"bytes"}, head)
	if err == nil {
		t.Fatalf("expected offset-out-of-range error")
	}
}

func TestSignedIntRoundtrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 127, -128, 1000000, -1000000} {
		enc, err := Encode([]string{"int256"}, []any{big.NewInt(v)})
		if err != nil {
			t.Fatalf("encode %d: %v", v, err)
		}
		dec, err := Decode([]string{"int256"}, enc)
		if err != nil {
			t.Fatalf("decode %d: %v", v, err)
		}
		if dec[0].(*big.Int).Int64() != v {
			t.Fatalf("want %d got %v", v, dec[0])
		}
	}
}
