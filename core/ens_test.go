package core

import "testing"

func TestNamehashEmpty(t *testing.T) {
	node := Namehash("")
	var zero [32]byte
	if node != zero {
		t.Fatalf("expected zero namehash for empty name")
	}
}

func TestNamehashKnownValue(t *testing.T) {
	// namehash("eth") is a well-known published constant.
	node := Namehash("eth")
	want := "93cdeb708b7545dc668eb9280176169d1c33cfd8ed6f04690a0bcc88a93fc4ae"
	got := HashFromBytes(node[:]).Hex()[2:]
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestNamehashCaseInsensitive(t *testing.T) {
	a := Namehash("Vitalik.ETH")
	b := Namehash("vitalik.eth")
	if a != b {
		t.Fatalf("namehash must lowercase labels before hashing")
	}
}
