package core

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func testPrivKey(t *testing.T) []byte {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return crypto.FromECDSA(key)
}

func TestNewAccountRejectsBadKeyLength(t *testing.T) {
	if _, err := NewAccount([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for short key")
	}
}

func TestAccountAddressDerivation(t *testing.T) {
	priv := testPrivKey(t)
	acct, err := NewAccount(priv)
	if err != nil {
		t.Fatalf("new account: %v", err)
	}
	defer acct.Dispose()

	if acct.Address().IsZero() {
		t.Fatalf("derived address is zero")
	}
}

func TestSignAndRecoverRoundtrip(t *testing.T) {
	priv := testPrivKey(t)
	acct, err := NewAccount(priv)
	if err != nil {
		t.Fatalf("new account: %v", err)
	}
	defer acct.Dispose()

	digest := sha256.Sum256([]byte("agent wallet test payload"))
	sig, err := acct.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	recovered, err := Recover(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != acct.Address() {
		t.Fatalf("recovered address mismatch: got %s want %s", recovered.Hex(), acct.Address().Hex())
	}

	ok, err := Verify(digest, sig, acct.Address())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("signature did not verify")
	}
}

func TestSignNormalizesLowS(t *testing.T) {
	priv := testPrivKey(t)
	acct, err := NewAccount(priv)
	if err != nil {
		t.Fatalf("new account: %v", err)
	}
	defer acct.Dispose()

	var halfOrderPlusOne = [32]byte{
		0x7f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0x5d, 0x57, 0x6e, 0x73, 0x57, 0xa4, 0x50, 0x1d,
		0xdf, 0xe9, 0x2f, 0x46, 0x68, 0x1b, 0x20, 0xa1,
	}

	// Exercise across several digests; at least one signature's raw s should
	// have required flipping, but regardless every returned S must already
	// sit at or below the half order.
	for i := 0; i < 25; i++ {
		digest := sha256.Sum256([]byte{byte(i)})
		sig, err := acct.Sign(digest)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if bytes.Compare(sig.S[:], halfOrderPlusOne[:]) >= 0 {
			t.Fatalf("signature %d has S above half order: %x", i, sig.S)
		}
	}
}

func TestKeyContainerDisposeZeroizes(t *testing.T) {
	priv := testPrivKey(t)
	kc, err := NewKeyContainer(priv)
	if err != nil {
		t.Fatalf("new key container: %v", err)
	}

	kc.Dispose()
	err = kc.Use(func(key []byte) error { return nil })
	if err == nil {
		t.Fatalf("expected use-after-dispose error")
	}

	// Dispose must be idempotent.
	kc.Dispose()
}

func TestSignRejectsDisposedAccount(t *testing.T) {
	priv := testPrivKey(t)
	acct, err := NewAccount(priv)
	if err != nil {
		t.Fatalf("new account: %v", err)
	}
	acct.Dispose()

	digest := sha256.Sum256([]byte("payload"))
	if _, err := acct.Sign(digest); err == nil {
		t.Fatalf("expected error signing with disposed account")
	}
}
