package core

// Signer & address (spec §4.2 / component C2).
//
// Grounded on the teacher's core/wallet.go, which already signs with
// go-ethereum's crypto.Sign and scrubs key material with Wipe(); and on
// core/transactions.go, which recovers senders via crypto.SigToPub and
// crypto.PubkeyToAddress. This file keeps that signing call but adds what
// the teacher's ed25519 HD wallet never needed: secp256k1 low-s
// normalization (github.com/decred/dcrd/dcrec/secp256k1/v4, the curve
// library go-ethereum's own pure-Go signer is built on) and a scoped key
// container that zeroizes on dispose.

import (
	"fmt"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signature is an ECDSA signature over secp256k1, low-s normalized, with the
// recovery id callers need to reconstruct the sender without a public key.
type Signature struct {
	R       [32]byte
	S       [32]byte
	V       uint8 // 27 or 28, legacy convention
	YParity uint8 // 0 or 1, 1559/2930 convention
}

// KeyContainer owns a 32-byte secp256k1 private key and only ever exposes it
// inside a callback's dynamic scope. After Dispose, the backing buffer is
// zeroed and any further Use call returns an error.
//
// This generalizes the teacher's Wipe(b []byte) best-effort scrub into a
// type that enforces the scope itself, per spec §4.2's "secure key scope"
// requirement.
type KeyContainer struct {
	mu       sync.Mutex
	key      []byte // 32 bytes, zeroed on Dispose
	disposed bool
}

// NewKeyContainer takes ownership of a 32-byte private key. The caller must
// not retain or reuse the slice afterward.
func NewKeyContainer(privKey []byte) (*KeyContainer, error) {
	if len(privKey) != 32 {
		return nil, fmt.Errorf("core: private key must be 32 bytes, got %d", len(privKey))
	}
	owned := make([]byte, 32)
	copy(owned, privKey)
	return &KeyContainer{key: owned}, nil
}

// Use invokes fn with the raw key bytes. The slice passed to fn is only
// valid for the duration of the call; callers must not retain it.
func (c *KeyContainer) Use(fn func(key []byte) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return fmt.Errorf("core: key container used after dispose")
	}
	return fn(c.key)
}

// Dispose zeroes the backing buffer. Idempotent.
func (c *KeyContainer) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	for i := range c.key {
		c.key[i] = 0
	}
	c.disposed = true
}

// Account pairs a secure key container with its derived address.
type Account struct {
	key     *KeyContainer
	address Address
}

// NewAccount derives an Account's address from a raw 32-byte secp256k1
// private key and takes ownership of the key under a KeyContainer.
func NewAccount(privKey []byte) (*Account, error) {
	kc, err := NewKeyContainer(privKey)
	if err != nil {
		return nil, err
	}
	var addr Address
	err = kc.Use(func(key []byte) error {
		ecdsaKey, err := crypto.ToECDSA(key)
		if err != nil {
			return fmt.Errorf("core: invalid private key: %w", err)
		}
		a, err := FromCommonBytes(crypto.PubkeyToAddress(ecdsaKey.PublicKey).Bytes())
		if err != nil {
			return err
		}
		addr = a
		return nil
	})
	if err != nil {
		kc.Dispose()
		return nil, err
	}
	return &Account{key: kc, address: addr}, nil
}

// Address returns the account's derived public address. Safe to call any
// number of times, including after Dispose.
func (a *Account) Address() Address { return a.address }

// Dispose zeroizes the account's key material. Safe to call more than once.
func (a *Account) Dispose() { a.key.Dispose() }

// Sign produces a deterministic (RFC 6979) ECDSA signature over a 32-byte
// digest, normalized to low-s. digest must be exactly 32 bytes — this is
// not a hashing function, the caller has already hashed the payload.
func (a *Account) Sign(digest [32]byte) (Signature, error) {
	var sig Signature
	err := a.key.Use(func(key []byte) error {
		ecdsaKey, err := crypto.ToECDSA(key)
		if err != nil {
			return fmt.Errorf("core: invalid private key: %w", err)
		}
		raw, err := crypto.Sign(digest[:], ecdsaKey) // 65 bytes: R || S || V(0/1)
		if err != nil {
			return fmt.Errorf("core: sign failed: %w", err)
		}
		sig = normalizeSignature(raw)
		return nil
	})
	return sig, err
}

// normalizeSignature splits go-ethereum's 65-byte {R,S,V} signature and
// flips S to the curve's lower half when necessary (via decred's ModNScalar,
// the modular-arithmetic type its secp256k1 package builds signing and
// verification on), adjusting the recovery id to match — flipping S always
// flips which of the two candidate points was recovered.
func normalizeSignature(raw []byte) Signature {
	var sig Signature
	copy(sig.R[:], raw[0:32])

	var s secp256k1.ModNScalar
	s.SetByteSlice(raw[32:64])
	yParity := raw[64]

	if s.IsOverHalfOrder() {
		s.Negate()
		yParity ^= 1
	}

	sBytes := s.Bytes()
	copy(sig.S[:], sBytes[:])
	sig.YParity = yParity
	sig.V = 27 + yParity
	return sig
}

// Recover recovers the signer's address from a digest and signature. It
// does not require access to any KeyContainer — recovery only needs the
// public signature fields.
func Recover(digest [32]byte, sig Signature) (Address, error) {
	raw := make([]byte, 65)
	copy(raw[0:32], sig.R[:])
	copy(raw[32:64], sig.S[:])
	raw[64] = sig.YParity

	pub, err := crypto.SigToPub(digest[:], raw)
	if err != nil {
		return Address{}, fmt.Errorf("core: recover failed: %w", err)
	}
	return FromCommonBytes(crypto.PubkeyToAddress(*pub).Bytes())
}

// Verify checks that sig over digest was produced by addr's private key.
func Verify(digest [32]byte, sig Signature, addr Address) (bool, error) {
	recovered, err := Recover(digest, sig)
	if err != nil {
		return false, err
	}
	return recovered == addr, nil
}

