package core

import (
	"context"
	"sync"
	"testing"
)

func TestNonceManagerSeedsFromPendingCount(t *testing.T) {
	ft := newFakeTransport()
	ft.stub("eth_getTransactionCount", "0x5")
	rpc := NewRPC(ft, defaultRPCConfig())
	addr, _ := ParseAddress("0xd8da6bf26964af9d7eed9e03e53415d37aa96045")
	nm := NewNonceManager(addr, rpc)

	n, err := nm.GetNextNonce(context.Background())
	if err != nil {
		t.Fatalf("get next nonce: %v", err)
	}
	if n != 5 {
		t.Fatalf("got %d, want 5", n)
	}
	n2, _ := nm.GetNextNonce(context.Background())
	if n2 != 6 {
		t.Fatalf("got %d, want 6", n2)
	}
}

func TestNonceManagerNoConcurrentDuplicates(t *testing.T) {
	ft := newFakeTransport()
	ft.stub("eth_getTransactionCount", "0x0")
	rpc := NewRPC(ft, defaultRPCConfig())
	addr, _ := ParseAddress("0xd8da6bf26964af9d7eed9e03e53415d37aa96045")
	nm := NewNonceManager(addr, rpc)

	const n = 200
	results := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := nm.GetNextNonce(context.Background())
			if err != nil {
				t.Errorf("get next nonce: %v", err)
				return
			}
			results[i] = got
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	for _, v := range results {
		if seen[v] {
			t.Fatalf("duplicate nonce %d issued", v)
		}
		seen[v] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct nonces, got %d", n, len(seen))
	}
}

func TestNonceManagerResetsOnFailure(t *testing.T) {
	ft := newFakeTransport()
	ft.stub("eth_getTransactionCount", "0x0")
	rpc := NewRPC(ft, defaultRPCConfig())
	addr, _ := ParseAddress("0xd8da6bf26964af9d7eed9e03e53415d37aa96045")
	nm := NewNonceManager(addr, rpc)

	for i := 0; i < 3; i++ {
		if _, err := nm.GetNextNonce(context.Background()); err != nil {
			t.Fatalf("get next nonce: %v", err)
		}
	}
	// reserved is now 3; node reports pending count has jumped to 10
	// (e.g. another process submitted transactions this manager didn't see).
	ft.stub("eth_getTransactionCount", "0xa")
	if err := nm.OnTransactionFailed(context.Background()); err != nil {
		t.Fatalf("on transaction failed: %v", err)
	}
	next, err := nm.GetNextNonce(context.Background())
	if err != nil {
		t.Fatalf("get next nonce: %v", err)
	}
	if next != 10 {
		t.Fatalf("got %d, want 10", next)
	}
}
