package core

// ENS resolver (spec §4.9 / component C9): forward/reverse name resolution
// with an LRU+TTL cache, guarded against reverse-record spoofing.
//
// Grounded on the teacher's core/cross_chain.go tracking-map idiom (a
// bounded, TTL-expiring lookup keyed by an external identifier) combined
// with github.com/hashicorp/golang-lru/v2/expirable, the cache the
// bobanetwork-erigon example repo wraps for its own LRU needs — used here
// directly rather than re-wrapped, since this spec needs no extra metric
// hook around it.

import (
	"context"
	"strings"
	"time"

	"github.com/synnergy-labs/agentwallet/codec/abi"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/text/unicode/norm"
)

// ensRegistry is the canonical mainnet ENS registry address (spec §6).
var ensRegistry = mustParseAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

func mustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

const ensDefaultTTL = 5 * time.Minute

// ENSResolver resolves human-readable ENS names to addresses and back,
// caching both directions with a bounded LRU+TTL.
type ENSResolver struct {
	rpc      *RPC
	registry Address

	forward *lru.LRU[string, *Address] // name -> address, nil entry = confirmed absent
	reverse *lru.LRU[Address, string]
}

// NewENSResolver constructs a resolver against the given RPC, caching up to
// cacheSize entries per direction for ttl (defaulting to 5 minutes).
func NewENSResolver(rpc *RPC, cacheSize int, ttl time.Duration) *ENSResolver {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	if ttl <= 0 {
		ttl = ensDefaultTTL
	}
	return &ENSResolver{
		rpc:      rpc,
		registry: ensRegistry,
		forward:  lru.NewLRU[string, *Address](cacheSize, nil, ttl),
		reverse:  lru.NewLRU[Address, string](cacheSize, nil, ttl),
	}
}

// Resolve looks up name's forward address record. A confirmed absence
// (zero resolver, or resolver returning the zero address) is cached as a
// nil result, same as a present one, to avoid hammering the registry for
// names that are known not to resolve.
func (r *ENSResolver) Resolve(ctx context.Context, name string) (*Address, error) {
	if cached, ok := r.forward.Get(name); ok {
		return cached, nil
	}

	node := Namehash(name)
	resolver, err := r.fetchResolver(ctx, node)
	if err != nil {
		return nil, err
	}
	if resolver.IsZero() {
		r.forward.Add(name, nil)
		return nil, nil
	}

	addr, err := r.callAddr(ctx, resolver, node)
	if err != nil {
		return nil, err
	}
	if addr == nil || addr.IsZero() {
		r.forward.Add(name, nil)
		return nil, nil
	}
	r.forward.Add(name, addr)
	return addr, nil
}

// Reverse resolves addr's reverse record (<hex>.addr.reverse), then
// re-forwards the claimed name and confirms it maps back to addr. A
// mismatch — the spoofing case this guards against — yields ("", false,
// nil) rather than an error, since an unverifiable reverse record is
// indistinguishable from an absent one to the caller.
func (r *ENSResolver) Reverse(ctx context.Context, addr Address) (string, bool, error) {
	if cached, ok := r.reverse.Get(addr); ok {
		return cached, cached != "", nil
	}

	reverseName := strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x")) + ".addr.reverse"
	node := Namehash(reverseName)

	resolver, err := r.fetchResolver(ctx, node)
	if err != nil {
		return "", false, err
	}
	if resolver.IsZero() {
		r.reverse.Add(addr, "")
		return "", false, nil
	}

	claimedName, err := r.callName(ctx, resolver, node)
	if err != nil {
		return "", false, err
	}
	if claimedName == "" {
		r.reverse.Add(addr, "")
		return "", false, nil
	}

	// re-forward verification
	forwardAddr, err := r.Resolve(ctx, claimedName)
	if err != nil {
		return "", false, err
	}
	if forwardAddr == nil || *forwardAddr != addr {
		r.reverse.Add(addr, "")
		return "", false, nil
	}

	r.reverse.Add(addr, claimedName)
	return claimedName, true, nil
}

func (r *ENSResolver) fetchResolver(ctx context.Context, node [32]byte) (Address, error) {
	data, err := encodeENSCall("resolver(bytes32)", node)
	if err != nil {
		return Address{}, err
	}
	out, err := r.rpc.Call(ctx, CallMsg{To: &r.registry, Data: data})
	if err != nil {
		return Address{}, err
	}
	return decodeENSAddress(out)
}

func (r *ENSResolver) callAddr(ctx context.Context, resolver Address, node [32]byte) (*Address, error) {
	data, err := encodeENSCall("addr(bytes32)", node)
	if err != nil {
		return nil, err
	}
	out, err := r.rpc.Call(ctx, CallMsg{To: &resolver, Data: data})
	if err != nil {
		return nil, err
	}
	addr, err := decodeENSAddress(out)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func (r *ENSResolver) callName(ctx context.Context, resolver Address, node [32]byte) (string, error) {
	data, err := encodeENSCall("name(bytes32)", node)
	if err != nil {
		return "", err
	}
	out, err := r.rpc.Call(ctx, CallMsg{To: &resolver, Data: data})
	if err != nil {
		return "", err
	}
	return decodeENSString(out)
}

// Namehash computes the ENS namehash of a dotted name per EIP-137: the
// empty name hashes to 32 zero bytes; each label is folded in from the
// rightmost outward as keccak256(parentHash ‖ keccak256(label)).
func Namehash(name string) [32]byte {
	var node [32]byte
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := norm.NFC.String(strings.ToLower(labels[i]))
		labelHash := keccak256([]byte(label))
		node = keccak256(append(append([]byte{}, node[:]...), labelHash[:]...))
	}
	return node
}

func keccak256(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(b))
	return out
}

// encodeENSCall ABI-encodes a single-bytes32-argument ENS registry/resolver
// call (resolver, addr, name all share this shape for this spec's purposes).
func encodeENSCall(signature string, node [32]byte) ([]byte, error) {
	sel, err := abi.Selector(signature)
	if err != nil {
		return nil, err
	}
	body, err := abi.Encode([]string{"bytes32"}, []any{node[:]})
	if err != nil {
		return nil, err
	}
	return append(sel[:], body...), nil
}

func decodeENSAddress(data []byte) (Address, error) {
	vals, err := abi.Decode([]string{"address"}, data)
	if err != nil {
		return Address{}, err
	}
	raw := vals[0].([20]byte)
	return Address(raw), nil
}

func decodeENSString(data []byte) (string, error) {
	vals, err := abi.Decode([]string{"string"}, data)
	if err != nil {
		return "", err
	}
	return vals[0].(string), nil
}
