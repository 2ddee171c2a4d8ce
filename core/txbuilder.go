package core

// Transaction builder (spec §4.6 / component C6): fluent assembly of legacy
// and EIP-1559 transactions, RLP signing digests, and raw wire encoding.
//
// Grounded on the teacher's core/transactions.go field-by-field assembly
// idiom (To/Value/Data/Nonce set individually before hashing), generalized
// from its single tx shape to the legacy/1559 split this spec requires, and
// built directly on codec/rlp rather than go-ethereum's tx types since RLP
// is this spec's own component (C1).

import (
	"fmt"
	"math/big"

	"github.com/synnergy-labs/agentwallet/codec/rlp"
)

// AccessListEntry is one (address, storage keys) pair of an EIP-2930/1559
// access list.
type AccessListEntry struct {
	Address     Address
	StorageKeys [][32]byte
}

// TxBuilder fluently assembles either a legacy or an EIP-1559 transaction.
// Which kind is finalized is determined by which fee fields were set:
// GasPrice alone selects legacy, MaxFeePerGas/MaxPriorityFeePerGas select
// 1559. Setting both is a builder error.
type TxBuilder struct {
	to       *Address // nil means contract creation
	value    *big.Int
	data     []byte
	nonce    *uint64
	chainID  *uint64
	gasLimit *uint64

	gasPrice             *big.Int // legacy
	maxFeePerGas         *big.Int // 1559
	maxPriorityFeePerGas *big.Int // 1559

	accessList []AccessListEntry
}

// NewTxBuilder starts an empty builder.
func NewTxBuilder() *TxBuilder { return &TxBuilder{} }

func (b *TxBuilder) To(addr Address) *TxBuilder { b.to = &addr; return b }

// ToContractCreation marks this transaction as a contract creation (empty
// "to" field) rather than a call or transfer.
func (b *TxBuilder) ToContractCreation() *TxBuilder { b.to = nil; return b }

func (b *TxBuilder) Value(v *big.Int) *TxBuilder  { b.value = v; return b }
func (b *TxBuilder) Data(d []byte) *TxBuilder      { b.data = d; return b }
func (b *TxBuilder) Nonce(n uint64) *TxBuilder     { b.nonce = &n; return b }
func (b *TxBuilder) ChainID(id uint64) *TxBuilder  { b.chainID = &id; return b }
func (b *TxBuilder) GasLimit(g uint64) *TxBuilder  { b.gasLimit = &g; return b }

func (b *TxBuilder) GasPrice(p *big.Int) *TxBuilder { b.gasPrice = p; return b }

func (b *TxBuilder) MaxFeePerGas(v *big.Int) *TxBuilder { b.maxFeePerGas = v; return b }

func (b *TxBuilder) MaxPriorityFeePerGas(v *big.Int) *TxBuilder {
	b.maxPriorityFeePerGas = v
	return b
}

func (b *TxBuilder) AccessList(list []AccessListEntry) *TxBuilder {
	b.accessList = list
	return b
}

// isEIP1559 reports whether the fee fields select the 1559 tx kind.
func (b *TxBuilder) isEIP1559() bool {
	return b.maxFeePerGas != nil || b.maxPriorityFeePerGas != nil
}

// validate checks that the builder has every field its selected kind needs
// and rejects a builder with fields from both fee kinds set.
func (b *TxBuilder) validate() error {
	if b.nonce == nil {
		return fmt.Errorf("txbuilder: nonce not set")
	}
	if b.chainID == nil {
		return fmt.Errorf("txbuilder: chainId not set")
	}
	if b.gasLimit == nil {
		return fmt.Errorf("txbuilder: gasLimit not set")
	}
	if *b.gasLimit < 21000 {
		return fmt.Errorf("txbuilder: gasLimit %d below the 21000 floor", *b.gasLimit)
	}
	if b.value == nil {
		return fmt.Errorf("txbuilder: value not set")
	}
	legacySet := b.gasPrice != nil
	eip1559Set := b.isEIP1559()
	if legacySet && eip1559Set {
		return fmt.Errorf("txbuilder: gasPrice and maxFeePerGas/maxPriorityFeePerGas are mutually exclusive")
	}
	if !legacySet && !eip1559Set {
		return fmt.Errorf("txbuilder: one of gasPrice or maxFeePerGas+maxPriorityFeePerGas must be set")
	}
	if eip1559Set && (b.maxFeePerGas == nil || b.maxPriorityFeePerGas == nil) {
		return fmt.Errorf("txbuilder: both maxFeePerGas and maxPriorityFeePerGas must be set for a 1559 transaction")
	}
	if eip1559Set && b.maxFeePerGas != nil && b.maxPriorityFeePerGas != nil && b.maxPriorityFeePerGas.Cmp(b.maxFeePerGas) > 0 {
		return fmt.Errorf("txbuilder: maxPriorityFeePerGas exceeds maxFeePerGas")
	}
	return nil
}

func (b *TxBuilder) toItem() *rlp.Item {
	if b.to == nil {
		return rlp.String(nil)
	}
	return rlp.String(b.to.Bytes())
}

func (b *TxBuilder) dataItem() *rlp.Item { return rlp.String(b.data) }

func (b *TxBuilder) accessListItem() *rlp.Item {
	entries := make([]*rlp.Item, 0, len(b.accessList))
	for _, e := range b.accessList {
		keys := make([]*rlp.Item, 0, len(e.StorageKeys))
		for _, k := range e.StorageKeys {
			kk := k
			keys = append(keys, rlp.String(kk[:]))
		}
		entries = append(entries, rlp.List(rlp.String(e.Address.Bytes()), rlp.List(keys...)))
	}
	return rlp.List(entries...)
}

// legacyUnsignedWithChainIDItem builds the EIP-155 signing field list:
// [nonce, gasPrice, gasLimit, to, value, data, chainId, 0, 0].
func (b *TxBuilder) legacyUnsignedWithChainIDItem() *rlp.Item {
	return rlp.List(
		rlp.Uint64(*b.nonce),
		rlp.BigInt(b.gasPrice),
		rlp.Uint64(*b.gasLimit),
		b.toItem(),
		rlp.BigInt(b.value),
		b.dataItem(),
		rlp.Uint64(*b.chainID),
		rlp.String(nil),
		rlp.String(nil),
	)
}

func (b *TxBuilder) eip1559UnsignedItem() *rlp.Item {
	return rlp.List(
		rlp.Uint64(*b.chainID),
		rlp.Uint64(*b.nonce),
		rlp.BigInt(b.maxPriorityFeePerGas),
		rlp.BigInt(b.maxFeePerGas),
		rlp.Uint64(*b.gasLimit),
		b.toItem(),
		rlp.BigInt(b.value),
		b.dataItem(),
		b.accessListItem(),
	)
}

// SigningDigest computes the keccak256 digest this transaction's signature
// must be produced over: keccak256(rlp(legacy fields with EIP-155 chain-id
// packing)) for legacy, or keccak256(0x02 ‖ rlp(1559 fields)) for 1559, per
// spec §4.6/§6.
func (b *TxBuilder) SigningDigest() ([32]byte, error) {
	if err := b.validate(); err != nil {
		return [32]byte{}, err
	}
	if b.isEIP1559() {
		payload := append([]byte{0x02}, rlp.Encode(b.eip1559UnsignedItem())...)
		return keccak256(payload), nil
	}
	return keccak256(rlp.Encode(b.legacyUnsignedWithChainIDItem())), nil
}

// SignedTransaction is a TxBuilder finalized with a signature, ready to
// emit its raw wire form.
type SignedTransaction struct {
	builder *TxBuilder
	sig     Signature
}

// Sign finalizes the builder with sig, as produced by Account.Sign over
// SigningDigest. It does not re-derive or check the digest; callers are
// expected to have signed exactly SigningDigest()'s output.
func (b *TxBuilder) Sign(sig Signature) (*SignedTransaction, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	return &SignedTransaction{builder: b, sig: sig}, nil
}

// legacyVValue packs the recovery parity into EIP-155's chain-id-aware v
// value: v = chainId*2 + 35 + yParity.
func (s *SignedTransaction) legacyVValue() uint64 {
	return (*s.builder.chainID)*2 + 35 + uint64(s.sig.YParity)
}

// Raw emits the signed wire encoding: rlp(all fields) for legacy (v packed
// per EIP-155), or 0x02 ‖ rlp(all fields) for 1559 (yParity 0/1 directly).
func (s *SignedTransaction) Raw() []byte {
	b := s.builder
	r := s.sig.R
	ss := s.sig.S

	if b.isEIP1559() {
		item := rlp.List(
			rlp.Uint64(*b.chainID),
			rlp.Uint64(*b.nonce),
			rlp.BigInt(b.maxPriorityFeePerGas),
			rlp.BigInt(b.maxFeePerGas),
			rlp.Uint64(*b.gasLimit),
			b.toItem(),
			rlp.BigInt(b.value),
			b.dataItem(),
			b.accessListItem(),
			rlp.Uint64(uint64(s.sig.YParity)),
			rlp.String(r[:]),
			rlp.String(ss[:]),
		)
		return append([]byte{0x02}, rlp.Encode(item)...)
	}

	item := rlp.List(
		rlp.Uint64(*b.nonce),
		rlp.BigInt(b.gasPrice),
		rlp.Uint64(*b.gasLimit),
		b.toItem(),
		rlp.BigInt(b.value),
		b.dataItem(),
		rlp.Uint64(s.legacyVValue()),
		rlp.String(r[:]),
		rlp.String(ss[:]),
	)
	return rlp.Encode(item)
}

// Hash returns the transaction hash (keccak256 of the raw signed wire
// encoding), the identifier returned by eth_sendRawTransaction callers and
// used to poll for a receipt.
func (s *SignedTransaction) Hash() [32]byte { return keccak256(s.Raw()) }
