// Copyright 2017 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package request defines the catalog of on-demand chain-data requests the
// dispatcher can serve: what each one asks for, how to answer it from a
// local cache, how to project it onto the wire, and how to check a peer's
// answer. It has no notion of peers, batches-in-flight, or retries; that
// lives in the ondemand package, one layer up.
package request

import (
	"fmt"

	"github.com/ethlight/ondemand/common"
)

// Kind identifies which variant of CheckedRequest/Response/NetworkRequest a
// value is, so code that only has the interface can still switch on shape.
type Kind int

const (
	KindHeaderProof Kind = iota
	KindHeaderByHash
	KindHeaderWithAncestors
	KindTransactionIndex
	KindSignal
	KindBody
	KindReceipts
	KindAccount
	KindCode
	KindExecution
)

func (k Kind) String() string {
	switch k {
	case KindHeaderProof:
		return "HeaderProof"
	case KindHeaderByHash:
		return "HeaderByHash"
	case KindHeaderWithAncestors:
		return "HeaderWithAncestors"
	case KindTransactionIndex:
		return "TransactionIndex"
	case KindSignal:
		return "Signal"
	case KindBody:
		return "Body"
	case KindReceipts:
		return "Receipts"
	case KindAccount:
		return "Account"
	case KindCode:
		return "Code"
	case KindExecution:
		return "Execution"
	default:
		return "Unknown"
	}
}

// Response is the verified answer to a CheckedRequest.
type Response interface {
	Kind() Kind
}

type HeaderProofResponse struct {
	Number uint64
	Hash   common.Hash
	Proof  [][]byte
}

func (HeaderProofResponse) Kind() Kind { return KindHeaderProof }

type HeaderByHashResponse struct {
	Header *Header
}

func (HeaderByHashResponse) Kind() Kind { return KindHeaderByHash }

type HeaderWithAncestorsResponse struct {
	Headers []*Header // newest first
}

func (HeaderWithAncestorsResponse) Kind() Kind { return KindHeaderWithAncestors }

type TransactionIndexResponse struct {
	BlockHash common.Hash
	BlockNum  uint64
	Index     uint64
}

func (TransactionIndexResponse) Kind() Kind { return KindTransactionIndex }

type SignalResponse struct {
	Data []byte
}

func (SignalResponse) Kind() Kind { return KindSignal }

type BodyResponse struct {
	Body []byte // opaque RLP-like encoding of transactions and uncles
}

func (BodyResponse) Kind() Kind { return KindBody }

type ReceiptsResponse struct {
	Receipts []byte
}

func (ReceiptsResponse) Kind() Kind { return KindReceipts }

type AccountResponse struct {
	Balance  uint64
	Nonce    uint64
	CodeHash common.Hash
	Proof    [][]byte
}

func (AccountResponse) Kind() Kind { return KindAccount }

type CodeResponse struct {
	Code []byte
}

func (CodeResponse) Kind() Kind { return KindCode }

type ExecutionResponse struct {
	ReturnData []byte
	GasUsed    uint64
}

func (ExecutionResponse) Kind() Kind { return KindExecution }

// WireResponse is what a peer sends back over the network in answer to a
// NetworkRequest. Raw carries the kind-specific payload; decoding it is the
// network layer's job, validating it is the matching CheckedRequest's.
type WireResponse struct {
	ReqKind Kind
	Raw     any
}

// ResponseErrorKind classifies why a wire response failed verification.
type ResponseErrorKind int

const (
	ErrMalformed ResponseErrorKind = iota
	ErrVerificationFailed
	ErrUnexpectedKind
)

// ResponseError is returned by Batch.SupplyResponse when a peer's answer
// does not check out.
type ResponseError struct {
	Kind ResponseErrorKind
	Err  error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("response error (%v): %v", e.Kind, e.Err)
}

func (k ResponseErrorKind) String() string {
	switch k {
	case ErrMalformed:
		return "malformed"
	case ErrVerificationFailed:
		return "verification failed"
	case ErrUnexpectedKind:
		return "unexpected kind"
	default:
		return "unknown"
	}
}

// NetworkRequest is the wire projection of a CheckedRequest: the minimum a
// peer needs to see in order to answer it. AdjustRefs renumbers any header
// back-reference once the request is about to leave the batch, since the
// wire only ever sees the unanswered suffix.
type NetworkRequest interface {
	Kind() Kind
	AdjustRefs(mapping func(int) int)
}

type NetHeaderProof struct{ Number uint64 }

func (NetHeaderProof) Kind() Kind                  { return KindHeaderProof }
func (*NetHeaderProof) AdjustRefs(func(int) int)    {}

type NetHeaderByHash struct{ Hash common.Hash }

func (NetHeaderByHash) Kind() Kind               { return KindHeaderByHash }
func (*NetHeaderByHash) AdjustRefs(func(int) int) {}

type NetHeaderWithAncestors struct {
	Hash   common.Hash
	Amount uint64
}

func (NetHeaderWithAncestors) Kind() Kind               { return KindHeaderWithAncestors }
func (*NetHeaderWithAncestors) AdjustRefs(func(int) int) {}

type NetTransactionIndex struct{ Hash common.Hash }

func (NetTransactionIndex) Kind() Kind               { return KindTransactionIndex }
func (*NetTransactionIndex) AdjustRefs(func(int) int) {}

type NetSignal struct {
	Hash   common.Hash
	Number uint64
}

func (NetSignal) Kind() Kind               { return KindSignal }
func (*NetSignal) AdjustRefs(func(int) int) {}

// netHeaderDependent is embedded by every net request whose header comes
// from an earlier request in the batch rather than from a literal hash.
type netHeaderDependent struct {
	HeaderIdx int // index into the *wire* batch, -1 if resolved
}

func (d *netHeaderDependent) AdjustRefs(mapping func(int) int) {
	if d.HeaderIdx >= 0 {
		d.HeaderIdx = mapping(d.HeaderIdx)
	}
}

type NetBody struct{ netHeaderDependent }

func (NetBody) Kind() Kind { return KindBody }

type NetReceipts struct{ netHeaderDependent }

func (NetReceipts) Kind() Kind { return KindReceipts }

type NetAccount struct {
	netHeaderDependent
	Address common.Address
}

func (NetAccount) Kind() Kind { return KindAccount }

type NetCode struct {
	netHeaderDependent
	Address  common.Address
	CodeHash common.Hash
}

func (NetCode) Kind() Kind { return KindCode }

type NetExecution struct {
	netHeaderDependent
	From common.Address
	To   *common.Address
	Data []byte
	Gas  uint64
}

func (NetExecution) Kind() Kind { return KindExecution }
