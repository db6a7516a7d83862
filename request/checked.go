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

package request

import (
	"errors"
	"fmt"

	"github.com/ethlight/ondemand/cache"
	"github.com/ethlight/ondemand/common"
)

// CheckedRequest is one entry in a Batch: it knows how to try answering
// itself from a local cache, how to project itself onto the wire once it
// can't be, how to verify whatever a peer sends back, and whether it needs a
// header produced by an earlier request in the same batch.
type CheckedRequest interface {
	// NeedsHeader reports the batch index of the request this one's header
	// dependency is still waiting on, if any.
	NeedsHeader() (idx int, ok bool)
	// ProducesHeader reports whether this request, once answered, yields a
	// header other requests in the batch may reference.
	ProducesHeader() bool
	// ProvideHeader fills an outstanding header dependency.
	ProvideHeader(h *Header)
	// RespondLocal tries to answer the request from c without touching the
	// network.
	RespondLocal(c cache.Cache) (Response, bool)
	// IntoNetRequest projects the request onto the wire.
	IntoNetRequest() NetworkRequest
	// Verify checks a wire response against what was asked for, producing a
	// Response on success.
	Verify(c cache.Cache, raw any) (Response, error)
	// Capability reports the capability this request contributes to a
	// batch's required set, or the zero value if it can't yet (e.g. its
	// header dependency hasn't resolved).
	Capability() Capabilities
	Kind() Kind
}

var errWrongPayloadType = errors.New("wire response payload has the wrong type")

// --- HeaderProof ---------------------------------------------------------

// HeaderProofRequest asks for a Merkle proof of the header at Number from
// the canonical-hash trie (the CHT), used to bootstrap trust in an old
// block without downloading everything in between.
type HeaderProofRequest struct {
	Number uint64
}

func (r *HeaderProofRequest) Kind() Kind                   { return KindHeaderProof }
func (r *HeaderProofRequest) NeedsHeader() (int, bool)     { return 0, false }
func (r *HeaderProofRequest) ProducesHeader() bool         { return false }
func (r *HeaderProofRequest) ProvideHeader(*Header)        {}
func (r *HeaderProofRequest) Capability() Capabilities     { return Capabilities{ServeHeaders: true} }
func (r *HeaderProofRequest) IntoNetRequest() NetworkRequest {
	return &NetHeaderProof{Number: r.Number}
}

func (r *HeaderProofRequest) RespondLocal(c cache.Cache) (Response, bool) {
	v, ok := c.Get(chtKey(r.Number))
	if !ok {
		return nil, false
	}
	return v.(HeaderProofResponse), true
}

func (r *HeaderProofRequest) Verify(c cache.Cache, raw any) (Response, error) {
	resp, ok := raw.(HeaderProofResponse)
	if !ok {
		return nil, &ResponseError{Kind: ErrMalformed, Err: errWrongPayloadType}
	}
	if resp.Number != r.Number {
		return nil, &ResponseError{Kind: ErrVerificationFailed, Err: fmt.Errorf("proof for block %d, wanted %d", resp.Number, r.Number)}
	}
	c.Put(chtKey(r.Number), resp)
	return resp, nil
}

func chtKey(number uint64) any { return [2]any{"cht", number} }

// --- HeaderByHash ---------------------------------------------------------

// HeaderByHashRequest asks for a single header identified by hash. It is
// the only kind of request other entries in a batch may back-reference,
// since it is the only one that produces a Header.
type HeaderByHashRequest struct {
	Hash common.Hash
}

func (r *HeaderByHashRequest) Kind() Kind               { return KindHeaderByHash }
func (r *HeaderByHashRequest) NeedsHeader() (int, bool) { return 0, false }
func (r *HeaderByHashRequest) ProducesHeader() bool     { return true }
func (r *HeaderByHashRequest) ProvideHeader(*Header)    {}
func (r *HeaderByHashRequest) Capability() Capabilities { return Capabilities{ServeHeaders: true} }
func (r *HeaderByHashRequest) IntoNetRequest() NetworkRequest {
	return &NetHeaderByHash{Hash: r.Hash}
}

func (r *HeaderByHashRequest) RespondLocal(c cache.Cache) (Response, bool) {
	v, ok := c.Get(headerKey(r.Hash))
	if !ok {
		return nil, false
	}
	return HeaderByHashResponse{Header: v.(*Header)}, true
}

func (r *HeaderByHashRequest) Verify(c cache.Cache, raw any) (Response, error) {
	h, ok := raw.(*Header)
	if !ok {
		return nil, &ResponseError{Kind: ErrMalformed, Err: errWrongPayloadType}
	}
	if h.ComputeHash() != r.Hash {
		return nil, &ResponseError{Kind: ErrVerificationFailed, Err: fmt.Errorf("header hash mismatch")}
	}
	c.Put(headerKey(r.Hash), h)
	return HeaderByHashResponse{Header: h}, nil
}

func headerKey(h common.Hash) any { return [2]any{"header", h} }

// --- HeaderWithAncestors ---------------------------------------------------

// HeaderWithAncestorsRequest asks for a header and its Amount-1 direct
// ancestors, newest first.
type HeaderWithAncestorsRequest struct {
	Hash   common.Hash
	Amount uint64
}

func (r *HeaderWithAncestorsRequest) Kind() Kind               { return KindHeaderWithAncestors }
func (r *HeaderWithAncestorsRequest) NeedsHeader() (int, bool) { return 0, false }
func (r *HeaderWithAncestorsRequest) ProducesHeader() bool     { return false }
func (r *HeaderWithAncestorsRequest) ProvideHeader(*Header)    {}
func (r *HeaderWithAncestorsRequest) Capability() Capabilities {
	return Capabilities{ServeHeaders: true}
}
func (r *HeaderWithAncestorsRequest) IntoNetRequest() NetworkRequest {
	return &NetHeaderWithAncestors{Hash: r.Hash, Amount: r.Amount}
}

func (r *HeaderWithAncestorsRequest) RespondLocal(cache.Cache) (Response, bool) {
	return nil, false
}

func (r *HeaderWithAncestorsRequest) Verify(c cache.Cache, raw any) (Response, error) {
	headers, ok := raw.([]*Header)
	if !ok {
		return nil, &ResponseError{Kind: ErrMalformed, Err: errWrongPayloadType}
	}
	if uint64(len(headers)) != r.Amount || len(headers) == 0 || headers[0].ComputeHash() != r.Hash {
		return nil, &ResponseError{Kind: ErrVerificationFailed, Err: fmt.Errorf("header chain doesn't match request")}
	}
	for i := 1; i < len(headers); i++ {
		if headers[i].ComputeHash() != headers[i-1].ParentHash {
			return nil, &ResponseError{Kind: ErrVerificationFailed, Err: fmt.Errorf("ancestor chain broken at index %d", i)}
		}
	}
	return HeaderWithAncestorsResponse{Headers: headers}, nil
}

// --- TransactionIndex -------------------------------------------------------

// TransactionIndexRequest asks which block a transaction was included in.
// It yields nothing usable as a capability filter: any full node can answer
// it from its own index regardless of pruning depth.
type TransactionIndexRequest struct {
	Hash common.Hash
}

func (r *TransactionIndexRequest) Kind() Kind                       { return KindTransactionIndex }
func (r *TransactionIndexRequest) NeedsHeader() (int, bool)         { return 0, false }
func (r *TransactionIndexRequest) ProducesHeader() bool             { return false }
func (r *TransactionIndexRequest) ProvideHeader(*Header)            {}
func (r *TransactionIndexRequest) Capability() Capabilities         { return Capabilities{} }
func (r *TransactionIndexRequest) IntoNetRequest() NetworkRequest {
	return &NetTransactionIndex{Hash: r.Hash}
}

func (r *TransactionIndexRequest) RespondLocal(c cache.Cache) (Response, bool) {
	v, ok := c.Get(txIndexKey(r.Hash))
	if !ok {
		return nil, false
	}
	return v.(TransactionIndexResponse), true
}

func (r *TransactionIndexRequest) Verify(c cache.Cache, raw any) (Response, error) {
	resp, ok := raw.(TransactionIndexResponse)
	if !ok {
		return nil, &ResponseError{Kind: ErrMalformed, Err: errWrongPayloadType}
	}
	c.Put(txIndexKey(r.Hash), resp)
	return resp, nil
}

func txIndexKey(h common.Hash) any { return [2]any{"txindex", h} }

// --- Signal -----------------------------------------------------------------

// SignalRequest asks for an out-of-band signal (an epoch transition proof,
// validator-set change, or similar) attached to the header at Number/Hash.
type SignalRequest struct {
	Hash   common.Hash
	Number uint64
}

func (r *SignalRequest) Kind() Kind                   { return KindSignal }
func (r *SignalRequest) NeedsHeader() (int, bool)     { return 0, false }
func (r *SignalRequest) ProducesHeader() bool         { return false }
func (r *SignalRequest) ProvideHeader(*Header)        {}
func (r *SignalRequest) Capability() Capabilities     { return Capabilities{ServeHeaders: true} }
func (r *SignalRequest) IntoNetRequest() NetworkRequest {
	return &NetSignal{Hash: r.Hash, Number: r.Number}
}

func (r *SignalRequest) RespondLocal(c cache.Cache) (Response, bool) {
	v, ok := c.Get(signalKey(r.Hash))
	if !ok {
		return nil, false
	}
	return v.(SignalResponse), true
}

func (r *SignalRequest) Verify(c cache.Cache, raw any) (Response, error) {
	resp, ok := raw.(SignalResponse)
	if !ok {
		return nil, &ResponseError{Kind: ErrMalformed, Err: errWrongPayloadType}
	}
	c.Put(signalKey(r.Hash), resp)
	return resp, nil
}

func signalKey(h common.Hash) any { return [2]any{"signal", h} }

// --- header-dependent requests: Body, Receipts, Account, Code, Execution ---

// BodyRequest asks for the transactions and uncles of the block whose
// header is resolved via Header (either already known, or back-referenced
// to an earlier HeaderByHashRequest in the same batch).
type BodyRequest struct {
	Header HeaderRef
}

func (r *BodyRequest) Kind() Kind               { return KindBody }
func (r *BodyRequest) NeedsHeader() (int, bool) { return r.Header.Needs() }
func (r *BodyRequest) ProducesHeader() bool     { return false }
func (r *BodyRequest) ProvideHeader(h *Header)  { r.Header.Provide(h) }

func (r *BodyRequest) Capability() Capabilities {
	h, ok := r.Header.Header()
	if !ok {
		return Capabilities{}
	}
	n := h.Number
	return Capabilities{ServeChainSince: &n}
}

func (r *BodyRequest) IntoNetRequest() NetworkRequest {
	net := &NetBody{}
	if idx, needs := r.Header.Needs(); needs {
		net.HeaderIdx = idx
	} else {
		net.HeaderIdx = -1
	}
	return net
}

func (r *BodyRequest) RespondLocal(c cache.Cache) (Response, bool) {
	h, ok := r.Header.Header()
	if !ok {
		return nil, false
	}
	v, ok := c.Get(bodyKey(h.Hash))
	if !ok {
		return nil, false
	}
	return v.(BodyResponse), true
}

func (r *BodyRequest) Verify(c cache.Cache, raw any) (Response, error) {
	resp, ok := raw.(BodyResponse)
	if !ok {
		return nil, &ResponseError{Kind: ErrMalformed, Err: errWrongPayloadType}
	}
	if h, ok := r.Header.Header(); ok {
		c.Put(bodyKey(h.Hash), resp)
	}
	return resp, nil
}

func bodyKey(h common.Hash) any { return [2]any{"body", h} }

// ReceiptsRequest asks for the transaction receipts of a block, by the same
// header-dependency mechanism as BodyRequest.
type ReceiptsRequest struct {
	Header HeaderRef
}

func (r *ReceiptsRequest) Kind() Kind               { return KindReceipts }
func (r *ReceiptsRequest) NeedsHeader() (int, bool) { return r.Header.Needs() }
func (r *ReceiptsRequest) ProducesHeader() bool     { return false }
func (r *ReceiptsRequest) ProvideHeader(h *Header)  { r.Header.Provide(h) }

func (r *ReceiptsRequest) Capability() Capabilities {
	h, ok := r.Header.Header()
	if !ok {
		return Capabilities{}
	}
	n := h.Number
	return Capabilities{ServeChainSince: &n}
}

func (r *ReceiptsRequest) IntoNetRequest() NetworkRequest {
	net := &NetReceipts{}
	if idx, needs := r.Header.Needs(); needs {
		net.HeaderIdx = idx
	} else {
		net.HeaderIdx = -1
	}
	return net
}

func (r *ReceiptsRequest) RespondLocal(c cache.Cache) (Response, bool) {
	h, ok := r.Header.Header()
	if !ok {
		return nil, false
	}
	v, ok := c.Get(receiptsKey(h.Hash))
	if !ok {
		return nil, false
	}
	return v.(ReceiptsResponse), true
}

func (r *ReceiptsRequest) Verify(c cache.Cache, raw any) (Response, error) {
	resp, ok := raw.(ReceiptsResponse)
	if !ok {
		return nil, &ResponseError{Kind: ErrMalformed, Err: errWrongPayloadType}
	}
	if h, ok := r.Header.Header(); ok {
		c.Put(receiptsKey(h.Hash), resp)
	}
	return resp, nil
}

func receiptsKey(h common.Hash) any { return [2]any{"receipts", h} }

// AccountRequest asks for an account's state (balance, nonce, code hash)
// with a Merkle proof against the state root of its header.
type AccountRequest struct {
	Header  HeaderRef
	Address common.Address
}

func (r *AccountRequest) Kind() Kind               { return KindAccount }
func (r *AccountRequest) NeedsHeader() (int, bool) { return r.Header.Needs() }
func (r *AccountRequest) ProducesHeader() bool      { return false }
func (r *AccountRequest) ProvideHeader(h *Header)   { r.Header.Provide(h) }

func (r *AccountRequest) Capability() Capabilities {
	h, ok := r.Header.Header()
	if !ok {
		return Capabilities{}
	}
	n := h.Number
	return Capabilities{ServeStateSince: &n}
}

func (r *AccountRequest) IntoNetRequest() NetworkRequest {
	net := &NetAccount{Address: r.Address}
	if idx, needs := r.Header.Needs(); needs {
		net.HeaderIdx = idx
	} else {
		net.HeaderIdx = -1
	}
	return net
}

func (r *AccountRequest) RespondLocal(c cache.Cache) (Response, bool) {
	h, ok := r.Header.Header()
	if !ok {
		return nil, false
	}
	v, ok := c.Get(accountKey(h.Hash, r.Address))
	if !ok {
		return nil, false
	}
	return v.(AccountResponse), true
}

func (r *AccountRequest) Verify(c cache.Cache, raw any) (Response, error) {
	resp, ok := raw.(AccountResponse)
	if !ok {
		return nil, &ResponseError{Kind: ErrMalformed, Err: errWrongPayloadType}
	}
	if h, ok := r.Header.Header(); ok {
		c.Put(accountKey(h.Hash, r.Address), resp)
	}
	return resp, nil
}

func accountKey(h common.Hash, a common.Address) any { return [3]any{"account", h, a} }

// CodeRequest asks for the contract code at Address, identified by CodeHash
// so the response can be verified without a state proof.
type CodeRequest struct {
	Header   HeaderRef
	Address  common.Address
	CodeHash common.Hash
}

func (r *CodeRequest) Kind() Kind               { return KindCode }
func (r *CodeRequest) NeedsHeader() (int, bool) { return r.Header.Needs() }
func (r *CodeRequest) ProducesHeader() bool     { return false }
func (r *CodeRequest) ProvideHeader(h *Header)  { r.Header.Provide(h) }

func (r *CodeRequest) Capability() Capabilities {
	h, ok := r.Header.Header()
	if !ok {
		return Capabilities{}
	}
	n := h.Number
	return Capabilities{ServeStateSince: &n}
}

func (r *CodeRequest) IntoNetRequest() NetworkRequest {
	net := &NetCode{Address: r.Address, CodeHash: r.CodeHash}
	if idx, needs := r.Header.Needs(); needs {
		net.HeaderIdx = idx
	} else {
		net.HeaderIdx = -1
	}
	return net
}

func (r *CodeRequest) RespondLocal(c cache.Cache) (Response, bool) {
	v, ok := c.Get(codeKey(r.CodeHash))
	if !ok {
		return nil, false
	}
	return v.(CodeResponse), true
}

func (r *CodeRequest) Verify(c cache.Cache, raw any) (Response, error) {
	resp, ok := raw.(CodeResponse)
	if !ok {
		return nil, &ResponseError{Kind: ErrMalformed, Err: errWrongPayloadType}
	}
	sum := sha256Sum(resp.Code)
	if sum != r.CodeHash {
		return nil, &ResponseError{Kind: ErrVerificationFailed, Err: fmt.Errorf("code hash mismatch")}
	}
	c.Put(codeKey(r.CodeHash), resp)
	return resp, nil
}

func codeKey(h common.Hash) any { return [2]any{"code", h} }

// ExecutionRequest asks a peer to run a contract call against the state at
// Header and return the result, used for eth_call-style queries the light
// client can't execute itself without the full state.
type ExecutionRequest struct {
	Header HeaderRef
	From   common.Address
	To     *common.Address
	Data   []byte
	Gas    uint64
}

func (r *ExecutionRequest) Kind() Kind               { return KindExecution }
func (r *ExecutionRequest) NeedsHeader() (int, bool) { return r.Header.Needs() }
func (r *ExecutionRequest) ProducesHeader() bool     { return false }
func (r *ExecutionRequest) ProvideHeader(h *Header)  { r.Header.Provide(h) }

func (r *ExecutionRequest) Capability() Capabilities {
	h, ok := r.Header.Header()
	if !ok {
		return Capabilities{}
	}
	n := h.Number
	return Capabilities{ServeStateSince: &n}
}

func (r *ExecutionRequest) IntoNetRequest() NetworkRequest {
	net := &NetExecution{From: r.From, To: r.To, Data: r.Data, Gas: r.Gas}
	if idx, needs := r.Header.Needs(); needs {
		net.HeaderIdx = idx
	} else {
		net.HeaderIdx = -1
	}
	return net
}

// RespondLocal never succeeds: execution results aren't cached, since they
// depend on the full state at a specific header.
func (r *ExecutionRequest) RespondLocal(cache.Cache) (Response, bool) { return nil, false }

func (r *ExecutionRequest) Verify(c cache.Cache, raw any) (Response, error) {
	resp, ok := raw.(ExecutionResponse)
	if !ok {
		return nil, &ResponseError{Kind: ErrMalformed, Err: errWrongPayloadType}
	}
	return resp, nil
}
