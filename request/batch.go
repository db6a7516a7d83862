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

	"github.com/ethlight/ondemand/cache"
)

// ErrNoSuchOutput is returned by Batch.Push when a request's header
// back-reference names an index that either doesn't exist yet or doesn't
// produce a header.
var ErrNoSuchOutput = errors.New("request: back-reference does not name a header-producing request")

// Batch is an ordered sequence of CheckedRequest together with the
// Responses gathered so far. Requests are always answered in order: the
// first numAnswered entries are done, the rest form the unanswered suffix
// that still needs to go out to a peer (or be satisfied from cache).
type Batch struct {
	requests    []CheckedRequest
	responses   []Response
	numAnswered int
}

// NewBatch returns an empty batch.
func NewBatch() *Batch { return &Batch{} }

// Push appends req to the batch. If req declares a header back-reference,
// the referenced index must already exist in the batch and must be a
// request that produces a header.
func (b *Batch) Push(req CheckedRequest) error {
	if idx, needs := req.NeedsHeader(); needs {
		if idx < 0 || idx >= len(b.requests) || !b.requests[idx].ProducesHeader() {
			return ErrNoSuchOutput
		}
	}
	b.requests = append(b.requests, req)
	return nil
}

// Len returns the total number of requests pushed.
func (b *Batch) Len() int { return len(b.requests) }

// NumAnswered returns how many requests, counted from the front, have been
// answered so far.
func (b *Batch) NumAnswered() int { return b.numAnswered }

// IsComplete reports whether every request in the batch has been answered.
func (b *Batch) IsComplete() bool { return b.numAnswered == len(b.requests) }

// At returns the request at position i.
func (b *Batch) At(i int) CheckedRequest { return b.requests[i] }

// Responses returns the responses gathered so far, in request order.
func (b *Batch) Responses() []Response { return b.responses }

// Unanswered returns the suffix of requests that have not yet been
// answered.
func (b *Batch) Unanswered() []CheckedRequest { return b.requests[b.numAnswered:] }

// AnswerFromCache tries to satisfy the unanswered suffix directly from c,
// without involving a peer. It stops at the first request that cache can't
// answer, since later requests may depend on this one's header output.
func (b *Batch) AnswerFromCache(c cache.Cache) {
	for b.numAnswered < len(b.requests) {
		req := b.requests[b.numAnswered]
		resp, ok := req.RespondLocal(c)
		if !ok {
			return
		}
		b.supplyResponseUnchecked(resp)
		b.propagateHeader(b.numAnswered-1, resp)
	}
}

// supplyResponseUnchecked records resp as the answer to the next unanswered
// request without verifying it, used when a response has already been
// validated upstream (e.g. straight from cache).
func (b *Batch) supplyResponseUnchecked(resp Response) {
	b.responses = append(b.responses, resp)
	b.numAnswered++
}

// SupplyResponse verifies wire against the next unanswered request and, on
// success, records the result and resolves any header back-references it
// unblocks.
func (b *Batch) SupplyResponse(c cache.Cache, wire WireResponse) (Response, error) {
	if b.numAnswered >= len(b.requests) {
		return nil, &ResponseError{Kind: ErrUnexpectedKind, Err: errors.New("batch already complete")}
	}
	req := b.requests[b.numAnswered]
	if wire.ReqKind != req.Kind() {
		return nil, &ResponseError{Kind: ErrUnexpectedKind, Err: errors.New("response kind does not match pending request")}
	}
	resp, err := req.Verify(c, wire.Raw)
	if err != nil {
		return nil, err
	}
	idx := b.numAnswered
	b.supplyResponseUnchecked(resp)
	b.propagateHeader(idx, resp)
	return resp, nil
}

// propagateHeader fills in any outstanding header back-references that name
// producerIdx, once its response is known. Safe to call repeatedly.
func (b *Batch) propagateHeader(producerIdx int, resp Response) {
	hdrResp, ok := resp.(HeaderByHashResponse)
	if !ok {
		return
	}
	for _, req := range b.requests[b.numAnswered:] {
		if idx, needs := req.NeedsHeader(); needs && idx == producerIdx {
			req.ProvideHeader(hdrResp.Header)
		}
	}
}

// FillUnanswered re-applies every recorded header response to the
// unanswered suffix. It is idempotent; the dispatcher calls it after each
// round of peer responses, before deciding whether the batch is complete.
func (b *Batch) FillUnanswered() {
	for i, resp := range b.responses {
		b.propagateHeader(i, resp)
	}
}

// RequiredCapabilities reports the capability set needed to serve the
// unanswered suffix of the batch.
func (b *Batch) RequiredCapabilities() Capabilities {
	return GuessCapabilities(b.Unanswered())
}

// NetRequests projects the unanswered suffix onto the wire, renumbering any
// header back-reference from absolute batch index to an index relative to
// the unanswered suffix itself (what the peer actually sees).
func (b *Batch) NetRequests() []NetworkRequest {
	suffix := b.Unanswered()
	base := b.numAnswered
	out := make([]NetworkRequest, len(suffix))
	for i, req := range suffix {
		net := req.IntoNetRequest()
		net.AdjustRefs(func(absIdx int) int { return absIdx - base })
		out[i] = net
	}
	return out
}
