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
	"crypto/sha256"
	"encoding/binary"

	"github.com/ethlight/ondemand/common"
)

// Header is the minimal header projection the dispatcher cares about: enough
// to key a body/receipts/state lookup and to chain back-references between
// requests in the same batch.
type Header struct {
	Hash       common.Hash
	ParentHash common.Hash
	Number     uint64
}

// ComputeHash derives h's identity from its fields. Real wire-format header
// hashing (RLP + keccak256) is out of scope here; this sha256-based digest
// gives the batch layer a cheap, deterministic way to check that a header
// returned by a peer is internally consistent with what was asked for.
func (h *Header) ComputeHash() common.Hash {
	var buf [40]byte
	copy(buf[:32], h.ParentHash.Bytes())
	binary.BigEndian.PutUint64(buf[32:], h.Number)
	return sha256Sum(buf[:])
}

// sha256Sum is the same stand-in digest used for header identity, reused
// for verifying code payloads against their advertised hash.
func sha256Sum(b []byte) common.Hash {
	sum := sha256.Sum256(b)
	return common.BytesToHash(sum[:])
}

// HeaderRef is either an already-resolved header or a back-reference to the
// output of an earlier request in the same batch, identified by index. It is
// shared by every CheckedRequest variant whose wire request depends on a
// header (body, receipts, account, code, execution).
type HeaderRef struct {
	idx    int
	header *Header
}

// NewHeaderRef builds a reference awaiting the header produced by the
// request at producerIndex.
func NewHeaderRef(producerIndex int) HeaderRef {
	return HeaderRef{idx: producerIndex}
}

// ResolvedHeaderRef builds a reference that already carries a concrete
// header, with no outstanding back-reference.
func ResolvedHeaderRef(h *Header) HeaderRef {
	return HeaderRef{idx: -1, header: h}
}

// Needs reports the batch index this reference is still waiting on, if any.
func (r HeaderRef) Needs() (idx int, ok bool) {
	if r.header != nil {
		return 0, false
	}
	return r.idx, r.idx >= 0
}

// Header returns the resolved header, if any.
func (r HeaderRef) Header() (*Header, bool) {
	return r.header, r.header != nil
}

// Provide fills the reference once its producer's output is known. It is
// idempotent: calling it again with the same header is harmless.
func (r *HeaderRef) Provide(h *Header) {
	r.header = h
}
