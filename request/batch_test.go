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
	"testing"

	"github.com/ethlight/ondemand/cache"
	"github.com/ethlight/ondemand/common"
)

func TestBatchPushRejectsDanglingBackReference(t *testing.T) {
	b := NewBatch()
	err := b.Push(&BodyRequest{Header: NewHeaderRef(0)})
	if err != ErrNoSuchOutput {
		t.Fatalf("got %v, want ErrNoSuchOutput", err)
	}
}

func TestBatchPushRejectsNonHeaderProducer(t *testing.T) {
	b := NewBatch()
	if err := b.Push(&HeaderProofRequest{Number: 1}); err != nil {
		t.Fatal(err)
	}
	if err := b.Push(&BodyRequest{Header: NewHeaderRef(0)}); err != ErrNoSuchOutput {
		t.Fatalf("got %v, want ErrNoSuchOutput", err)
	}
}

func TestBatchHeaderBackReferenceResolves(t *testing.T) {
	hdr := &Header{Number: 5}
	hash := hdr.ComputeHash()

	b := NewBatch()
	if err := b.Push(&HeaderByHashRequest{Hash: hash}); err != nil {
		t.Fatal(err)
	}
	if err := b.Push(&BodyRequest{Header: NewHeaderRef(0)}); err != nil {
		t.Fatal(err)
	}

	c := cache.NewMemory()
	_, err := b.SupplyResponse(c, WireResponse{ReqKind: KindHeaderByHash, Raw: hdr})
	if err != nil {
		t.Fatalf("header response should verify: %v", err)
	}
	body := b.At(1).(*BodyRequest)
	resolved, ok := body.Header.Header()
	if !ok || resolved.Number != 5 {
		t.Fatalf("expected body request's header back-reference to resolve to number 5, got %v %v", resolved, ok)
	}
	if b.NumAnswered() != 1 || b.IsComplete() {
		t.Fatalf("expected batch to have 1 of 2 answered, got %d/%d", b.NumAnswered(), b.Len())
	}
}

func TestBatchSupplyResponseRejectsWrongHash(t *testing.T) {
	b := NewBatch()
	hash := common.HexToHash("0x01")
	if err := b.Push(&HeaderByHashRequest{Hash: hash}); err != nil {
		t.Fatal(err)
	}
	c := cache.NewMemory()
	wrong := &Header{Number: 5, ParentHash: common.HexToHash("0xff")}
	_, err := b.SupplyResponse(c, WireResponse{ReqKind: KindHeaderByHash, Raw: wrong})
	if err == nil {
		t.Fatal("expected verification to fail for a header that doesn't hash to the requested hash")
	}
	if b.NumAnswered() != 0 {
		t.Fatal("a failed verification must not advance numAnswered")
	}
}

func TestBatchAnswerFromCacheStopsAtFirstMiss(t *testing.T) {
	b := NewBatch()
	hash := common.HexToHash("0x02")
	if err := b.Push(&HeaderByHashRequest{Hash: hash}); err != nil {
		t.Fatal(err)
	}
	if err := b.Push(&TransactionIndexRequest{Hash: common.HexToHash("0x03")}); err != nil {
		t.Fatal(err)
	}
	c := cache.NewMemory()
	hdr := &Header{Number: 7}
	c.Put(headerKey(hash), hdr)

	b.AnswerFromCache(c)
	if b.NumAnswered() != 1 {
		t.Fatalf("expected 1 answered from cache, got %d", b.NumAnswered())
	}
}

func TestBatchNetRequestsRenumbersBackReferences(t *testing.T) {
	b := NewBatch()
	hash := common.HexToHash("0x04")
	if err := b.Push(&HeaderByHashRequest{Hash: hash}); err != nil {
		t.Fatal(err)
	}
	if err := b.Push(&BodyRequest{Header: NewHeaderRef(0)}); err != nil {
		t.Fatal(err)
	}

	c := cache.NewMemory()
	hdr := &Header{Number: 1}
	c.Put(headerKey(hash), hdr)
	b.AnswerFromCache(c)

	nets := b.NetRequests()
	if len(nets) != 1 {
		t.Fatalf("expected 1 unanswered net request, got %d", len(nets))
	}
	body, ok := nets[0].(*NetBody)
	if !ok {
		t.Fatalf("expected *NetBody, got %T", nets[0])
	}
	if body.HeaderIdx != -1 {
		t.Fatalf("expected resolved header ref to project as -1, got %d", body.HeaderIdx)
	}
}
