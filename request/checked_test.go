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

func TestHeaderWithAncestorsVerifiesChain(t *testing.T) {
	grandparent := &Header{Number: 1}
	parent := &Header{Number: 2, ParentHash: grandparent.ComputeHash()}
	child := &Header{Number: 3, ParentHash: parent.ComputeHash()}

	req := &HeaderWithAncestorsRequest{Hash: child.ComputeHash(), Amount: 3}
	c := cache.NewMemory()
	resp, err := req.Verify(c, []*Header{child, parent, grandparent})
	if err != nil {
		t.Fatalf("expected a well-formed ancestor chain to verify, got %v", err)
	}
	got := resp.(HeaderWithAncestorsResponse)
	if len(got.Headers) != 3 {
		t.Fatalf("got %d headers, want 3", len(got.Headers))
	}
}

func TestHeaderWithAncestorsRejectsBrokenChain(t *testing.T) {
	child := &Header{Number: 3}
	unrelated := &Header{Number: 2}
	req := &HeaderWithAncestorsRequest{Hash: child.ComputeHash(), Amount: 2}
	c := cache.NewMemory()
	if _, err := req.Verify(c, []*Header{child, unrelated}); err == nil {
		t.Fatal("expected verification to fail when ancestors don't chain by ParentHash")
	}
}

func TestCodeRequestVerifiesHash(t *testing.T) {
	code := []byte("contract bytecode")
	req := &CodeRequest{CodeHash: sha256Sum(code)}
	c := cache.NewMemory()
	if _, err := req.Verify(c, CodeResponse{Code: code}); err != nil {
		t.Fatalf("expected matching code hash to verify, got %v", err)
	}
	if _, err := req.Verify(c, CodeResponse{Code: []byte("wrong")}); err == nil {
		t.Fatal("expected mismatched code hash to fail verification")
	}
}

func TestCodeRequestRespondsFromCacheByHash(t *testing.T) {
	hash := common.HexToHash("0x05")
	req := &CodeRequest{CodeHash: hash}
	c := cache.NewMemory()
	if _, ok := req.RespondLocal(c); ok {
		t.Fatal("expected a miss on an empty cache")
	}
	c.Put(codeKey(hash), CodeResponse{Code: []byte("x")})
	resp, ok := req.RespondLocal(c)
	if !ok || resp.(CodeResponse).Code[0] != 'x' {
		t.Fatal("expected cache hit to return the stored code")
	}
}

func TestExecutionRequestNeverAnswersFromCache(t *testing.T) {
	req := &ExecutionRequest{Header: ResolvedHeaderRef(&Header{Number: 1})}
	c := cache.NewMemory()
	if _, ok := req.RespondLocal(c); ok {
		t.Fatal("execution requests must never be answered from cache")
	}
}

func TestHeaderProofRequestWrongNumberFails(t *testing.T) {
	req := &HeaderProofRequest{Number: 10}
	c := cache.NewMemory()
	_, err := req.Verify(c, HeaderProofResponse{Number: 11})
	if err == nil {
		t.Fatal("expected a proof for the wrong block number to be rejected")
	}
}

func TestVerifyRejectsWrongPayloadType(t *testing.T) {
	req := &HeaderProofRequest{Number: 10}
	c := cache.NewMemory()
	if _, err := req.Verify(c, "not a proof"); err == nil {
		t.Fatal("expected a type-mismatched payload to be rejected")
	}
}
