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

package ondemand

import (
	"context"
	"errors"
	"testing"

	"github.com/ethlight/ondemand/cache"
	"github.com/ethlight/ondemand/common/mclock"
	"github.com/ethlight/ondemand/request"
)

func TestExtractAppliesAdapterOnSuccess(t *testing.T) {
	c := cache.NewMemory()
	hdr := &request.Header{Number: 7}
	hash := hdr.ComputeHash()

	// Warm the cache through the normal verify-and-store path so Submit
	// resolves synchronously without any peer.
	warm := request.NewBatch()
	if err := warm.Push(&request.HeaderByHashRequest{Hash: hash}); err != nil {
		t.Fatal(err)
	}
	if _, err := warm.SupplyResponse(c, request.WireResponse{ReqKind: request.KindHeaderByHash, Raw: hdr}); err != nil {
		t.Fatal(err)
	}

	d := New(&mclock.Simulated{}, c)
	future, err := d.Submit(headerByHashBatch(hash))
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-future.Done():
	default:
		t.Fatal("expected cache hit to resolve immediately")
	}

	got, err := Extract(context.Background(), future, func(rs []request.Response) (uint64, error) {
		hr, ok := rs[0].(request.HeaderByHashResponse)
		if !ok {
			return 0, errors.New("unexpected response type")
		}
		return hr.Header.Number, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestExtractPropagatesFutureError(t *testing.T) {
	clock := &mclock.Simulated{}
	d := New(clock, cache.NewMemory(), WithInactiveTimeLimit(1))

	hash := (&request.Header{Number: 8}).ComputeHash()
	future, err := d.Submit(headerByHashBatch(hash))
	if err != nil {
		t.Fatal(err)
	}
	clock.Run(2)
	d.Tick()

	_, err = Extract(context.Background(), future, func(rs []request.Response) (int, error) {
		t.Fatal("adapt must not run when the future resolved with an error")
		return 0, nil
	})
	if _, ok := err.(*TimeoutOnNewPeers); !ok {
		t.Fatalf("got error %v (%T), want *TimeoutOnNewPeers", err, err)
	}
}
