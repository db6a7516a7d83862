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
	"testing"
	"time"

	"github.com/ethlight/ondemand/cache"
	"github.com/ethlight/ondemand/common"
	"github.com/ethlight/ondemand/common/mclock"
	"github.com/ethlight/ondemand/request"
)

// stubSender records every call it receives and returns a configurable
// error, standing in for a real network connection in tests.
type stubSender struct {
	err   error
	calls [][]request.NetworkRequest
	ids   []ReqID
}

func (s *stubSender) SendRequests(id ReqID, reqs []request.NetworkRequest) error {
	s.calls = append(s.calls, reqs)
	s.ids = append(s.ids, id)
	return s.err
}

func headerByHashBatch(hash common.Hash) []request.CheckedRequest {
	return []request.CheckedRequest{&request.HeaderByHashRequest{Hash: hash}}
}

func TestSubmitAnswersFromCacheWithoutAnyPeer(t *testing.T) {
	c := cache.NewMemory()
	hdr := &request.Header{Number: 1}
	hash := hdr.ComputeHash()

	// Populate the cache through the normal verify-and-store path, by
	// answering a throwaway batch once before any peer exists.
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
		t.Fatal("expected a cache hit to resolve the future without dispatching to any peer")
	}
	responses, ferr, _ := future.Peek()
	if ferr != nil {
		t.Fatalf("unexpected error: %v", ferr)
	}
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
}

func TestSimpleDispatchToSingleCapablePeer(t *testing.T) {
	d := New(&mclock.Simulated{}, cache.NewMemory())
	sender := &stubSender{}
	d.OnConnect("peer1", request.Capabilities{ServeHeaders: true}, sender)

	hash := (&request.Header{Number: 1}).ComputeHash()
	future, err := d.Submit(headerByHashBatch(hash))
	if err != nil {
		t.Fatal(err)
	}
	if len(sender.calls) != 1 {
		t.Fatalf("expected exactly one send to the sole capable peer, got %d", len(sender.calls))
	}

	reqID := sender.ids[0]
	hdr := &request.Header{Number: 1}
	wire := request.WireResponse{ReqKind: request.KindHeaderByHash, Raw: hdr}
	d.OnResponse(reqID, "peer1", []request.WireResponse{wire})

	select {
	case <-future.Done():
	default:
		t.Fatal("expected future to resolve once the peer answered")
	}
	_, resolveErr, _ := future.Peek()
	if resolveErr != nil {
		t.Fatalf("unexpected error: %v", resolveErr)
	}
}

func TestRetryMovesOnToNextPeerOnNoCredits(t *testing.T) {
	d := New(&mclock.Simulated{}, cache.NewMemory())
	bad := &stubSender{err: ErrNoCredits}
	d.OnConnect("peer-bad", request.Capabilities{ServeHeaders: true}, bad)

	hash := (&request.Header{Number: 2}).ComputeHash()
	future, err := d.Submit(headerByHashBatch(hash))
	if err != nil {
		t.Fatal(err)
	}
	if len(bad.calls) != 1 {
		t.Fatalf("expected the only connected peer to have been tried once, got %d calls", len(bad.calls))
	}
	select {
	case <-future.Done():
		t.Fatal("a batch with no peer able to accept it yet must stay pending")
	default:
	}

	// A second, cooperative peer connects; the batch should retry onto it
	// without re-trying the one that already rejected it.
	good := &stubSender{}
	d.OnConnect("peer-good", request.Capabilities{ServeHeaders: true}, good)

	if len(good.calls) != 1 {
		t.Fatalf("expected the newly connected peer to receive the retried request, got %d calls", len(good.calls))
	}
	if len(bad.calls) != 1 {
		t.Fatalf("expected the already-tried peer not to be retried, got %d calls", len(bad.calls))
	}
	select {
	case <-future.Done():
		t.Fatal("future should not resolve until the dispatched peer answers")
	default:
	}
}

// exhaustedAfterFirstSender answers once successfully and rejects every
// later send, as if the peer had gone faulty after its first bad answer.
// It lets a test force the real peer-scan in dispatchOne to move on to a
// fresh peer on each retry round without disconnecting anyone, so the live
// peer count the majority check divides by stays fixed.
type exhaustedAfterFirstSender struct {
	used bool
	ids  []ReqID
}

func (s *exhaustedAfterFirstSender) SendRequests(id ReqID, _ []request.NetworkRequest) error {
	if s.used {
		return ErrNotServer
	}
	s.used = true
	s.ids = append(s.ids, id)
	return nil
}

// TestMajorityBadResponsesFailsTheBatch drives spec scenario 4 through the
// real dispatch/response path: four connected, equally capable peers, each
// answering with a malformed response in turn. The majority-fault check
// must trip on the third bad response, once bad responses (3) outnumber
// the live peer count (4) divided by two, not before and not after a
// fourth peer is asked.
func TestMajorityBadResponsesFailsTheBatch(t *testing.T) {
	d := New(&mclock.Simulated{}, cache.NewMemory())

	senders := map[PeerID]*exhaustedAfterFirstSender{
		"p1": {}, "p2": {}, "p3": {}, "p4": {},
	}
	for id, s := range senders {
		d.OnConnect(id, request.Capabilities{}, s)
	}

	batch := request.NewBatch()
	if err := batch.Push(&request.TransactionIndexRequest{Hash: common.HexToHash("0xaa")}); err != nil {
		t.Fatal(err)
	}
	p := newPending(batch)
	d.requeue(p)
	d.attemptDispatch()

	badWire := []request.WireResponse{
		{ReqKind: request.KindTransactionIndex, Raw: "not a response"},
	}

	for bad := 1; bad <= 3; bad++ {
		// Exactly one sender has a fresh request id pending: whichever
		// peer the scan most recently landed its successful send on.
		var reqID ReqID
		var peerID PeerID
		d.inTransitMu.Lock()
		for id, e := range d.inTransit {
			reqID, peerID = id, e.peerID
		}
		d.inTransitMu.Unlock()
		if reqID == 0 {
			t.Fatalf("round %d: no in-transit request found", bad)
		}

		d.OnResponse(reqID, peerID, badWire)

		if bad < 3 {
			select {
			case <-p.future.Done():
				t.Fatalf("future resolved early after %d bad response(s)", bad)
			default:
			}
			d.attemptDispatch()
			continue
		}

		select {
		case <-p.future.Done():
		default:
			t.Fatal("expected the majority-fault check to trip on the third bad response")
		}
		_, ferr, _ := p.future.Peek()
		fr, ok := ferr.(*FaultyRequest)
		if !ok {
			t.Fatalf("got error %v (%T), want *FaultyRequest", ferr, ferr)
		}
		if fr.Bad != 3 || fr.Total != 4 {
			t.Fatalf("got FaultyRequest{Bad:%d,Total:%d}, want {3,4}", fr.Bad, fr.Total)
		}
	}
}

func TestInactivityTimeoutFiresWhenNoCapablePeerEverConnects(t *testing.T) {
	clock := &mclock.Simulated{}
	d := New(clock, cache.NewMemory(), WithInactiveTimeLimit(100*time.Millisecond))

	hash := (&request.Header{Number: 3}).ComputeHash()
	future, err := d.Submit(headerByHashBatch(hash))
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-future.Done():
		t.Fatal("should still be waiting immediately after submit")
	default:
	}

	clock.Run(150 * time.Millisecond)
	d.Tick()

	select {
	case <-future.Done():
	default:
		t.Fatal("expected inactivity timeout to fire after 150ms with no capable peer")
	}
	_, ferr, _ := future.Peek()
	if _, ok := ferr.(*TimeoutOnNewPeers); !ok {
		t.Fatalf("got error %v (%T), want *TimeoutOnNewPeers", ferr, ferr)
	}
}

func TestDisconnectRescuesInTransitBatch(t *testing.T) {
	d := New(&mclock.Simulated{}, cache.NewMemory())
	sender := &stubSender{}
	d.OnConnect("peer1", request.Capabilities{ServeHeaders: true}, sender)

	hash := (&request.Header{Number: 4}).ComputeHash()
	future, err := d.Submit(headerByHashBatch(hash))
	if err != nil {
		t.Fatal(err)
	}
	if len(sender.calls) != 1 {
		t.Fatalf("expected the request to be dispatched once, got %d", len(sender.calls))
	}

	d.OnDisconnect("peer1")

	d.waitingMu.Lock()
	waiting := len(d.waiting)
	d.waitingMu.Unlock()
	if waiting != 1 {
		t.Fatalf("expected the in-flight batch to be requeued after its peer disconnected, got %d waiting", waiting)
	}
	select {
	case <-future.Done():
		t.Fatal("future must not resolve just because its peer disconnected")
	default:
	}

	d.inTransitMu.Lock()
	inTransit := len(d.inTransit)
	d.inTransitMu.Unlock()
	if inTransit != 0 {
		t.Fatalf("expected no in-transit entries left for the disconnected peer, got %d", inTransit)
	}
}
