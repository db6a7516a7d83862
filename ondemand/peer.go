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

// Package ondemand implements an on-demand chain-data request dispatcher: it
// tracks which connected peers can serve which kind of data, fans batches of
// CheckedRequest out to capable peers, retries on failure or disconnect, and
// resolves a Future once every request in a batch has a verified answer.
package ondemand

import (
	"errors"
	"sync"

	"github.com/ethlight/ondemand/request"
)

// PeerID identifies a connected peer. The network layer owns the concrete
// identity scheme (enode ID, libp2p peer ID, ...); the dispatcher only needs
// it as a comparable key.
type PeerID string

// ReqID identifies one outstanding network request, assigned by the
// dispatcher when it hands a batch's unanswered suffix to a peer.
type ReqID uint64

// Sender is the network layer's half of the contract: given a request ID
// and the wire projection of a batch's unanswered requests, it delivers
// them to the peer. The dispatcher later learns the outcome through
// Dispatcher.OnResponse.
type Sender interface {
	SendRequests(id ReqID, reqs []request.NetworkRequest) error
}

// ErrNoCredits is returned by a Sender when the peer has no flow-control
// credits left; the dispatcher counts the attempt against the batch's retry
// budget but keeps scanning for another peer in the same round.
var ErrNoCredits = errors.New("ondemand: peer has no credits available")

// ErrNotServer is returned by a Sender when the peer rejects the request
// outright (e.g. it never advertised the capability it claimed to have).
var ErrNotServer = errors.New("ondemand: peer rejected request outright")

// Peer is everything the dispatcher knows about a connected peer: what it
// can serve, and how to hand it work.
type Peer struct {
	ID           PeerID
	Capabilities request.Capabilities
	Sender       Sender
}

// peerTable is a thread-safe registry of connected peers. It never calls
// out to a Sender while holding its lock, so a slow or blocking peer send
// can't stall connect/disconnect/announce handling for other peers.
type peerTable struct {
	mu    sync.Mutex
	peers map[PeerID]*Peer
}

func newPeerTable() *peerTable {
	return &peerTable{peers: make(map[PeerID]*Peer)}
}

func (t *peerTable) insert(p *Peer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[p.ID] = p
}

func (t *peerTable) remove(id PeerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, id)
}

// mergeCapabilities folds an announcement into a peer's known capability
// set: ServeHeaders/TxRelay flags are OR'd in, and each *Since bound only
// moves if the announcement widens it (lowers it).
func (t *peerTable) mergeCapabilities(id PeerID, caps request.Capabilities) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[id]
	if !ok {
		return
	}
	if caps.ServeHeaders {
		p.Capabilities.ServeHeaders = true
	}
	if caps.TxRelay {
		p.Capabilities.TxRelay = true
	}
	p.Capabilities.ServeChainSince = widen(p.Capabilities.ServeChainSince, caps.ServeChainSince)
	p.Capabilities.ServeStateSince = widen(p.Capabilities.ServeStateSince, caps.ServeStateSince)
}

func widen(current, announced *uint64) *uint64 {
	if announced == nil {
		return current
	}
	if current == nil || *announced < *current {
		v := *announced
		return &v
	}
	return current
}

// snapshot returns a point-in-time copy of the peer set, safe to range over
// after the table's lock is released.
func (t *peerTable) snapshot() []*Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	return out
}

// len reports the number of currently connected peers.
func (t *peerTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.peers)
}
