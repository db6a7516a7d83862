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
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethlight/ondemand/cache"
	"github.com/ethlight/ondemand/common/mclock"
	"github.com/ethlight/ondemand/log"
	"github.com/ethlight/ondemand/request"
)

// defaultBaseRetryCount is how many peer attempts a batch gets before it
// gives up with MaxAttemptReach, absent an Option overriding it.
const defaultBaseRetryCount = 10

// defaultInactiveTimeLimit bounds how long a batch may sit with no capable,
// not-yet-tried peer to dispatch to before it gives up with
// TimeoutOnNewPeers. Zero disables the check.
const defaultInactiveTimeLimit = 10 * time.Second

// Option configures a Dispatcher at construction time.
type Option func(*Dispatcher)

// WithBaseRetryCount overrides the default retry budget given to every
// submitted batch.
func WithBaseRetryCount(n uint) Option {
	return func(d *Dispatcher) { d.baseRetryCount = n }
}

// WithInactiveTimeLimit overrides how long a batch may wait for a capable
// peer before timing out. Zero disables the check.
func WithInactiveTimeLimit(d2 time.Duration) Option {
	return func(d *Dispatcher) { d.inactiveTimeLimit = d2 }
}

// WithoutImmediateDispatch disables the automatic attemptDispatch call
// after Submit/OnConnect/OnDisconnect/OnAnnouncement, so tests can drive
// dispatch deterministically via Tick.
func WithoutImmediateDispatch() Option {
	return func(d *Dispatcher) { d.noImmediateDispatch = true }
}

// WithLogger overrides the dispatcher's logger.
func WithLogger(l log.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

type inTransitEntry struct {
	pending *pending
	peerID  PeerID
}

// Dispatcher fans submitted batches of requests out to capable peers,
// resolves as much as possible from cache up front, retries across peers on
// failure or disconnect, and detects peers returning faulty data.
//
// Its three pieces of shared state are always locked in the same order:
// waiting, then peers, then in-transit. No call ever holds more than one of
// these locks while invoking a Sender, since that call crosses into the
// network layer and may block.
type Dispatcher struct {
	clock mclock.Clock
	cache cache.Cache
	log   log.Logger

	baseRetryCount      uint
	inactiveTimeLimit   time.Duration
	noImmediateDispatch bool

	waitingMu sync.Mutex
	waiting   []*pending

	peers *peerTable

	inTransitMu sync.Mutex
	inTransit   map[ReqID]*inTransitEntry

	nextReqID atomic.Uint64

	randMu sync.Mutex
	rand   *rand.Rand
}

// New returns a Dispatcher that answers from c before going to the network,
// and uses clock for inactivity-timeout bookkeeping (pass a
// *mclock.Simulated in tests to control time deterministically).
func New(clock mclock.Clock, c cache.Cache, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		clock:             clock,
		cache:             c,
		log:               log.Root(),
		baseRetryCount:    defaultBaseRetryCount,
		inactiveTimeLimit: defaultInactiveTimeLimit,
		peers:             newPeerTable(),
		inTransit:         make(map[ReqID]*inTransitEntry),
		rand:              rand.New(rand.NewSource(int64(clock.Now()))),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit builds a batch from reqs, answers as much of it as possible from
// cache immediately, and queues whatever's left for dispatch. The returned
// Future resolves once every request has a verified answer, or the batch
// fails outright.
func (d *Dispatcher) Submit(reqs []request.CheckedRequest) (*Future, error) {
	batch := request.NewBatch()
	for _, r := range reqs {
		if err := batch.Push(r); err != nil {
			return nil, err
		}
	}
	batch.AnswerFromCache(d.cache)

	p := newPending(batch)
	if batch.IsComplete() {
		p.future.resolve(batch.Responses(), nil)
		return p.future, nil
	}

	d.requeue(p)
	if !d.noImmediateDispatch {
		d.attemptDispatch()
	}
	return p.future, nil
}

// OnConnect registers a newly connected peer and tries to make progress on
// any waiting batch it might be able to serve.
func (d *Dispatcher) OnConnect(id PeerID, caps request.Capabilities, sender Sender) {
	d.peers.insert(&Peer{ID: id, Capabilities: caps, Sender: sender})
	if !d.noImmediateDispatch {
		d.attemptDispatch()
	}
}

// OnDisconnect drops a peer and requeues any batch that was in flight to it
// so it can be retried elsewhere.
func (d *Dispatcher) OnDisconnect(id PeerID) {
	d.peers.remove(id)

	var rescued []*pending
	d.inTransitMu.Lock()
	for reqID, e := range d.inTransit {
		if e.peerID == id {
			rescued = append(rescued, e.pending)
			delete(d.inTransit, reqID)
		}
	}
	d.inTransitMu.Unlock()

	for _, p := range rescued {
		d.requeue(p)
	}
	if !d.noImmediateDispatch {
		d.attemptDispatch()
	}
}

// OnAnnouncement merges a capability update from a peer (e.g. it just
// finished importing a new block) and retries dispatch.
func (d *Dispatcher) OnAnnouncement(id PeerID, caps request.Capabilities) {
	d.peers.mergeCapabilities(id, caps)
	if !d.noImmediateDispatch {
		d.attemptDispatch()
	}
}

// OnResponse delivers a peer's answer to an in-flight request. An empty
// responses slice means the peer had nothing to say; everything else is
// verified against the batch in order, with fault tracking across rounds.
func (d *Dispatcher) OnResponse(reqID ReqID, peerID PeerID, responses []request.WireResponse) {
	d.inTransitMu.Lock()
	entry, ok := d.inTransit[reqID]
	if ok {
		delete(d.inTransit, reqID)
	}
	d.inTransitMu.Unlock()
	if !ok {
		return
	}
	p := entry.pending

	if len(responses) == 0 {
		if p.remainingQueryCount == 0 {
			p.future.resolve(nil, &MaxAttemptReach{})
			return
		}
		d.requeue(p)
		if !d.noImmediateDispatch {
			d.attemptDispatch()
		}
		return
	}

	// A non-empty response starts a fresh attempt cycle for whatever
	// suffix remains: peers already tried may be asked again.
	p.queryIDHistory.Clear()

	for _, wire := range responses {
		if _, err := p.batch.SupplyResponse(d.cache, wire); err != nil {
			d.log.Debug("ondemand: bad response", "peer", peerID, "reqid", reqID, "err", err)
			p.badResponses.Add(peerID)
		}
	}

	// The denominator is the currently connected peer count, not how many
	// peers this batch has been dispatched to: a peer that disconnected
	// mid-flight can't still be corroborating or refuting anything.
	total := d.peers.len()
	if bad := p.badResponses.Cardinality(); bad > total/2 {
		p.future.resolve(nil, &FaultyRequest{ReqID: reqID, Bad: bad, Total: total})
		return
	}

	p.batch.FillUnanswered()
	if p.batch.IsComplete() {
		p.future.resolve(p.batch.Responses(), nil)
		return
	}
	d.requeue(p)
	if !d.noImmediateDispatch {
		d.attemptDispatch()
	}
}

// Tick gives queued batches another chance to dispatch, independent of any
// particular peer event. Call it periodically so inactivity timeouts and
// retries make progress even with a quiet network.
func (d *Dispatcher) Tick() {
	d.attemptDispatch()
}

func (d *Dispatcher) requeue(p *pending) {
	d.waitingMu.Lock()
	d.waiting = append(d.waiting, p)
	d.waitingMu.Unlock()
}

// randInt returns an unbounded non-negative random int, used to seed a
// pending's baseQueryIndex the way rand::random::<usize>() seeds
// base_query_index: the raw value is kept on the pending and reduced modulo
// the live peer count afresh on every dispatch, so it stays a valid offset
// even as peers connect and disconnect across an attempt cycle.
func (d *Dispatcher) randInt() int {
	d.randMu.Lock()
	defer d.randMu.Unlock()
	return d.rand.Int()
}

type dispatchOutcome int

const (
	outcomeDispatched dispatchOutcome = iota
	outcomeStillWaiting
	outcomeMaxAttempts
	outcomeTimedOut
)

// attemptDispatch drains the waiting queue, tries each pending batch
// against the current peer set, and requeues whatever didn't make
// progress. It never holds the waiting lock while calling into a Sender.
func (d *Dispatcher) attemptDispatch() {
	d.waitingMu.Lock()
	items := d.waiting
	d.waiting = nil
	d.waitingMu.Unlock()

	var stillWaiting []*pending
	for _, p := range items {
		switch outcome, reqID := d.dispatchOne(p); outcome {
		case outcomeDispatched:
			d.inTransitMu.Lock()
			d.inTransit[reqID] = &inTransitEntry{pending: p, peerID: p.lastDispatchedTo}
			d.inTransitMu.Unlock()
		case outcomeMaxAttempts:
			p.future.resolve(nil, &MaxAttemptReach{})
		case outcomeTimedOut:
			p.future.resolve(nil, &TimeoutOnNewPeers{Remaining: p.remainingQueryCount})
		default:
			stillWaiting = append(stillWaiting, p)
		}
	}

	if len(stillWaiting) > 0 {
		d.waitingMu.Lock()
		d.waiting = append(d.waiting, stillWaiting...)
		d.waitingMu.Unlock()
	}
}

// dispatchOne scans the peer set once, starting at an offset derived from
// the pending's attempt cycle: a fresh random offset on the first dispatch
// of a cycle (history empty), and base_query_index + history_len on every
// later dispatch within the same cycle, so a rejected send doesn't just
// rescan the same peers from the same starting point. The scan visits each
// peer at most once, stopping as soon as the retry budget is spent.
func (d *Dispatcher) dispatchOne(p *pending) (dispatchOutcome, ReqID) {
	peers := d.peers.snapshot()
	numPeers := len(peers)
	if numPeers == 0 {
		return d.handleNoCapablePeer(p), 0
	}

	required := p.batch.RequiredCapabilities()
	historyLen := p.queryIDHistory.Cardinality()

	var offset int
	if historyLen == 0 {
		p.remainingQueryCount = d.baseRetryCount
		p.baseQueryIndex = d.randInt()
		offset = p.baseQueryIndex
	} else {
		offset = p.baseQueryIndex + historyLen
	}
	offset %= numPeers

	initRemaining := p.remainingQueryCount

	for i := 0; i < numPeers; i++ {
		if p.remainingQueryCount == 0 {
			break
		}
		peer := peers[(offset+i)%numPeers]
		if !p.queryIDHistory.Add(peer.ID) {
			continue
		}
		if !peer.Capabilities.Fulfills(required) {
			continue
		}

		p.remainingQueryCount--
		p.inactiveTimerSet = false

		reqID := ReqID(d.nextReqID.Add(1))
		err := peer.Sender.SendRequests(reqID, p.batch.NetRequests())
		if err == nil {
			p.lastDispatchedTo = peer.ID
			return outcomeDispatched, reqID
		}
	}

	if p.remainingQueryCount == 0 {
		return outcomeMaxAttempts, 0
	}
	if initRemaining == p.remainingQueryCount {
		return d.handleNoCapablePeer(p), 0
	}
	return outcomeStillWaiting, 0
}

func (d *Dispatcher) handleNoCapablePeer(p *pending) dispatchOutcome {
	if d.inactiveTimeLimit <= 0 {
		return outcomeStillWaiting
	}
	now := d.clock.Now()
	if !p.inactiveTimerSet {
		p.inactiveSince = now
		p.inactiveTimerSet = true
		return outcomeStillWaiting
	}
	if now.Sub(p.inactiveSince) >= d.inactiveTimeLimit {
		return outcomeTimedOut
	}
	return outcomeStillWaiting
}
