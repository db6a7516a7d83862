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
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ethlight/ondemand/common/mclock"
	"github.com/ethlight/ondemand/request"
)

// pending is one submitted batch working its way through the dispatcher:
// still collecting responses, tracking which peers have already been tried
// and how many of them answered badly, and how many retry attempts are
// left before it gives up.
type pending struct {
	batch  *request.Batch
	future *Future

	badResponses mapset.Set[PeerID]

	// queryIDHistory tracks peers already tried in the current attempt
	// cycle, so the same peer isn't asked twice for the same suffix; it is
	// cleared whenever a non-empty response arrives, since a partially
	// answered batch starts a fresh cycle for its remaining suffix.
	queryIDHistory mapset.Set[PeerID]

	// baseQueryIndex anchors the peer-scan offset for the current attempt
	// cycle: it is rerolled at random only when queryIDHistory is empty
	// (the first dispatch of a cycle), and every later dispatch within the
	// same cycle derives its offset from it plus the history's size, so a
	// retry after a rejected send doesn't just re-scan from the same spot.
	baseQueryIndex int

	remainingQueryCount uint
	lastDispatchedTo    PeerID

	inactiveSince    mclock.AbsTime
	inactiveTimerSet bool
}

func newPending(batch *request.Batch) *pending {
	return &pending{
		batch:          batch,
		future:         newFuture(),
		badResponses:   mapset.NewThreadUnsafeSet[PeerID](),
		queryIDHistory: mapset.NewThreadUnsafeSet[PeerID](),
	}
}
