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

import "fmt"

// MaxAttemptReach is returned when a batch has run through its entire retry
// budget without completing.
type MaxAttemptReach struct {
	QueryIndex int
}

func (e *MaxAttemptReach) Error() string {
	return fmt.Sprintf("ondemand: exhausted retry budget at query %d", e.QueryIndex)
}

// TimeoutOnNewPeers is returned when, for longer than the dispatcher's
// inactivity time limit, dispatch attempts have found no capable peer that
// the batch has not already tried in its current attempt cycle.
type TimeoutOnNewPeers struct {
	Remaining uint
}

func (e *TimeoutOnNewPeers) Error() string {
	return fmt.Sprintf("ondemand: timed out waiting for a capable peer (%d attempts remaining)", e.Remaining)
}

// FaultyRequest is returned when the number of distinct peers that gave a
// batch a response that failed verification exceeds half the number of
// currently connected peers.
type FaultyRequest struct {
	ReqID ReqID
	Bad   int
	Total int
}

func (e *FaultyRequest) Error() string {
	return fmt.Sprintf("ondemand: %d of %d peers for request %d returned a bad response", e.Bad, e.Total, e.ReqID)
}

// ChannelCancelled reports that a Future was abandoned before it resolved.
// The Dispatcher itself never resolves a Future with it: it has no shutdown
// or cancellation path.
type ChannelCancelled struct{}

func (e *ChannelCancelled) Error() string { return "ondemand: request cancelled" }
