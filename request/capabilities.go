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

// Capabilities is the set of services a peer advertises, or the set a batch
// of requests needs in order to be answered.
type Capabilities struct {
	ServeHeaders    bool
	ServeChainSince *uint64
	ServeStateSince *uint64
	TxRelay         bool
}

// Fulfills reports whether c (a peer's advertised capabilities) can satisfy
// req (the capabilities required by a batch's unanswered suffix). Every
// required flag must be matched, and each required *Since lower bound must
// be at or after the peer's own: an absent peer bound means "cannot serve",
// while an absent requirement means "no constraint".
func (c Capabilities) Fulfills(req Capabilities) bool {
	if req.ServeHeaders && !c.ServeHeaders {
		return false
	}
	if req.TxRelay && !c.TxRelay {
		return false
	}
	if !canServeSince(req.ServeChainSince, c.ServeChainSince) {
		return false
	}
	if !canServeSince(req.ServeStateSince, c.ServeStateSince) {
		return false
	}
	return true
}

func canServeSince(required, local *uint64) bool {
	switch {
	case required == nil:
		return true
	case local == nil:
		return false
	default:
		return *required >= *local
	}
}

func minSince(current *uint64, n uint64) *uint64 {
	if current == nil || n < *current {
		v := n
		return &v
	}
	return current
}

// GuessCapabilities scans the unanswered suffix of a batch and computes the
// capability set required to serve it: the union of ServeHeaders flags, and
// the minimum ServeChainSince/ServeStateSince across requests whose header
// dependency has already been resolved.
func GuessCapabilities(reqs []CheckedRequest) Capabilities {
	var caps Capabilities
	for _, req := range reqs {
		contribution := req.Capability()
		if contribution.ServeHeaders {
			caps.ServeHeaders = true
		}
		if contribution.TxRelay {
			caps.TxRelay = true
		}
		if contribution.ServeChainSince != nil {
			caps.ServeChainSince = minSince(caps.ServeChainSince, *contribution.ServeChainSince)
		}
		if contribution.ServeStateSince != nil {
			caps.ServeStateSince = minSince(caps.ServeStateSince, *contribution.ServeStateSince)
		}
	}
	return caps
}
