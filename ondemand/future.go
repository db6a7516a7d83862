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
	"sync"

	"github.com/ethlight/ondemand/request"
)

// Future is a one-shot handle to the eventual outcome of a submitted batch.
// It resolves exactly once, either with the batch's verified responses or
// with an error (MaxAttemptReach, TimeoutOnNewPeers, or FaultyRequest). The
// Dispatcher never resolves it with ChannelCancelled.
type Future struct {
	mu        sync.Mutex
	done      chan struct{}
	responses []request.Response
	err       error
	resolved  bool
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(responses []request.Response, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolved {
		return
	}
	f.resolved = true
	f.responses = responses
	f.err = err
	close(f.done)
}

// Done returns a channel that closes once the future resolves.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the future resolves or ctx is cancelled, whichever
// comes first.
func (f *Future) Wait(ctx context.Context) ([]request.Response, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.responses, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Peek returns the current outcome without blocking. ok is false if the
// future has not resolved yet.
func (f *Future) Peek() (responses []request.Response, err error, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.responses, f.err, f.resolved
}
