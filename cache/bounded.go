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

package cache

import lru "github.com/hashicorp/golang-lru"

// Bounded is a Cache backed by a fixed-capacity LRU, for long-running nodes
// where an unbounded Memory cache would grow without limit as new headers,
// proofs, and account/code lookups accumulate.
type Bounded struct {
	lru *lru.Cache
}

// NewBounded returns a Bounded cache holding at most size entries, evicting
// the least recently used entry once full. Panics if size is not positive,
// matching the underlying lru.Cache constructor.
func NewBounded(size int) *Bounded {
	c, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	return &Bounded{lru: c}
}

func (b *Bounded) Get(key any) (any, bool) {
	return b.lru.Get(key)
}

func (b *Bounded) Put(key, value any) {
	b.lru.Add(key, value)
}

// Len reports the number of entries currently cached.
func (b *Bounded) Len() int {
	return b.lru.Len()
}
