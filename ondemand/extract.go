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

	"github.com/ethlight/ondemand/request"
)

// Extract waits for f to resolve and applies adapt to its raw response
// vector, letting a caller get back a concrete type instead of downcasting
// []request.Response itself. adapt is never called if f resolves with an
// error; that error is returned unchanged.
func Extract[T any](ctx context.Context, f *Future, adapt func([]request.Response) (T, error)) (T, error) {
	var zero T
	responses, err := f.Wait(ctx)
	if err != nil {
		return zero, err
	}
	return adapt(responses)
}
