// This file is part of mica - https://github.com/j-w-s/mica
//
// Copyright 2024 The mica authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vm

import "sync/atomic"

// Array is a growable vector of values. The cells between length and
// capacity are kept in the None state so releasing the array never touches
// an uninitialized payload.
type Array struct {
	refs int32
	data []Value
	n    int
}

// NewArray returns a new empty array with the given initial capacity and a
// reference count of one, owned by the caller.
func NewArray(capacity int) *Array {
	if capacity < 0 {
		capacity = 0
	}
	atomic.AddInt64(&liveObjects, 1)
	return &Array{refs: 1, data: make([]Value, capacity)}
}

// Value wraps the array in a Value handle.
func (a *Array) Value() Value { return Value{kind: KindArray, ref: a} }

// Len returns the number of elements.
func (a *Array) Len() int { return a.n }

// Cap returns the current capacity.
func (a *Array) Cap() int { return len(a.data) }

// Get returns the element at index i, borrowed from the array. ok is false
// when i is out of range.
func (a *Array) Get(i int) (v Value, ok bool) {
	if i < 0 || i >= a.n {
		return Value{}, false
	}
	return a.data[i], true
}

// Set stores v at index i, retaining it and releasing the previous element.
// It reports whether i was in range.
func (a *Array) Set(i int, v Value) bool {
	if i < 0 || i >= a.n {
		return false
	}
	v.retain()
	a.data[i].release()
	a.data[i] = v
	return true
}

// Push appends v, retaining it. The backing store grows by doubling.
func (a *Array) Push(v Value) {
	if a.n == len(a.data) {
		a.grow()
	}
	v.retain()
	a.data[a.n] = v
	a.n++
}

func (a *Array) grow() {
	c := len(a.data) * 2
	if c < 4 {
		c = 4
	}
	d := make([]Value, c)
	copy(d, a.data)
	a.data = d
}

func (a *Array) retain() { a.refs++ }

func (a *Array) release() {
	a.refs--
	if a.refs > 0 {
		return
	}
	for i := 0; i < a.n; i++ {
		a.data[i].release()
		a.data[i] = Value{}
	}
	a.n = 0
	atomic.AddInt64(&liveObjects, -1)
}
