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

// iterator wraps a source value and a cursor. Only arrays are iterable;
// iterating anything else yields an immediately exhausted iterator.
// Iterators are not first class in the language: they only live in the
// hidden register between OpIterNew and loop exit.
type iterator struct {
	refs int32
	src  Value
	pos  int
}

func newIterator(src Value) *iterator {
	atomic.AddInt64(&liveObjects, 1)
	return &iterator{refs: 1, src: src.retain()}
}

func (it *iterator) Value() Value { return Value{kind: kindIter, ref: it} }

func (it *iterator) hasNext() bool {
	a := it.src.Array()
	return a != nil && it.pos < a.Len()
}

// next returns the next element, borrowed from the source, or None when the
// iterator is exhausted.
func (it *iterator) next() Value {
	a := it.src.Array()
	if a == nil || it.pos >= a.Len() {
		return Value{}
	}
	v, _ := a.Get(it.pos)
	it.pos++
	return v
}

func (it *iterator) retain() { it.refs++ }

func (it *iterator) release() {
	it.refs--
	if it.refs > 0 {
		return
	}
	it.src.release()
	it.src = Value{}
	atomic.AddInt64(&liveObjects, -1)
}
