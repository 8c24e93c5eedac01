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

import (
	"hash/fnv"
	"sync/atomic"
)

// String is an immutable byte sequence with a precomputed FNV-1a hash.
// All strings pass through the instance's intern table, so two equal
// literals share one object and equality reduces to identity.
type String struct {
	refs int32
	hash uint32
	b    []byte
}

// Value wraps the string in a Value handle.
func (s *String) Value() Value { return Value{kind: KindString, ref: s} }

// Bytes returns the raw bytes. Callers must not mutate them.
func (s *String) Bytes() []byte { return s.b }

// Len returns the byte length.
func (s *String) Len() int { return len(s.b) }

// Hash returns the FNV-1a hash of the contents.
func (s *String) Hash() uint32 { return s.hash }

func (s *String) String() string { return string(s.b) }

func (s *String) retain() { s.refs++ }

func (s *String) release() {
	s.refs--
	if s.refs > 0 {
		return
	}
	atomic.AddInt64(&liveObjects, -1)
}

// InternString returns the canonical string value for s, creating and
// registering it on first use. The returned value is borrowed from the
// intern table: it stays valid until the instance is freed.
func (i *Instance) InternString(s string) Value {
	return i.intern(s).Value()
}

func (i *Instance) intern(s string) *String {
	if o, ok := i.strings[s]; ok {
		return o
	}
	h := fnv.New32a()
	h.Write([]byte(s))
	o := &String{refs: 1, hash: h.Sum32(), b: []byte(s)}
	atomic.AddInt64(&liveObjects, 1)
	i.strings[s] = o
	return o
}
