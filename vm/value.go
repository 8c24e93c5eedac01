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
	"strconv"
	"strings"
	"sync/atomic"
)

// Kind discriminates the payload of a Value.
type Kind uint8

// Value kinds. The iterator and prototype kinds are implementation details:
// they never escape into user-visible values.
const (
	KindNone Kind = iota
	KindInt
	KindFloat
	KindBool
	KindArray
	KindString
	KindClosure
	KindNative
	kindIter
	kindProto
)

var kindNames = [...]string{
	"None",
	"int",
	"float",
	"bool",
	"array",
	"string",
	"fn",
	"native",
	"iterator",
	"proto",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// ref is implemented by every heap payload a Value can carry. Arrays, strings,
// closures and iterators are reference counted; natives and prototypes
// implement ref with no-ops because their lifetime is not managed by the
// value model (natives belong to the registry, prototypes to their root).
type ref interface {
	retain()
	release()
}

// liveObjects counts reference counted heap objects that have not yet been
// released to zero. It is the hook used to verify refcount balance.
var liveObjects int64

// LiveObjects returns the number of live reference counted heap objects
// across all interpreter instances. Diagnostic use only.
func LiveObjects() int64 { return atomic.LoadInt64(&liveObjects) }

// Value is a tagged union. The zero Value is None. Assigning a Value does not
// adjust reference counts; every store into a register, global, array slot or
// upvalue cell goes through an owner that retains on the way in and releases
// what it previously held.
type Value struct {
	kind Kind
	i    int32
	f    float32
	ref  ref
}

// None returns the none value.
func None() Value { return Value{} }

// Int returns an integer value.
func Int(n int32) Value { return Value{kind: KindInt, i: n} }

// Float returns a float value.
func Float(f float32) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.i = 1
	}
	return v
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// Int returns the integer payload. Valid only when Kind is KindInt.
func (v Value) Int() int32 { return v.i }

// Float returns the float payload. Valid only when Kind is KindFloat.
func (v Value) Float() float32 { return v.f }

// Bool returns the boolean payload. Valid only when Kind is KindBool.
func (v Value) Bool() bool { return v.i != 0 }

// Array returns the array payload, or nil if the value is not an array.
func (v Value) Array() *Array {
	a, _ := v.ref.(*Array)
	return a
}

// Str returns the interned string payload, or nil if the value is not a
// string.
func (v Value) Str() *String {
	s, _ := v.ref.(*String)
	return s
}

// Closure returns the closure payload, or nil if the value is not a closure.
func (v Value) Closure() *Closure {
	c, _ := v.ref.(*Closure)
	return c
}

func (v Value) native() *Native {
	n, _ := v.ref.(*Native)
	return n
}

func (v Value) proto() *Proto {
	p, _ := v.ref.(*Proto)
	return p
}

func (v Value) iter() *iterator {
	it, _ := v.ref.(*iterator)
	return it
}

func (v Value) retain() Value {
	if v.ref != nil {
		v.ref.retain()
	}
	return v
}

func (v Value) release() {
	if v.ref != nil {
		v.ref.release()
	}
}

// Truthy reports whether the value is truthy: everything except false, None
// and numeric zero.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNone:
		return false
	case KindBool:
		return v.i != 0
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	}
	return true
}

func (v Value) numeric() (float32, bool) {
	switch v.kind {
	case KindInt:
		return float32(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// Equals implements language equality. Mixed int/float comparisons promote
// to float; heap kinds compare by identity, which is exact for strings
// because all strings are interned; values of different kinds are never
// equal.
func (v Value) Equals(w Value) bool {
	if v.kind == KindInt && w.kind == KindInt {
		return v.i == w.i
	}
	if a, ok := v.numeric(); ok {
		if b, ok := w.numeric(); ok {
			return a == b
		}
		return false
	}
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindNone:
		return true
	case KindBool:
		return v.i == w.i
	}
	return v.ref == w.ref
}

// String renders the value the way print displays it.
func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return "None"
	case KindInt:
		return strconv.FormatInt(int64(v.i), 10)
	case KindFloat:
		return strconv.FormatFloat(float64(v.f), 'g', -1, 32)
	case KindBool:
		if v.i != 0 {
			return "true"
		}
		return "false"
	case KindString:
		return v.Str().String()
	case KindArray:
		a := v.Array()
		var b strings.Builder
		b.WriteByte('[')
		for i := 0; i < a.Len(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			e, _ := a.Get(i)
			b.WriteString(e.String())
		}
		b.WriteByte(']')
		return b.String()
	case KindClosure:
		c := v.Closure()
		if c.Proto.Name != "" {
			return "<fn " + c.Proto.Name + ">"
		}
		return "<fn>"
	case KindNative:
		return "<native " + v.native().Name + ">"
	case kindIter:
		return "<iterator>"
	case kindProto:
		return "<proto " + v.proto().Name + ">"
	}
	return "<invalid>"
}
