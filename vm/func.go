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

// UpvalDesc tells OpClosure where to capture an upvalue from: a register of
// the enclosing frame when IsLocal is set, otherwise an upvalue of the
// enclosing closure.
type UpvalDesc struct {
	IsLocal bool
	Index   byte
}

// Proto is the compiled, immutable artifact for one function: its code, its
// constant pool, its arity, its upvalue descriptors and the size of the
// register window it needs. Nested prototypes live in the constant pool of
// their parent and share its lifetime. String constants are borrowed from
// the owning instance's intern table.
type Proto struct {
	Name    string
	Arity   int
	NumRegs int
	Code    []byte
	Consts  []Value
	Ups     []UpvalDesc
}

// ProtoValue wraps the prototype in a constant-pool handle.
func ProtoValue(p *Proto) Value { return Value{kind: kindProto, ref: p} }

func (p *Proto) retain()  {}
func (p *Proto) release() {}

// Closure binds a prototype to a vector of upvalue cells, possibly shared
// with other closures.
type Closure struct {
	refs  int32
	Proto *Proto
	ups   []*upvalue
}

func newClosure(p *Proto, nups int) *Closure {
	atomic.AddInt64(&liveObjects, 1)
	return &Closure{refs: 1, Proto: p, ups: make([]*upvalue, nups)}
}

// Value wraps the closure in a Value handle.
func (c *Closure) Value() Value { return Value{kind: KindClosure, ref: c} }

func (c *Closure) retain() { c.refs++ }

func (c *Closure) release() {
	c.refs--
	if c.refs > 0 {
		return
	}
	for _, u := range c.ups {
		if u != nil {
			u.release()
		}
	}
	atomic.AddInt64(&liveObjects, -1)
}

// upvalue is the indirection cell by which a closure refers to a variable of
// an enclosing function. While the defining register slot is alive the cell
// is open and reads and writes go through the slot; once the slot dies the
// cell is closed and owns its own copy. Open cells are threaded on the
// instance's list, sorted by descending slot.
type upvalue struct {
	refs int32
	slot int // register index while open, -1 once closed
	v    Value
	next *upvalue
}

func newUpvalue(slot int) *upvalue {
	atomic.AddInt64(&liveObjects, 1)
	return &upvalue{refs: 1, slot: slot}
}

func (u *upvalue) get(i *Instance) Value {
	if u.slot >= 0 {
		return i.regs[u.slot]
	}
	return u.v
}

func (u *upvalue) set(i *Instance, v Value) {
	if u.slot >= 0 {
		i.setReg(u.slot, v)
		return
	}
	v.retain()
	u.v.release()
	u.v = v
}

// close copies the live slot into the cell. Closing an already closed cell
// is a no-op.
func (u *upvalue) close(i *Instance) {
	if u.slot < 0 {
		return
	}
	u.v = i.regs[u.slot].retain()
	u.slot = -1
}

func (u *upvalue) retain() { u.refs++ }

func (u *upvalue) release() {
	u.refs--
	if u.refs > 0 {
		return
	}
	if u.slot < 0 {
		u.v.release()
		u.v = Value{}
	}
	atomic.AddInt64(&liveObjects, -1)
}
