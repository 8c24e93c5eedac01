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

import "github.com/pkg/errors"

const (
	defaultRegisters = 256
	defaultCallDepth = 64
)

// frame is one activation record: the running closure, its instruction
// pointer, the base of its register window and the caller-side register that
// receives its result (-1 discards).
type frame struct {
	closure *Closure
	ip      int
	base    int
	ret     int
}

// Option interface
type Option func(*Instance) error

// Registers sets the size of the register file. Register operands are single
// bytes, so n may not exceed 256.
func Registers(n int) Option {
	return func(i *Instance) error {
		if n < 16 || n > 256 {
			return errors.Errorf("mica: register file size %d out of range [16,256]", n)
		}
		i.regs = make([]Value, n)
		return nil
	}
}

// CallDepth sets the maximum number of stacked call frames.
func CallDepth(n int) Option {
	return func(i *Instance) error {
		if n < 1 {
			return errors.Errorf("mica: call depth %d out of range", n)
		}
		i.frames = make([]frame, n)
		return nil
	}
}

// Instance represents one mica interpreter. An Instance is not safe for
// concurrent use; hosts wanting parallelism create independent instances.
type Instance struct {
	regs      []Value
	frames    []frame
	nframes   int
	openUps   *upvalue
	globals   map[string]Value
	natives   []*Native
	nativeIdx map[string]int
	strings   map[string]*String
	insCount  int64
}

// New creates a new mica interpreter instance.
func New(opts ...Option) (*Instance, error) {
	i := &Instance{
		globals:   make(map[string]Value),
		nativeIdx: make(map[string]int),
		strings:   make(map[string]*String),
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	if i.regs == nil {
		i.regs = make([]Value, defaultRegisters)
	}
	if i.frames == nil {
		i.frames = make([]frame, defaultCallDepth)
	}
	return i, nil
}

// Load wraps a compiled top-level prototype in a closure with no upvalues
// and pushes it as a frame, ready to Run. Repeated loads stack additional
// top-level frames; they run in reverse load order.
func (i *Instance) Load(p *Proto) error {
	if i.nframes == len(i.frames) {
		return errors.Errorf("mica: stack overflow")
	}
	base := 0
	if i.nframes > 0 {
		top := &i.frames[i.nframes-1]
		base = top.base + top.closure.Proto.NumRegs
	}
	if base+p.NumRegs > len(i.regs) {
		return errors.Errorf("mica: register file exhausted")
	}
	for r := base; r < base+p.NumRegs; r++ {
		i.regs[r].release()
		i.regs[r] = Value{}
	}
	i.frames[i.nframes] = frame{closure: newClosure(p, 0), base: base, ret: -1}
	i.nframes++
	return nil
}

// Reset drops every stacked frame and clears the register file, keeping
// globals, natives and interned strings. Use it to recover an instance
// after a runtime error.
func (i *Instance) Reset() {
	for i.nframes > 0 {
		i.nframes--
		i.frames[i.nframes].closure.release()
		i.frames[i.nframes] = frame{}
	}
	i.closeUpvalues(0)
	for r := range i.regs {
		i.regs[r].release()
		i.regs[r] = Value{}
	}
}

// Free destroys the instance: globals, native registry, stacked frames and
// the intern table. Calling anything else afterwards is undefined.
func (i *Instance) Free() {
	i.Reset()
	for name, v := range i.globals {
		v.release()
		delete(i.globals, name)
	}
	i.natives = nil
	i.nativeIdx = nil
	for s, o := range i.strings {
		o.release()
		delete(i.strings, s)
	}
	i.strings = nil
	i.globals = nil
}

// SetGlobal binds name to v, retaining v and releasing any previous binding.
func (i *Instance) SetGlobal(name string, v Value) {
	v.retain()
	if old, ok := i.globals[name]; ok {
		old.release()
	}
	i.globals[name] = v
}

// GetGlobal returns the value bound to name, borrowed from the global table,
// or None when the name is unbound.
func (i *Instance) GetGlobal(name string) Value {
	return i.globals[name]
}

// InstructionCount returns the number of instructions executed by the last
// call to Run.
func (i *Instance) InstructionCount() int64 {
	return i.insCount
}
