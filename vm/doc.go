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

// Package vm implements the mica virtual machine.
//
// The VM is register based. Each call frame owns a contiguous window of the
// instance's register file starting at its base; register operands in
// bytecode are window relative. The calling convention places the callee in
// register R and its arguments in R+1..R+n; the new frame's base is R+1, so
// the first argument becomes local 0 of the callee. Compilers targeting the
// VM must preserve that layout because OpCloseUpval and OpRet refer to
// absolute slot addresses.
//
// Values are a tagged union of 32 bit integers, 32 bit floats, booleans,
// None, and handles to heap objects: arrays, interned strings, closures and
// registered natives. Heap objects are managed by deterministic reference
// counting; every store into a register, global, array slot or upvalue cell
// retains the incoming handle and releases what the destination previously
// held. There is no tracing collector, so reference cycles (an array holding
// a closure whose upvalue holds the array) leak; programs must break such
// cycles themselves.
//
// Closures capture variables of enclosing functions through upvalue cells.
// A cell is open while the variable's register slot is alive: reads and
// writes go straight through the slot, and sibling closures capturing the
// same variable share one cell, so they observe each other's writes. When
// the slot goes out of scope (OpCloseUpval, or OpRet closing everything at
// or above the frame base) the cell is closed: it copies the value into its
// own storage and detaches from the register file.
//
// An Instance is single threaded and never yields; natives run synchronously
// on the VM's call stack. Hosts wanting parallelism run independent
// instances, one per goroutine.
//
// Hosts embed the VM by creating an instance, registering natives, and
// loading prototypes produced by the compiler package:
//
//	m, err := vm.New()
//	if err != nil { ... }
//	defer m.Free()
//	m.RegisterNative("print", printFn)
//	p, err := compiler.Compile(m, "script", src)
//	if err != nil { ... }
//	if err := m.Load(p); err != nil { ... }
//	if err := m.Run(); err != nil { ... }
package vm
