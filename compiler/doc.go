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

// Package compiler turns mica source text into bytecode for the mica VM.
//
// The pipeline is lexer -> recursive-descent parser -> AST -> bytecode
// compiler. Compile returns the top-level function prototype; nested
// functions become prototypes in their parent's constant pool.
//
// The language:
//
//	let x = 10              // immutable binding
//	let mut y = 20          // mutable binding
//	y = y + 1
//
//	fn add(a, b) {          // named function
//	    return a + b
//	}
//	let twice = |x| x * 2   // closure literal, expression body
//	let get = || { return y }
//
//	if x > 5 { ... } else { ... }
//	while y > 0 { y = y - 1 }
//	loop { break }          // unconditional loop
//	for e in [1, 2, 3] { }  // array iteration
//
// Values are 32 bit ints, 32 bit floats, booleans, None, strings ("..."
// with no escapes), arrays ([e, ...]) and functions. Mixed int/float
// arithmetic promotes to float; // starts a line comment; semicolons are
// optional statement terminators.
//
// Binary operators, loosest first:
//
//	||
//	&&
//	==  !=
//	<  <=  >  >=
//	+  -
//	*  /  %
//
// followed by unary minus and the call/index/method postfix forms.
//
// Scoping: top-level let and fn declare globals; inside a function they
// declare locals, which live in fixed low registers of the frame window.
// Closures capture enclosing locals through upvalues; sibling closures over
// the same variable share one cell. Assignment to a local binding declared
// without mut, directly or through an upvalue, is a compile error;
// top-level bindings are globals and their assignments are not checked.
//
// .iter() method chains (map, filter, fold) are recognized by the parser
// but rejected by the compiler with a diagnostic: they are reserved, not
// implemented. The match keyword is likewise reserved.
//
// On a parse error the parser reports the error, skips to the next
// statement boundary and keeps going, so one pass can report several
// errors (up to 10, the way the rest of the toolchain caps diagnostics).
// The returned error is an ErrCompile carrying one entry per diagnostic.
package compiler
