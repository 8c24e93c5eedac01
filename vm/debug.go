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
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// operand counts for the fixed-size instructions; OpRet and OpClosure are
// variable and handled explicitly in Disassemble.
var opWidths = [...]int{
	OpNop:         0,
	OpLoadConst:   2,
	OpLoadLocal:   2,
	OpStoreLocal:  2,
	OpMove:        2,
	OpLoadUpval:   2,
	OpStoreUpval:  2,
	OpLoadGlobal:  2,
	OpStoreGlobal: 2,
	OpAdd:         3,
	OpSub:         3,
	OpMul:         3,
	OpDiv:         3,
	OpMod:         3,
	OpNeg:         2,
	OpEq:          3,
	OpNe:          3,
	OpLt:          3,
	OpLe:          3,
	OpGt:          3,
	OpGe:          3,
	OpJmp:         2,
	OpJmpIf:       3,
	OpJmpIfNot:    3,
	OpCall:        3,
	OpCloseUpval:  1,
	OpArrayNew:    2,
	OpArrayGet:    3,
	OpArraySet:    3,
	OpArrayLen:    2,
	OpArrayPush:   2,
	OpIterNew:     2,
	OpIterNext:    2,
	OpIterHasNext: 2,
}

// Disassemble writes the instruction at position pc in code to w and
// returns the position of the next instruction.
func Disassemble(code []byte, pc int, w io.Writer) (next int) {
	op := Opcode(code[pc])
	fmt.Fprintf(w, "%04d  %-8s", pc, op)
	switch op {
	case OpJmp:
		off := off16(code, pc+1)
		fmt.Fprintf(w, " %+d -> %04d", off, pc+3+off)
		return pc + 3
	case OpJmpIf, OpJmpIfNot:
		off := off16(code, pc+2)
		fmt.Fprintf(w, " r%d %+d -> %04d", code[pc+1], off, pc+4+off)
		return pc + 4
	case OpRet:
		if code[pc+1] == 1 {
			fmt.Fprintf(w, " 1 r%d", code[pc+2])
			return pc + 3
		}
		fmt.Fprintf(w, " 0")
		return pc + 2
	case OpClosure:
		nu := int(code[pc+3])
		fmt.Fprintf(w, " k%d r%d u%d", code[pc+1], code[pc+2], nu)
		p := pc + 4
		for j := 0; j < nu; j++ {
			if code[p] == 1 {
				fmt.Fprintf(w, " (local %d)", code[p+1])
			} else {
				fmt.Fprintf(w, " (upval %d)", code[p+1])
			}
			p += 2
		}
		return p
	case OpLoadConst, OpLoadGlobal, OpStoreGlobal:
		fmt.Fprintf(w, " k%d r%d", code[pc+1], code[pc+2])
		return pc + 3
	case OpCall:
		fmt.Fprintf(w, " r%d %d r%d", code[pc+1], code[pc+2], code[pc+3])
		return pc + 4
	case OpArrayNew:
		fmt.Fprintf(w, " %d r%d", code[pc+1], code[pc+2])
		return pc + 3
	}
	if int(op) >= len(opWidths) {
		fmt.Fprintf(w, " ???")
		return pc + 1
	}
	for j := 1; j <= opWidths[op]; j++ {
		fmt.Fprintf(w, " r%d", code[pc+j])
	}
	return pc + 1 + opWidths[op]
}

// listingWriter remembers the first write error so the instruction loops
// below can print a whole listing without an error check per line.
type listingWriter struct {
	w   io.Writer
	err error
}

func (lw *listingWriter) Write(p []byte) (int, error) {
	if lw.err != nil {
		return 0, lw.err
	}
	n, err := lw.w.Write(p)
	if err != nil {
		lw.err = errors.Wrap(err, "listing write failed")
	}
	return n, err
}

// DisassembleProto writes a listing of the prototype and every nested
// prototype in its constant pool to w.
func DisassembleProto(p *Proto, w io.Writer) error {
	lw := &listingWriter{w: w}
	disasmProto(p, lw)
	return lw.err
}

func disasmProto(p *Proto, w io.Writer) {
	name := p.Name
	if name == "" {
		name = "<anonymous>"
	}
	fmt.Fprintf(w, "fn %s (arity %d, regs %d)\n", name, p.Arity, p.NumRegs)
	for k, c := range p.Consts {
		if c.Kind() != kindProto {
			fmt.Fprintf(w, "  k%-3d %s\n", k, c)
		}
	}
	for pc := 0; pc < len(p.Code); {
		w.Write([]byte{' ', ' '})
		pc = Disassemble(p.Code, pc, w)
		w.Write([]byte{'\n'})
	}
	for _, c := range p.Consts {
		if sub := c.proto(); sub != nil {
			w.Write([]byte{'\n'})
			disasmProto(sub, w)
		}
	}
}
