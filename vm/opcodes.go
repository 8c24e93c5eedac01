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

// Opcode is a one byte mica VM instruction tag. Operands follow inline in
// the code stream; register operands are indices relative to the current
// frame's base, jump operands are 16 bit big-endian signed offsets relative
// to the byte after the offset.
type Opcode byte

// mica Virtual Machine Opcodes.
const (
	OpNop         Opcode = iota
	OpLoadConst          // k d       R[d] = consts[k]
	OpLoadLocal          // i d       R[d] = R[i]
	OpStoreLocal         // i r       R[i] = R[r]
	OpMove               // s d       R[d] = R[s]
	OpLoadUpval          // u d       R[d] = *ups[u]
	OpStoreUpval         // u r       *ups[u] = R[r]
	OpLoadGlobal         // k d       R[d] = globals[consts[k]]
	OpStoreGlobal        // k r       globals[consts[k]] = R[r]
	OpAdd                // a b d
	OpSub                // a b d
	OpMul                // a b d
	OpDiv                // a b d
	OpMod                // a b d     integers only
	OpNeg                // s d
	OpEq                 // a b d
	OpNe                 // a b d
	OpLt                 // a b d
	OpLe                 // a b d
	OpGt                 // a b d
	OpGe                 // a b d
	OpJmp                // off16
	OpJmpIf              // r off16
	OpJmpIfNot           // r off16
	OpCall               // f n d     callee in R[f], args in R[f+1..f+n]
	OpRet                // n [r]     n is 0 or 1
	OpClosure            // k d u (isLocal idx)*u
	OpCloseUpval         // i         close open upvalues at or above R[i]
	OpArrayNew           // cap d
	OpArrayGet           // a i d
	OpArraySet           // a i r
	OpArrayLen           // a d
	OpArrayPush          // a r
	OpIterNew            // s d
	OpIterNext           // it d
	OpIterHasNext        // it d
)

var opNames = [...]string{
	"nop",
	"const",
	"loadl",
	"storel",
	"move",
	"loadu",
	"storeu",
	"loadg",
	"storeg",
	"add",
	"sub",
	"mul",
	"div",
	"mod",
	"neg",
	"eq",
	"ne",
	"lt",
	"le",
	"gt",
	"ge",
	"jmp",
	"jt",
	"jf",
	"call",
	"ret",
	"closure",
	"closeup",
	"anew",
	"aget",
	"aset",
	"alen",
	"apush",
	"inew",
	"inext",
	"ihas",
}

func (op Opcode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "???"
}
