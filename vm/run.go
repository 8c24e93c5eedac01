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

func (i *Instance) reg(n int) Value { return i.regs[n] }

// setReg stores a borrowed value: retain incoming, release previous.
func (i *Instance) setReg(n int, v Value) {
	v.retain()
	i.regs[n].release()
	i.regs[n] = v
}

// setRegOwned stores a value the caller owns, transferring the reference.
func (i *Instance) setRegOwned(n int, v Value) {
	i.regs[n].release()
	i.regs[n] = v
}

// captureUpvalue returns the open upvalue for the given register slot,
// splicing a new cell into the slot-descending open list if none exists.
// The returned cell carries one fresh reference for the capturing closure.
func (i *Instance) captureUpvalue(slot int) *upvalue {
	var prev *upvalue
	u := i.openUps
	for u != nil && u.slot > slot {
		prev, u = u, u.next
	}
	if u != nil && u.slot == slot {
		u.retain()
		return u
	}
	nu := newUpvalue(slot) // the list's reference
	nu.next = u
	if prev == nil {
		i.openUps = nu
	} else {
		prev.next = nu
	}
	nu.retain()
	return nu
}

// closeUpvalues closes every open upvalue whose slot is at or above from.
// The list is sorted by descending slot, so this is a prefix walk.
func (i *Instance) closeUpvalues(from int) {
	for i.openUps != nil && i.openUps.slot >= from {
		u := i.openUps
		i.openUps = u.next
		u.next = nil
		u.close(i)
		u.release() // drop the list's reference
	}
}

func arith(op Opcode, a, b Value) (Value, error) {
	if a.kind == KindInt && b.kind == KindInt {
		x, y := a.i, b.i
		switch op {
		case OpAdd:
			return Int(x + y), nil
		case OpSub:
			return Int(x - y), nil
		case OpMul:
			return Int(x * y), nil
		case OpDiv:
			if y == 0 {
				return Value{}, errors.New("division by zero")
			}
			return Int(x / y), nil
		case OpMod:
			if y == 0 {
				return Value{}, errors.New("remainder by zero")
			}
			return Int(x % y), nil
		}
	}
	x, okx := a.numeric()
	y, oky := b.numeric()
	if !okx || !oky {
		return Value{}, errors.Errorf("invalid operands for arithmetic: %s and %s", a.kind, b.kind)
	}
	switch op {
	case OpAdd:
		return Float(x + y), nil
	case OpSub:
		return Float(x - y), nil
	case OpMul:
		return Float(x * y), nil
	case OpDiv:
		return Float(x / y), nil
	case OpMod:
		return Value{}, errors.New("remainder requires integer operands")
	}
	return Value{}, errors.Errorf("bad arithmetic opcode %s", op)
}

func compare(op Opcode, a, b Value) (Value, error) {
	switch op {
	case OpEq:
		return Bool(a.Equals(b)), nil
	case OpNe:
		return Bool(!a.Equals(b)), nil
	}
	if a.kind == KindInt && b.kind == KindInt {
		x, y := a.i, b.i
		switch op {
		case OpLt:
			return Bool(x < y), nil
		case OpLe:
			return Bool(x <= y), nil
		case OpGt:
			return Bool(x > y), nil
		case OpGe:
			return Bool(x >= y), nil
		}
	}
	x, okx := a.numeric()
	y, oky := b.numeric()
	if !okx || !oky {
		return Value{}, errors.Errorf("invalid operands for comparison: %s and %s", a.kind, b.kind)
	}
	switch op {
	case OpLt:
		return Bool(x < y), nil
	case OpLe:
		return Bool(x <= y), nil
	case OpGt:
		return Bool(x > y), nil
	case OpGe:
		return Bool(x >= y), nil
	}
	return Value{}, errors.Errorf("bad comparison opcode %s", op)
}

func off16(code []byte, at int) int {
	return int(int16(uint16(code[at])<<8 | uint16(code[at+1])))
}

// Run drives the dispatch loop until the frame stack empties or a runtime
// error occurs. On error the frame stack is left as-is so the host can
// inspect it; use Reset or Free to recover.
func (i *Instance) Run() (err error) {
	defer func() {
		if e := recover(); e != nil {
			ip, nf := 0, i.nframes
			if nf > 0 {
				ip = i.frames[nf-1].ip
			}
			err = errors.Errorf("mica: internal error: %v @ip=%d frame=%d", e, ip, nf)
		}
	}()
	i.insCount = 0
	for i.nframes > 0 {
		f := &i.frames[i.nframes-1]
		code := f.closure.Proto.Code
		base := f.base
		if f.ip >= len(code) {
			return errors.Errorf("mica: instruction pointer out of code @ip=%d", f.ip)
		}
		op := Opcode(code[f.ip])
		i.insCount++
		switch op {
		case OpNop:
			f.ip++

		case OpLoadConst:
			k, d := code[f.ip+1], code[f.ip+2]
			i.setReg(base+int(d), f.closure.Proto.Consts[k])
			f.ip += 3

		case OpLoadLocal, OpMove:
			s, d := code[f.ip+1], code[f.ip+2]
			i.setReg(base+int(d), i.reg(base+int(s)))
			f.ip += 3

		case OpStoreLocal:
			l, r := code[f.ip+1], code[f.ip+2]
			i.setReg(base+int(l), i.reg(base+int(r)))
			f.ip += 3

		case OpLoadUpval:
			u, d := code[f.ip+1], code[f.ip+2]
			i.setReg(base+int(d), f.closure.ups[u].get(i))
			f.ip += 3

		case OpStoreUpval:
			u, r := code[f.ip+1], code[f.ip+2]
			f.closure.ups[u].set(i, i.reg(base+int(r)))
			f.ip += 3

		case OpLoadGlobal:
			k, d := code[f.ip+1], code[f.ip+2]
			name := f.closure.Proto.Consts[k].Str().String()
			if v, ok := i.globals[name]; ok {
				i.setReg(base+int(d), v)
			} else if n := i.findNative(name); n != nil {
				i.setReg(base+int(d), n.Value())
			} else {
				return errors.Errorf("mica: undefined variable %q", name)
			}
			f.ip += 3

		case OpStoreGlobal:
			k, r := code[f.ip+1], code[f.ip+2]
			name := f.closure.Proto.Consts[k].Str().String()
			i.SetGlobal(name, i.reg(base+int(r)))
			f.ip += 3

		case OpAdd, OpSub, OpMul, OpDiv, OpMod:
			a, b, d := code[f.ip+1], code[f.ip+2], code[f.ip+3]
			v, e := arith(op, i.reg(base+int(a)), i.reg(base+int(b)))
			if e != nil {
				return errors.Wrap(e, "mica")
			}
			i.setReg(base+int(d), v)
			f.ip += 4

		case OpNeg:
			s, d := code[f.ip+1], code[f.ip+2]
			v := i.reg(base + int(s))
			switch v.kind {
			case KindInt:
				i.setReg(base+int(d), Int(-v.i))
			case KindFloat:
				i.setReg(base+int(d), Float(-v.f))
			default:
				return errors.Errorf("mica: invalid operand for negation: %s", v.kind)
			}
			f.ip += 3

		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
			a, b, d := code[f.ip+1], code[f.ip+2], code[f.ip+3]
			v, e := compare(op, i.reg(base+int(a)), i.reg(base+int(b)))
			if e != nil {
				return errors.Wrap(e, "mica")
			}
			i.setReg(base+int(d), v)
			f.ip += 4

		case OpJmp:
			f.ip += 3 + off16(code, f.ip+1)

		case OpJmpIf:
			r := code[f.ip+1]
			if i.reg(base + int(r)).Truthy() {
				f.ip += 4 + off16(code, f.ip+2)
			} else {
				f.ip += 4
			}

		case OpJmpIfNot:
			r := code[f.ip+1]
			if !i.reg(base + int(r)).Truthy() {
				f.ip += 4 + off16(code, f.ip+2)
			} else {
				f.ip += 4
			}

		case OpCall:
			fr, n, d := int(code[f.ip+1]), int(code[f.ip+2]), int(code[f.ip+3])
			f.ip += 4
			callee := i.reg(base + fr)
			switch callee.kind {
			case KindNative:
				// the native receives a copy of R[f+1..f+n]; the buffer is
				// stack allocated for the common small calls
				var abuf [8]Value
				args := abuf[:]
				if n > len(args) {
					args = make([]Value, n)
				}
				args = args[:n]
				copy(args, i.regs[base+fr+1:base+fr+1+n])
				res, e := callee.native().Fn(i, args)
				if e != nil {
					return errors.Wrapf(e, "mica: in native %s", callee.native().Name)
				}
				i.setReg(base+d, res)
			case KindClosure:
				c := callee.Closure()
				if i.nframes == len(i.frames) {
					return errors.Errorf("mica: stack overflow")
				}
				nbase := base + fr + 1
				if nbase+c.Proto.NumRegs > len(i.regs) {
					return errors.Errorf("mica: register file exhausted")
				}
				for r := nbase + n; r < nbase+c.Proto.NumRegs; r++ {
					i.regs[r].release()
					i.regs[r] = Value{}
				}
				c.retain()
				i.frames[i.nframes] = frame{closure: c, base: nbase, ret: base + d}
				i.nframes++
			default:
				return errors.Errorf("mica: not a function: %s", callee.kind)
			}

		case OpRet:
			var res Value
			if code[f.ip+1] == 1 {
				res = i.reg(base + int(code[f.ip+2]))
			}
			res.retain()
			i.closeUpvalues(base)
			top := base + f.closure.Proto.NumRegs
			for r := base; r < top; r++ {
				i.regs[r].release()
				i.regs[r] = Value{}
			}
			ret := f.ret
			f.closure.release()
			i.frames[i.nframes-1] = frame{}
			i.nframes--
			if ret >= 0 {
				i.setRegOwned(ret, res)
			} else {
				res.release()
			}

		case OpClosure:
			k, d, nu := code[f.ip+1], int(code[f.ip+2]), int(code[f.ip+3])
			p := f.closure.Proto.Consts[k].proto()
			c := newClosure(p, nu)
			pos := f.ip + 4
			for j := 0; j < nu; j++ {
				isLocal, idx := code[pos] == 1, int(code[pos+1])
				pos += 2
				if isLocal {
					c.ups[j] = i.captureUpvalue(base + idx)
				} else {
					u := f.closure.ups[idx]
					u.retain()
					c.ups[j] = u
				}
			}
			f.ip = pos
			i.setRegOwned(base+d, c.Value())

		case OpCloseUpval:
			i.closeUpvalues(base + int(code[f.ip+1]))
			f.ip += 2

		case OpArrayNew:
			c, d := code[f.ip+1], code[f.ip+2]
			i.setRegOwned(base+int(d), NewArray(int(c)).Value())
			f.ip += 3

		case OpArrayGet:
			a, x, d := code[f.ip+1], code[f.ip+2], code[f.ip+3]
			av := i.reg(base + int(a))
			xv := i.reg(base + int(x))
			if av.kind != KindArray {
				return errors.Errorf("mica: cannot index a %s", av.kind)
			}
			if xv.kind != KindInt {
				return errors.Errorf("mica: array index must be an int, got %s", xv.kind)
			}
			v, ok := av.Array().Get(int(xv.i))
			if !ok {
				return errors.Errorf("mica: index %d out of range [0,%d)", xv.i, av.Array().Len())
			}
			i.setReg(base+int(d), v)
			f.ip += 4

		case OpArraySet:
			a, x, r := code[f.ip+1], code[f.ip+2], code[f.ip+3]
			av := i.reg(base + int(a))
			xv := i.reg(base + int(x))
			if av.kind != KindArray {
				return errors.Errorf("mica: cannot index a %s", av.kind)
			}
			if xv.kind != KindInt {
				return errors.Errorf("mica: array index must be an int, got %s", xv.kind)
			}
			if !av.Array().Set(int(xv.i), i.reg(base+int(r))) {
				return errors.Errorf("mica: index %d out of range [0,%d)", xv.i, av.Array().Len())
			}
			f.ip += 4

		case OpArrayLen:
			a, d := code[f.ip+1], code[f.ip+2]
			av := i.reg(base + int(a))
			if av.kind != KindArray {
				return errors.Errorf("mica: cannot take length of a %s", av.kind)
			}
			i.setReg(base+int(d), Int(int32(av.Array().Len())))
			f.ip += 3

		case OpIterNew:
			s, d := code[f.ip+1], code[f.ip+2]
			i.setRegOwned(base+int(d), newIterator(i.reg(base+int(s))).Value())
			f.ip += 3

		case OpIterNext:
			it, d := code[f.ip+1], code[f.ip+2]
			iv := i.reg(base + int(it))
			if iv.kind != kindIter {
				return errors.Errorf("mica: not an iterator: %s", iv.kind)
			}
			i.setReg(base+int(d), iv.iter().next())
			f.ip += 3

		case OpIterHasNext:
			it, d := code[f.ip+1], code[f.ip+2]
			iv := i.reg(base + int(it))
			if iv.kind != kindIter {
				return errors.Errorf("mica: not an iterator: %s", iv.kind)
			}
			i.setReg(base+int(d), Bool(iv.iter().hasNext()))
			f.ip += 3

		case OpArrayPush:
			a, r := code[f.ip+1], code[f.ip+2]
			av := i.reg(base + int(a))
			if av.kind != KindArray {
				return errors.Errorf("mica: cannot push onto a %s", av.kind)
			}
			av.Array().Push(i.reg(base + int(r)))
			f.ip += 3

		default:
			return errors.Errorf("mica: unknown opcode %d @ip=%d", op, f.ip)
		}
	}
	return nil
}
