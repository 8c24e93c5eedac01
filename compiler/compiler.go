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

package compiler

import (
	"math"
	"strconv"

	"github.com/j-w-s/mica/vm"
)

const (
	maxLocals = 256
	maxUpvals = 255 // the upvalue count in OpClosure is a single byte
	maxConsts = 256
	maxRegs   = 256
)

// Compile runs the lexer, parser and compiler over src and returns the
// top-level prototype. name is used in error messages and as the prototype
// name. The returned error, if not nil, is an ErrCompile.
func Compile(in *vm.Instance, name, src string) (*vm.Proto, error) {
	prog, err := parse(name, src)
	if err != nil {
		return nil, err
	}
	c := &compiler{in: in, name: name}
	fc := newFuncCompiler(c, nil, name, nil, 1)
	fc.script = true
	fc.depth = 0
	for _, s := range prog {
		fc.stmt(s)
	}
	fc.emit(vm.OpRet, 0)
	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return fc.finish(), nil
}

// Load compiles src and pushes the resulting top-level frame onto the
// instance, ready to Run.
func Load(in *vm.Instance, name, src string) error {
	p, err := Compile(in, name, src)
	if err != nil {
		return err
	}
	return in.Load(p)
}

// compiler holds state shared between the nested function compilers.
type compiler struct {
	in   *vm.Instance
	name string
	errs ErrCompile
}

func (c *compiler) errorAt(line int, msg string) {
	if len(c.errs) >= maxErrors {
		return
	}
	c.errs = append(c.errs, compileError(c.name, line, msg))
}

type local struct {
	name     string
	depth    int
	captured bool
	mutable  bool
}

type loopCtx struct {
	breaks []int
}

// funcCompiler emits bytecode for one function. Locals occupy the low
// registers contiguously; scratch registers for subexpressions are
// allocated above and freed when the statement completes, so after any
// statement the scratch pointer nextReg equals the number of live locals.
type funcCompiler struct {
	c         *compiler
	enclosing *funcCompiler
	fname     string
	arity     int
	script    bool

	code       []byte
	consts     []vm.Value
	constIdx   map[string]int
	ups        []vm.UpvalDesc
	upsMutable []bool

	locals  []local
	depth   int
	nextReg int
	maxReg  int
	loops   []loopCtx
}

func newFuncCompiler(c *compiler, enclosing *funcCompiler, name string, params []string, line int) *funcCompiler {
	fc := &funcCompiler{
		c:         c,
		enclosing: enclosing,
		fname:     name,
		arity:     len(params),
		constIdx:  make(map[string]int),
		depth:     1,
	}
	if len(params) > maxLocals {
		c.errorAt(line, "too many parameters")
		params = params[:maxLocals]
	}
	for _, p := range params {
		fc.locals = append(fc.locals, local{name: p, depth: 1, mutable: true})
	}
	fc.nextReg = len(fc.locals)
	fc.maxReg = fc.nextReg
	return fc
}

func (fc *funcCompiler) finish() *vm.Proto {
	return &vm.Proto{
		Name:    fc.fname,
		Arity:   fc.arity,
		NumRegs: fc.maxReg,
		Code:    fc.code,
		Consts:  fc.consts,
		Ups:     fc.ups,
	}
}

// emit appends an opcode and its operand bytes.
func (fc *funcCompiler) emit(op vm.Opcode, args ...int) {
	fc.code = append(fc.code, byte(op))
	for _, a := range args {
		fc.code = append(fc.code, byte(a))
	}
}

func (fc *funcCompiler) allocReg(line int) int {
	r := fc.nextReg
	if r >= maxRegs {
		fc.c.errorAt(line, "out of registers")
		return maxRegs - 1
	}
	fc.nextReg++
	if fc.nextReg > fc.maxReg {
		fc.maxReg = fc.nextReg
	}
	return r
}

// setTop raises the scratch pointer to n, tracking the high-water mark.
func (fc *funcCompiler) setTop(n int) {
	fc.nextReg = n
	if n > fc.maxReg {
		fc.maxReg = n
	}
}

// freeTo shrinks the scratch region back to n registers.
func (fc *funcCompiler) freeTo(n int) {
	if n < fc.nextReg {
		fc.nextReg = n
	}
}

// freeTemp releases r if it is the topmost scratch register.
func (fc *funcCompiler) freeTemp(r int) {
	if r >= len(fc.locals) && r == fc.nextReg-1 {
		fc.nextReg--
	}
}

func (fc *funcCompiler) addConst(key string, v vm.Value, line int) int {
	if key != "" {
		if k, ok := fc.constIdx[key]; ok {
			return k
		}
	}
	if len(fc.consts) >= maxConsts {
		fc.c.errorAt(line, "too many constants in one function")
		return 0
	}
	k := len(fc.consts)
	fc.consts = append(fc.consts, v)
	if key != "" {
		fc.constIdx[key] = k
	}
	return k
}

func (fc *funcCompiler) nameConst(name string, line int) int {
	return fc.addConst("s"+name, fc.c.in.InternString(name), line)
}

// emitJump emits a forward jump with a placeholder offset and returns the
// position to patch. reg < 0 emits an unconditional jump.
func (fc *funcCompiler) emitJump(op vm.Opcode, reg int) int {
	if reg >= 0 {
		fc.emit(op, reg, 0xff, 0xff)
	} else {
		fc.emit(op, 0xff, 0xff)
	}
	return len(fc.code) - 2
}

func (fc *funcCompiler) patchJump(at, line int) {
	off := len(fc.code) - (at + 2)
	if off > math.MaxInt16 {
		fc.c.errorAt(line, "jump too large")
		off = 0
	}
	fc.code[at] = byte(uint16(off) >> 8)
	fc.code[at+1] = byte(uint16(off))
}

// emitLoopJump emits a backward jump to target.
func (fc *funcCompiler) emitLoopJump(target, line int) {
	off := target - (len(fc.code) + 3)
	if off < math.MinInt16 {
		fc.c.errorAt(line, "loop body too large")
		off = 0
	}
	u := uint16(int16(off))
	fc.code = append(fc.code, byte(vm.OpJmp), byte(u>>8), byte(u))
}

func (fc *funcCompiler) beginScope() { fc.depth++ }

// endScope pops the scope's locals, closing the upvalue cell of every local
// that was captured.
func (fc *funcCompiler) endScope() {
	fc.depth--
	for len(fc.locals) > 0 {
		l := fc.locals[len(fc.locals)-1]
		if l.depth <= fc.depth {
			break
		}
		if l.captured {
			fc.emit(vm.OpCloseUpval, len(fc.locals)-1)
		}
		fc.locals = fc.locals[:len(fc.locals)-1]
	}
	fc.freeTo(len(fc.locals))
}

func (fc *funcCompiler) beginLoop() {
	fc.loops = append(fc.loops, loopCtx{})
}

// endLoop patches every break in the innermost loop to jump here.
func (fc *funcCompiler) endLoop(line int) {
	l := fc.loops[len(fc.loops)-1]
	fc.loops = fc.loops[:len(fc.loops)-1]
	for _, at := range l.breaks {
		fc.patchJump(at, line)
	}
}

func (fc *funcCompiler) resolveLocal(name string) int {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name == name {
			return i
		}
	}
	return -1
}

// resolveUpvalue resolves name through the enclosing functions, marking the
// originating local as captured and memoizing the descriptor so sibling
// references share one upvalue index.
func (fc *funcCompiler) resolveUpvalue(name string, line int) int {
	if fc.enclosing == nil {
		return -1
	}
	if l := fc.enclosing.resolveLocal(name); l >= 0 {
		fc.enclosing.locals[l].captured = true
		return fc.addUpvalue(true, l, fc.enclosing.locals[l].mutable, line)
	}
	if u := fc.enclosing.resolveUpvalue(name, line); u >= 0 {
		return fc.addUpvalue(false, u, fc.enclosing.upsMutable[u], line)
	}
	return -1
}

func (fc *funcCompiler) addUpvalue(isLocal bool, idx int, mutable bool, line int) int {
	for k, d := range fc.ups {
		if d.IsLocal == isLocal && int(d.Index) == idx {
			return k
		}
	}
	if len(fc.ups) >= maxUpvals {
		fc.c.errorAt(line, "too many upvalues in function")
		return 0
	}
	fc.ups = append(fc.ups, vm.UpvalDesc{IsLocal: isLocal, Index: byte(idx)})
	fc.upsMutable = append(fc.upsMutable, mutable)
	return len(fc.ups) - 1
}

func (fc *funcCompiler) isGlobalScope() bool { return fc.script && fc.depth == 0 }

// stmt compiles one statement and shrinks the scratch region back to the
// live locals.
func (fc *funcCompiler) stmt(s Stmt) {
	switch n := s.(type) {
	case *LetStmt:
		fc.letStmt(n)
	case *FnStmt:
		fc.fnStmt(n)
	case *AssignStmt:
		fc.assignStmt(n)
	case *ExprStmt:
		fc.expr(n.X)
	case *IfStmt:
		fc.ifStmt(n)
	case *WhileStmt:
		fc.whileStmt(n)
	case *ForStmt:
		fc.forStmt(n)
	case *LoopStmt:
		start := len(fc.code)
		fc.beginLoop()
		fc.blockScope(n.Body)
		fc.emitLoopJump(start, n.Line())
		fc.endLoop(n.Line())
	case *BreakStmt:
		if len(fc.loops) == 0 {
			fc.c.errorAt(n.Line(), "'break' outside of a loop")
			break
		}
		at := fc.emitJump(vm.OpJmp, -1)
		l := &fc.loops[len(fc.loops)-1]
		l.breaks = append(l.breaks, at)
	case *ReturnStmt:
		if n.X != nil {
			r := fc.expr(n.X)
			fc.emit(vm.OpRet, 1, r)
		} else {
			fc.emit(vm.OpRet, 0)
		}
	case *BlockStmt:
		fc.blockScope(n.Body)
	}
	fc.freeTo(len(fc.locals))
}

func (fc *funcCompiler) blockScope(body []Stmt) {
	fc.beginScope()
	for _, s := range body {
		fc.stmt(s)
	}
	fc.endScope()
}

func (fc *funcCompiler) letStmt(n *LetStmt) {
	line := n.Line()
	if fc.isGlobalScope() {
		r := fc.expr(n.Init)
		k := fc.nameConst(n.Name, line)
		fc.emit(vm.OpStoreGlobal, k, r)
		return
	}
	if len(fc.locals) >= maxLocals {
		fc.c.errorAt(line, "too many local variables in function")
		fc.expr(n.Init)
		return
	}
	slot := len(fc.locals)
	r := fc.expr(n.Init)
	if r != slot {
		fc.freeTo(slot)
		fc.emit(vm.OpMove, r, slot)
		fc.setTop(slot + 1)
	}
	fc.locals = append(fc.locals, local{name: n.Name, depth: fc.depth, mutable: n.Mut})
}

func (fc *funcCompiler) fnStmt(n *FnStmt) {
	line := n.Line()
	if fc.isGlobalScope() {
		r := fc.function(n.Name, n.Params, n.Body, line)
		k := fc.nameConst(n.Name, line)
		fc.emit(vm.OpStoreGlobal, k, r)
		return
	}
	if len(fc.locals) >= maxLocals {
		fc.c.errorAt(line, "too many local variables in function")
		return
	}
	// the name is declared before the body compiles so the function can
	// call itself through an upvalue
	slot := len(fc.locals)
	fc.locals = append(fc.locals, local{name: n.Name, depth: fc.depth, mutable: false})
	r := fc.function(n.Name, n.Params, n.Body, line)
	if r != slot {
		fc.emit(vm.OpMove, r, slot)
	}
}

func (fc *funcCompiler) assignStmt(n *AssignStmt) {
	line := n.Line()
	switch t := n.Target.(type) {
	case *Ident:
		if slot := fc.resolveLocal(t.Name); slot >= 0 {
			if !fc.locals[slot].mutable {
				fc.c.errorAt(line, "cannot assign to immutable variable '"+t.Name+"'")
			}
			r := fc.expr(n.Value)
			fc.emit(vm.OpStoreLocal, slot, r)
			return
		}
		if u := fc.resolveUpvalue(t.Name, line); u >= 0 {
			if !fc.upsMutable[u] {
				fc.c.errorAt(line, "cannot assign to immutable variable '"+t.Name+"'")
			}
			r := fc.expr(n.Value)
			fc.emit(vm.OpStoreUpval, u, r)
			return
		}
		r := fc.expr(n.Value)
		k := fc.nameConst(t.Name, line)
		fc.emit(vm.OpStoreGlobal, k, r)
	case *Index:
		ra := fc.expr(t.X)
		ri := fc.expr(t.I)
		rv := fc.expr(n.Value)
		fc.emit(vm.OpArraySet, ra, ri, rv)
	}
}

func (fc *funcCompiler) ifStmt(n *IfStmt) {
	line := n.Line()
	cr := fc.expr(n.Cond)
	fc.freeTemp(cr)
	elseJ := fc.emitJump(vm.OpJmpIfNot, cr)
	fc.blockScope(n.Then)
	if n.Else != nil {
		endJ := fc.emitJump(vm.OpJmp, -1)
		fc.patchJump(elseJ, line)
		fc.blockScope(n.Else)
		fc.patchJump(endJ, line)
	} else {
		fc.patchJump(elseJ, line)
	}
}

func (fc *funcCompiler) whileStmt(n *WhileStmt) {
	line := n.Line()
	start := len(fc.code)
	cr := fc.expr(n.Cond)
	fc.freeTemp(cr)
	exit := fc.emitJump(vm.OpJmpIfNot, cr)
	fc.beginLoop()
	fc.blockScope(n.Body)
	fc.emitLoopJump(start, line)
	fc.patchJump(exit, line)
	fc.endLoop(line)
}

// forStmt lowers `for x in e` onto two hidden locals: the iterator and the
// loop variable.
func (fc *funcCompiler) forStmt(n *ForStmt) {
	line := n.Line()
	if len(fc.locals)+2 > maxLocals {
		fc.c.errorAt(line, "too many local variables in function")
		return
	}
	fc.beginScope()
	iterSlot := len(fc.locals)
	r := fc.expr(n.Iterable)
	fc.freeTo(iterSlot)
	fc.emit(vm.OpIterNew, r, iterSlot)
	fc.locals = append(fc.locals, local{name: "(iter)", depth: fc.depth})
	xSlot := len(fc.locals)
	fc.locals = append(fc.locals, local{name: n.Name, depth: fc.depth})
	fc.setTop(len(fc.locals))
	start := len(fc.code)
	tmp := fc.allocReg(line)
	fc.emit(vm.OpIterHasNext, iterSlot, tmp)
	exit := fc.emitJump(vm.OpJmpIfNot, tmp)
	fc.freeTemp(tmp)
	fc.emit(vm.OpIterNext, iterSlot, xSlot)
	fc.beginLoop()
	fc.blockScope(n.Body)
	fc.emitLoopJump(start, line)
	fc.patchJump(exit, line)
	fc.endLoop(line)
	fc.endScope()
}

// expr compiles an expression and returns the register holding the result:
// the variable's own slot for plain local references, a scratch register
// otherwise.
func (fc *funcCompiler) expr(e Expr) int {
	switch n := e.(type) {
	case *IntLit:
		k := fc.addConst("i"+strconv.FormatInt(int64(n.Value), 10), vm.Int(n.Value), n.Line())
		return fc.emitConst(k, n.Line())
	case *FloatLit:
		k := fc.addConst("f"+strconv.FormatUint(uint64(math.Float32bits(n.Value)), 16), vm.Float(n.Value), n.Line())
		return fc.emitConst(k, n.Line())
	case *BoolLit:
		key := "bf"
		if n.Value {
			key = "bt"
		}
		k := fc.addConst(key, vm.Bool(n.Value), n.Line())
		return fc.emitConst(k, n.Line())
	case *NoneLit:
		k := fc.addConst("n", vm.None(), n.Line())
		return fc.emitConst(k, n.Line())
	case *StrLit:
		k := fc.addConst("s"+n.Value, fc.c.in.InternString(n.Value), n.Line())
		return fc.emitConst(k, n.Line())
	case *Ident:
		return fc.ident(n)
	case *Unary:
		r := fc.expr(n.X)
		fc.freeTemp(r)
		d := fc.allocReg(n.Line())
		fc.emit(vm.OpNeg, r, d)
		return d
	case *Binary:
		if n.Op == tkAndAnd || n.Op == tkOrOr {
			return fc.logical(n)
		}
		ra := fc.expr(n.L)
		rb := fc.expr(n.R)
		fc.freeTemp(rb)
		fc.freeTemp(ra)
		d := fc.allocReg(n.Line())
		fc.emit(binaryOp(n.Op), ra, rb, d)
		return d
	case *Call:
		return fc.call(n)
	case *Index:
		ra := fc.expr(n.X)
		ri := fc.expr(n.I)
		fc.freeTemp(ri)
		fc.freeTemp(ra)
		d := fc.allocReg(n.Line())
		fc.emit(vm.OpArrayGet, ra, ri, d)
		return d
	case *ArrayLit:
		return fc.arrayLit(n)
	case *FnLit:
		return fc.function("", n.Params, n.Body, n.Line())
	case *IterChain:
		fc.c.errorAt(n.Line(), "iterator chains are not implemented")
		return fc.allocReg(n.Line())
	}
	return fc.allocReg(0)
}

func (fc *funcCompiler) emitConst(k, line int) int {
	d := fc.allocReg(line)
	fc.emit(vm.OpLoadConst, k, d)
	return d
}

func (fc *funcCompiler) ident(n *Ident) int {
	if slot := fc.resolveLocal(n.Name); slot >= 0 {
		return slot
	}
	if u := fc.resolveUpvalue(n.Name, n.Line()); u >= 0 {
		d := fc.allocReg(n.Line())
		fc.emit(vm.OpLoadUpval, u, d)
		return d
	}
	k := fc.nameConst(n.Name, n.Line())
	d := fc.allocReg(n.Line())
	fc.emit(vm.OpLoadGlobal, k, d)
	return d
}

func binaryOp(k tokenKind) vm.Opcode {
	switch k {
	case tkPlus:
		return vm.OpAdd
	case tkMinus:
		return vm.OpSub
	case tkStar:
		return vm.OpMul
	case tkSlash:
		return vm.OpDiv
	case tkPercent:
		return vm.OpMod
	case tkEq:
		return vm.OpEq
	case tkNe:
		return vm.OpNe
	case tkLt:
		return vm.OpLt
	case tkLe:
		return vm.OpLe
	case tkGt:
		return vm.OpGt
	case tkGe:
		return vm.OpGe
	}
	return vm.OpNop
}

// logical compiles && and || with short-circuit jumps; there are no
// dedicated opcodes for them.
func (fc *funcCompiler) logical(n *Binary) int {
	line := n.Line()
	r := fc.expr(n.L)
	d := r
	if r < len(fc.locals) || r != fc.nextReg-1 {
		d = fc.allocReg(line)
		fc.emit(vm.OpMove, r, d)
	}
	op := vm.OpJmpIfNot
	if n.Op == tkOrOr {
		op = vm.OpJmpIf
	}
	j := fc.emitJump(op, d)
	rb := fc.expr(n.R)
	if rb != d {
		fc.emit(vm.OpMove, rb, d)
		fc.freeTemp(rb)
	}
	fc.patchJump(j, line)
	return d
}

// call compiles callee and arguments into a contiguous run of registers:
// callee at the base, arguments right above it.
func (fc *funcCompiler) call(n *Call) int {
	line := n.Line()
	if len(n.Args) > 255 {
		fc.c.errorAt(line, "too many arguments")
	}
	mark := fc.nextReg
	r := fc.expr(n.Callee)
	if r != mark {
		fc.freeTo(mark)
		fc.emit(vm.OpMove, r, mark)
	}
	fc.setTop(mark + 1)
	for i, a := range n.Args {
		want := mark + 1 + i
		r := fc.expr(a)
		if r != want {
			fc.freeTo(want)
			fc.emit(vm.OpMove, r, want)
		}
		fc.setTop(want + 1)
	}
	fc.freeTo(mark)
	d := fc.allocReg(line)
	fc.emit(vm.OpCall, mark, len(n.Args), d)
	return d
}

func (fc *funcCompiler) arrayLit(n *ArrayLit) int {
	line := n.Line()
	d := fc.allocReg(line)
	capn := len(n.Elems)
	if capn > 255 {
		capn = 255
	}
	fc.emit(vm.OpArrayNew, capn, d)
	for _, e := range n.Elems {
		r := fc.expr(e)
		fc.emit(vm.OpArrayPush, d, r)
		fc.freeTemp(r)
	}
	return d
}

// function compiles a nested function body in a fresh compiler context and
// emits the OpClosure that builds it at runtime.
func (fc *funcCompiler) function(name string, params []string, body []Stmt, line int) int {
	inner := newFuncCompiler(fc.c, fc, name, params, line)
	for _, s := range body {
		inner.stmt(s)
	}
	inner.emit(vm.OpRet, 0)
	p := inner.finish()
	k := fc.addConst("", vm.ProtoValue(p), line)
	d := fc.allocReg(line)
	args := []int{k, d, len(inner.ups)}
	for _, u := range inner.ups {
		il := 0
		if u.IsLocal {
			il = 1
		}
		args = append(args, il, int(u.Index))
	}
	fc.emit(vm.OpClosure, args...)
	return d
}
