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
	"strings"
	"testing"
)

type B []byte

func ins(op Opcode, args ...byte) B {
	return append(B{byte(op)}, args...)
}

func cat(chunks ...B) []byte {
	var code []byte
	for _, c := range chunks {
		code = append(code, c...)
	}
	return code
}

func newI(t *testing.T) *Instance {
	t.Helper()
	i, err := New()
	if err != nil {
		t.Fatal(err)
	}
	return i
}

// run loads p, runs it, and returns the global "r". Test protos store
// their observable result there because RET clears the frame's registers.
func run(t *testing.T, i *Instance, p *Proto) Value {
	t.Helper()
	if err := i.Load(p); err != nil {
		t.Fatal(err)
	}
	if err := i.Run(); err != nil {
		t.Fatalf("%+v", err)
	}
	return i.GetGlobal("r")
}

func runErr(t *testing.T, i *Instance, p *Proto) error {
	t.Helper()
	if err := i.Load(p); err != nil {
		t.Fatal(err)
	}
	err := i.Run()
	if err == nil {
		t.Fatal("unexpected nil error")
	}
	return err
}

func TestArith(t *testing.T) {
	data := []struct {
		name string
		op   Opcode
		a, b Value
		want Value
	}{
		{"add_int", OpAdd, Int(2), Int(3), Int(5)},
		{"sub_int", OpSub, Int(2), Int(3), Int(-1)},
		{"mul_int", OpMul, Int(4), Int(3), Int(12)},
		{"div_int", OpDiv, Int(7), Int(2), Int(3)},
		{"mod_int", OpMod, Int(7), Int(2), Int(1)},
		{"add_float", OpAdd, Float(1.5), Float(2), Float(3.5)},
		{"add_mixed", OpAdd, Int(1), Float(0.5), Float(1.5)},
		{"mul_mixed", OpMul, Float(0.5), Int(4), Float(2)},
		{"eq_mixed", OpEq, Int(1), Float(1), Bool(true)},
		{"lt_int", OpLt, Int(2), Int(3), Bool(true)},
		{"ge_mixed", OpGe, Float(2.5), Int(2), Bool(true)},
		{"ne_kinds", OpNe, Int(0), Bool(false), Bool(true)},
	}
	for _, d := range data {
		i := newI(t)
		p := &Proto{
			Name:    d.name,
			NumRegs: 3,
			Consts:  []Value{i.InternString("r"), d.a, d.b},
			Code: cat(
				ins(OpLoadConst, 1, 0),
				ins(OpLoadConst, 2, 1),
				ins(d.op, 0, 1, 2),
				ins(OpStoreGlobal, 0, 2),
				ins(OpRet, 0),
			),
		}
		got := run(t, i, p)
		if !got.Equals(d.want) || got.Kind() != d.want.Kind() {
			t.Errorf("%s: got %s (%s), want %s (%s)", d.name, got, got.Kind(), d.want, d.want.Kind())
		}
		i.Free()
	}
}

func TestArithErrors(t *testing.T) {
	data := []struct {
		name string
		op   Opcode
		a, b Value
		msg  string
	}{
		{"div_zero", OpDiv, Int(1), Int(0), "division by zero"},
		{"mod_zero", OpMod, Int(1), Int(0), "remainder by zero"},
		{"add_none", OpAdd, Int(1), None(), "invalid operands"},
		{"lt_bool", OpLt, Bool(true), Bool(false), "invalid operands"},
	}
	for _, d := range data {
		i := newI(t)
		p := &Proto{
			NumRegs: 3,
			Consts:  []Value{i.InternString("r"), d.a, d.b},
			Code: cat(
				ins(OpLoadConst, 1, 0),
				ins(OpLoadConst, 2, 1),
				ins(d.op, 0, 1, 2),
				ins(OpRet, 0),
			),
		}
		err := runErr(t, i, p)
		if !strings.Contains(err.Error(), d.msg) {
			t.Errorf("%s: error %q does not mention %q", d.name, err, d.msg)
		}
		i.Free()
	}
}

func TestNeg(t *testing.T) {
	i := newI(t)
	defer i.Free()
	p := &Proto{
		NumRegs: 2,
		Consts:  []Value{i.InternString("r"), Int(5)},
		Code: cat(
			ins(OpLoadConst, 1, 0),
			ins(OpNeg, 0, 1),
			ins(OpStoreGlobal, 0, 1),
			ins(OpRet, 0),
		),
	}
	if got := run(t, i, p); got.Int() != -5 {
		t.Errorf("got %s, want -5", got)
	}
}

func TestJumps(t *testing.T) {
	// r = false ? 1 : 2
	i := newI(t)
	defer i.Free()
	p := &Proto{
		NumRegs: 2,
		Consts:  []Value{i.InternString("r"), Bool(false), Int(1), Int(2)},
		Code: cat(
			ins(OpLoadConst, 1, 0), //  0
			ins(OpJmpIfNot, 0, 0, 6), //  3: to 13
			ins(OpLoadConst, 2, 1), //  7
			ins(OpJmp, 0, 3),       // 10: to 16
			ins(OpLoadConst, 3, 1), // 13
			ins(OpStoreGlobal, 0, 1), // 16
			ins(OpRet, 0),
		),
	}
	if got := run(t, i, p); got.Int() != 2 {
		t.Errorf("got %s, want 2", got)
	}
}

func TestBackwardJump(t *testing.T) {
	// count r0 from 3 down to 0 with a jt loop
	i := newI(t)
	defer i.Free()
	p := &Proto{
		NumRegs: 2,
		Consts:  []Value{i.InternString("r"), Int(3), Int(1)},
		Code: cat(
			ins(OpLoadConst, 1, 0),           //  0
			ins(OpLoadConst, 2, 1),           //  3
			ins(OpSub, 0, 1, 0),              //  6: r0 -= 1
			ins(OpJmpIf, 0, 0xff, 0xf8),      // 10: -8 -> 6
			ins(OpStoreGlobal, 0, 0),         // 14
			ins(OpRet, 0),
		),
	}
	if got := run(t, i, p); got.Int() != 0 {
		t.Errorf("got %s, want 0", got)
	}
}

func TestCallClosure(t *testing.T) {
	i := newI(t)
	defer i.Free()
	double := &Proto{
		Name:    "double",
		Arity:   1,
		NumRegs: 2,
		Code: cat(
			ins(OpAdd, 0, 0, 1),
			ins(OpRet, 1, 1),
		),
	}
	p := &Proto{
		NumRegs: 2,
		Consts:  []Value{i.InternString("r"), ProtoValue(double), Int(21)},
		Code: cat(
			ins(OpClosure, 1, 0, 0),
			ins(OpLoadConst, 2, 1),
			ins(OpCall, 0, 1, 0),
			ins(OpStoreGlobal, 0, 0),
			ins(OpRet, 0),
		),
	}
	if got := run(t, i, p); got.Int() != 42 {
		t.Errorf("got %s, want 42", got)
	}
}

func TestCallNative(t *testing.T) {
	i := newI(t)
	defer i.Free()
	err := i.RegisterNative("nine", func(*Instance, []Value) (Value, error) {
		return Int(9), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	// natives resolve through the LoadGlobal fallback
	p := &Proto{
		NumRegs: 1,
		Consts:  []Value{i.InternString("r"), i.InternString("nine")},
		Code: cat(
			ins(OpLoadGlobal, 1, 0),
			ins(OpCall, 0, 0, 0),
			ins(OpStoreGlobal, 0, 0),
			ins(OpRet, 0),
		),
	}
	if got := run(t, i, p); got.Int() != 9 {
		t.Errorf("got %s, want 9", got)
	}
}

// a native call receives every argument, not just a fixed-size prefix.
func TestCallNativeManyArgs(t *testing.T) {
	i := newI(t)
	defer i.Free()
	err := i.RegisterNative("sum", func(_ *Instance, args []Value) (Value, error) {
		var s int32
		for _, a := range args {
			s += a.Int()
		}
		return Int(s), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	const nargs = 12
	chunks := []B{ins(OpLoadGlobal, 1, 0), ins(OpLoadConst, 2, 1)}
	for r := byte(2); r <= nargs; r++ {
		chunks = append(chunks, ins(OpMove, 1, r))
	}
	chunks = append(chunks,
		ins(OpCall, 0, nargs, 0),
		ins(OpStoreGlobal, 0, 0),
		ins(OpRet, 0),
	)
	p := &Proto{
		NumRegs: nargs + 1,
		Consts:  []Value{i.InternString("r"), i.InternString("sum"), Int(3)},
		Code:    cat(chunks...),
	}
	if got := run(t, i, p); got.Int() != 3*nargs {
		t.Errorf("got %s, want %d", got, 3*nargs)
	}
}

func TestGlobalShadowsNative(t *testing.T) {
	i := newI(t)
	defer i.Free()
	if err := i.RegisterNative("x", func(*Instance, []Value) (Value, error) {
		return Int(1), nil
	}); err != nil {
		t.Fatal(err)
	}
	i.SetGlobal("x", Int(2))
	p := &Proto{
		NumRegs: 1,
		Consts:  []Value{i.InternString("r"), i.InternString("x")},
		Code: cat(
			ins(OpLoadGlobal, 1, 0),
			ins(OpStoreGlobal, 0, 0),
			ins(OpRet, 0),
		),
	}
	if got := run(t, i, p); got.Int() != 2 {
		t.Errorf("got %s, want 2", got)
	}
}

func TestUndefinedGlobal(t *testing.T) {
	i := newI(t)
	defer i.Free()
	p := &Proto{
		NumRegs: 1,
		Consts:  []Value{i.InternString("nope")},
		Code: cat(
			ins(OpLoadGlobal, 0, 0),
			ins(OpRet, 0),
		),
	}
	err := runErr(t, i, p)
	if !strings.Contains(err.Error(), "undefined variable") {
		t.Errorf("error %q does not mention undefined variable", err)
	}
}

func TestCallNotAFunction(t *testing.T) {
	i := newI(t)
	defer i.Free()
	p := &Proto{
		NumRegs: 1,
		Consts:  []Value{Int(5)},
		Code: cat(
			ins(OpLoadConst, 0, 0),
			ins(OpCall, 0, 0, 0),
			ins(OpRet, 0),
		),
	}
	err := runErr(t, i, p)
	if !strings.Contains(err.Error(), "not a function") {
		t.Errorf("error %q does not mention not a function", err)
	}
}

func TestStackOverflow(t *testing.T) {
	i := newI(t)
	defer i.Free()
	// f calls itself through the global table until the frame cap
	rec := &Proto{
		Name:    "f",
		NumRegs: 2,
		Consts:  []Value{},
		Code: cat(
			ins(OpLoadGlobal, 0, 0),
			ins(OpCall, 0, 0, 1),
			ins(OpRet, 0),
		),
	}
	rec.Consts = append(rec.Consts, i.InternString("f"))
	p := &Proto{
		NumRegs: 2,
		Consts:  []Value{ProtoValue(rec), i.InternString("f")},
		Code: cat(
			ins(OpClosure, 0, 0, 0),
			ins(OpStoreGlobal, 1, 0),
			ins(OpCall, 0, 0, 1),
			ins(OpRet, 0),
		),
	}
	err := runErr(t, i, p)
	if !strings.Contains(err.Error(), "stack overflow") {
		t.Errorf("error %q does not mention stack overflow", err)
	}
	i.Reset()
}

func TestArrays(t *testing.T) {
	i := newI(t)
	defer i.Free()
	// r = [10, 20]; r[1] = r[0] + r[1]; also checks the length
	p := &Proto{
		NumRegs: 4,
		Consts:  []Value{i.InternString("r"), Int(10), Int(20), Int(1), Int(0)},
		Code: cat(
			ins(OpArrayNew, 2, 0),
			ins(OpLoadConst, 1, 1),
			ins(OpArrayPush, 0, 1),
			ins(OpLoadConst, 2, 1),
			ins(OpArrayPush, 0, 1),
			ins(OpLoadConst, 4, 1), // r1 = 0
			ins(OpLoadConst, 3, 2), // r2 = 1
			ins(OpArrayGet, 0, 1, 3),
			ins(OpArrayGet, 0, 2, 1), // r1 = a[1]
			ins(OpAdd, 3, 1, 3),
			ins(OpLoadConst, 3, 1), // r1 = 1
			ins(OpArraySet, 0, 1, 3),
			ins(OpStoreGlobal, 0, 0),
			ins(OpRet, 0),
		),
	}
	got := run(t, i, p)
	if got.Kind() != KindArray {
		t.Fatalf("got %s, want an array", got.Kind())
	}
	if got.String() != "[10, 30]" {
		t.Errorf("got %s, want [10, 30]", got)
	}
	if got.Array().Len() != 2 {
		t.Errorf("len = %d, want 2", got.Array().Len())
	}
}

func TestArrayIndexError(t *testing.T) {
	i := newI(t)
	defer i.Free()
	p := &Proto{
		NumRegs: 2,
		Consts:  []Value{Int(3)},
		Code: cat(
			ins(OpArrayNew, 0, 0),
			ins(OpLoadConst, 0, 1),
			ins(OpArrayGet, 0, 1, 1),
			ins(OpRet, 0),
		),
	}
	err := runErr(t, i, p)
	if !strings.Contains(err.Error(), "out of range") {
		t.Errorf("error %q does not mention out of range", err)
	}
}

func TestIterator(t *testing.T) {
	i := newI(t)
	defer i.Free()
	// sum [1,2,3] with explicit iterator opcodes
	p := &Proto{
		NumRegs: 5,
		Consts:  []Value{i.InternString("r"), Int(1), Int(2), Int(3), Int(0)},
		Code: cat(
			ins(OpArrayNew, 3, 0),
			ins(OpLoadConst, 1, 1),
			ins(OpArrayPush, 0, 1),
			ins(OpLoadConst, 2, 1),
			ins(OpArrayPush, 0, 1),
			ins(OpLoadConst, 3, 1),
			ins(OpArrayPush, 0, 1),
			ins(OpIterNew, 0, 1),   // r1 = iter
			ins(OpLoadConst, 4, 2), // r2 = 0 (sum)
			// 27: loop head
			ins(OpIterHasNext, 1, 3),
			ins(OpJmpIfNot, 3, 0, 10), // to 44
			ins(OpIterNext, 1, 4),
			ins(OpAdd, 2, 4, 2),
			ins(OpJmp, 0xff, 0xef), // -17 -> 27
			// 44:
			ins(OpStoreGlobal, 0, 2),
			ins(OpRet, 0),
		),
	}
	if got := run(t, i, p); got.Int() != 6 {
		t.Errorf("got %s, want 6", got)
	}
}

func TestIteratorNonArray(t *testing.T) {
	i := newI(t)
	defer i.Free()
	// iterating an int yields an immediately exhausted iterator
	p := &Proto{
		NumRegs: 3,
		Consts:  []Value{i.InternString("r"), Int(5)},
		Code: cat(
			ins(OpLoadConst, 1, 0),
			ins(OpIterNew, 0, 1),
			ins(OpIterHasNext, 1, 2),
			ins(OpStoreGlobal, 0, 2),
			ins(OpRet, 0),
		),
	}
	got := run(t, i, p)
	if got.Kind() != KindBool || got.Bool() {
		t.Errorf("got %s, want false", got)
	}
}

func TestSharedUpvalue(t *testing.T) {
	i := newI(t)
	defer i.Free()
	inc := &Proto{
		Name:    "inc",
		NumRegs: 2,
		Consts:  []Value{Int(1)},
		Ups:     []UpvalDesc{{IsLocal: true, Index: 0}},
		Code: cat(
			ins(OpLoadUpval, 0, 0),
			ins(OpLoadConst, 0, 1),
			ins(OpAdd, 0, 1, 0),
			ins(OpStoreUpval, 0, 0),
			ins(OpRet, 0),
		),
	}
	get := &Proto{
		Name:    "get",
		NumRegs: 1,
		Ups:     []UpvalDesc{{IsLocal: true, Index: 0}},
		Code: cat(
			ins(OpLoadUpval, 0, 0),
			ins(OpRet, 1, 0),
		),
	}
	p := &Proto{
		NumRegs: 4,
		Consts:  []Value{i.InternString("r"), ProtoValue(inc), ProtoValue(get), Int(0)},
		Code: cat(
			ins(OpLoadConst, 3, 0),      // r0 = 0, the shared variable
			ins(OpClosure, 1, 1, 1, 1, 0), // r1 = inc over slot 0
			ins(OpClosure, 2, 2, 1, 1, 0), // r2 = get over the same slot
			ins(OpMove, 1, 3),
			ins(OpCall, 3, 0, 3),
			ins(OpMove, 1, 3),
			ins(OpCall, 3, 0, 3),
			ins(OpMove, 2, 3),
			ins(OpCall, 3, 0, 3),
			ins(OpStoreGlobal, 0, 3),
			ins(OpRet, 0),
		),
	}
	if got := run(t, i, p); got.Int() != 2 {
		t.Errorf("got %s, want 2", got)
	}
}

func TestCloseUpvalue(t *testing.T) {
	i := newI(t)
	defer i.Free()
	get := &Proto{
		Name:    "get",
		NumRegs: 1,
		Ups:     []UpvalDesc{{IsLocal: true, Index: 0}},
		Code: cat(
			ins(OpLoadUpval, 0, 0),
			ins(OpRet, 1, 0),
		),
	}
	// capture slot 0 holding 7, close it, clobber the slot, then call:
	// the closure must still observe 7.
	p := &Proto{
		NumRegs: 3,
		Consts:  []Value{i.InternString("r"), ProtoValue(get), Int(7), Int(99)},
		Code: cat(
			ins(OpLoadConst, 2, 0),
			ins(OpClosure, 1, 1, 1, 1, 0),
			ins(OpCloseUpval, 0),
			ins(OpCloseUpval, 0), // closing twice is a no-op
			ins(OpLoadConst, 3, 0),
			ins(OpMove, 1, 2),
			ins(OpCall, 2, 0, 2),
			ins(OpStoreGlobal, 0, 2),
			ins(OpRet, 0),
		),
	}
	if got := run(t, i, p); got.Int() != 7 {
		t.Errorf("got %s, want 7", got)
	}
}

func TestStackedLoads(t *testing.T) {
	i := newI(t)
	defer i.Free()
	mk := func(name string, n int32) *Proto {
		return &Proto{
			NumRegs: 1,
			Consts:  []Value{i.InternString(name), Int(n)},
			Code: cat(
				ins(OpLoadConst, 1, 0),
				ins(OpStoreGlobal, 0, 0),
				ins(OpRet, 0),
			),
		}
	}
	if err := i.Load(mk("a", 1)); err != nil {
		t.Fatal(err)
	}
	if err := i.Load(mk("b", 2)); err != nil {
		t.Fatal(err)
	}
	if err := i.Run(); err != nil {
		t.Fatalf("%+v", err)
	}
	if i.GetGlobal("a").Int() != 1 || i.GetGlobal("b").Int() != 2 {
		t.Errorf("a = %s, b = %s", i.GetGlobal("a"), i.GetGlobal("b"))
	}
}

func TestSetGlobalRetains(t *testing.T) {
	before := LiveObjects()
	i := newI(t)
	a := NewArray(0)
	i.SetGlobal("g", a.Value())
	a.release()
	if g := i.GetGlobal("g"); g.Array() != a {
		t.Error("global does not hold the array")
	}
	i.SetGlobal("g", Int(1)) // releases the previous binding
	i.Free()
	if got := LiveObjects() - before; got != 0 {
		t.Errorf("live objects = %d, want 0", got)
	}
}

func TestRunBalancesRefcounts(t *testing.T) {
	i := newI(t)
	before := LiveObjects()
	// build and drop an array and a closure inside the program
	child := &Proto{NumRegs: 1, Code: cat(ins(OpRet, 0))}
	p := &Proto{
		NumRegs: 2,
		Consts:  []Value{ProtoValue(child)},
		Code: cat(
			ins(OpArrayNew, 4, 0),
			ins(OpClosure, 0, 1, 0),
			ins(OpArrayPush, 0, 1),
			ins(OpRet, 0),
		),
	}
	if err := i.Load(p); err != nil {
		t.Fatal(err)
	}
	if err := i.Run(); err != nil {
		t.Fatalf("%+v", err)
	}
	if got := LiveObjects() - before; got != 0 {
		t.Errorf("live objects after run = %d, want 0", got)
	}
	i.Free()
}

func TestInstructionCount(t *testing.T) {
	i := newI(t)
	defer i.Free()
	p := &Proto{
		NumRegs: 1,
		Code: cat(
			ins(OpNop),
			ins(OpNop),
			ins(OpRet, 0),
		),
	}
	if err := i.Load(p); err != nil {
		t.Fatal(err)
	}
	if err := i.Run(); err != nil {
		t.Fatal(err)
	}
	if n := i.InstructionCount(); n != 3 {
		t.Errorf("InstructionCount = %d, want 3", n)
	}
}
