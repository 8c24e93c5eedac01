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

// Package builtin provides the standard native functions of the mica
// language: print, len, assert, type_of, str, abs, sqrt and floor. Hosts
// register them on an instance with Register; everything goes through the
// public embedding surface of the vm package.
package builtin

import (
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/j-w-s/mica/vm"
)

// Register adds the standard natives to the instance. print writes to w.
func Register(i *vm.Instance, w io.Writer) error {
	natives := []struct {
		name string
		fn   vm.NativeFunc
	}{
		{"print", printFn(w)},
		{"len", lenFn},
		{"assert", assertFn},
		{"type_of", typeOfFn},
		{"str", strFn},
		{"abs", absFn},
		{"sqrt", sqrtFn},
		{"floor", floorFn},
	}
	for _, n := range natives {
		if err := i.RegisterNative(n.name, n.fn); err != nil {
			return err
		}
	}
	return nil
}

func printFn(w io.Writer) vm.NativeFunc {
	return func(i *vm.Instance, args []vm.Value) (vm.Value, error) {
		for n, a := range args {
			if n > 0 {
				if _, err := io.WriteString(w, " "); err != nil {
					return vm.None(), errors.Wrap(err, "print")
				}
			}
			if _, err := io.WriteString(w, a.String()); err != nil {
				return vm.None(), errors.Wrap(err, "print")
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return vm.None(), errors.Wrap(err, "print")
		}
		return vm.None(), nil
	}
}

func lenFn(i *vm.Instance, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.None(), errors.Errorf("len: want 1 argument, got %d", len(args))
	}
	switch args[0].Kind() {
	case vm.KindArray:
		return vm.Int(int32(args[0].Array().Len())), nil
	case vm.KindString:
		return vm.Int(int32(args[0].Str().Len())), nil
	}
	return vm.None(), errors.Errorf("len: cannot take length of a %s", args[0].Kind())
}

func assertFn(i *vm.Instance, args []vm.Value) (vm.Value, error) {
	if len(args) == 0 || !args[0].Truthy() {
		if len(args) > 1 {
			return vm.None(), errors.Errorf("assertion failed: %s", args[1])
		}
		return vm.None(), errors.New("assertion failed")
	}
	return vm.None(), nil
}

func typeOfFn(i *vm.Instance, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.None(), errors.Errorf("type_of: want 1 argument, got %d", len(args))
	}
	return i.InternString(args[0].Kind().String()), nil
}

func strFn(i *vm.Instance, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.None(), errors.Errorf("str: want 1 argument, got %d", len(args))
	}
	return i.InternString(args[0].String()), nil
}

func absFn(i *vm.Instance, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.None(), errors.Errorf("abs: want 1 argument, got %d", len(args))
	}
	switch args[0].Kind() {
	case vm.KindInt:
		n := args[0].Int()
		if n < 0 {
			n = -n
		}
		return vm.Int(n), nil
	case vm.KindFloat:
		return vm.Float(float32(math.Abs(float64(args[0].Float())))), nil
	}
	return vm.None(), errors.Errorf("abs: want a number, got %s", args[0].Kind())
}

func sqrtFn(i *vm.Instance, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.None(), errors.Errorf("sqrt: want 1 argument, got %d", len(args))
	}
	f, ok := numeric(args[0])
	if !ok {
		return vm.None(), errors.Errorf("sqrt: want a number, got %s", args[0].Kind())
	}
	return vm.Float(float32(math.Sqrt(float64(f)))), nil
}

func floorFn(i *vm.Instance, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.None(), errors.Errorf("floor: want 1 argument, got %d", len(args))
	}
	switch args[0].Kind() {
	case vm.KindInt:
		return args[0], nil
	case vm.KindFloat:
		return vm.Float(float32(math.Floor(float64(args[0].Float())))), nil
	}
	return vm.None(), errors.Errorf("floor: want a number, got %s", args[0].Kind())
}

func numeric(v vm.Value) (float32, bool) {
	switch v.Kind() {
	case vm.KindInt:
		return float32(v.Int()), true
	case vm.KindFloat:
		return v.Float(), true
	}
	return 0, false
}
