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

const maxNatives = 64

// NativeFunc is the signature of host functions callable from mica code.
// The args slice holds every argument of the call site, in order; it is
// borrowed and only valid for the duration of the call.
// The returned value is retained by the VM when it stores it, so natives
// that hand back freshly allocated objects must drop their own reference
// before returning; natives returning primitives or interned strings need
// not care.
type NativeFunc func(i *Instance, args []Value) (Value, error)

// Native is a registered host function. Natives are owned by the registry
// and live until the instance is freed.
type Native struct {
	Name string
	Fn   NativeFunc
}

// Value wraps the native in a Value handle.
func (n *Native) Value() Value { return Value{kind: KindNative, ref: n} }

func (n *Native) retain()  {}
func (n *Native) release() {}

// RegisterNative adds a named host function to the instance's registry.
// The registry is bounded; overflow is reported as an error and the
// function is not registered.
func (i *Instance) RegisterNative(name string, fn NativeFunc) error {
	if len(i.natives) >= maxNatives {
		return errors.Errorf("mica: native registry full, cannot register %q", name)
	}
	if _, ok := i.nativeIdx[name]; ok {
		return errors.Errorf("mica: native %q already registered", name)
	}
	i.nativeIdx[name] = len(i.natives)
	i.natives = append(i.natives, &Native{Name: name, Fn: fn})
	return nil
}

func (i *Instance) findNative(name string) *Native {
	if n, ok := i.nativeIdx[name]; ok {
		return i.natives[n]
	}
	return nil
}
