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
	"fmt"
	"strings"
)

const maxErrors = 10

// ErrCompile encapsulates errors generated by the compiler.
type ErrCompile []struct {
	Name string
	Line int
	Msg  string
}

func (e ErrCompile) Error() string {
	l := make([]string, 0, len(e))
	for _, err := range e {
		l = append(l, fmt.Sprintf("%s:%d: %s", err.Name, err.Line, err.Msg))
	}
	return strings.Join(l, "\n")
}

// helper to build ErrCompile items.
func compileError(name string, line int, msg string) struct {
	Name string
	Line int
	Msg  string
} {
	return struct {
		Name string
		Line int
		Msg  string
	}{name, line, msg}
}
