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

// Command mica runs mica programs.
//
// With a script argument, the file is compiled and run; any compile or
// runtime failure exits non-zero after printing diagnostics:
//
//	mica script.mica
//
// With no arguments an interactive prompt reads one line at a time and
// feeds it through compile and run. The sentinel `exit` terminates the
// loop. The prompt is suppressed when stdin is not a terminal, so programs
// can be piped in.
//
// Options:
//
//	-dasm   disassemble the compiled bytecode instead of running it
//	-debug  print errors with stack traces
//	-stats  print the executed instruction count upon exit
package main
