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

package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/j-w-s/mica/compiler"
	"github.com/j-w-s/mica/lang/builtin"
	"github.com/j-w-s/mica/vm"
)

var (
	debug     bool
	dasm      bool
	execStats bool
)

func atExit(err error) {
	if err == nil {
		return
	}
	if !debug {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
	}
	os.Exit(1)
}

func newVM(stdout *bufio.Writer) (*vm.Instance, error) {
	m, err := vm.New()
	if err != nil {
		return nil, err
	}
	if err = builtin.Register(m, stdout); err != nil {
		m.Free()
		return nil, err
	}
	return m, nil
}

// runFile compiles and runs one source file.
func runFile(m *vm.Instance, name string) error {
	src, err := os.ReadFile(name)
	if err != nil {
		return errors.Wrap(err, "read failed")
	}
	p, err := compiler.Compile(m, name, string(src))
	if err != nil {
		return err
	}
	if dasm {
		return vm.DisassembleProto(p, os.Stdout)
	}
	if err = m.Load(p); err != nil {
		return err
	}
	start := time.Now()
	err = m.Run()
	if execStats {
		delta := time.Since(start)
		fmt.Fprintf(os.Stderr, "Executed %d instructions in %v.\n", m.InstructionCount(), delta)
	}
	return err
}

// repl reads one line at a time and feeds it through compile and run. The
// sentinel `exit` terminates the loop. Errors are reported and the prompt
// continues.
func repl(m *vm.Instance, stdout *bufio.Writer) error {
	interactive := isTerminal(os.Stdin)
	in := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			stdout.WriteString("mica> ")
		}
		stdout.Flush()
		if !in.Scan() {
			return errors.Wrap(in.Err(), "read failed")
		}
		line := in.Text()
		if line == "exit" {
			return nil
		}
		p, err := compiler.Compile(m, "repl", line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			continue
		}
		if dasm {
			vm.DisassembleProto(p, stdout)
			continue
		}
		if err = m.Load(p); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			continue
		}
		if err = m.Run(); err != nil {
			if debug {
				fmt.Fprintf(os.Stderr, "%+v\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
			m.Reset()
		}
		stdout.Flush()
	}
}

func main() {
	flag.BoolVar(&debug, "debug", false, "enable debug diagnostics")
	flag.BoolVar(&dasm, "dasm", false, "disassemble instead of running")
	flag.BoolVar(&execStats, "stats", false, "print performance statistics upon exit")
	flag.Parse()

	stdout := bufio.NewWriter(os.Stdout)
	defer stdout.Flush()

	m, err := newVM(stdout)
	if err != nil {
		atExit(err)
	}
	defer m.Free()

	switch flag.NArg() {
	case 0:
		err = repl(m, stdout)
	case 1:
		err = runFile(m, flag.Arg(0))
	default:
		err = errors.New("usage: mica [options] [script]")
	}
	stdout.Flush()
	atExit(err)
}
