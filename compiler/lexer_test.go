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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(src string) []token {
	l := newLexer(src)
	var toks []token
	for {
		tok := l.next()
		toks = append(toks, tok)
		if tok.kind == tkEOF || tok.kind == tkErr {
			return toks
		}
	}
}

func kinds(toks []token) []tokenKind {
	ks := make([]tokenKind, len(toks))
	for i, t := range toks {
		ks[i] = t.kind
	}
	return ks
}

func TestLexKinds(t *testing.T) {
	data := []struct {
		src  string
		want []tokenKind
	}{
		{"let mut x = 10", []tokenKind{tkLet, tkMut, tkIdent, tkAssign, tkInt, tkEOF}},
		{"1.5 + 2", []tokenKind{tkFloat, tkPlus, tkInt, tkEOF}},
		{`"hi" == "ho"`, []tokenKind{tkStr, tkEq, tkStr, tkEOF}},
		{"fn f(a, b) { return a }", []tokenKind{
			tkFn, tkIdent, tkLParen, tkIdent, tkComma, tkIdent, tkRParen,
			tkLBrace, tkReturn, tkIdent, tkRBrace, tkEOF}},
		{"a <= b >= c < d > e != f", []tokenKind{
			tkIdent, tkLe, tkIdent, tkGe, tkIdent, tkLt, tkIdent, tkGt,
			tkIdent, tkNe, tkIdent, tkEOF}},
		{"|x| x && y || z", []tokenKind{
			tkPipe, tkIdent, tkPipe, tkIdent, tkAndAnd, tkIdent, tkOrOr,
			tkIdent, tkEOF}},
		{"-> => . ; %", []tokenKind{tkArrow, tkFatArrow, tkDot, tkSemi, tkPercent, tkEOF}},
		{"true false None match loop break", []tokenKind{
			tkTrue, tkFalse, tkNone, tkMatch, tkLoop, tkBreak, tkEOF}},
		{"format insert lettuce", []tokenKind{tkIdent, tkIdent, tkIdent, tkEOF}},
		{"x // comment\ny", []tokenKind{tkIdent, tkIdent, tkEOF}},
	}
	for _, d := range data {
		assert.Equal(t, d.want, kinds(lexAll(d.src)), "src: %s", d.src)
	}
}

func TestLexLines(t *testing.T) {
	toks := lexAll("a\nb\n\nc // x\nd")
	require.Len(t, toks, 5)
	for i, want := range []int{1, 2, 4, 5} {
		assert.Equal(t, want, toks[i].line, "token %d", i)
	}
}

func TestLexNumbers(t *testing.T) {
	toks := lexAll("10 3.25 7.")
	// a trailing dot is not part of the number
	require.Equal(t, []tokenKind{tkInt, tkFloat, tkInt, tkDot, tkEOF}, kinds(toks))
	assert.Equal(t, "10", toks[0].text)
	assert.Equal(t, "3.25", toks[1].text)
}

func TestLexStringKeepsQuotes(t *testing.T) {
	toks := lexAll(`"hello world"`)
	require.Equal(t, tkStr, toks[0].kind)
	assert.Equal(t, `"hello world"`, toks[0].text)
}

func TestLexErrors(t *testing.T) {
	data := []struct {
		src string
		msg string
	}{
		{"a ! b", "unexpected character '!'"},
		{"a & b", "unexpected character '&'"},
		{"a # b", "unexpected character '#'"},
		{`"unterminated`, "unterminated string"},
	}
	for _, d := range data {
		toks := lexAll(d.src)
		last := toks[len(toks)-1]
		require.Equal(t, tkErr, last.kind, "src: %s", d.src)
		assert.Equal(t, d.msg, last.text, "src: %s", d.src)
	}
}

// every non-error token slices the source, so joining the byte ranges
// reproduces the input modulo skipped whitespace and comments.
func TestLexRoundTrip(t *testing.T) {
	src := `let mut a = [1, 2.5, "three"]
a[0] = a[1] + len(a) // trailing comment
while a { break }`
	var b strings.Builder
	for _, tok := range lexAll(src) {
		b.WriteString(tok.text)
	}
	stripped := func(s string) string {
		for _, cut := range []string{"// trailing comment", " ", "\t", "\n"} {
			s = strings.ReplaceAll(s, cut, "")
		}
		return s
	}
	assert.Equal(t, stripped(src), b.String())
}

func TestLexRestartable(t *testing.T) {
	src := "let x = 1"
	first := lexAll(src)
	second := lexAll(src)
	assert.Equal(t, first, second)
}
