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

type tokenKind uint8

const (
	tkEOF tokenKind = iota
	tkErr

	tkInt
	tkFloat
	tkStr
	tkIdent

	// keywords
	tkLet
	tkMut
	tkFn
	tkIf
	tkElse
	tkWhile
	tkFor
	tkIn
	tkLoop
	tkBreak
	tkReturn
	tkTrue
	tkFalse
	tkNone
	tkMatch

	// punctuation and operators
	tkLParen
	tkRParen
	tkLBrace
	tkRBrace
	tkLBracket
	tkRBracket
	tkComma
	tkSemi
	tkDot
	tkPipe
	tkPlus
	tkMinus
	tkStar
	tkSlash
	tkPercent
	tkAssign
	tkEq
	tkNe
	tkLt
	tkLe
	tkGt
	tkGe
	tkAndAnd
	tkOrOr
	tkArrow
	tkFatArrow
)

var tokenNames = [...]string{
	tkEOF:      "end of input",
	tkErr:      "error",
	tkInt:      "int literal",
	tkFloat:    "float literal",
	tkStr:      "string literal",
	tkIdent:    "identifier",
	tkLet:      "'let'",
	tkMut:      "'mut'",
	tkFn:       "'fn'",
	tkIf:       "'if'",
	tkElse:     "'else'",
	tkWhile:    "'while'",
	tkFor:      "'for'",
	tkIn:       "'in'",
	tkLoop:     "'loop'",
	tkBreak:    "'break'",
	tkReturn:   "'return'",
	tkTrue:     "'true'",
	tkFalse:    "'false'",
	tkNone:     "'None'",
	tkMatch:    "'match'",
	tkLParen:   "'('",
	tkRParen:   "')'",
	tkLBrace:   "'{'",
	tkRBrace:   "'}'",
	tkLBracket: "'['",
	tkRBracket: "']'",
	tkComma:    "','",
	tkSemi:     "';'",
	tkDot:      "'.'",
	tkPipe:     "'|'",
	tkPlus:     "'+'",
	tkMinus:    "'-'",
	tkStar:     "'*'",
	tkSlash:    "'/'",
	tkPercent:  "'%'",
	tkAssign:   "'='",
	tkEq:       "'=='",
	tkNe:       "'!='",
	tkLt:       "'<'",
	tkLe:       "'<='",
	tkGt:       "'>'",
	tkGe:       "'>='",
	tkAndAnd:   "'&&'",
	tkOrOr:     "'||'",
	tkArrow:    "'->'",
	tkFatArrow: "'=>'",
}

func (k tokenKind) String() string {
	if int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return "invalid"
}

// token is one lexeme. text slices the source buffer, except for error
// tokens where it carries the diagnostic message.
type token struct {
	kind tokenKind
	text string
	line int
}
