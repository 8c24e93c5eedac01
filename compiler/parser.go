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

import "strconv"

// Binary operator precedence, lowest first. Assignment is handled at the
// statement level, call/index/method chains in the postfix loop.
type prec uint8

const (
	precNone prec = iota
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
)

func binaryPrec(k tokenKind) prec {
	switch k {
	case tkOrOr:
		return precOr
	case tkAndAnd:
		return precAnd
	case tkEq, tkNe:
		return precEquality
	case tkLt, tkLe, tkGt, tkGe:
		return precComparison
	case tkPlus, tkMinus:
		return precTerm
	case tkStar, tkSlash, tkPercent:
		return precFactor
	}
	return precNone
}

// parser is a recursive-descent parser with precedence climbing for binary
// operators. On error it enters panic mode, suppressing further reports
// until it resynchronizes at a statement boundary.
type parser struct {
	lex       *lexer
	name      string
	cur       token
	prev      token
	errs      ErrCompile
	panicMode bool
}

func newParser(name, src string) *parser {
	p := &parser{lex: newLexer(src), name: name}
	p.advance()
	return p
}

// parse parses a whole program. The returned error, if not nil, is an
// ErrCompile holding up to maxErrors entries.
func parse(name, src string) ([]Stmt, error) {
	p := newParser(name, src)
	var prog []Stmt
	for !p.check(tkEOF) && !p.abort() {
		s := p.statement()
		if s != nil {
			prog = append(prog, s)
		}
		if p.panicMode {
			p.synchronize()
		}
	}
	if len(p.errs) > 0 {
		return nil, p.errs
	}
	return prog, nil
}

// abort returns true if the parser should abort due to too many errors.
func (p *parser) abort() bool { return len(p.errs) >= maxErrors }

func (p *parser) errorAt(tok token, msg string) {
	if p.panicMode || p.abort() {
		return
	}
	p.panicMode = true
	p.errs = append(p.errs, compileError(p.name, tok.line, msg))
}

func (p *parser) error(msg string) { p.errorAt(p.cur, msg) }

func (p *parser) advance() {
	p.prev = p.cur
	for {
		p.cur = p.lex.next()
		if p.cur.kind != tkErr {
			return
		}
		p.errorAt(p.cur, p.cur.text)
	}
}

func (p *parser) check(k tokenKind) bool { return p.cur.kind == k }

func (p *parser) match(k tokenKind) bool {
	if !p.check(k) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) consume(k tokenKind, msg string) {
	if p.check(k) {
		p.advance()
		return
	}
	p.error(msg)
}

// synchronize skips tokens until a statement boundary: past a semicolon or
// in front of a keyword that starts a statement.
func (p *parser) synchronize() {
	p.panicMode = false
	for !p.check(tkEOF) {
		if p.prev.kind == tkSemi {
			return
		}
		switch p.cur.kind {
		case tkFn, tkLet, tkIf, tkWhile, tkFor, tkReturn:
			return
		}
		p.advance()
	}
}

func (p *parser) statement() Stmt {
	line := p.cur.line
	switch {
	case p.match(tkLet):
		return p.letStatement(line)
	case p.match(tkFn):
		return p.fnStatement(line)
	case p.match(tkIf):
		return p.ifStatement(line)
	case p.match(tkWhile):
		cond := p.expression()
		return &WhileStmt{node{line}, cond, p.block()}
	case p.match(tkFor):
		return p.forStatement(line)
	case p.match(tkLoop):
		return &LoopStmt{node{line}, p.block()}
	case p.match(tkBreak):
		p.match(tkSemi)
		return &BreakStmt{node{line}}
	case p.match(tkReturn):
		return p.returnStatement(line)
	case p.match(tkMatch):
		p.error("'match' is reserved but not implemented")
		return nil
	case p.check(tkLBrace):
		p.advance()
		return &BlockStmt{node{line}, p.blockBody()}
	}
	return p.simpleStatement(line)
}

func (p *parser) letStatement(line int) Stmt {
	mut := p.match(tkMut)
	p.consume(tkIdent, "expected variable name after 'let'")
	name := p.prev.text
	p.consume(tkAssign, "expected '=' after variable name")
	init := p.expression()
	p.match(tkSemi)
	return &LetStmt{node{line}, name, mut, init}
}

func (p *parser) fnStatement(line int) Stmt {
	p.consume(tkIdent, "expected function name after 'fn'")
	name := p.prev.text
	params := p.paramList(tkLParen, tkRParen)
	return &FnStmt{node{line}, name, params, p.block()}
}

// paramList parses open IDENT (, IDENT)* close, allowing an empty list.
func (p *parser) paramList(open, close tokenKind) []string {
	p.consume(open, "expected "+open.String()+" before parameters")
	var params []string
	if !p.check(close) {
		for {
			p.consume(tkIdent, "expected parameter name")
			params = append(params, p.prev.text)
			if !p.match(tkComma) {
				break
			}
		}
	}
	p.consume(close, "expected "+close.String()+" after parameters")
	return params
}

func (p *parser) ifStatement(line int) Stmt {
	cond := p.expression()
	then := p.block()
	var els []Stmt
	if p.match(tkElse) {
		if p.match(tkIf) {
			els = []Stmt{p.ifStatement(p.prev.line)}
		} else {
			els = p.block()
		}
	}
	return &IfStmt{node{line}, cond, then, els}
}

func (p *parser) forStatement(line int) Stmt {
	p.consume(tkIdent, "expected loop variable after 'for'")
	name := p.prev.text
	p.consume(tkIn, "expected 'in' after loop variable")
	it := p.expression()
	return &ForStmt{node{line}, name, it, p.block()}
}

func (p *parser) returnStatement(line int) Stmt {
	var x Expr
	if !p.check(tkSemi) && !p.check(tkRBrace) && !p.check(tkEOF) {
		x = p.expression()
	}
	p.match(tkSemi)
	return &ReturnStmt{node{line}, x}
}

// simpleStatement parses an expression statement, or an assignment when the
// parsed expression is followed by '=' and is a valid target.
func (p *parser) simpleStatement(line int) Stmt {
	x := p.expression()
	if p.match(tkAssign) {
		v := p.expression()
		p.match(tkSemi)
		switch x.(type) {
		case *Ident, *Index:
			return &AssignStmt{node{line}, x, v}
		}
		p.errorAt(p.prev, "invalid assignment target")
		return nil
	}
	p.match(tkSemi)
	return &ExprStmt{node{line}, x}
}

func (p *parser) block() []Stmt {
	p.consume(tkLBrace, "expected '{'")
	return p.blockBody()
}

func (p *parser) blockBody() []Stmt {
	var body []Stmt
	for !p.check(tkRBrace) && !p.check(tkEOF) && !p.abort() {
		s := p.statement()
		if s != nil {
			body = append(body, s)
		}
		if p.panicMode {
			p.synchronize()
		}
	}
	p.consume(tkRBrace, "expected '}' after block")
	return body
}

func (p *parser) expression() Expr {
	return p.binary(precOr)
}

func (p *parser) binary(min prec) Expr {
	left := p.unary()
	for {
		pr := binaryPrec(p.cur.kind)
		if pr == precNone || pr < min {
			return left
		}
		op := p.cur.kind
		line := p.cur.line
		p.advance()
		right := p.binary(pr + 1)
		left = &Binary{node{line}, op, left, right}
	}
}

func (p *parser) unary() Expr {
	if p.match(tkMinus) {
		line := p.prev.line
		return &Unary{node{line}, tkMinus, p.unary()}
	}
	return p.postfix(p.primary())
}

// postfix parses call, index and method chain suffixes.
func (p *parser) postfix(x Expr) Expr {
	for {
		line := p.cur.line
		switch {
		case p.match(tkLParen):
			var args []Expr
			if !p.check(tkRParen) {
				for {
					args = append(args, p.expression())
					if !p.match(tkComma) {
						break
					}
				}
			}
			p.consume(tkRParen, "expected ')' after arguments")
			x = &Call{node{line}, x, args}
		case p.match(tkLBracket):
			i := p.expression()
			p.consume(tkRBracket, "expected ']' after index")
			x = &Index{node{line}, x, i}
		case p.check(tkDot):
			x = p.iterChain(x, line)
		default:
			return x
		}
	}
}

// iterChain parses .iter() followed by further .METHOD(ARG[, INIT]) links.
// Only fold accepts the second seed argument.
func (p *parser) iterChain(x Expr, line int) Expr {
	ch := &IterChain{node{line}, x, nil}
	for p.match(tkDot) {
		p.consume(tkIdent, "expected method name after '.'")
		m := IterMethod{Name: p.prev.text}
		p.consume(tkLParen, "expected '(' after method name")
		if !p.check(tkRParen) {
			m.Args = append(m.Args, p.expression())
			if p.match(tkComma) {
				if m.Name != "fold" {
					p.error("only 'fold' takes a second argument")
				}
				m.Args = append(m.Args, p.expression())
			}
		}
		p.consume(tkRParen, "expected ')' after method arguments")
		ch.Methods = append(ch.Methods, m)
	}
	if len(ch.Methods) == 0 || ch.Methods[0].Name != "iter" {
		p.errorAt(p.prev, "method chains must start with '.iter()'")
	}
	return ch
}

func (p *parser) primary() Expr {
	line := p.cur.line
	switch {
	case p.match(tkInt):
		n, err := strconv.ParseInt(p.prev.text, 10, 32)
		if err != nil {
			p.errorAt(p.prev, "integer literal out of range")
		}
		return &IntLit{node{line}, int32(n)}
	case p.match(tkFloat):
		f, err := strconv.ParseFloat(p.prev.text, 32)
		if err != nil {
			p.errorAt(p.prev, "invalid float literal")
		}
		return &FloatLit{node{line}, float32(f)}
	case p.match(tkTrue):
		return &BoolLit{node{line}, true}
	case p.match(tkFalse):
		return &BoolLit{node{line}, false}
	case p.match(tkNone):
		return &NoneLit{node{line}}
	case p.match(tkStr):
		s := p.prev.text
		return &StrLit{node{line}, s[1 : len(s)-1]}
	case p.match(tkIdent):
		return &Ident{node{line}, p.prev.text}
	case p.match(tkLParen):
		x := p.expression()
		p.consume(tkRParen, "expected ')' after expression")
		return x
	case p.match(tkLBracket):
		var elems []Expr
		if !p.check(tkRBracket) {
			for {
				elems = append(elems, p.expression())
				if !p.match(tkComma) {
					break
				}
			}
		}
		p.consume(tkRBracket, "expected ']' after array elements")
		return &ArrayLit{node{line}, elems}
	case p.match(tkPipe):
		params := p.closureParams()
		return p.closureBody(line, params)
	case p.match(tkOrOr):
		// '||' in primary position is an empty parameter list
		return p.closureBody(line, nil)
	}
	p.error("expected an expression")
	p.advance()
	return &NoneLit{node{line}}
}

func (p *parser) closureParams() []string {
	var params []string
	if !p.check(tkPipe) {
		for {
			p.consume(tkIdent, "expected parameter name")
			params = append(params, p.prev.text)
			if !p.match(tkComma) {
				break
			}
		}
	}
	p.consume(tkPipe, "expected '|' after closure parameters")
	return params
}

// closureBody parses either a braced block or a bare expression, which is
// wrapped in an implicit return.
func (p *parser) closureBody(line int, params []string) Expr {
	if p.match(tkLBrace) {
		return &FnLit{node{line}, params, p.blockBody()}
	}
	x := p.expression()
	return &FnLit{node{line}, params, []Stmt{&ReturnStmt{node{line}, x}}}
}
