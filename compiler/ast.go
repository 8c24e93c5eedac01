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

// The AST is a plain tagged tree. Nodes carry the 1-based source line of
// their leading token for diagnostics.

type node struct{ line int }

func (n node) Line() int { return n.line }

// Expr is an expression node.
type Expr interface{ exprNode() }

// Stmt is a statement node.
type Stmt interface{ stmtNode() }

type (
	// IntLit is an integer literal.
	IntLit struct {
		node
		Value int32
	}

	// FloatLit is a float literal.
	FloatLit struct {
		node
		Value float32
	}

	// BoolLit is true or false.
	BoolLit struct {
		node
		Value bool
	}

	// NoneLit is the None literal.
	NoneLit struct {
		node
	}

	// StrLit is a string literal, quotes stripped.
	StrLit struct {
		node
		Value string
	}

	// Ident is a name reference.
	Ident struct {
		node
		Name string
	}

	// Unary is prefix negation.
	Unary struct {
		node
		Op tokenKind
		X  Expr
	}

	// Binary covers arithmetic, comparison and the short-circuit logical
	// operators.
	Binary struct {
		node
		Op   tokenKind
		L, R Expr
	}

	// Call is callee(args...).
	Call struct {
		node
		Callee Expr
		Args   []Expr
	}

	// Index is x[i].
	Index struct {
		node
		X, I Expr
	}

	// ArrayLit is [e, ...].
	ArrayLit struct {
		node
		Elems []Expr
	}

	// FnLit is a closure literal |params| body. An expression body is
	// wrapped in an implicit return statement by the parser.
	FnLit struct {
		node
		Params []string
		Body   []Stmt
	}

	// IterChain is src.iter().m1(...).m2(...). The methods are recorded as
	// parsed; lowering them is not supported and the compiler rejects the
	// node with a diagnostic.
	IterChain struct {
		node
		Src     Expr
		Methods []IterMethod
	}
)

// IterMethod is one link of an iterator chain.
type IterMethod struct {
	Name string
	Args []Expr
}

func (*IntLit) exprNode()    {}
func (*FloatLit) exprNode()  {}
func (*BoolLit) exprNode()   {}
func (*NoneLit) exprNode()   {}
func (*StrLit) exprNode()    {}
func (*Ident) exprNode()     {}
func (*Unary) exprNode()     {}
func (*Binary) exprNode()    {}
func (*Call) exprNode()      {}
func (*Index) exprNode()     {}
func (*ArrayLit) exprNode()  {}
func (*FnLit) exprNode()     {}
func (*IterChain) exprNode() {}

type (
	// LetStmt declares a binding, global at the top level and local inside
	// a function or block.
	LetStmt struct {
		node
		Name string
		Mut  bool
		Init Expr
	}

	// FnStmt is a named function declaration.
	FnStmt struct {
		node
		Name   string
		Params []string
		Body   []Stmt
	}

	// AssignStmt assigns to an identifier or an index expression.
	AssignStmt struct {
		node
		Target Expr
		Value  Expr
	}

	// ExprStmt evaluates an expression for its effects.
	ExprStmt struct {
		node
		X Expr
	}

	// IfStmt with an optional else branch.
	IfStmt struct {
		node
		Cond Expr
		Then []Stmt
		Else []Stmt
	}

	// WhileStmt loops while the condition is truthy.
	WhileStmt struct {
		node
		Cond Expr
		Body []Stmt
	}

	// ForStmt iterates over an iterable expression.
	ForStmt struct {
		node
		Name     string
		Iterable Expr
		Body     []Stmt
	}

	// LoopStmt loops unconditionally; break exits.
	LoopStmt struct {
		node
		Body []Stmt
	}

	// BreakStmt exits the innermost loop.
	BreakStmt struct {
		node
	}

	// ReturnStmt with an optional value.
	ReturnStmt struct {
		node
		X Expr
	}

	// BlockStmt is a bare { ... } block opening a scope.
	BlockStmt struct {
		node
		Body []Stmt
	}
)

func (*LetStmt) stmtNode()    {}
func (*FnStmt) stmtNode()     {}
func (*AssignStmt) stmtNode() {}
func (*ExprStmt) stmtNode()   {}
func (*IfStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()  {}
func (*ForStmt) stmtNode()    {}
func (*LoopStmt) stmtNode()   {}
func (*BreakStmt) stmtNode()  {}
func (*ReturnStmt) stmtNode() {}
func (*BlockStmt) stmtNode()  {}
