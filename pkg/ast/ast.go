// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"fmt"
	"io"
	"strings"

	"github.com/wnu/wpypp/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

const (
	Program NodeType = iota
	Function
	Block
	Print
	Return
	Literal
	Ident
	Call
)

var nodeTypeNames = [...]string{
	Program:  "PROGRAM",
	Function: "FUNCTION",
	Block:    "BLOCK",
	Print:    "PRINT",
	Return:   "RETURN",
	Literal:  "LITERAL",
	Ident:    "IDENTIFIER",
	Call:     "CALL",
}

func (t NodeType) String() string {
	if t >= 0 && int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return "UNKNOWN"
}

// LiteralKind distinguishes the literal payloads a Literal node may carry
type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitChar
	LitString
	LitSuccess
	LitFailure
)

func (k LiteralKind) String() string {
	switch k {
	case LitInt:
		return "int"
	case LitChar:
		return "char"
	case LitString:
		return "string"
	case LitSuccess:
		return "success"
	case LitFailure:
		return "failure"
	}
	return "unknown"
}

// Node represents a node in the Abstract Syntax Tree. Data holds exactly one
// of the *Node data structs below, selected by Type.
type Node struct {
	Type NodeType
	Tok  token.Token
	Data interface{}
}

// --- Node Data Structs ---
type ProgramNode struct{ Funcs []*Node }
type FuncNode struct {
	Name string
	Body *Node
}
type BlockNode struct{ Stmts []*Node }
type PrintNode struct{ Args []*Node }
type ReturnNode struct{ Value *Node }
type LiteralNode struct {
	Kind  LiteralKind
	Value string
}
type IdentNode struct{ Name string }

// CallNode is a dotted (Module set) or bare (Module empty) call statement.
type CallNode struct {
	Module string
	Name   string
	Args   []*Node
}

// --- Node Constructors ---

func NewProgram(tok token.Token, funcs []*Node) *Node {
	return &Node{Type: Program, Tok: tok, Data: ProgramNode{Funcs: funcs}}
}
func NewFunction(tok token.Token, name string, body *Node) *Node {
	return &Node{Type: Function, Tok: tok, Data: FuncNode{Name: name, Body: body}}
}
func NewBlock(tok token.Token, stmts []*Node) *Node {
	return &Node{Type: Block, Tok: tok, Data: BlockNode{Stmts: stmts}}
}
func NewPrint(tok token.Token, args []*Node) *Node {
	return &Node{Type: Print, Tok: tok, Data: PrintNode{Args: args}}
}
func NewReturn(tok token.Token, value *Node) *Node {
	return &Node{Type: Return, Tok: tok, Data: ReturnNode{Value: value}}
}
func NewLiteral(tok token.Token, kind LiteralKind, value string) *Node {
	return &Node{Type: Literal, Tok: tok, Data: LiteralNode{Kind: kind, Value: value}}
}
func NewIdent(tok token.Token, name string) *Node {
	return &Node{Type: Ident, Tok: tok, Data: IdentNode{Name: name}}
}
func NewCall(tok token.Token, module, name string, args []*Node) *Node {
	return &Node{Type: Call, Tok: tok, Data: CallNode{Module: module, Name: name, Args: args}}
}

// Callee returns the qualified name of a call, "module.name" or "name".
func (c CallNode) Callee() string {
	if c.Module == "" {
		return c.Name
	}
	return c.Module + "." + c.Name
}

// Walk visits n and its children in pre-order, left to right. Returning false
// from fn skips the children of that node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, child := range Children(n) {
		Walk(child, fn)
	}
}

// Children returns the ordered child nodes of n.
func Children(n *Node) []*Node {
	switch d := n.Data.(type) {
	case ProgramNode:
		return d.Funcs
	case FuncNode:
		return []*Node{d.Body}
	case BlockNode:
		return d.Stmts
	case PrintNode:
		return d.Args
	case ReturnNode:
		if d.Value != nil {
			return []*Node{d.Value}
		}
	case CallNode:
		return d.Args
	}
	return nil
}

// Dump writes an indented outline of the tree, one node per line.
func Dump(w io.Writer, n *Node) {
	dump(w, n, 0)
}

func dump(w io.Writer, n *Node, depth int) {
	if n == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	switch d := n.Data.(type) {
	case FuncNode:
		fmt.Fprintf(w, "%s%s (%s)\n", indent, n.Type, d.Name)
	case LiteralNode:
		fmt.Fprintf(w, "%s%s %s (%q)\n", indent, n.Type, d.Kind, d.Value)
	case IdentNode:
		fmt.Fprintf(w, "%s%s (%s)\n", indent, n.Type, d.Name)
	case CallNode:
		fmt.Fprintf(w, "%s%s (%s)\n", indent, n.Type, d.Callee())
	default:
		fmt.Fprintf(w, "%s%s\n", indent, n.Type)
	}
	for _, child := range Children(n) {
		dump(w, child, depth+1)
	}
}
