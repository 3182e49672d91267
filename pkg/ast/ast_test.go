package ast

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wnu/wpypp/pkg/token"
)

func sample() *Node {
	var tok token.Token
	pr := NewPrint(tok, []*Node{NewLiteral(tok, LitString, "hi"), NewIdent(tok, "x")})
	call := NewCall(tok, "graphics", "Loop", nil)
	ret := NewReturn(tok, NewLiteral(tok, LitInt, "0"))
	fn := NewFunction(tok, "main", NewBlock(tok, []*Node{pr, call, ret}))
	return NewProgram(tok, []*Node{fn})
}

func TestWalkPreOrder(t *testing.T) {
	var got []NodeType
	Walk(sample(), func(n *Node) bool {
		got = append(got, n.Type)
		return true
	})
	assert.Equal(t, []NodeType{Program, Function, Block, Print, Literal, Ident, Call, Return, Literal}, got)

	got = got[:0]
	Walk(sample(), func(n *Node) bool {
		got = append(got, n.Type)
		return n.Type != Block
	})
	assert.Equal(t, []NodeType{Program, Function, Block}, got)
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	Dump(&buf, sample())
	assert.Equal(t, `PROGRAM
  FUNCTION (main)
    BLOCK
      PRINT
        LITERAL string ("hi")
        IDENTIFIER (x)
      CALL (graphics.Loop)
      RETURN
        LITERAL int ("0")
`, buf.String())
}

func TestNames(t *testing.T) {
	assert.Equal(t, "UNKNOWN", NodeType(99).String())
	assert.Equal(t, "failure", LitFailure.String())
	assert.Equal(t, "Loop", CallNode{Name: "Loop"}.Callee())
	assert.Nil(t, Children(NewReturn(token.Token{}, nil)))
}
