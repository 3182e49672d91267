package codegen

import (
	"bytes"

	"github.com/wnu/wpypp/pkg/ast"
	"github.com/wnu/wpypp/pkg/config"
	"github.com/wnu/wpypp/pkg/util"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate lowers a Program AST and produces one complete assembly unit
	// for the backend's target.
	Generate(prog *ast.Node, cfg *config.Config) (*bytes.Buffer, error)
}

// NewBackend returns the backend that lowers for t.
func NewBackend(t *Target, rep *util.Reporter) Backend {
	if t.Assembler == AssemblerCC {
		return NewQBEBackend(t, rep)
	}
	return NewNASMBackend(t, rep)
}
