package parser

import (
	"fmt"

	"github.com/wnu/wpypp/pkg/ast"
	"github.com/wnu/wpypp/pkg/config"
	"github.com/wnu/wpypp/pkg/token"
	"github.com/wnu/wpypp/pkg/util"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
	cfg      *config.Config
	rep      *util.Reporter
	modules  map[string]bool
}

// NewParser creates and initializes a new Parser from a token stream. A
// missing trailing EOF token is supplied.
func NewParser(tokens []token.Token, cfg *config.Config, rep *util.Reporter) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		eof := token.Token{Type: token.EOF}
		if len(tokens) > 0 {
			last := tokens[len(tokens)-1]
			eof.FileIndex, eof.Line, eof.Column = last.FileIndex, last.Line, last.Column+last.Len
		}
		tokens = append(tokens[:len(tokens):len(tokens)], eof)
	}
	p := &Parser{tokens: tokens, cfg: cfg, rep: rep, modules: make(map[string]bool)}
	p.current = p.tokens[0]
	return p
}

// Parser helpers
func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.previous = p.current
		p.pos++
		p.current = p.tokens[p.pos]
	}
}

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

// reset rewinds the cursor to a position saved from p.pos.
func (p *Parser) reset(pos int) {
	p.pos = pos
	p.current = p.tokens[pos]
	if pos > 0 {
		p.previous = p.tokens[pos-1]
	} else {
		p.previous = token.Token{}
	}
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type, format string, args ...interface{}) error {
	if p.match(tokType) {
		return nil
	}
	return util.Errorf(util.KindSyntax, p.current, "%s, found %s", fmt.Sprintf(format, args...), describe(p.current))
}

func describe(tok token.Token) string {
	switch {
	case tok.Type == token.EOF:
		return "end of file"
	case tok.Type == token.String:
		return fmt.Sprintf("string %q", tok.Value)
	case tok.Value != "":
		return fmt.Sprintf("%s '%s'", tok.Type, tok.Value)
	}
	return tok.Type.String()
}

// Parse builds the Program node. On any syntax error no tree is returned.
func (p *Parser) Parse() (*ast.Node, error) {
	root := p.current
	var funcs []*ast.Node
	for !p.check(token.EOF) {
		switch {
		case p.check(token.Include):
			p.modules[p.current.Value] = true
			p.advance()
		case p.check(token.Func):
			fn, err := p.parseFunction()
			if err != nil {
				return nil, err
			}
			funcs = append(funcs, fn)
		default:
			p.rep.Warn(config.WarnTopLevel, p.current, "discarding %s outside any function", describe(p.current))
			p.advance()
		}
	}
	return ast.NewProgram(root, funcs), nil
}

func (p *Parser) parseFunction() (*ast.Node, error) {
	tok := p.current
	if err := p.expect(token.Func, "expected 'func'"); err != nil {
		return nil, err
	}
	if !p.check(token.Ident) {
		return nil, util.Errorf(util.KindSyntax, p.current, "expected function name after 'func', found %s", describe(p.current))
	}
	name := p.current.Value
	p.advance()
	if err := p.expect(token.LParen, "expected '(' after function name '%s'", name); err != nil {
		return nil, err
	}
	if err := p.expect(token.RParen, "expected ')' in declaration of '%s'", name); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewFunction(tok, name, body), nil
}

func (p *Parser) parseBlock() (*ast.Node, error) {
	open := p.current
	if err := p.expect(token.LBrace, "expected '{' to open block"); err != nil {
		return nil, err
	}
	var stmts []*ast.Node
	for !p.check(token.RBrace) {
		if p.check(token.EOF) {
			return nil, util.Errorf(util.KindSyntax, open, "unterminated block: missing '}' before end of file")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	p.advance()
	return ast.NewBlock(open, stmts), nil
}

// parseStatement returns (nil, nil) when the current token starts no known
// statement; that token is dropped.
func (p *Parser) parseStatement() (*ast.Node, error) {
	switch {
	case p.check(token.Return):
		return p.parseReturn()
	case p.check(token.Ident) && p.peek().Type == token.Dot:
		stmt, err := p.parseDottedCall()
		if stmt != nil || err != nil {
			return stmt, err
		}
	case p.check(token.Ident) && p.peek().Type == token.LParen && p.previous.Type != token.Dot:
		return p.parseBareCall()
	}
	p.rep.Warn(config.WarnDroppedStmt, p.current, "dropping unexpected %s", describe(p.current))
	p.advance()
	return nil, nil
}

func (p *Parser) parseReturn() (*ast.Node, error) {
	tok := p.current
	p.advance()

	var value *ast.Node
	switch p.current.Type {
	case token.Int:
		value = ast.NewLiteral(p.current, ast.LitInt, p.current.Value)
	case token.Char:
		value = ast.NewLiteral(p.current, ast.LitChar, p.current.Value)
	case token.Success:
		value = ast.NewLiteral(p.current, ast.LitSuccess, "success")
	case token.Failure:
		value = ast.NewLiteral(p.current, ast.LitFailure, "failure")
	}
	if value != nil {
		p.advance()
	}
	if err := p.expect(token.Semi, "expected ';' after return"); err != nil {
		return nil, err
	}
	return ast.NewReturn(tok, value), nil
}

// parseDottedCall speculatively matches `module '.' name '('`. Until that
// prefix is complete the cursor is restored and (nil, nil) returned.
func (p *Parser) parseDottedCall() (*ast.Node, error) {
	start := p.pos
	tok := p.current
	module := p.current.Value
	p.advance()
	if !p.match(token.Dot) || !p.check(token.Ident) {
		p.reset(start)
		return nil, nil
	}
	name := p.current.Value
	p.advance()
	if !p.match(token.LParen) {
		p.reset(start)
		return nil, nil
	}

	if !p.moduleInScope(module) {
		return nil, util.Errorf(util.KindScope, tok, "module '%s' is not in scope (missing '#include <%s>'?)", module, module)
	}
	args, err := p.parseArgs(module + "." + name)
	if err != nil {
		return nil, err
	}
	if p.cfg.IsStdioModule(module) && name == p.cfg.PrintFunc {
		return ast.NewPrint(tok, args), nil
	}
	return ast.NewCall(tok, module, name, args), nil
}

func (p *Parser) parseBareCall() (*ast.Node, error) {
	tok := p.current
	name := p.current.Value
	p.advance()
	p.advance()
	args, err := p.parseArgs(name)
	if err != nil {
		return nil, err
	}
	return ast.NewCall(tok, "", name, args), nil
}

// parseArgs parses the argument list after '(' through the closing ';'.
func (p *Parser) parseArgs(callee string) ([]*ast.Node, error) {
	var args []*ast.Node
	if !p.check(token.RParen) {
		for {
			arg, err := p.parseArg(callee)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.match(token.Comma) {
				break
			}
		}
	}
	if err := p.expect(token.RParen, "expected ')' or ',' in arguments to '%s'", callee); err != nil {
		return nil, err
	}
	if err := p.expect(token.Semi, "expected ';' after call to '%s'", callee); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parseArg(callee string) (*ast.Node, error) {
	tok := p.current
	var arg *ast.Node
	switch tok.Type {
	case token.Int:
		arg = ast.NewLiteral(tok, ast.LitInt, tok.Value)
	case token.Char:
		arg = ast.NewLiteral(tok, ast.LitChar, tok.Value)
	case token.String:
		arg = ast.NewLiteral(tok, ast.LitString, tok.Value)
	case token.Ident:
		arg = ast.NewIdent(tok, tok.Value)
	default:
		return nil, util.Errorf(util.KindSyntax, tok, "expected a literal or identifier argument to '%s', found %s", callee, describe(tok))
	}
	p.advance()
	return arg, nil
}

func (p *Parser) moduleInScope(module string) bool {
	return p.modules[module] || p.cfg.ModuleInScope(module)
}
