package lexer

import (
	"strings"
	"unicode"

	"github.com/wnu/wpypp/pkg/config"
	"github.com/wnu/wpypp/pkg/token"
	"github.com/wnu/wpypp/pkg/util"
)

type Lexer struct {
	source    []rune
	fileIndex int
	pos       int
	line      int
	column    int
	cfg       *config.Config
	rep       *util.Reporter
}

// NewLexer returns a pull-based tokenizer over source. rep may be nil, in
// which case lexical warnings are dropped.
func NewLexer(source []rune, fileIndex int, cfg *config.Config, rep *util.Reporter) *Lexer {
	return &Lexer{
		source: source, fileIndex: fileIndex, line: 1, column: 1, cfg: cfg, rep: rep,
	}
}

// Next returns the next token. Once the input is exhausted every call returns
// an EOF token.
func (l *Lexer) Next() token.Token {
	for {
		l.skipWhitespaceAndComments()
		startPos, startCol, startLine := l.pos, l.column, l.line

		if l.isAtEnd() {
			return l.makeToken(token.EOF, "", startPos, startCol, startLine)
		}

		ch := l.peek()
		if ch == '#' {
			if tok, ok := l.directive(startPos, startCol, startLine); ok {
				return tok
			}
			continue
		}
		if unicode.IsLetter(ch) || ch == '_' {
			l.advance()
			return l.identifierOrKeyword(startPos, startCol, startLine)
		}
		if isDigit(ch) {
			return l.intLiteral(startPos, startCol, startLine)
		}

		l.advance()
		switch ch {
		case '{': return l.makeToken(token.LBrace, "", startPos, startCol, startLine)
		case '}': return l.makeToken(token.RBrace, "", startPos, startCol, startLine)
		case '(': return l.makeToken(token.LParen, "", startPos, startCol, startLine)
		case ')': return l.makeToken(token.RParen, "", startPos, startCol, startLine)
		case ';': return l.makeToken(token.Semi, "", startPos, startCol, startLine)
		case ',': return l.makeToken(token.Comma, "", startPos, startCol, startLine)
		case '.': return l.makeToken(token.Dot, "", startPos, startCol, startLine)
		case '+': return l.makeToken(token.Plus, "", startPos, startCol, startLine)
		case '-': return l.makeToken(token.Minus, "", startPos, startCol, startLine)
		case '*': return l.makeToken(token.Star, "", startPos, startCol, startLine)
		case '/': return l.makeToken(token.Slash, "", startPos, startCol, startLine)
		case '=': return l.matchThen('=', token.EqEq, token.Assign, startPos, startCol, startLine)
		case '<': return l.matchThen('=', token.Lte, token.Lt, startPos, startCol, startLine)
		case '>': return l.matchThen('=', token.Gte, token.Gt, startPos, startCol, startLine)
		case '!':
			if l.match('=') {
				return l.makeToken(token.Neq, "", startPos, startCol, startLine)
			}
		case '"':
			return l.stringLiteral(startPos, startCol, startLine)
		case '\'':
			return l.charLiteral(startPos, startCol, startLine)
		}

		tok := l.makeToken(token.Unknown, string(ch), startPos, startCol, startLine)
		l.rep.Warn(config.WarnUnknownChar, tok, "unexpected character '%c'", ch)
		return tok
	}
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value, FileIndex: l.fileIndex,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			l.advance()
		case '/':
			if !l.cfg.IsFeatureEnabled(config.FeatComments) {
				return
			}
			switch l.peekNext() {
			case '/':
				l.skipLine()
			case '*':
				l.blockComment()
			default:
				return
			}
		default:
			return
		}
	}
}

// blockComment consumes a /* */ comment. An unterminated comment swallows the
// rest of the input.
func (l *Lexer) blockComment() {
	startTok := l.makeToken(token.EOF, "", l.pos, l.column, l.line)
	startTok.Len = 2
	l.advance()
	l.advance()
	for !l.isAtEnd() {
		if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			return
		}
		l.advance()
	}
	l.rep.Warn(config.WarnUnterminated, startTok, "unterminated block comment")
}

func (l *Lexer) skipLine() {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

func (l *Lexer) skipBlanks() {
	for l.peek() == ' ' || l.peek() == '\t' {
		l.advance()
	}
}

// directive folds `#word <name>` or `#word [name]` into one Include token.
// Every other '#' line is skipped.
func (l *Lexer) directive(startPos, startCol, startLine int) (token.Token, bool) {
	l.advance()
	if !l.cfg.IsFeatureEnabled(config.FeatIncludes) {
		l.skipLine()
		return token.Token{}, false
	}

	for unicode.IsLetter(l.peek()) {
		l.advance()
	}
	l.skipBlanks()

	var closer rune
	switch l.peek() {
	case '<':
		closer = '>'
	case '[':
		closer = ']'
	default:
		l.skipLine()
		return token.Token{}, false
	}
	l.advance()

	nameStart := l.pos
	for !l.isAtEnd() && l.peek() != closer && l.peek() != '\n' {
		l.advance()
	}
	if l.peek() != closer {
		l.skipLine()
		return token.Token{}, false
	}
	name := strings.TrimSpace(string(l.source[nameStart:l.pos]))
	l.advance()
	tok := l.makeToken(token.Include, name, startPos, startCol, startLine)
	l.skipLine()
	if name == "" {
		return token.Token{}, false
	}
	return tok, true
}

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for unicode.IsLetter(l.peek()) || isDigit(l.peek()) || l.peek() == '_' {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])
	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		return l.makeToken(tokType, "", startPos, startCol, startLine)
	}
	return l.makeToken(token.Ident, value, startPos, startCol, startLine)
}

func (l *Lexer) intLiteral(startPos, startCol, startLine int) token.Token {
	for isDigit(l.peek()) {
		l.advance()
	}
	return l.makeToken(token.Int, string(l.source[startPos:l.pos]), startPos, startCol, startLine)
}

// stringLiteral captures everything up to the next '"' verbatim: no escape
// processing, quotes not included.
func (l *Lexer) stringLiteral(startPos, startCol, startLine int) token.Token {
	contentStart := l.pos
	for !l.isAtEnd() && l.peek() != '"' {
		l.advance()
	}
	value := string(l.source[contentStart:l.pos])
	if l.match('"') {
		return l.makeToken(token.String, value, startPos, startCol, startLine)
	}
	tok := l.makeToken(token.String, value, startPos, startCol, startLine)
	l.rep.Warn(config.WarnUnterminated, tok, "unterminated string literal")
	return tok
}

// charLiteral takes one character or a backslash pair. The closing quote is
// optional.
func (l *Lexer) charLiteral(startPos, startCol, startLine int) token.Token {
	contentStart := l.pos
	switch {
	case l.peek() == '\\':
		l.advance()
		l.advance()
	case l.peek() == '\'' || l.isAtEnd():
	default:
		l.advance()
	}
	value := string(l.source[contentStart:l.pos])
	if l.match('\'') {
		return l.makeToken(token.Char, value, startPos, startCol, startLine)
	}
	tok := l.makeToken(token.Char, value, startPos, startCol, startLine)
	l.rep.Warn(config.WarnUnterminated, tok, "unterminated character literal")
	return tok
}

func (l *Lexer) matchThen(expected rune, thenType, elseType token.Type, sPos, sCol, sLine int) token.Token {
	if l.match(expected) {
		return l.makeToken(thenType, "", sPos, sCol, sLine)
	}
	return l.makeToken(elseType, "", sPos, sCol, sLine)
}

// Tokenize drains a lexer into a slice ending with exactly one EOF token.
func Tokenize(l *Lexer) []token.Token {
	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}
