package token

type Type int

const (
	EOF Type = iota
	Ident
	Int
	String
	Char
	Include
	Func
	Return
	Success
	Failure
	If
	Else
	While
	For
	LBrace
	RBrace
	LParen
	RParen
	Semi
	Comma
	Dot
	Plus
	Minus
	Star
	Slash
	Assign
	EqEq
	Neq
	Lt
	Gt
	Lte
	Gte
	Unknown
)

var KeywordMap = map[string]Type{
	"func":    Func,
	"return":  Return,
	"success": Success,
	"failure": Failure,
	"if":      If,
	"else":    Else,
	"while":   While,
	"for":     For,
}

var names = [...]string{
	EOF:     "EOF",
	Ident:   "IDENTIFIER",
	Int:     "INT_LITERAL",
	String:  "STRING_LITERAL",
	Char:    "CHAR_LITERAL",
	Include: "INCLUDE",
	Func:    "FUNC",
	Return:  "RETURN",
	Success: "SUCCESS",
	Failure: "FAILURE",
	If:      "IF",
	Else:    "ELSE",
	While:   "WHILE",
	For:     "FOR",
	LBrace:  "LBRACE",
	RBrace:  "RBRACE",
	LParen:  "LPAREN",
	RParen:  "RPAREN",
	Semi:    "SEMICOLON",
	Comma:   "COMMA",
	Dot:     "DOT",
	Plus:    "PLUS",
	Minus:   "MINUS",
	Star:    "STAR",
	Slash:   "SLASH",
	Assign:  "ASSIGN",
	EqEq:    "EQ",
	Neq:     "NEQ",
	Lt:      "LT",
	Gt:      "GT",
	Lte:     "LTE",
	Gte:     "GTE",
	Unknown: "UNKNOWN",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(names) {
		return names[t]
	}
	return "UNKNOWN"
}

// IsKeyword reports whether t is one of the reserved words
func (t Type) IsKeyword() bool { return t >= Func && t <= For }

type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}
