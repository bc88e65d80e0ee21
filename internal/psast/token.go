package psast

import "fmt"

// TokenType represents the type of a lexical token in a PowerShell script.
type TokenType int

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Separators
	NEWLINE // \n (significant: terminates statements)
	SEMI    // ;
	PIPE    // |
	COMMA   // ,
	DOT     // . (dot-source or member access)
	AMP     // & (call operator)

	// Brackets
	LBRACE        // {
	RBRACE        // }
	LPAREN        // (
	RPAREN        // )
	LBRACKET      // [
	RBRACKET      // ]
	AT_LBRACE     // @{
	AT_LPAREN     // @(
	DOLLAR_LPAREN // $(

	// Operators
	ASSIGN   // = += -= *= /= %= ??=
	OPERATOR // redirections and other symbolic operators

	// Literals and content
	PARAMETER // -Name or -Name:
	VARIABLE  // $name, ${name}, $scope:name
	SPLAT     // @name
	STRING    // 'x', "x", here-strings (raw text, quotes included)
	NUMBER    // 42, 1.5, 0x1F, 10MB, -3
	WORD      // barewords: command names, keywords, unquoted arguments
)

var tokenNames = [...]string{
	EOF:           "EOF",
	ILLEGAL:       "ILLEGAL",
	NEWLINE:       "NEWLINE",
	SEMI:          "SEMI",
	PIPE:          "PIPE",
	COMMA:         "COMMA",
	DOT:           "DOT",
	AMP:           "AMP",
	LBRACE:        "LBRACE",
	RBRACE:        "RBRACE",
	LPAREN:        "LPAREN",
	RPAREN:        "RPAREN",
	LBRACKET:      "LBRACKET",
	RBRACKET:      "RBRACKET",
	AT_LBRACE:     "AT_LBRACE",
	AT_LPAREN:     "AT_LPAREN",
	DOLLAR_LPAREN: "DOLLAR_LPAREN",
	ASSIGN:        "ASSIGN",
	OPERATOR:      "OPERATOR",
	PARAMETER:     "PARAMETER",
	VARIABLE:      "VARIABLE",
	SPLAT:         "SPLAT",
	STRING:        "STRING",
	NUMBER:        "NUMBER",
	WORD:          "WORD",
}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) && int(t) >= 0 {
		return tokenNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Position is a location in source code.
type Position struct {
	Line   int // 1-based
	Column int // 1-based
	Offset int // 0-based byte offset
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Before reports whether p is lexically before o.
func (p Position) Before(o Position) bool {
	return p.Offset < o.Offset
}

// Token is a single lexical token.
type Token struct {
	Type  TokenType
	Value string // normalized value (parameter/variable name without sigil, raw text otherwise)
	Raw   string // exact source text
	Pos   Position
	End   Position
	// Spaced is true when whitespace separates this token from the previous one.
	Spaced bool
	// Colon is set on PARAMETER tokens written as -Name:value.
	Colon bool
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%s", t.Type, t.Raw, t.Pos)
}

// Comment is a line comment group or a block comment.
type Comment struct {
	Text  string // without the comment markers
	Pos   Position
	End   Position
	Block bool
}
