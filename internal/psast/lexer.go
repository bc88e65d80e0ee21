package psast

import (
	"regexp"
	"strings"
)

var numberPattern = regexp.MustCompile(`^-?(0[xX][0-9a-fA-F]+|[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?|\.[0-9]+)([dDlLuU]|[kKmMgGtTpP][bB])?$`)

// wordStops are the bytes that end an unquoted word.
var wordStops [128]bool

func init() {
	for _, ch := range " \t\r\n\f;|&,(){}[]'\"=<>" {
		wordStops[ch] = true
	}
}

// Lexer turns PowerShell source into tokens. Comments are collected on the
// side instead of being emitted as tokens.
type Lexer struct {
	input string
	pos   int // current byte offset
	line  int
	col   int

	tokens   []Token
	comments []Comment
	spaced   bool

	// tokens emitted since the last comment, used to group consecutive
	// line comments into one Comment.
	sinceComment int
}

// NewLexer creates a lexer over src.
func NewLexer(src string) *Lexer {
	return &Lexer{input: src, line: 1, col: 1}
}

// Lex tokenizes src. The token stream always ends with EOF.
func Lex(src string) ([]Token, []Comment, error) {
	l := NewLexer(src)
	if err := l.run(); err != nil {
		return nil, nil, err
	}
	return l.tokens, l.comments, nil
}

func (l *Lexer) eof() bool { return l.pos >= len(l.input) }

func (l *Lexer) peek(k int) byte {
	if l.pos+k >= len(l.input) {
		return 0
	}
	return l.input[l.pos+k]
}

func (l *Lexer) position() Position {
	return Position{Line: l.line, Column: l.col, Offset: l.pos}
}

func (l *Lexer) advance() {
	if l.eof() {
		return
	}
	b := l.input[l.pos]
	l.pos++
	if b == '\n' {
		l.line++
		l.col = 1
		return
	}
	// continuation bytes of a multi-byte rune do not move the column
	if b&0xC0 != 0x80 {
		l.col++
	}
}

func (l *Lexer) advanceN(n int) {
	for i := 0; i < n; i++ {
		l.advance()
	}
}

func (l *Lexer) emit(typ TokenType, value string, start Position) {
	end := l.position()
	tok := Token{
		Type:   typ,
		Value:  value,
		Raw:    l.input[start.Offset:end.Offset],
		Pos:    start,
		End:    end,
		Spaced: l.spaced,
	}
	l.tokens = append(l.tokens, tok)
	l.spaced = false
	if typ != NEWLINE {
		l.sinceComment++
	}
}

func (l *Lexer) errorf(pos Position, format string, args ...interface{}) error {
	return newParseError(pos, format, args...)
}

func (l *Lexer) prevType() TokenType {
	if len(l.tokens) == 0 {
		return NEWLINE
	}
	return l.tokens[len(l.tokens)-1].Type
}

func (l *Lexer) run() error {
	for {
		if err := l.skipSpace(); err != nil {
			return err
		}
		if l.eof() {
			l.emit(EOF, "", l.position())
			return nil
		}
		if err := l.next(); err != nil {
			return err
		}
	}
}

func (l *Lexer) next() error {
	start := l.position()
	c := l.peek(0)
	switch c {
	case '\n':
		l.advance()
		l.emit(NEWLINE, "\n", start)
	case ';':
		l.advance()
		l.emit(SEMI, ";", start)
	case ',':
		l.advance()
		l.emit(COMMA, ",", start)
	case '|':
		if l.peek(1) == '|' {
			l.advanceN(2)
			l.emit(OPERATOR, "||", start)
			return nil
		}
		l.advance()
		l.emit(PIPE, "|", start)
	case '&':
		if l.peek(1) == '&' {
			l.advanceN(2)
			l.emit(OPERATOR, "&&", start)
			return nil
		}
		l.advance()
		l.emit(AMP, "&", start)
	case '{':
		l.advance()
		l.emit(LBRACE, "{", start)
	case '}':
		l.advance()
		l.emit(RBRACE, "}", start)
	case '(':
		l.advance()
		l.emit(LPAREN, "(", start)
	case ')':
		l.advance()
		l.emit(RPAREN, ")", start)
	case '[':
		l.advance()
		l.emit(LBRACKET, "[", start)
	case ']':
		l.advance()
		l.emit(RBRACKET, "]", start)
	case '@':
		return l.lexAt(start)
	case '$':
		return l.lexDollar(start)
	case '\'':
		if err := l.skipSingleQuoted(); err != nil {
			return err
		}
		l.emit(STRING, l.input[start.Offset:l.pos], start)
	case '"':
		if err := l.skipDoubleQuoted(); err != nil {
			return err
		}
		l.emit(STRING, l.input[start.Offset:l.pos], start)
	case '=':
		l.advance()
		l.emit(ASSIGN, "=", start)
	case '-':
		return l.lexDash(start)
	case '.':
		return l.lexDot(start)
	case '<', '>':
		l.lexRedirection(start)
	case '!':
		l.advance()
		l.emit(OPERATOR, "!", start)
	default:
		if strings.IndexByte("+*/%", c) >= 0 && l.peek(1) == '=' {
			l.advanceN(2)
			l.emit(ASSIGN, l.input[start.Offset:l.pos], start)
			return nil
		}
		if c == '?' && l.peek(1) == '?' && l.peek(2) == '=' {
			l.advanceN(3)
			l.emit(ASSIGN, "??=", start)
			return nil
		}
		if (c == '*' || isDigit(c)) && l.peek(1) == '>' {
			l.lexRedirection(start)
			return nil
		}
		if c == ':' && l.peek(1) == ':' {
			l.advanceN(2)
			l.emit(OPERATOR, "::", start)
			return nil
		}
		l.lexWord(start)
	}
	return nil
}

// skipSpace consumes whitespace, line continuations and comments.
func (l *Lexer) skipSpace() error {
	for !l.eof() {
		c := l.peek(0)
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			l.advance()
			l.spaced = true
		case c == '`' && (l.peek(1) == '\n' || (l.peek(1) == '\r' && l.peek(2) == '\n')):
			l.advance()
			for l.peek(0) != '\n' {
				l.advance()
			}
			l.advance()
			l.spaced = true
		case c == '#':
			l.lexLineComment()
			l.spaced = true
		case c == '<' && l.peek(1) == '#':
			if err := l.lexBlockComment(); err != nil {
				return err
			}
			l.spaced = true
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) lexLineComment() {
	start := l.position()
	l.advance() // '#'
	for !l.eof() && l.peek(0) != '\n' {
		l.advance()
	}
	text := strings.TrimRight(l.input[start.Offset+1:l.pos], "\r")
	end := l.position()

	if n := len(l.comments); n > 0 && l.sinceComment == 0 {
		last := &l.comments[n-1]
		if !last.Block && last.End.Line == start.Line-1 {
			last.Text += "\n" + text
			last.End = end
			return
		}
	}
	l.comments = append(l.comments, Comment{Text: text, Pos: start, End: end})
	l.sinceComment = 0
}

func (l *Lexer) lexBlockComment() error {
	start := l.position()
	l.advanceN(2) // '<#'
	for {
		if l.eof() {
			return l.errorf(start, "unterminated block comment")
		}
		if l.peek(0) == '#' && l.peek(1) == '>' {
			break
		}
		l.advance()
	}
	text := l.input[start.Offset+2 : l.pos]
	l.advanceN(2)
	l.comments = append(l.comments, Comment{Text: text, Pos: start, End: l.position(), Block: true})
	l.sinceComment = 0
	return nil
}

func (l *Lexer) lexAt(start Position) error {
	switch next := l.peek(1); {
	case next == '{':
		l.advanceN(2)
		l.emit(AT_LBRACE, "@{", start)
	case next == '(':
		l.advanceN(2)
		l.emit(AT_LPAREN, "@(", start)
	case next == '\'' || next == '"':
		return l.lexHereString(start, next)
	case isIdentChar(next):
		l.advance()
		nameStart := l.pos
		for !l.eof() && isIdentChar(l.peek(0)) {
			l.advance()
		}
		l.emit(SPLAT, l.input[nameStart:l.pos], start)
	default:
		l.lexWord(start)
	}
	return nil
}

func (l *Lexer) lexHereString(start Position, quote byte) error {
	l.advanceN(2) // '@' + quote
	for !l.eof() && l.peek(0) != '\n' {
		l.advance()
	}
	if l.eof() {
		return l.errorf(start, "unterminated here-string")
	}
	l.advance()
	contentStart := l.pos
	for {
		if l.eof() {
			return l.errorf(start, "unterminated here-string")
		}
		if l.peek(0) == '\n' && l.peek(1) == quote && l.peek(2) == '@' {
			content := strings.TrimRight(l.input[contentStart:l.pos], "\r")
			l.advanceN(3)
			l.emit(STRING, content, start)
			return nil
		}
		// empty here-string: the closing marker starts right after the opening line
		if l.pos == contentStart && l.peek(0) == quote && l.peek(1) == '@' {
			l.advanceN(2)
			l.emit(STRING, "", start)
			return nil
		}
		l.advance()
	}
}

func (l *Lexer) lexDollar(start Position) error {
	next := l.peek(1)
	switch {
	case next == '(':
		l.advanceN(2)
		l.emit(DOLLAR_LPAREN, "$(", start)
	case next == '{':
		l.advanceN(2)
		nameStart := l.pos
		for !l.eof() && l.peek(0) != '}' {
			if l.peek(0) == '`' {
				l.advance()
			}
			l.advance()
		}
		if l.eof() {
			return l.errorf(start, "unterminated variable name")
		}
		name := l.input[nameStart:l.pos]
		l.advance()
		l.emit(VARIABLE, name, start)
	case next == '$' || next == '?' || next == '^':
		l.advanceN(2)
		l.emit(VARIABLE, string(next), start)
	case isIdentChar(next):
		l.advance()
		nameStart := l.pos
		for !l.eof() {
			c := l.peek(0)
			// scope qualifier such as $script:name or $env:PATH
			if c == ':' && isIdentChar(l.peek(1)) && !strings.Contains(l.input[nameStart:l.pos], ":") {
				l.advance()
				continue
			}
			if !isIdentChar(c) && c != '?' {
				break
			}
			l.advance()
		}
		l.emit(VARIABLE, l.input[nameStart:l.pos], start)
	default:
		l.lexWord(start)
	}
	return nil
}

func (l *Lexer) lexDash(start Position) error {
	next := l.peek(1)
	switch {
	case next == '=':
		l.advanceN(2)
		l.emit(ASSIGN, "-=", start)
	case isLetter(next):
		l.advance()
		nameStart := l.pos
		for !l.eof() && (isIdentChar(l.peek(0)) || l.peek(0) == '?') {
			l.advance()
		}
		name := l.input[nameStart:l.pos]
		colon := false
		if l.peek(0) == ':' && l.peek(1) != ':' {
			l.advance()
			colon = true
		}
		l.emit(PARAMETER, name, start)
		l.tokens[len(l.tokens)-1].Colon = colon
	case isDigit(next) || (next == '.' && isDigit(l.peek(2))), next == '-':
		l.lexWord(start)
	default:
		l.advance()
		l.emit(OPERATOR, "-", start)
	}
	return nil
}

func (l *Lexer) lexDot(start Position) error {
	next := l.peek(1)
	switch {
	case next == ' ' || next == '\t' || next == '\n' || next == '\r' || next == 0:
		l.advance()
		l.emit(DOT, ".", start)
	case !l.spaced && isMemberTarget(l.prevType()):
		l.advance()
		l.emit(DOT, ".", start)
	default:
		l.lexWord(start)
	}
	return nil
}

func (l *Lexer) lexRedirection(start Position) {
	if l.peek(0) == '*' || isDigit(l.peek(0)) {
		l.advance()
	}
	for l.peek(0) == '>' || l.peek(0) == '<' {
		l.advance()
	}
	if l.peek(0) == '&' && (l.peek(1) == '1' || l.peek(1) == '2') {
		l.advanceN(2)
	}
	l.emit(OPERATOR, l.input[start.Offset:l.pos], start)
}

func (l *Lexer) lexWord(start Position) {
	for !l.eof() {
		c := l.peek(0)
		if c == '`' && l.pos+1 < len(l.input) {
			l.advanceN(2)
			continue
		}
		if c < 128 && wordStops[c] {
			break
		}
		l.advance()
	}
	if l.pos == start.Offset {
		// a stop byte that no other rule claimed
		l.advance()
		l.emit(ILLEGAL, l.input[start.Offset:l.pos], start)
		return
	}
	word := l.input[start.Offset:l.pos]
	if numberPattern.MatchString(word) {
		l.emit(NUMBER, word, start)
		return
	}
	l.emit(WORD, word, start)
}

func (l *Lexer) skipSingleQuoted() error {
	start := l.position()
	l.advance()
	for {
		if l.eof() {
			return l.errorf(start, "unterminated string")
		}
		if l.peek(0) == '\'' {
			if l.peek(1) == '\'' {
				l.advanceN(2)
				continue
			}
			l.advance()
			return nil
		}
		l.advance()
	}
}

func (l *Lexer) skipDoubleQuoted() error {
	start := l.position()
	l.advance()
	for {
		if l.eof() {
			return l.errorf(start, "unterminated string")
		}
		switch c := l.peek(0); {
		case c == '`':
			l.advanceN(2)
		case c == '"':
			if l.peek(1) == '"' {
				l.advanceN(2)
				continue
			}
			l.advance()
			return nil
		case c == '$' && l.peek(1) == '(':
			l.advanceN(2)
			if err := l.skipSubExpression(start); err != nil {
				return err
			}
		default:
			l.advance()
		}
	}
}

// skipSubExpression skips the body of a $( ) embedded in a double-quoted
// string, up to and including the matching ')'.
func (l *Lexer) skipSubExpression(start Position) error {
	depth := 1
	for depth > 0 {
		if l.eof() {
			return l.errorf(start, "unterminated sub-expression in string")
		}
		switch l.peek(0) {
		case '(':
			depth++
			l.advance()
		case ')':
			depth--
			l.advance()
		case '\'':
			if err := l.skipSingleQuoted(); err != nil {
				return err
			}
		case '"':
			if err := l.skipDoubleQuoted(); err != nil {
				return err
			}
		default:
			l.advance()
		}
	}
	return nil
}

func isMemberTarget(t TokenType) bool {
	switch t {
	case VARIABLE, RPAREN, RBRACKET, RBRACE, STRING:
		return true
	}
	return false
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '_' || c >= 0x80
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isIdentChar(c byte) bool { return isLetter(c) || isDigit(c) }
