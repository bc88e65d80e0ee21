package psast

import (
	"fmt"
	"os"
	"strings"
)

// ParseError represents an error that occurred while lexing or parsing.
type ParseError struct {
	File    string
	Pos     Position
	Message string
}

// Error formats the parse error with its location.
func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Pos.Line, e.Pos.Column, e.Message)
}

func newParseError(pos Position, format string, args ...interface{}) *ParseError {
	return &ParseError{Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// ParseFile reads and parses the script at path.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data), path)
}

// Parse parses src as a PowerShell script. filename is only used for
// positions in errors and is recorded on the File.
func Parse(src, filename string) (f *File, err error) {
	toks, comments, err := Lex(src)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.File = filename
		}
		return nil, err
	}

	p := &parser{src: src, toks: toks, comments: comments}
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*ParseError)
			if !ok {
				panic(r)
			}
			pe.File = filename
			f, err = nil, pe
		}
	}()

	body := p.parseBlockBody(Position{Line: 1, Column: 1}, EOF)
	return &File{
		Extent:   Extent{Start: Position{Line: 1, Column: 1}, End: p.cur().End, Text: src},
		Name:     filename,
		Body:     body,
		Comments: comments,
	}, nil
}

type parser struct {
	src      string
	toks     []Token
	pos      int
	comments []Comment
}

// ---------------------------------------------------------------------------
// Token helpers
// ---------------------------------------------------------------------------

func (p *parser) cur() Token { return p.toks[p.pos] }

func (p *parser) peekType(k int) TokenType {
	if p.pos+k >= len(p.toks) {
		return EOF
	}
	return p.toks[p.pos+k].Type
}

func (p *parser) advance() Token {
	tok := p.toks[p.pos]
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *parser) at(types ...TokenType) bool {
	t := p.cur().Type
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

func (p *parser) atKeyword(words ...string) bool {
	tok := p.cur()
	if tok.Type != WORD {
		return false
	}
	for _, w := range words {
		if strings.EqualFold(tok.Value, w) {
			return true
		}
	}
	return false
}

func (p *parser) atOperator(ops ...string) bool {
	tok := p.cur()
	if tok.Type != OPERATOR {
		return false
	}
	for _, op := range ops {
		if tok.Value == op {
			return true
		}
	}
	return false
}

func (p *parser) skipNewlines() {
	for p.at(NEWLINE) {
		p.advance()
	}
}

func (p *parser) skipTerminators() {
	for p.at(NEWLINE, SEMI) {
		p.advance()
	}
}

func (p *parser) expect(t TokenType, context string) Token {
	if !p.at(t) {
		p.errorf(p.cur().Pos, "expected %s %s, found %s", t, context, describe(p.cur()))
	}
	return p.advance()
}

func (p *parser) errorf(pos Position, format string, args ...interface{}) {
	panic(newParseError(pos, format, args...))
}

// prevEnd returns the end of the last consumed token that is not a newline.
func (p *parser) prevEnd(fallback Position) Position {
	for i := p.pos - 1; i >= 0; i-- {
		if p.toks[i].Type != NEWLINE {
			return p.toks[i].End
		}
	}
	return fallback
}

func (p *parser) extentFrom(start Position) Extent {
	end := p.prevEnd(start)
	if end.Offset < start.Offset {
		end = start
	}
	return Extent{Start: start, End: end, Text: p.src[start.Offset:end.Offset]}
}

func describe(tok Token) string {
	if tok.Type == EOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", tok.Raw)
}

// ---------------------------------------------------------------------------
// Blocks and statements
// ---------------------------------------------------------------------------

// parseBlockBody parses statements up to (not including) closer.
func (p *parser) parseBlockBody(start Position, closer TokenType) *ScriptBlock {
	sb := &ScriptBlock{}
	p.skipTerminators()
	sb.Param = p.tryParamBlock()
	for {
		p.skipTerminators()
		if p.at(closer) {
			break
		}
		if p.at(EOF) {
			p.errorf(p.cur().Pos, "missing closing %s", closerName(closer))
		}
		sb.Statements = append(sb.Statements, p.parseStatement())
		if !p.at(NEWLINE, SEMI, closer, EOF) {
			p.errorf(p.cur().Pos, "unexpected %s", describe(p.cur()))
		}
	}
	sb.Extent = p.extentFrom(start)
	return sb
}

func closerName(t TokenType) string {
	switch t {
	case RBRACE:
		return "'}'"
	case RPAREN:
		return "')'"
	case RBRACKET:
		return "']'"
	}
	return t.String()
}

// parseBraced parses { statements }.
func (p *parser) parseBraced(context string) *ScriptBlock {
	p.skipNewlines()
	open := p.expect(LBRACE, context)
	body := p.parseBlockBody(open.Pos, RBRACE)
	p.expect(RBRACE, context)
	body.Extent = p.extentFrom(open.Pos)
	return body
}

// parseParenthesized parses ( statements ) as a grouping expression.
func (p *parser) parseParenthesized(context string) *SubExpr {
	p.skipNewlines()
	open := p.expect(LPAREN, context)
	body := p.parseBlockBody(p.cur().Pos, RPAREN)
	p.expect(RPAREN, context)
	return &SubExpr{Extent: p.extentFrom(open.Pos), Body: body}
}

func (p *parser) parseStatement() Statement {
	tok := p.cur()
	if tok.Type == WORD && len(tok.Value) > 1 && tok.Value[0] == ':' {
		p.advance() // loop label
		p.skipNewlines()
		return p.parseStatement()
	}
	if tok.Type == WORD {
		next := p.peekType(1)
		switch strings.ToLower(tok.Value) {
		case "function", "filter", "workflow":
			if next == WORD || next == NUMBER {
				return p.parseFunction()
			}
		case "if":
			return p.parseIf()
		case "foreach":
			if next == LPAREN || next == PARAMETER {
				return p.parseLoop()
			}
		case "for", "while":
			if next == LPAREN {
				return p.parseLoop()
			}
		case "do":
			if next == LBRACE || next == NEWLINE {
				return p.parseDo()
			}
		case "switch":
			if next == LPAREN || next == PARAMETER {
				return p.parseSwitch()
			}
		case "try":
			if next == LBRACE || next == NEWLINE {
				return p.parseTry()
			}
		case "trap":
			return p.parseTrap()
		case "return", "throw", "exit", "break", "continue":
			return p.parseFlow()
		case "begin", "process", "end", "dynamicparam", "clean":
			if next == LBRACE {
				return p.parseNamedBlock()
			}
		case "class", "enum":
			if next == WORD {
				return p.parseTypeDefinition()
			}
		}
	}
	return p.parsePipelineStatement()
}

func (p *parser) parseFunction() *FunctionDef {
	startIdx := p.pos
	kw := p.advance()
	name := p.advance()
	fn := &FunctionDef{
		Keyword: strings.ToLower(kw.Value),
		Name:    stripScope(name.Value),
	}
	p.skipNewlines()
	if p.at(LPAREN) {
		open := p.advance()
		params := p.parseParameterList(RPAREN)
		p.expect(RPAREN, "after function parameters")
		fn.Params = &ParamBlock{Extent: p.extentFrom(open.Pos), Parameters: params}
	}
	fn.Body = p.parseBraced("for function body")
	fn.Extent = p.extentFrom(kw.Pos)
	fn.Help = p.helpFor(fn, startIdx)
	return fn
}

// stripScope removes a scope qualifier such as global: from a function name.
func stripScope(name string) string {
	if i := strings.Index(name, ":"); i >= 0 {
		switch strings.ToLower(name[:i]) {
		case "global", "script", "local", "private":
			return name[i+1:]
		}
	}
	return name
}

func (p *parser) parseIf() *Control {
	start := p.advance().Pos
	ctrl := &Control{Keyword: "if"}
	cond := p.parseParenthesized("after if")
	body := p.parseBraced("for if body")
	ctrl.Clauses = append(ctrl.Clauses, &Clause{Extent: p.extentFrom(start), Keyword: "if", Condition: cond, Body: body})
	for {
		save := p.pos
		p.skipNewlines()
		clauseStart := p.cur().Pos
		if p.atKeyword("elseif") {
			p.advance()
			cond := p.parseParenthesized("after elseif")
			body := p.parseBraced("for elseif body")
			ctrl.Clauses = append(ctrl.Clauses, &Clause{Extent: p.extentFrom(clauseStart), Keyword: "elseif", Condition: cond, Body: body})
			continue
		}
		if p.atKeyword("else") {
			p.advance()
			body := p.parseBraced("for else body")
			ctrl.Clauses = append(ctrl.Clauses, &Clause{Extent: p.extentFrom(clauseStart), Keyword: "else", Body: body})
			break
		}
		p.pos = save
		break
	}
	ctrl.Extent = p.extentFrom(start)
	return ctrl
}

// parseLoop handles foreach, for and while, which share the
// keyword (condition) { body } shape.
func (p *parser) parseLoop() *Control {
	kw := p.advance()
	keyword := strings.ToLower(kw.Value)
	for p.at(PARAMETER) {
		p.advance() // foreach -Parallel
	}
	var cond *SubExpr
	if keyword == "foreach" {
		cond = p.parseForeachHeader()
	} else {
		cond = p.parseParenthesized("after " + keyword)
	}
	body := p.parseBraced("for " + keyword + " body")
	clause := &Clause{Extent: p.extentFrom(kw.Pos), Keyword: keyword, Condition: cond, Body: body}
	return &Control{Extent: p.extentFrom(kw.Pos), Keyword: keyword, Clauses: []*Clause{clause}}
}

// parseForeachHeader parses ($item in <pipeline>). The collection is a
// pipeline, so a bare command name there is an invocation. Headers that do
// not start with a plain variable fall back to a grouping expression.
func (p *parser) parseForeachHeader() *SubExpr {
	save := p.pos
	p.skipNewlines()
	open := p.expect(LPAREN, "after foreach")
	p.skipNewlines()
	if !p.at(VARIABLE) {
		p.pos = save
		return p.parseParenthesized("after foreach")
	}
	tok := p.advance()
	loopVar := &VariableRef{Extent: p.extentFrom(tok.Pos), Name: tok.Value}
	p.skipNewlines()
	if !p.atKeyword("in") {
		p.errorf(p.cur().Pos, "expected 'in' after foreach variable, found %s", describe(p.cur()))
	}
	p.advance()
	p.skipNewlines()
	source := p.parsePipelineStatement()
	p.skipNewlines()
	body := &ScriptBlock{
		Extent: p.extentFrom(tok.Pos),
		Statements: []Statement{
			&Pipeline{Extent: loopVar.Extent, Elements: []PipelineElement{&ExprElement{Extent: loopVar.Extent, Expr: loopVar}}},
			source,
		},
	}
	p.expect(RPAREN, "after foreach")
	return &SubExpr{Extent: p.extentFrom(open.Pos), Body: body}
}

func (p *parser) parseDo() *Control {
	kw := p.advance()
	body := p.parseBraced("for do body")
	p.skipNewlines()
	if !p.atKeyword("while", "until") {
		p.errorf(p.cur().Pos, "expected while or until after do block, found %s", describe(p.cur()))
	}
	until := strings.ToLower(p.advance().Value)
	cond := p.parseParenthesized("after " + until)
	clause := &Clause{Extent: p.extentFrom(kw.Pos), Keyword: "do" + until, Condition: cond, Body: body}
	return &Control{Extent: p.extentFrom(kw.Pos), Keyword: "do", Clauses: []*Clause{clause}}
}

func (p *parser) parseSwitch() *Control {
	kw := p.advance()
	ctrl := &Control{Keyword: "switch"}
	var subject Expr
	for p.at(PARAMETER) {
		opt := p.advance()
		if strings.EqualFold(opt.Value, "file") {
			subject = p.parseCommandValue()
		}
	}
	p.skipNewlines()
	if p.at(LPAREN) {
		subject = p.parseParenthesized("after switch")
	}
	p.skipNewlines()
	open := p.expect(LBRACE, "for switch body")
	if subject != nil {
		ctrl.Clauses = append(ctrl.Clauses, &Clause{Extent: p.extentFrom(kw.Pos), Keyword: "switch", Condition: subject, Body: &ScriptBlock{Extent: Extent{Start: open.Pos, End: open.Pos}}})
	}
	for {
		p.skipTerminators()
		if p.at(RBRACE) {
			break
		}
		if p.at(EOF) {
			p.errorf(p.cur().Pos, "missing closing '}' for switch body")
		}
		clauseStart := p.cur().Pos
		pattern := p.parseOperand()
		body := p.parseBraced("for switch clause")
		ctrl.Clauses = append(ctrl.Clauses, &Clause{Extent: p.extentFrom(clauseStart), Keyword: pattern.Source(), Condition: pattern, Body: body})
	}
	p.advance()
	ctrl.Extent = p.extentFrom(kw.Pos)
	return ctrl
}

func (p *parser) parseTry() *Control {
	kw := p.advance()
	ctrl := &Control{Keyword: "try"}
	body := p.parseBraced("for try body")
	ctrl.Clauses = append(ctrl.Clauses, &Clause{Extent: p.extentFrom(kw.Pos), Keyword: "try", Body: body})
	for {
		save := p.pos
		p.skipNewlines()
		clauseStart := p.cur().Pos
		if p.atKeyword("catch") {
			p.advance()
			for p.at(LBRACKET, COMMA, NEWLINE) {
				if p.at(LBRACKET) {
					p.skipBrackets()
				} else {
					p.advance()
				}
			}
			body := p.parseBraced("for catch body")
			ctrl.Clauses = append(ctrl.Clauses, &Clause{Extent: p.extentFrom(clauseStart), Keyword: "catch", Body: body})
			continue
		}
		if p.atKeyword("finally") {
			p.advance()
			body := p.parseBraced("for finally body")
			ctrl.Clauses = append(ctrl.Clauses, &Clause{Extent: p.extentFrom(clauseStart), Keyword: "finally", Body: body})
			break
		}
		p.pos = save
		break
	}
	if len(ctrl.Clauses) == 1 {
		p.errorf(kw.Pos, "try block requires a catch or finally block")
	}
	ctrl.Extent = p.extentFrom(kw.Pos)
	return ctrl
}

func (p *parser) parseTrap() *Control {
	kw := p.advance()
	p.skipNewlines()
	if p.at(LBRACKET) {
		p.skipBrackets()
	}
	body := p.parseBraced("for trap body")
	clause := &Clause{Extent: p.extentFrom(kw.Pos), Keyword: "trap", Body: body}
	return &Control{Extent: p.extentFrom(kw.Pos), Keyword: "trap", Clauses: []*Clause{clause}}
}

func (p *parser) parseNamedBlock() *Control {
	kw := p.advance()
	keyword := strings.ToLower(kw.Value)
	body := p.parseBraced("for " + keyword + " block")
	clause := &Clause{Extent: p.extentFrom(kw.Pos), Keyword: keyword, Body: body}
	return &Control{Extent: p.extentFrom(kw.Pos), Keyword: keyword, Clauses: []*Clause{clause}}
}

// parseTypeDefinition skips class and enum definitions. Their members use
// syntax outside the analyzed subset.
func (p *parser) parseTypeDefinition() *Control {
	kw := p.advance()
	for !p.at(LBRACE, EOF) {
		p.advance()
	}
	p.expect(LBRACE, "for "+strings.ToLower(kw.Value)+" body")
	depth := 1
	for depth > 0 {
		switch p.advance().Type {
		case LBRACE, AT_LBRACE:
			depth++
		case RBRACE:
			depth--
		case EOF:
			p.errorf(kw.Pos, "missing closing '}' for %s", strings.ToLower(kw.Value))
		}
	}
	return &Control{Extent: p.extentFrom(kw.Pos), Keyword: strings.ToLower(kw.Value)}
}

func (p *parser) parseFlow() *Flow {
	kw := p.advance()
	flow := &Flow{Keyword: strings.ToLower(kw.Value)}
	if flow.Keyword == "break" || flow.Keyword == "continue" {
		if p.at(WORD) {
			p.advance() // loop label
		}
	} else if !p.atStatementEnd() {
		flow.Value = p.parsePipeline()
	}
	flow.Extent = p.extentFrom(kw.Pos)
	return flow
}

func (p *parser) atStatementEnd() bool {
	return p.at(NEWLINE, SEMI, RBRACE, RPAREN, EOF)
}

func (p *parser) parsePipelineStatement() Statement {
	start := p.cur().Pos
	if p.isAssignment() {
		target := p.parseExpr(false)
		op := p.expect(ASSIGN, "in assignment")
		p.skipNewlines()
		value := p.parseAssignmentValue()
		return &Assignment{Extent: p.extentFrom(start), Target: target, Op: op.Value, Value: value}
	}

	first := p.parsePipeline()
	if !p.atOperator("&&", "||") {
		return first
	}
	chain := &Control{Keyword: "chain"}
	chain.Clauses = append(chain.Clauses, &Clause{Extent: first.Extent, Keyword: "chain", Body: blockOf(first)})
	for p.atOperator("&&", "||") {
		op := p.advance()
		p.skipNewlines()
		next := p.parsePipeline()
		chain.Clauses = append(chain.Clauses, &Clause{Extent: next.Extent, Keyword: op.Value, Body: blockOf(next)})
	}
	chain.Extent = p.extentFrom(start)
	return chain
}

func blockOf(s Statement) *ScriptBlock {
	return &ScriptBlock{Extent: Extent{Start: s.Pos(), Text: s.Source()}, Statements: []Statement{s}}
}

// isAssignment scans ahead for an assignment operator at bracket depth zero
// before the end of the statement.
func (p *parser) isAssignment() bool {
	switch p.cur().Type {
	case VARIABLE, LBRACKET, LPAREN:
	default:
		return false
	}
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		switch p.toks[i].Type {
		case LPAREN, LBRACKET, LBRACE, AT_LBRACE, AT_LPAREN, DOLLAR_LPAREN:
			depth++
		case RPAREN, RBRACKET, RBRACE:
			depth--
			if depth < 0 {
				return false
			}
		case ASSIGN:
			if depth == 0 {
				return true
			}
		case NEWLINE, SEMI, PIPE, EOF:
			if depth == 0 {
				return false
			}
		}
	}
	return false
}

func (p *parser) parseAssignmentValue() Statement {
	if p.atKeyword("if", "switch", "foreach", "for", "while", "do", "try") {
		return p.parseStatement()
	}
	return p.parsePipelineStatement()
}

func (p *parser) parsePipeline() *Pipeline {
	start := p.cur().Pos
	pl := &Pipeline{}
	for {
		pl.Elements = append(pl.Elements, p.parsePipelineElement())
		if !p.at(PIPE) {
			break
		}
		p.advance()
		p.skipNewlines()
	}
	pl.Extent = p.extentFrom(start)
	return pl
}

func (p *parser) parsePipelineElement() PipelineElement {
	tok := p.cur()
	switch tok.Type {
	case AMP, DOT:
		p.advance()
		cmd := &Command{Invoke: tok.Value, Name: p.parseOperandPostfix(p.parseOperand(), false)}
		p.parseCommandElements(cmd)
		cmd.Extent = p.extentFrom(tok.Pos)
		return cmd
	case WORD:
		if !isDigit(tok.Value[0]) {
			p.advance()
			cmd := &Command{Name: &Literal{Extent: p.extentFrom(tok.Pos), Kind: LiteralWord, Value: tok.Value}}
			p.parseCommandElements(cmd)
			cmd.Extent = p.extentFrom(tok.Pos)
			return cmd
		}
	}
	expr := p.parseExpr(false)
	return &ExprElement{Extent: p.extentFrom(tok.Pos), Expr: expr}
}

// ---------------------------------------------------------------------------
// Command arguments
// ---------------------------------------------------------------------------

func (p *parser) atCommandEnd() bool {
	return p.at(NEWLINE, SEMI, PIPE, RPAREN, RBRACE, RBRACKET, EOF) || p.atOperator("&&", "||")
}

func (p *parser) atRedirection() bool {
	tok := p.cur()
	if tok.Type != OPERATOR || tok.Value == "" {
		return false
	}
	return strings.ContainsAny(tok.Value, "<>")
}

// startsValue reports whether the current token can be the value of a
// preceding -Name parameter. A parameter followed by another parameter, a
// splat, a redirection or the end of the command is a switch.
func (p *parser) startsValue() bool {
	return !p.atCommandEnd() && !p.at(PARAMETER, SPLAT) && !p.atRedirection()
}

func (p *parser) parseCommandElements(cmd *Command) {
	for !p.atCommandEnd() {
		tok := p.cur()
		switch {
		case tok.Type == PARAMETER:
			p.advance()
			param := &CommandParameter{Name: tok.Value, Colon: tok.Colon}
			if tok.Colon || p.startsValue() {
				if p.atCommandEnd() {
					p.errorf(p.cur().Pos, "missing value for parameter -%s", tok.Value)
				}
				param.Arg = p.parseCommandValue()
			}
			param.Extent = p.extentFrom(tok.Pos)
			cmd.Elements = append(cmd.Elements, param)
		case tok.Type == SPLAT:
			p.advance()
			ref := &VariableRef{Extent: p.extentFrom(tok.Pos), Name: tok.Value, Splatted: true}
			cmd.Elements = append(cmd.Elements, &CommandArgument{Extent: ref.Extent, Value: ref})
		case p.atRedirection():
			p.advance()
			r := &Redirection{Op: tok.Value}
			if !strings.Contains(tok.Value, "&") && p.startsValue() {
				r.Target = p.parseCommandOperand()
			}
			r.Extent = p.extentFrom(tok.Pos)
			cmd.Elements = append(cmd.Elements, r)
		default:
			value := p.parseCommandValue()
			cmd.Elements = append(cmd.Elements, &CommandArgument{Extent: p.extentFrom(tok.Pos), Value: value})
		}
	}
}

// parseCommandValue parses one argument in command mode, including
// comma-separated array arguments such as a,b,c.
func (p *parser) parseCommandValue() Expr {
	start := p.cur().Pos
	first := p.parseCommandOperand()
	if !p.at(COMMA) {
		return first
	}
	parts := []Expr{first}
	for p.at(COMMA) {
		p.advance()
		p.skipNewlines()
		parts = append(parts, p.parseCommandOperand())
	}
	return &Compound{Extent: p.extentFrom(start), Parts: parts}
}

func (p *parser) parseCommandOperand() Expr {
	return p.parseOperandPostfix(p.parseOperand(), true)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *parser) atExprEnd(noComma bool) bool {
	if p.at(NEWLINE, SEMI, PIPE, RPAREN, RBRACE, RBRACKET, ASSIGN, EOF) {
		return true
	}
	if noComma && p.at(COMMA) {
		return true
	}
	return p.atOperator("&&", "||")
}

// parseExpr parses an expression in expression mode. Operators are kept as
// Opaque parts; only the structure needed to find nested commands and
// literals is retained.
func (p *parser) parseExpr(noComma bool) Expr {
	start := p.cur().Pos
	if p.atExprEnd(noComma) {
		p.errorf(start, "expected expression, found %s", describe(p.cur()))
	}
	parts := []Expr{p.parseOperandPostfix(p.parseOperand(), false)}
	for !p.atExprEnd(noComma) {
		if isOperatorPart(parts[len(parts)-1]) {
			p.skipNewlines()
			if p.atExprEnd(noComma) {
				break
			}
		}
		parts = append(parts, p.parseOperandPostfix(p.parseOperand(), false))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return &Compound{Extent: p.extentFrom(start), Parts: parts}
}

func isOperatorPart(e Expr) bool {
	_, ok := e.(*Opaque)
	return ok
}

func (p *parser) parseOperand() Expr {
	tok := p.cur()
	switch tok.Type {
	case STRING:
		p.advance()
		lit := &Literal{Extent: p.extentFrom(tok.Pos), Kind: LiteralString, Value: tok.Value}
		if strings.HasPrefix(tok.Raw, "@") {
			lit.Kind = LiteralHereString
		}
		return lit
	case NUMBER:
		p.advance()
		return &Literal{Extent: p.extentFrom(tok.Pos), Kind: LiteralNumber, Value: tok.Value}
	case WORD:
		p.advance()
		return &Literal{Extent: p.extentFrom(tok.Pos), Kind: LiteralWord, Value: tok.Value}
	case VARIABLE:
		p.advance()
		return &VariableRef{Extent: p.extentFrom(tok.Pos), Name: tok.Value}
	case SPLAT:
		p.advance()
		return &VariableRef{Extent: p.extentFrom(tok.Pos), Name: tok.Value, Splatted: true}
	case AT_LBRACE:
		return p.parseHash()
	case AT_LPAREN:
		p.advance()
		body := p.parseBlockBody(p.cur().Pos, RPAREN)
		p.expect(RPAREN, "for array expression")
		return &ArrayLiteral{Extent: p.extentFrom(tok.Pos), Body: body}
	case DOLLAR_LPAREN:
		p.advance()
		body := p.parseBlockBody(p.cur().Pos, RPAREN)
		p.expect(RPAREN, "for sub-expression")
		return &SubExpr{Extent: p.extentFrom(tok.Pos), Dollar: true, Body: body}
	case LPAREN:
		return p.parseParenthesized("for grouping")
	case LBRACE:
		body := p.parseBraced("for script block")
		return &ScriptBlockExpr{Extent: body.Extent, Body: body}
	case LBRACKET:
		p.skipBrackets()
		return &Opaque{Extent: p.extentFrom(tok.Pos)}
	case PARAMETER, OPERATOR, COMMA, DOT, AMP, ASSIGN, ILLEGAL:
		p.advance()
		return &Opaque{Extent: p.extentFrom(tok.Pos)}
	}
	p.errorf(tok.Pos, "unexpected %s", describe(tok))
	return nil
}

// parseOperandPostfix consumes member access, indexing, invocation
// arguments and (in command mode) adjacent tokens that form one argument.
func (p *parser) parseOperandPostfix(base Expr, commandMode bool) Expr {
	start := base.Pos()
	parts := []Expr{base}
	for !p.cur().Spaced {
		tok := p.cur()
		switch {
		case tok.Type == DOT || (tok.Type == OPERATOR && tok.Value == "::"):
			p.advance()
			if p.at(WORD, VARIABLE, STRING) && !p.cur().Spaced {
				p.advance()
			}
			parts = append(parts, &Opaque{Extent: p.extentFrom(tok.Pos)})
		case tok.Type == LBRACKET:
			p.advance()
			p.skipNewlines()
			if !p.at(RBRACKET) {
				parts = append(parts, p.parseExpr(false))
			}
			p.skipNewlines()
			p.expect(RBRACKET, "for index")
		case tok.Type == LPAREN:
			parts = append(parts, p.parseParenthesized("for arguments"))
		case commandMode && (tok.Type == VARIABLE || tok.Type == STRING || tok.Type == WORD || tok.Type == NUMBER || tok.Type == DOLLAR_LPAREN):
			parts = append(parts, p.parseOperand())
		default:
			return p.wrap(start, parts)
		}
	}
	return p.wrap(start, parts)
}

func (p *parser) wrap(start Position, parts []Expr) Expr {
	if len(parts) == 1 {
		return parts[0]
	}
	return &Compound{Extent: p.extentFrom(start), Parts: parts}
}

func (p *parser) parseHash() *HashLiteral {
	open := p.advance()
	h := &HashLiteral{}
	for {
		p.skipTerminators()
		if p.at(RBRACE) {
			break
		}
		if p.at(EOF) {
			p.errorf(open.Pos, "missing closing '}' for hashtable")
		}
		entryStart := p.cur().Pos
		key := p.parseOperandPostfix(p.parseOperand(), false)
		p.skipNewlines()
		if !p.at(ASSIGN) || p.cur().Value != "=" {
			p.errorf(p.cur().Pos, "expected '=' after hashtable key, found %s", describe(p.cur()))
		}
		p.advance()
		p.skipNewlines()
		value := p.parseAssignmentValue()
		h.Entries = append(h.Entries, &HashEntry{Extent: p.extentFrom(entryStart), Key: key, Value: value})
		if !p.at(NEWLINE, SEMI, RBRACE) {
			p.errorf(p.cur().Pos, "unexpected %s in hashtable", describe(p.cur()))
		}
	}
	p.advance()
	h.Extent = p.extentFrom(open.Pos)
	return h
}

// skipBrackets consumes a balanced [ ... ] group such as a type literal.
func (p *parser) skipBrackets() {
	open := p.expect(LBRACKET, "")
	depth := 1
	for depth > 0 {
		switch p.advance().Type {
		case LBRACKET:
			depth++
		case RBRACKET:
			depth--
		case EOF:
			p.errorf(open.Pos, "missing closing ']'")
		}
	}
}

// ---------------------------------------------------------------------------
// Parameter declarations
// ---------------------------------------------------------------------------

// tryParamBlock parses an optional [attributes] param(...) block at the
// start of a script block. It restores the position when none is present.
func (p *parser) tryParamBlock() *ParamBlock {
	save := p.pos
	start := p.cur().Pos
	var attrs []*Attribute
	for p.at(LBRACKET) {
		a := p.tryAttribute()
		if a == nil {
			p.pos = save
			return nil
		}
		attrs = append(attrs, a)
		p.skipNewlines()
	}
	if !p.atKeyword("param") || p.peekType(1) != LPAREN {
		p.pos = save
		return nil
	}
	p.advance()
	p.advance()
	params := p.parseParameterList(RPAREN)
	p.expect(RPAREN, "after param block")
	return &ParamBlock{Extent: p.extentFrom(start), Attributes: attrs, Parameters: params}
}

// tryAttribute parses [Name], [Name[]] or [Name(args)]. It returns nil
// without reporting an error when the brackets do not hold an attribute.
func (p *parser) tryAttribute() *Attribute {
	open := p.advance()
	if !p.at(WORD) {
		return nil
	}
	attr := &Attribute{Name: p.advance().Value}
	for p.at(LBRACKET) && !p.cur().Spaced {
		p.skipBrackets()
	}
	if p.at(LPAREN) {
		p.advance()
		p.parseAttributeArgs(attr)
		p.expect(RPAREN, "after attribute arguments")
	} else {
		attr.TypeOnly = true
	}
	if !p.at(RBRACKET) {
		return nil
	}
	p.advance()
	attr.Extent = p.extentFrom(open.Pos)
	return attr
}

func (p *parser) parseAttributeArgs(attr *Attribute) {
	for {
		p.skipNewlines()
		if p.at(RPAREN, EOF) {
			return
		}
		if p.at(COMMA) {
			p.advance()
			continue
		}
		if p.at(WORD) && p.peekType(1) == ASSIGN {
			name := p.advance().Value
			p.advance()
			p.skipNewlines()
			value := p.parseExpr(true)
			attr.Named = append(attr.Named, &NamedArg{Name: name, Value: value.Source()})
			continue
		}
		if p.at(WORD) {
			switch p.peekType(1) {
			case COMMA, RPAREN, NEWLINE:
				attr.Named = append(attr.Named, &NamedArg{Name: p.advance().Value, Value: "$true"})
				continue
			}
		}
		attr.Positional = append(attr.Positional, p.parseExpr(true).Source())
	}
}

func (p *parser) parseParameterList(closer TokenType) []*Parameter {
	var params []*Parameter
	for {
		p.skipNewlines()
		if p.at(COMMA) {
			p.advance()
			continue
		}
		if p.at(closer) || p.at(EOF) {
			return params
		}
		start := p.cur().Pos
		var attrs []*Attribute
		for p.at(LBRACKET) {
			a := p.tryAttribute()
			if a == nil {
				p.errorf(start, "invalid parameter attribute")
			}
			attrs = append(attrs, a)
			p.skipNewlines()
		}
		name := p.expect(VARIABLE, "for parameter name")
		param := &Parameter{Name: name.Value, Attributes: attrs}
		p.skipNewlines()
		if p.at(ASSIGN) && p.cur().Value == "=" {
			p.advance()
			p.skipNewlines()
			param.Default = p.parseExpr(true)
		}
		param.Extent = p.extentFrom(start)
		params = append(params, param)
	}
}

// ---------------------------------------------------------------------------
// Comment-based help
// ---------------------------------------------------------------------------

// helpFor returns the comment-based help of fn: a help comment directly
// before the function keyword (at most one blank line between), or the first
// help comment at the start of its body.
func (p *parser) helpFor(fn *FunctionDef, keywordIdx int) *Comment {
	prevEnd := -1
	for i := keywordIdx - 1; i >= 0; i-- {
		if p.toks[i].Type != NEWLINE {
			prevEnd = p.toks[i].End.Offset
			break
		}
	}
	var before *Comment
	for i := range p.comments {
		c := &p.comments[i]
		if c.Pos.Offset > prevEnd && c.End.Offset <= fn.Start.Offset && c.End.Line >= fn.Start.Line-2 && isHelp(c.Text) {
			before = c
		}
	}
	if before != nil {
		return before
	}

	bodyStart := fn.Body.Start.Offset
	bodyEnd := fn.Body.End.Offset
	if fn.Body.Param != nil {
		bodyEnd = fn.Body.Param.Start.Offset
	} else if len(fn.Body.Statements) > 0 {
		bodyEnd = fn.Body.Statements[0].Pos().Offset
	}
	for i := range p.comments {
		c := &p.comments[i]
		if c.Pos.Offset > bodyStart && c.End.Offset <= bodyEnd && isHelp(c.Text) {
			return c
		}
	}
	return nil
}

func isHelp(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 1 && line[0] == '.' && isLetter(line[1]) {
			return true
		}
	}
	return false
}
