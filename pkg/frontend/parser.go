package frontend

import (
	"fmt"

	"rmcc/pkg/diag"
)

// parser is a conventional hand-written recursive-descent parser walking the
// flat Token stream Lex produces — the same split the teacher's own jack
// package has between goparsec tokenizing and a hand-built Statement/
// Expression AST (jack.go/lowering.go), adopted here because this language's
// statements nest (IF/WHILE/FOR bodies recurse), which the teacher's
// goparsec grammars never needed to express.
type parser struct {
	toks []Token
	pos  int
	sink *diag.Sink
}

// Parse turns a token stream into a Program. Syntax errors are reported
// through sink and Parse returns a non-nil error; callers should still check
// sink.Validate() rather than relying solely on Parse's own return, per the
// diagnostic-sink discipline of spec.md §7.
func Parse(toks []Token, sink *diag.Sink) (*Program, error) {
	p := &parser{toks: toks, sink: sink}
	prog, err := p.parseProgram()
	if err != nil {
		return nil, err
	}
	return prog, nil
}

func (p *parser) parseProgram() (*Program, error) {
	if err := p.expectKeyword("DECLARE"); err != nil {
		return nil, err
	}
	decls, err := p.parseDecls()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("BEGIN"); err != nil {
		return nil, err
	}
	body, err := p.parseStmts()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("END"); err != nil {
		return nil, err
	}
	return &Program{Decls: decls, Body: body}, nil
}

func (p *parser) parseDecls() ([]Decl, error) {
	var decls []Decl
	for {
		d, err := p.parseDecl()
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		return decls, nil
	}
}

func (p *parser) parseDecl() (Decl, error) {
	name, pos, err := p.expectIdent()
	if err != nil {
		return Decl{}, err
	}
	if !p.atSymbol("(") {
		return Decl{Name: name, Pos: pos}, nil
	}
	p.advance()
	lo, _, err := p.expectNumber()
	if err != nil {
		return Decl{}, err
	}
	if err := p.expectSymbol(":"); err != nil {
		return Decl{}, err
	}
	hi, _, err := p.expectNumber()
	if err != nil {
		return Decl{}, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return Decl{}, err
	}
	return Decl{Name: name, Array: true, Lo: lo, Hi: hi, Pos: pos}, nil
}

// parseStmts parses statements back to back until one of the enclosing
// construct's own closing keywords is seen. ';' is a terminator of simple
// statements (assign/read/write), consumed by those statements themselves,
// not a separator between every pair of statements — IF/WHILE/FOR already
// end unambiguously in their own ENDIF/ENDWHILE/ENDFOR keyword, so nothing
// needs to separate one of those from the statement that follows it.
func (p *parser) parseStmts() ([]Stmt, error) {
	var stmts []Stmt
	for !p.atStmtTerminator() {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func (p *parser) atStmtTerminator() bool {
	for _, kw := range []string{"ELSE", "ENDIF", "ENDWHILE", "ENDFOR", "END"} {
		if p.atKeyword(kw) {
			return true
		}
	}
	return p.pos >= len(p.toks)
}

func (p *parser) parseStmt() (Stmt, error) {
	switch {
	case p.atKeyword("IF"):
		return p.parseIf()
	case p.atKeyword("WHILE"):
		return p.parseWhile()
	case p.atKeyword("FOR"):
		return p.parseFor()
	case p.atKeyword("READ"):
		return p.parseRead()
	case p.atKeyword("WRITE"):
		return p.parseWrite()
	default:
		return p.parseAssign()
	}
}

func (p *parser) parseIf() (Stmt, error) {
	pos := p.here()
	p.advance() // IF
	cond, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("THEN"); err != nil {
		return nil, err
	}
	then, err := p.parseStmts()
	if err != nil {
		return nil, err
	}
	var els []Stmt
	if p.atKeyword("ELSE") {
		p.advance()
		els, err = p.parseStmts()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("ENDIF"); err != nil {
		return nil, err
	}
	return IfStmt{Cond: cond, Then: then, Else: els, Pos: pos}, nil
}

func (p *parser) parseWhile() (Stmt, error) {
	pos := p.here()
	p.advance() // WHILE
	cond, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("DO"); err != nil {
		return nil, err
	}
	body, err := p.parseStmts()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ENDWHILE"); err != nil {
		return nil, err
	}
	return WhileStmt{Cond: cond, Body: body, Pos: pos}, nil
}

func (p *parser) parseFor() (Stmt, error) {
	pos := p.here()
	p.advance() // FOR
	iter, _, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	from, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	downTo := false
	switch {
	case p.atKeyword("TO"):
		p.advance()
	case p.atKeyword("DOWNTO"):
		downTo = true
		p.advance()
	default:
		return nil, p.errorf("expected TO or DOWNTO")
	}
	to, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("DO"); err != nil {
		return nil, err
	}
	body, err := p.parseStmts()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ENDFOR"); err != nil {
		return nil, err
	}
	return ForStmt{Iterator: iter, From: from, To: to, DownTo: downTo, Body: body, Pos: pos}, nil
}

func (p *parser) parseRead() (Stmt, error) {
	pos := p.here()
	p.advance() // READ
	v, err := p.parseIdentifierExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}
	return ReadStmt{Target: v, Pos: pos}, nil
}

func (p *parser) parseWrite() (Stmt, error) {
	pos := p.here()
	p.advance() // WRITE
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}
	return WriteStmt{Value: v, Pos: pos}, nil
}

func (p *parser) parseAssign() (Stmt, error) {
	target, err := p.parseIdentifierExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(":="); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}
	return AssignStmt{Target: target, Value: value, Pos: target.Pos}, nil
}

func (p *parser) parseIdentifierExpr() (VarExpr, error) {
	name, pos, err := p.expectIdent()
	if err != nil {
		return VarExpr{}, err
	}
	if !p.atSymbol("(") {
		return VarExpr{Name: name, Pos: pos}, nil
	}
	p.advance()
	idx, err := p.parseValue()
	if err != nil {
		return VarExpr{}, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return VarExpr{}, err
	}
	return VarExpr{Name: name, Index: idx, Pos: pos}, nil
}

func (p *parser) parseValue() (Expr, error) {
	if p.atKind(TokNumber) {
		tok := p.here2()
		p.advance()
		return NumberExpr{Value: parseIntLiteral(tok.Text), Pos: Pos{tok.Line, tok.Col}}, nil
	}
	v, err := p.parseIdentifierExpr()
	if err != nil {
		return nil, err
	}
	return v, nil
}

// parseExpr parses a value, optionally followed by one binary operator and
// a second value — the flat, non-nesting arithmetic grammar of spec.md's
// source language (no operator precedence to climb: expressions are never
// more than two operands deep).
func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	op, ok := p.peekArithOp()
	if !ok {
		return left, nil
	}
	pos := p.here()
	p.advance()
	right, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return BinaryExpr{Op: op, Left: left, Right: right, Pos: pos}, nil
}

func (p *parser) parseCond() (Cond, error) {
	left, err := p.parseValue()
	if err != nil {
		return Cond{}, err
	}
	op, ok := p.peekRelOp()
	if !ok {
		return Cond{}, p.errorf("expected a relational operator")
	}
	pos := p.here()
	p.advance()
	right, err := p.parseValue()
	if err != nil {
		return Cond{}, err
	}
	return Cond{Op: op, Left: left, Right: right, Pos: pos}, nil
}

func (p *parser) peekArithOp() (string, bool) {
	for _, op := range []string{"+", "-", "*", "/", "%"} {
		if p.atSymbol(op) {
			return op, true
		}
	}
	return "", false
}

func (p *parser) peekRelOp() (string, bool) {
	for _, op := range []string{"=", "<>", "<=", ">=", "<", ">"} {
		if p.atSymbol(op) {
			return op, true
		}
	}
	return "", false
}

// --- token-stream cursor helpers ---

func (p *parser) here() Pos {
	if p.pos >= len(p.toks) {
		return Pos{}
	}
	t := p.toks[p.pos]
	return Pos{t.Line, t.Col}
}

func (p *parser) here2() Token {
	if p.pos >= len(p.toks) {
		return Token{}
	}
	return p.toks[p.pos]
}

func (p *parser) advance() { p.pos++ }

func (p *parser) atKeyword(word string) bool {
	return p.pos < len(p.toks) && p.toks[p.pos].IsKeyword(word)
}

func (p *parser) atSymbol(sym string) bool {
	return p.pos < len(p.toks) && p.toks[p.pos].IsSymbol(sym)
}

func (p *parser) atKind(k TokenKind) bool {
	return p.pos < len(p.toks) && p.toks[p.pos].Kind == k
}

func (p *parser) expectKeyword(word string) error {
	if !p.atKeyword(word) {
		return p.errorf("expected %q", word)
	}
	p.advance()
	return nil
}

func (p *parser) expectSymbol(sym string) error {
	if !p.atSymbol(sym) {
		return p.errorf("expected %q", sym)
	}
	p.advance()
	return nil
}

func (p *parser) expectIdent() (string, Pos, error) {
	if !p.atKind(TokIdent) {
		return "", Pos{}, p.errorf("expected an identifier")
	}
	tok := p.toks[p.pos]
	p.advance()
	return tok.Text, Pos{tok.Line, tok.Col}, nil
}

func (p *parser) expectNumber() (int64, Pos, error) {
	if !p.atKind(TokNumber) {
		return 0, Pos{}, p.errorf("expected a number")
	}
	tok := p.toks[p.pos]
	p.advance()
	return parseIntLiteral(tok.Text), Pos{tok.Line, tok.Col}, nil
}

func (p *parser) errorf(format string, args ...any) error {
	pos := p.here()
	msg := fmt.Sprintf(format, args...)
	if p.sink != nil {
		p.sink.Errorf(diag.Pos{Line: pos.Line, Column: pos.Column}, "syntax error: %s", msg)
	}
	return fmt.Errorf("frontend: %d:%d: %s", pos.Line, pos.Column, msg)
}

func parseIntLiteral(s string) int64 {
	var n int64
	for i := 0; i < len(s); i++ {
		n = n*10 + int64(s[i]-'0')
	}
	return n
}
