// Package frontend is the thin, deliberately conventional collaborator that
// makes the back-end core (pkg/ir, pkg/analysis, pkg/optimize, pkg/target,
// pkg/macro, pkg/regalloc, pkg/codegen) runnable end to end from cmd/rmcc.
// Its internals — lexing, parsing, AST shape, and symbol-table scope
// discipline — are conventional and are not the subject of this module's
// design (spec.md §1): only the back-end pipeline is.
//
// Tokenizing is grounded on the teacher's asm.Parser/jack.Parser pair: a flat
// parser-combinator grammar built with github.com/prataprc/goparsec produces
// a traversable pc.Queryable token stream, which a hand-written
// recursive-descent pass (the same split the teacher uses between its
// goparsec-built AST and its own jack.Statement/jack.Expression union types)
// turns into the structured statement/expression AST of ast.go. Unlike the
// teacher's own Asm grammar, this language's statements nest arbitrarily
// (IF/WHILE/FOR bodies contain further statements), which goparsec's
// combinators do not express recursively without a forward-reference trick
// the teacher corpus never needed — so, same as the teacher splits tokenizing
// from lowering, nesting here is handled by the hand-written parser walking a
// flat token list, not by a recursive grammar.
package frontend

import (
	"fmt"
	"io"

	pc "github.com/prataprc/goparsec"
)

// TokenKind classifies a single lexical token.
type TokenKind uint8

const (
	TokIdent TokenKind = iota
	TokNumber
	TokKeyword
	TokSymbol
)

// Token is one lexical token with its source position, used both by the
// parser (to drive recursive descent) and by diagnostics (to report
// source:line:column).
type Token struct {
	Kind  TokenKind
	Text  string
	Line  int
	Col   int
}

var keywords = map[string]bool{
	"DECLARE": true, "BEGIN": true, "END": true,
	"IF": true, "THEN": true, "ELSE": true, "ENDIF": true,
	"WHILE": true, "DO": true, "ENDWHILE": true,
	"FOR": true, "FROM": true, "TO": true, "DOWNTO": true, "ENDFOR": true,
	"READ": true, "WRITE": true,
}

var (
	ast = pc.NewAST("rmcc_source", 0)

	pComment = ast.And("comment", nil, pc.Atom("#", "#"), pc.Token(`(?m).*$`, "COMMENT"))

	// Multi-character operators must be tried before their single-character
	// prefixes (":=" before ":", "<="/"<>" before "<", ">=" before ">"), the
	// same ordering discipline the teacher's pComp combinator documents.
	pSymbol = ast.OrdChoice("symbol", nil,
		pc.Atom(":=", ":="), pc.Atom("<=", "<="), pc.Atom(">=", ">="), pc.Atom("<>", "<>"),
		pc.Atom("(", "("), pc.Atom(")", ")"), pc.Atom(":", ":"), pc.Atom(",", ","), pc.Atom(";", ";"),
		pc.Atom("+", "+"), pc.Atom("-", "-"), pc.Atom("*", "*"), pc.Atom("/", "/"), pc.Atom("%", "%"),
		pc.Atom("=", "="), pc.Atom("<", "<"), pc.Atom(">", ">"),
	)

	pWord = pc.Token(`[A-Za-z_][0-9A-Za-z_]*`, "WORD")

	pToken = ast.OrdChoice("token", nil, pc.Int(), pWord, pSymbol)

	pProgram = ast.ManyUntil("program", nil,
		ast.OrdChoice("item", nil, pComment, pToken), pc.End())
)

// Lex tokenizes r's full contents into a flat Token stream, skipping
// comments (introduced by '#', running to end of line). Line/column
// positions are best-effort: goparsec's scanner does not preserve them
// itself, so Lex recomputes them from byte offsets it tracks through the raw
// source text as it walks the parsed token list.
func Lex(r io.Reader) ([]Token, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("frontend: reading source: %w", err)
	}

	root, scanner := ast.Parsewith(pProgram, pc.NewScanner(content))
	if root == nil {
		return nil, fmt.Errorf("frontend: failed to parse token stream")
	}
	if !scanner.Endof() {
		return nil, fmt.Errorf("frontend: trailing unparseable input")
	}

	lc := newLineCounter(content)
	var toks []Token
	for _, child := range root.GetChildren() {
		if child.GetName() == "comment" {
			continue
		}
		toks = append(toks, lc.tokenFor(child))
	}
	return toks, nil
}

func (t Token) IsKeyword(word string) bool {
	return t.Kind == TokKeyword && t.Text == word
}

func (t Token) IsSymbol(sym string) bool {
	return t.Kind == TokSymbol && t.Text == sym
}

// lineCounter maps a goparsec leaf's matched text to a line:column by
// scanning forward through the original source exactly once — goparsec
// nodes only carry matched text, not byte offsets, so positions are
// recovered by re-finding each token's text in source order.
type lineCounter struct {
	src    []byte
	offset int
	line   int
	col    int
}

func newLineCounter(src []byte) *lineCounter {
	return &lineCounter{src: src, line: 1, col: 1}
}

func (lc *lineCounter) tokenFor(q pc.Queryable) Token {
	text := q.GetValue()
	if text == "" {
		text = q.GetName()
	}
	lc.advanceTo(text)

	line, col := lc.line, lc.col
	lc.advanceBy(len(text))

	kind := TokSymbol
	if _, ok := keywords[text]; ok {
		kind = TokKeyword
	} else if len(text) > 0 && (isDigit(text[0])) {
		kind = TokNumber
	} else if len(text) > 0 && isIdentStart(text[0]) {
		kind = TokIdent
	}
	return Token{Kind: kind, Text: text, Line: line, Col: col}
}

func (lc *lineCounter) advanceTo(text string) {
	idx := indexFrom(lc.src, lc.offset, text)
	if idx < 0 {
		return
	}
	for lc.offset < idx {
		lc.step()
	}
}

func (lc *lineCounter) advanceBy(n int) {
	for i := 0; i < n; i++ {
		lc.step()
	}
}

func (lc *lineCounter) step() {
	if lc.offset >= len(lc.src) {
		return
	}
	if lc.src[lc.offset] == '\n' {
		lc.line++
		lc.col = 1
	} else {
		lc.col++
	}
	lc.offset++
}

func indexFrom(src []byte, from int, text string) int {
	if text == "" || from > len(src) {
		return -1
	}
	for i := from; i+len(text) <= len(src); i++ {
		if string(src[i:i+len(text)]) == text {
			return i
		}
	}
	return -1
}

func isDigit(b byte) bool      { return b >= '0' && b <= '9' }
func isIdentStart(b byte) bool { return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') }
