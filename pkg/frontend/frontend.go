package frontend

import (
	"io"

	"rmcc/pkg/diag"
	"rmcc/pkg/ir"
	"rmcc/pkg/symtab"
)

// Result bundles the front end's output: the resolved symbol table and the
// basic-block program handed, unmodified, to the core optimize/codegen
// pipeline (spec.md §6).
type Result struct {
	Symbols *symtab.Table
	Program *ir.Program
}

// Compile runs the full front end — Lex, Parse, Lower — over r, reporting
// errors through sink. A lexical or syntax error stops it at the first one;
// Lower reports every semantic error it finds before returning. Callers must
// check the returned error and sink.Validate() before handing Result.Program
// to the optimizer.
func Compile(r io.Reader, sink *diag.Sink) (*Result, error) {
	toks, err := Lex(r)
	if err != nil {
		sink.Errorf(diag.Pos{}, "%v", err)
		return nil, err
	}

	prog, err := Parse(toks, sink)
	if err != nil {
		return nil, err
	}

	syms, irProg, err := Lower(prog, sink)
	if err != nil {
		return &Result{Symbols: syms, Program: irProg}, err
	}
	return &Result{Symbols: syms, Program: irProg}, nil
}
