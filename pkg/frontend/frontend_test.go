package frontend_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmcc/pkg/diag"
	"rmcc/pkg/frontend"
	"rmcc/pkg/symtab"
)

func compile(t *testing.T, src string) (*frontend.Result, *diag.Sink) {
	t.Helper()
	sink := diag.NewSink("test.src")
	result, err := frontend.Compile(strings.NewReader(src), sink)
	require.NoError(t, err)
	require.NoError(t, sink.Validate())
	return result, sink
}

func TestCompileSimpleAssignAndWrite(t *testing.T) {
	result, _ := compile(t, `
DECLARE a, b;
BEGIN
	a := 2 + 3;
	b := a;
	WRITE b;
END`)

	_, ok := result.Symbols.Lookup("a")
	require.True(t, ok)
	_, ok = result.Symbols.Lookup("b")
	require.True(t, ok)
	assert.NotEmpty(t, result.Program.Blocks)
	assert.NoError(t, result.Program.Validate())
}

func TestCompileArrayDeclAndIndexedAccess(t *testing.T) {
	result, _ := compile(t, `
DECLARE a(0:4), i;
BEGIN
	i := 0;
	a(i) := 7;
	WRITE a(i);
END`)

	entry, ok := result.Symbols.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, symtab.Array, entry.Kind)
	assert.Equal(t, int64(0), entry.Lo)
	assert.Equal(t, int64(4), entry.Hi)
}

func TestCompileIfThenElse(t *testing.T) {
	result, _ := compile(t, `
DECLARE a, b;
BEGIN
	a := 5;
	IF a > 0 THEN
		b := 1;
	ELSE
		b := 0;
	ENDIF
	WRITE b;
END`)
	assert.NoError(t, result.Program.Validate())
	assert.True(t, len(result.Program.Blocks) >= 4)
}

func TestCompileWhileLoop(t *testing.T) {
	result, _ := compile(t, `
DECLARE a;
BEGIN
	a := 3;
	WHILE a > 0 DO
		a := a - 1;
	ENDWHILE
	WRITE a;
END`)
	assert.NoError(t, result.Program.Validate())
}

func TestCompileForLoopDeclaresIteratorAndCounter(t *testing.T) {
	result, _ := compile(t, `
DECLARE sum;
BEGIN
	sum := 0;
	FOR i FROM 1 TO 5 DO
		sum := sum + i;
	ENDFOR
	WRITE sum;
END`)
	assert.NoError(t, result.Program.Validate())

	entry, ok := result.Symbols.Lookup("i")
	require.True(t, ok)
	assert.Equal(t, symtab.Variable, entry.Kind)
	assert.False(t, entry.Iterator, "iterator lock is released once the loop body finishes lowering")

	_, ok = result.Symbols.Lookup("%for1")
	assert.True(t, ok, "the hidden down-counter is declared alongside the iterator")
}

func TestCompileForLoopDownTo(t *testing.T) {
	result, _ := compile(t, `
DECLARE sum;
BEGIN
	sum := 0;
	FOR i FROM 5 DOWNTO 1 DO
		sum := sum + i;
	ENDFOR
	WRITE sum;
END`)
	assert.NoError(t, result.Program.Validate())
}

func TestUndeclaredIdentifierIsReportedAsError(t *testing.T) {
	sink := diag.NewSink("test.src")
	_, err := frontend.Compile(strings.NewReader(`
DECLARE a;
BEGIN
	a := b + 1;
	WRITE a;
END`), sink)
	require.Error(t, err)
	assert.ErrorIs(t, sink.Validate(), diag.ErrHasErrors)
}

func TestDoubleDeclarationIsReportedAsError(t *testing.T) {
	sink := diag.NewSink("test.src")
	_, err := frontend.Compile(strings.NewReader(`
DECLARE a, a;
BEGIN
	WRITE a;
END`), sink)
	require.Error(t, err)
	assert.ErrorIs(t, sink.Validate(), diag.ErrHasErrors)
}

func TestBadArrayBoundsIsReportedAsError(t *testing.T) {
	sink := diag.NewSink("test.src")
	_, err := frontend.Compile(strings.NewReader(`
DECLARE a(5:1);
BEGIN
	WRITE a(0);
END`), sink)
	require.Error(t, err)
	assert.ErrorIs(t, sink.Validate(), diag.ErrHasErrors)
}

func TestIteratorReassignmentInsideBodyIsReportedAsError(t *testing.T) {
	sink := diag.NewSink("test.src")
	_, err := frontend.Compile(strings.NewReader(`
DECLARE a;
BEGIN
	FOR i FROM 1 TO 3 DO
		i := 9;
	ENDFOR
	WRITE a;
END`), sink)
	require.Error(t, err)
	assert.ErrorIs(t, sink.Validate(), diag.ErrHasErrors)
}

func TestUninitializedReadIsReportedAsError(t *testing.T) {
	sink := diag.NewSink("test.src")
	_, err := frontend.Compile(strings.NewReader(`
DECLARE a, b;
BEGIN
	b := a + 1;
	WRITE b;
END`), sink)
	require.Error(t, err)
	assert.ErrorIs(t, sink.Validate(), diag.ErrHasErrors)
}

func TestScalarUsedAsArrayIsReportedAsError(t *testing.T) {
	sink := diag.NewSink("test.src")
	_, err := frontend.Compile(strings.NewReader(`
DECLARE a;
BEGIN
	WRITE a(0);
END`), sink)
	require.Error(t, err)
	assert.ErrorIs(t, sink.Validate(), diag.ErrHasErrors)
}
