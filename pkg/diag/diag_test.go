package diag_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmcc/pkg/diag"
)

func TestValidatePassesWithNoDiagnostics(t *testing.T) {
	s := diag.NewSink("prog.src")
	require.NoError(t, s.Validate())
}

func TestValidateFailsOnlyOnErrorLevel(t *testing.T) {
	s := diag.NewSink("prog.src")
	s.Warnf(diag.Pos{Line: 1, Column: 1}, "x is used before being assigned")
	require.NoError(t, s.Validate(), "warnings alone must not fail validation")

	s.Errorf(diag.Pos{Line: 2, Column: 3}, "undeclared identifier %q", "y")
	require.ErrorIs(t, s.Validate(), diag.ErrHasErrors)
}

func TestRenderFormatsSourceLineColumnLevelMessage(t *testing.T) {
	s := diag.NewSink("prog.src")
	s.Errorf(diag.Pos{Line: 4, Column: 7}, "undeclared identifier %q", "foo")

	var buf bytes.Buffer
	s.Render(&buf)
	assert.Contains(t, buf.String(), "prog.src:4:7: error: undeclared identifier \"foo\"")
}

func TestRenderOrdersDiagnosticsByPosition(t *testing.T) {
	s := diag.NewSink("prog.src")
	s.Errorf(diag.Pos{Line: 10, Column: 1}, "second")
	s.Errorf(diag.Pos{Line: 2, Column: 1}, "first")

	var buf bytes.Buffer
	s.Render(&buf)
	firstIdx := bytes.Index(buf.Bytes(), []byte("first"))
	secondIdx := bytes.Index(buf.Bytes(), []byte("second"))
	assert.Less(t, firstIdx, secondIdx)
}

func TestInternalErrorWrapsCause(t *testing.T) {
	cause := diag.ErrHasErrors
	err := diag.NewInternal(cause, "missing terminator in block %q", "L3")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "missing terminator in block \"L3\"")
}
