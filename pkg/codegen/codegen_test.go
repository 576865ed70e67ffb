package codegen_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmcc/pkg/codegen"
	"rmcc/pkg/diag"
	"rmcc/pkg/frontend"
	"rmcc/pkg/optimize"
	"rmcc/pkg/regalloc"
	"rmcc/pkg/target"
)

// compileAndRun drives the full pipeline (frontend, optimize, codegen,
// assembly, interpretation) the way cmd/rmcc does, so the compiled program's
// actual stdout can be asserted against.
func compileAndRun(t *testing.T, src, stdin string) string {
	t.Helper()

	sink := diag.NewSink("test.src")
	result, err := frontend.Compile(strings.NewReader(src), sink)
	require.NoError(t, err)
	require.NoError(t, sink.Validate())

	_, err = (&optimize.Pipeline{}).Run(result.Program)
	require.NoError(t, err)

	gen := codegen.NewGenerator(regalloc.NewAddressTable(1))
	compiled, err := gen.Generate(result.Program)
	require.NoError(t, err)

	resolved, _, err := target.NewAssembler(false).Resolve(compiled)
	require.NoError(t, err)

	var out bytes.Buffer
	vm := target.NewInterp(strings.NewReader(stdin), &out)
	require.NoError(t, vm.Run(resolved))
	return out.String()
}

// The inc/dec/twice/half peephole idioms must not clobber the source
// operand's register when the result is a fresh temp, which is what
// frontend/lower.go always produces for "x + 1" (Binary(Add, x, 1, t), t a
// brand-new temp, never x itself) — reading x a second time afterwards must
// still see x's real value, not whatever the destructive in-place idiom left
// behind in x's former register.
func TestIncPeepholeDoesNotClobberSourceAcrossRepeatedUse(t *testing.T) {
	out := compileAndRun(t, `
DECLARE c, d, e;
BEGIN
	READ c;
	d := c + 1;
	e := c + 1;
	WRITE d;
	WRITE e;
END`, "41\n")

	assert.Equal(t, "42\n42\n", out)
}

func TestDecPeepholeDoesNotClobberSourceAcrossRepeatedUse(t *testing.T) {
	out := compileAndRun(t, `
DECLARE c, d, e;
BEGIN
	READ c;
	d := c - 1;
	e := c - 1;
	WRITE d;
	WRITE e;
END`, "10\n")

	assert.Equal(t, "9\n9\n", out)
}

func TestTwicePeepholeDoesNotClobberSourceAcrossRepeatedUse(t *testing.T) {
	out := compileAndRun(t, `
DECLARE c, d, e;
BEGIN
	READ c;
	d := c + c;
	e := c + c;
	WRITE d;
	WRITE e;
END`, "6\n")

	assert.Equal(t, "12\n12\n", out)
}

func TestHalfPeepholeDoesNotClobberSourceAcrossRepeatedUse(t *testing.T) {
	out := compileAndRun(t, `
DECLARE c, d, e;
BEGIN
	READ c;
	d := c / 2;
	e := c / 2;
	WRITE d;
	WRITE e;
END`, "9\n")

	assert.Equal(t, "4\n4\n", out)
}
