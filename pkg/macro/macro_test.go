package macro_test

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmcc/pkg/macro"
	"rmcc/pkg/target"
)

// run assembles prog (resolving labels) and executes it on a fresh
// interpreter, returning everything written via PUT.
func run(t *testing.T, prog []target.Instr) string {
	t.Helper()
	resolved, _, err := target.NewAssembler(false).Resolve(prog)
	require.NoError(t, err)

	var out bytes.Buffer
	vm := target.NewInterp(strings.NewReader(""), &out)
	vm.StepLimit = 100000
	require.NoError(t, vm.Run(resolved))
	return out.String()
}

func TestEmitConstantRepeatedIncForSmallValues(t *testing.T) {
	e := macro.NewEmitter()
	instrs, err := e.EmitConstant(target.A, big.NewInt(4))
	require.NoError(t, err)
	instrs = append(instrs, target.Put{Reg: target.A}, target.Halt{})

	assert.Equal(t, "4\n", run(t, instrs))
}

func TestEmitConstantBinaryBuildForLargeValues(t *testing.T) {
	e := macro.NewEmitter()
	v := big.NewInt(1000000)
	instrs, err := e.EmitConstant(target.A, v)
	require.NoError(t, err)
	instrs = append(instrs, target.Put{Reg: target.A}, target.Halt{})

	assert.Equal(t, "1000000\n", run(t, instrs))
}

func TestEmitConstantZero(t *testing.T) {
	e := macro.NewEmitter()
	instrs, err := e.EmitConstant(target.B, big.NewInt(0))
	require.NoError(t, err)
	instrs = append(instrs, target.Put{Reg: target.B}, target.Halt{})
	assert.Equal(t, "0\n", run(t, instrs))
}

func TestEmitConstantRejectsNegative(t *testing.T) {
	e := macro.NewEmitter()
	_, err := e.EmitConstant(target.A, big.NewInt(-1))
	require.Error(t, err)
}

func TestLongMulMatchesProduct(t *testing.T) {
	cases := []struct{ a, b int64 }{
		{6, 5}, {0, 7}, {7, 0}, {1, 1}, {123, 456}, {17, 17},
	}
	for _, c := range cases {
		e := macro.NewEmitter()
		var prog []target.Instr
		p1, err := e.EmitConstant(target.A, big.NewInt(c.a))
		require.NoError(t, err)
		p2, err := e.EmitConstant(target.B, big.NewInt(c.b))
		require.NoError(t, err)
		prog = append(prog, p1...)
		prog = append(prog, p2...)
		prog = append(prog, e.LongMul(target.C, target.A, target.B, target.D)...)
		prog = append(prog, target.Put{Reg: target.C}, target.Halt{})

		want := c.a * c.b
		got := run(t, prog)
		assert.Equal(t, want, mustAtoi(t, got), "LongMul(%d,%d)", c.a, c.b)
	}
}

func TestLongDivRemMatchesQuotientAndRemainder(t *testing.T) {
	cases := []struct{ a, b, q, r int64 }{
		{17, 5, 3, 2}, {3, 5, 0, 3}, {0, 5, 0, 0}, {5, 5, 1, 0}, {100, 7, 14, 2},
	}
	for _, c := range cases {
		e := macro.NewEmitter()
		var prog []target.Instr
		p1, err := e.EmitConstant(target.A, big.NewInt(c.a))
		require.NoError(t, err)
		p2, err := e.EmitConstant(target.B, big.NewInt(c.b))
		require.NoError(t, err)
		prog = append(prog, p1...)
		prog = append(prog, p2...)
		prog = append(prog, e.LongDivRem(target.C, target.D, target.A, target.B, target.E, target.F, target.G)...)
		prog = append(prog, target.Put{Reg: target.C}, target.Put{Reg: target.D}, target.Halt{})

		out := run(t, prog)
		lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, c.q, mustAtoi(t, lines[0]+"\n"), "quotient for %d/%d", c.a, c.b)
		assert.Equal(t, c.r, mustAtoi(t, lines[1]+"\n"), "remainder for %d/%d", c.a, c.b)
	}
}

func TestLongDivRemByZeroSaturatesToZero(t *testing.T) {
	e := macro.NewEmitter()
	var prog []target.Instr
	p1, err := e.EmitConstant(target.A, big.NewInt(42))
	require.NoError(t, err)
	prog = append(prog, p1...)
	prog = append(prog, e.Zero(target.B)...)
	prog = append(prog, e.LongDivRem(target.C, target.D, target.A, target.B, target.E, target.F, target.G)...)
	prog = append(prog, target.Put{Reg: target.C}, target.Put{Reg: target.D}, target.Halt{})

	assert.Equal(t, "0\n0\n", run(t, prog))
}

func TestRem2MatchesParity(t *testing.T) {
	for _, v := range []int64{0, 1, 2, 7, 100, 101} {
		e := macro.NewEmitter()
		var prog []target.Instr
		p1, err := e.EmitConstant(target.A, big.NewInt(v))
		require.NoError(t, err)
		prog = append(prog, p1...)
		prog = append(prog, e.Rem2(target.B, target.A, target.C)...)
		prog = append(prog, target.Put{Reg: target.B}, target.Halt{})

		want := v % 2
		assert.Equal(t, want, mustAtoi(t, run(t, prog)), "Rem2(%d)", v)
	}
}

func TestComparisonJumps(t *testing.T) {
	e := macro.NewEmitter()
	var prog []target.Instr
	p1, _ := e.EmitConstant(target.A, big.NewInt(3))
	p2, _ := e.EmitConstant(target.B, big.NewInt(5))
	prog = append(prog, p1...)
	prog = append(prog, p2...)
	prog = append(prog, e.JumpLt(target.A, target.B, "less", target.C)...)
	prog = append(prog, e.Zero(target.D)...) // unreachable if the jump fires
	prog = append(prog, target.Jump{Label: "end"})
	prog = append(prog, target.LabelDecl{Name: "less"})
	prog = append(prog, e.IncInto(target.D, target.D)...)
	prog = append(prog, target.LabelDecl{Name: "end"})
	prog = append(prog, target.Put{Reg: target.D}, target.Halt{})

	assert.Equal(t, "1\n", run(t, prog), "3 < 5 should take the JumpLt branch")
}

func mustAtoi(t *testing.T, s string) int64 {
	t.Helper()
	s = strings.TrimSpace(s)
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "not an integer: %q", s)
	return v.Int64()
}
