package target_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmcc/pkg/target"
)

func TestResolveRewritesLabelsToInstructionIndices(t *testing.T) {
	prog := []target.Instr{
		target.LabelDecl{Name: "start"},
		target.Inc{Reg: target.A},
		target.Jump{Label: "end"},
		target.LabelDecl{Name: "end"},
		target.Halt{},
	}

	resolved, labels, err := target.NewAssembler(false).Resolve(prog)
	require.NoError(t, err)
	assert.Equal(t, 0, labels["start"])
	assert.Equal(t, 2, labels["end"])
	require.Len(t, resolved, 3)
	assert.Equal(t, target.Jump{Label: "2"}, resolved[1])
}

func TestResolveMultipleLabelsOnSameIndex(t *testing.T) {
	prog := []target.Instr{
		target.LabelDecl{Name: "a"},
		target.LabelDecl{Name: "b"},
		target.Halt{},
	}
	_, labels, err := target.NewAssembler(false).Resolve(prog)
	require.NoError(t, err)
	assert.Equal(t, 0, labels["a"])
	assert.Equal(t, 0, labels["b"])
}

func TestResolveFailsOnUndefinedLabel(t *testing.T) {
	prog := []target.Instr{target.Jump{Label: "nowhere"}, target.Halt{}}
	_, _, err := target.NewAssembler(false).Resolve(prog)
	require.Error(t, err)
}

func TestRenderEmitsOneInstructionPerLine(t *testing.T) {
	prog := []target.Instr{target.Inc{Reg: target.A}, target.Halt{}}
	resolved, labels, err := target.NewAssembler(false).Resolve(prog)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, target.NewAssembler(false).Render(&buf, resolved, labels))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{"INC A", "HALT"}, lines)
}

func TestRenderDebugPrecedesLabelPointsWithComments(t *testing.T) {
	prog := []target.Instr{
		target.LabelDecl{Name: "loop"},
		target.Dec{Reg: target.B},
		target.Halt{},
	}
	asm := target.NewAssembler(true)
	resolved, labels, err := asm.Resolve(prog)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, asm.Render(&buf, resolved, labels))
	assert.Equal(t, "# loop:\nDEC B\nHALT\n", buf.String())
}

func TestInterpSaturatingSubtraction(t *testing.T) {
	prog := []target.Instr{
		target.Inc{Reg: target.A}, target.Inc{Reg: target.A}, target.Inc{Reg: target.A},
		target.Inc{Reg: target.B}, target.Inc{Reg: target.B}, target.Inc{Reg: target.B},
		target.Inc{Reg: target.B}, target.Inc{Reg: target.B},
		target.Sub{Dst: target.A, Src: target.B},
		target.Put{Reg: target.A}, target.Halt{},
	}
	resolved, _, err := target.NewAssembler(false).Resolve(prog)
	require.NoError(t, err)

	var out bytes.Buffer
	vm := target.NewInterp(strings.NewReader(""), &out)
	require.NoError(t, vm.Run(resolved))
	assert.Equal(t, "0\n", out.String(), "3 - 5 must saturate to 0")
}

func TestInterpLoadStoreRoundTrip(t *testing.T) {
	prog := []target.Instr{
		target.Inc{Reg: target.A}, // address 1
		target.Inc{Reg: target.B}, target.Inc{Reg: target.B},
		target.Store{Reg: target.B}, // M[1] = 2
		target.Dec{Reg: target.B},   // B = 1, to prove LOAD overwrites it
		target.Load{Reg: target.B},  // B <- M[1]
		target.Put{Reg: target.B}, target.Halt{},
	}
	resolved, _, err := target.NewAssembler(false).Resolve(prog)
	require.NoError(t, err)

	var out bytes.Buffer
	vm := target.NewInterp(strings.NewReader(""), &out)
	require.NoError(t, vm.Run(resolved))
	assert.Equal(t, "2\n", out.String())
}

func TestInterpGetReadsFromStdin(t *testing.T) {
	prog := []target.Instr{
		target.Get{Reg: target.C},
		target.Put{Reg: target.C},
		target.Halt{},
	}
	resolved, _, err := target.NewAssembler(false).Resolve(prog)
	require.NoError(t, err)

	var out bytes.Buffer
	vm := target.NewInterp(strings.NewReader("42\n"), &out)
	require.NoError(t, vm.Run(resolved))
	assert.Equal(t, "42\n", out.String())
}

func TestInterpJOddBranchesOnParity(t *testing.T) {
	prog := []target.Instr{
		target.Inc{Reg: target.A}, target.Inc{Reg: target.A}, target.Inc{Reg: target.A}, // A = 3
		target.JOdd{Reg: target.A, Label: "odd"},
		target.Inc{Reg: target.B}, // unreachable if JOdd fires correctly
		target.Jump{Label: "end"},
		target.LabelDecl{Name: "odd"},
		target.Inc{Reg: target.B}, target.Inc{Reg: target.B},
		target.LabelDecl{Name: "end"},
		target.Put{Reg: target.B}, target.Halt{},
	}
	resolved, _, err := target.NewAssembler(false).Resolve(prog)
	require.NoError(t, err)

	var out bytes.Buffer
	vm := target.NewInterp(strings.NewReader(""), &out)
	require.NoError(t, vm.Run(resolved))
	assert.Equal(t, "2\n", out.String(), "3 is odd, so the JOdd branch (B+=2) must fire, not the fallthrough (B+=1)")
}

func TestInterpHalfOfOneTruncatesToZero(t *testing.T) {
	prog := []target.Instr{
		target.Inc{Reg: target.A},
		target.Half{Reg: target.A},
		target.Put{Reg: target.A}, target.Halt{},
	}
	resolved, _, err := target.NewAssembler(false).Resolve(prog)
	require.NoError(t, err)

	var out bytes.Buffer
	vm := target.NewInterp(strings.NewReader(""), &out)
	require.NoError(t, vm.Run(resolved))
	assert.Equal(t, "0\n", out.String(), "HALF of 1 truncates to 0")
}

func TestInterpStepLimitCatchesInfiniteLoop(t *testing.T) {
	prog := []target.Instr{
		target.LabelDecl{Name: "loop"},
		target.Jump{Label: "loop"},
	}
	resolved, _, err := target.NewAssembler(false).Resolve(prog)
	require.NoError(t, err)

	vm := target.NewInterp(strings.NewReader(""), &bytes.Buffer{})
	vm.StepLimit = 1000
	require.Error(t, vm.Run(resolved))
}
