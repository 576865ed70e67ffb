package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmcc/pkg/ir"
	"rmcc/pkg/symtab"
)

func TestOperandEquality(t *testing.T) {
	a := ir.ConstInt(5)
	b := ir.ConstInt(5)
	assert.Equal(t, ir.OperandKey(a), ir.OperandKey(b))

	entry := &symtab.Entry{Name: "x", Kind: symtab.Variable}
	n1 := ir.Name{Entry: entry}
	n2 := ir.Name{Entry: entry}
	assert.Equal(t, ir.OperandKey(n1), ir.OperandKey(n2))

	var alloc ir.TempAllocator
	t0 := alloc.New()
	t1 := alloc.New()
	assert.NotEqual(t, ir.OperandKey(t0), ir.OperandKey(t1))
}

func TestBlockTerminatorAndSuccessors(t *testing.T) {
	entry := &symtab.Entry{Name: "sum", Kind: symtab.Variable}
	block := &ir.Block{
		Name: "L0",
		Instr: []ir.Instruction{
			ir.Move{Src: ir.ConstInt(0), Dst: ir.Name{Entry: entry}},
			ir.JumpIf{Cond: ir.Lt, Left: ir.ConstInt(1), Right: ir.ConstInt(2), IfTrue: "L1", IfFalse: "L2"},
		},
	}

	term, ok := block.Terminator()
	require.True(t, ok)
	assert.IsType(t, ir.JumpIf{}, term)
	assert.ElementsMatch(t, []string{"L1", "L2"}, block.Successors())
}

func TestProgramValidateRejectsMissingTerminator(t *testing.T) {
	prog := &ir.Program{Blocks: []*ir.Block{
		{Name: "L0", Instr: []ir.Instruction{ir.Move{Src: ir.ConstInt(1), Dst: ir.Temp{ID: 0}}}},
	}}

	err := prog.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrMalformedCFG)
}

func TestProgramValidateRejectsUnknownTarget(t *testing.T) {
	prog := &ir.Program{Blocks: []*ir.Block{
		{Name: "L0", Instr: []ir.Instruction{ir.Jump{Target: "L9"}}},
	}}

	err := prog.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrMalformedCFG)
}

func TestProgramValidateAcceptsWellFormedCFG(t *testing.T) {
	prog := &ir.Program{Blocks: []*ir.Block{
		{Name: "L0", Instr: []ir.Instruction{ir.Jump{Target: "L1"}}},
		{Name: "L1", Instr: []ir.Instruction{ir.Halt{}}},
	}}

	assert.NoError(t, prog.Validate())
}
