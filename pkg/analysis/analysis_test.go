package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmcc/pkg/analysis"
	"rmcc/pkg/ir"
	"rmcc/pkg/symtab"
)

// diamond builds: L0 -> {L1, L2}, L1 -> L3, L2 -> L3, L3 -> Halt.
func diamond() *ir.Program {
	return &ir.Program{Blocks: []*ir.Block{
		{Name: "L0", Instr: []ir.Instruction{ir.JumpIf{Cond: ir.Lt, Left: ir.ConstInt(1), Right: ir.ConstInt(2), IfTrue: "L1", IfFalse: "L2"}}},
		{Name: "L1", Instr: []ir.Instruction{ir.Jump{Target: "L3"}}},
		{Name: "L2", Instr: []ir.Instruction{ir.Jump{Target: "L3"}}},
		{Name: "L3", Instr: []ir.Instruction{ir.Halt{}}},
	}}
}

func TestPredecessors(t *testing.T) {
	preds, err := analysis.Predecessors(diamond())
	require.NoError(t, err)

	assert.Empty(t, preds["L0"])
	assert.True(t, preds["L1"]["L0"])
	assert.True(t, preds["L2"]["L0"])
	assert.True(t, preds["L3"]["L1"])
	assert.True(t, preds["L3"]["L2"])
}

func TestDominatorsEntryDominatesAll(t *testing.T) {
	dom, err := analysis.Dominators(diamond())
	require.NoError(t, err)

	for name, set := range dom {
		assert.Truef(t, set["L0"], "entry should dominate %s", name)
		assert.Truef(t, set[name], "%s should dominate itself", name)
	}
	// L3 is reached from both L1 and L2, so neither individually dominates it.
	assert.False(t, dom["L3"]["L1"])
	assert.False(t, dom["L3"]["L2"])
}

func TestDominatorsUniquePredecessor(t *testing.T) {
	// dom(b) = dom(p) ∪ {b} when p is the unique predecessor of b.
	prog := &ir.Program{Blocks: []*ir.Block{
		{Name: "L0", Instr: []ir.Instruction{ir.Jump{Target: "L1"}}},
		{Name: "L1", Instr: []ir.Instruction{ir.Halt{}}},
	}}
	dom, err := analysis.Dominators(prog)
	require.NoError(t, err)

	expect := map[string]bool{"L0": true, "L1": true}
	assert.Equal(t, expect, dom["L1"])
}

func TestLivenessAcrossBlocks(t *testing.T) {
	sum := &symtab.Entry{Name: "sum", Kind: symtab.Variable}
	x := ir.Temp{ID: 0}

	prog := &ir.Program{Blocks: []*ir.Block{
		{Name: "L0", Instr: []ir.Instruction{
			ir.Move{Src: ir.ConstInt(1), Dst: x},
			ir.Jump{Target: "L1"},
		}},
		{Name: "L1", Instr: []ir.Instruction{
			ir.Binary{Op: ir.Add, Left: x, Right: ir.Name{Entry: sum}, Result: ir.Name{Entry: sum}},
			ir.Halt{},
		}},
	}}

	live, err := analysis.Liveness(prog)
	require.NoError(t, err)

	assert.True(t, live["L0"].Out.Has(x), "x must be live out of L0 since L1 uses it")
	assert.False(t, live["L1"].Out.Has(x), "x is dead after its only use")
}

func TestReachingDefsFlowThroughBranch(t *testing.T) {
	x := ir.Temp{ID: 0}
	prog := diamond()
	prog.Blocks[0].Instr = []ir.Instruction{
		ir.Move{Src: ir.ConstInt(1), Dst: x},
		ir.JumpIf{Cond: ir.Lt, Left: ir.ConstInt(1), Right: ir.ConstInt(2), IfTrue: "L1", IfFalse: "L2"},
	}

	reach, err := analysis.ReachingDefs(prog)
	require.NoError(t, err)

	// The definition of x in L0 reaches L3's entry via either branch.
	found := false
	for _, d := range reach["L3"].In {
		if d.Block == "L0" {
			found = true
		}
	}
	assert.True(t, found, "definition of x in L0 should reach L3")
}

func TestNextUse(t *testing.T) {
	x := ir.Temp{ID: 0}
	y := ir.Temp{ID: 1}
	block := &ir.Block{Name: "L0", Instr: []ir.Instruction{
		ir.Move{Src: ir.ConstInt(1), Dst: x},   // 0: defines x
		ir.Move{Src: x, Dst: y},                // 1: uses x, defines y
		ir.Put{Src: y},                         // 2: uses y
		ir.Halt{},                              // 3
	}}

	nu := analysis.ComputeNextUse(block, analysis.OperandSet{})

	assert.True(t, nu.At(0, x).Live)
	assert.Equal(t, 1, nu.At(0, x).NextUseIndex)
	assert.False(t, nu.At(0, y).Live, "y has no next use once instruction 1 (its only definition) precedes it")
}
