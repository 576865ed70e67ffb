package optimize_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmcc/pkg/ir"
	"rmcc/pkg/optimize"
	"rmcc/pkg/symtab"
)

func TestConstFoldArithmetic(t *testing.T) {
	// a := 2 + 3; WRITE a; — scenario 1 of spec.md §8.
	a := &symtab.Entry{Name: "a", Kind: symtab.Variable}
	prog := &ir.Program{Blocks: []*ir.Block{{Name: "L0", Instr: []ir.Instruction{
		ir.Binary{Op: ir.Add, Left: ir.ConstInt(2), Right: ir.ConstInt(3), Result: ir.Name{Entry: a}},
		ir.Put{Src: ir.Name{Entry: a}},
		ir.Halt{},
	}}}}

	changed := (&optimize.ConstFold{}).Apply(prog)
	require.True(t, changed)

	mv, ok := prog.Blocks[0].Instr[0].(ir.Move)
	require.True(t, ok, "binary op should fold to a Move")
	assert.Equal(t, big.NewInt(5), mv.Src.(ir.Constant).Value)

	put := prog.Blocks[0].Instr[1].(ir.Put)
	assert.Equal(t, big.NewInt(5), put.Src.(ir.Constant).Value)
}

func TestConstFoldSaturatingSubtraction(t *testing.T) {
	// a := 3; b := 5; c := a - b; WRITE c; — scenario 2.
	c := &symtab.Entry{Name: "c", Kind: symtab.Variable}
	prog := &ir.Program{Blocks: []*ir.Block{{Name: "L0", Instr: []ir.Instruction{
		ir.Binary{Op: ir.Sub, Left: ir.ConstInt(3), Right: ir.ConstInt(5), Result: ir.Name{Entry: c}},
		ir.Put{Src: ir.Name{Entry: c}},
		ir.Halt{},
	}}}}

	(&optimize.ConstFold{}).Apply(prog)

	mv := prog.Blocks[0].Instr[0].(ir.Move)
	assert.Equal(t, big.NewInt(0), mv.Src.(ir.Constant).Value)
}

func TestConstFoldDivisionByZero(t *testing.T) {
	// a := 10; b := 0; c := a / b; WRITE c; — scenario 3.
	c := &symtab.Entry{Name: "c", Kind: symtab.Variable}
	prog := &ir.Program{Blocks: []*ir.Block{{Name: "L0", Instr: []ir.Instruction{
		ir.Binary{Op: ir.Div, Left: ir.ConstInt(10), Right: ir.ConstInt(0), Result: ir.Name{Entry: c}},
		ir.Put{Src: ir.Name{Entry: c}},
		ir.Halt{},
	}}}}

	(&optimize.ConstFold{}).Apply(prog)

	mv := prog.Blocks[0].Instr[0].(ir.Move)
	assert.Equal(t, big.NewInt(0), mv.Src.(ir.Constant).Value)
}

func TestConstFoldBranchFolding(t *testing.T) {
	prog := &ir.Program{Blocks: []*ir.Block{
		{Name: "L0", Instr: []ir.Instruction{
			ir.JumpIf{Cond: ir.Lt, Left: ir.ConstInt(1), Right: ir.ConstInt(2), IfTrue: "L1", IfFalse: "L2"},
		}},
		{Name: "L1", Instr: []ir.Instruction{ir.Halt{}}},
		{Name: "L2", Instr: []ir.Instruction{ir.Halt{}}},
	}}

	(&optimize.ConstFold{}).Apply(prog)

	j, ok := prog.Blocks[0].Instr[0].(ir.Jump)
	require.True(t, ok, "a branch with two literal operands should fold to an unconditional Jump")
	assert.Equal(t, "L1", j.Target)
}

func TestConstFoldIdempotentAfterConvergence(t *testing.T) {
	a := &symtab.Entry{Name: "a", Kind: symtab.Variable}
	prog := &ir.Program{Blocks: []*ir.Block{{Name: "L0", Instr: []ir.Instruction{
		ir.Binary{Op: ir.Add, Left: ir.ConstInt(2), Right: ir.ConstInt(3), Result: ir.Name{Entry: a}},
		ir.Halt{},
	}}}}

	(&optimize.ConstFold{}).Apply(prog)
	changedAgain := (&optimize.ConstFold{}).Apply(prog)
	assert.False(t, changedAgain, "re-running ConstFold after convergence must be a no-op")
}

func TestArrayPromotionRewritesConstantOffsets(t *testing.T) {
	arr := &symtab.Entry{Name: "a", Kind: symtab.Array, Lo: 0, Hi: 2}
	x := &symtab.Entry{Name: "x", Kind: symtab.Variable}

	prog := &ir.Program{Blocks: []*ir.Block{{Name: "L0", Instr: []ir.Instruction{
		ir.IndexedStore{Src: ir.ConstInt(7), Base: arr, Offset: ir.ConstInt(0)},
		ir.IndexedLoad{Base: arr, Offset: ir.ConstInt(0), Dst: ir.Name{Entry: x}},
		ir.Halt{},
	}}}}

	changed := (&optimize.ArrayPromotion{}).Apply(prog)
	require.True(t, changed)

	for _, inst := range prog.Blocks[0].Instr {
		switch inst.(type) {
		case ir.IndexedLoad, ir.IndexedStore:
			t.Fatalf("indexed access should have been promoted: %v", inst)
		}
	}
}

func TestArrayPromotionLeavesDynamicIndexAlone(t *testing.T) {
	arr := &symtab.Entry{Name: "a", Kind: symtab.Array, Lo: 0, Hi: 9}
	i := ir.Temp{ID: 0}

	prog := &ir.Program{Blocks: []*ir.Block{{Name: "L0", Instr: []ir.Instruction{
		ir.IndexedStore{Src: ir.ConstInt(7), Base: arr, Offset: ir.ConstInt(0)},
		ir.IndexedLoad{Base: arr, Offset: i, Dst: ir.Temp{ID: 1}},
		ir.Halt{},
	}}}}

	changed := (&optimize.ArrayPromotion{}).Apply(prog)
	assert.False(t, changed, "a single dynamic offset must disqualify the whole array")
}

func TestDeadStoreElimDropsUnusedConstantMove(t *testing.T) {
	x := ir.Temp{ID: 0}
	prog := &ir.Program{Blocks: []*ir.Block{{Name: "L0", Instr: []ir.Instruction{
		ir.Move{Src: ir.ConstInt(1), Dst: x},
		ir.Move{Src: ir.ConstInt(2), Dst: x}, // overwrites x before any use: first store is dead
		ir.Put{Src: x},
		ir.Halt{},
	}}}}

	changed := (&optimize.DeadStoreElim{}).Apply(prog)
	require.True(t, changed)
	require.Len(t, prog.Blocks[0].Instr, 3)

	mv := prog.Blocks[0].Instr[0].(ir.Move)
	assert.Equal(t, big.NewInt(2), mv.Src.(ir.Constant).Value)
}

func TestDeadStoreElimKeepsSideEffectingInstructions(t *testing.T) {
	arr := &symtab.Entry{Name: "a", Kind: symtab.Array, Lo: 0, Hi: 1}
	prog := &ir.Program{Blocks: []*ir.Block{{Name: "L0", Instr: []ir.Instruction{
		ir.IndexedStore{Src: ir.ConstInt(9), Base: arr, Offset: ir.ConstInt(0)},
		ir.Halt{},
	}}}}

	(&optimize.DeadStoreElim{}).Apply(prog)
	require.Len(t, prog.Blocks[0].Instr, 2)
	_, ok := prog.Blocks[0].Instr[0].(ir.IndexedStore)
	assert.True(t, ok, "IndexedStore must never be removed by dead-store elimination")
}
