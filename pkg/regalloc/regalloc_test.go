package regalloc_test

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmcc/pkg/macro"
	"rmcc/pkg/regalloc"
	"rmcc/pkg/target"
)

func TestAddressTableAssignsStableDistinctAddresses(t *testing.T) {
	tab := regalloc.NewAddressTable(0)
	a1 := tab.Address("x")
	a2 := tab.Address("y")
	a3 := tab.Address("x")

	assert.Equal(t, a1, a3, "repeated lookups of the same key must return the same address")
	assert.NotEqual(t, a1, a2)
}

func TestAddressTableReserveGivesContiguousRange(t *testing.T) {
	tab := regalloc.NewAddressTable(10)
	base := tab.Reserve("arr", 5)
	next := tab.Address("scalar")

	assert.Equal(t, int64(10), base)
	assert.Equal(t, int64(15), next, "a scalar declared after a reserved array must land past its whole range")
}

func TestSelectPrefersFreeRegisterBeforeEvicting(t *testing.T) {
	tab := regalloc.NewAddressTable(0)
	e := macro.NewEmitter()
	alloc := regalloc.NewAllocator(tab, e)

	reg, spill := alloc.Select(nil)
	assert.Empty(t, spill, "the first Select call must find a free register with nothing to spill")
	assert.NotEqual(t, target.A, reg, "A is reserved for addressing and must never be handed out")
}

func TestLoadRoundTripsThroughMemory(t *testing.T) {
	tab := regalloc.NewAddressTable(0)
	e := macro.NewEmitter()
	alloc := regalloc.NewAllocator(tab, e)

	// Materialize 7 directly into a register and bind it to "x", store it to
	// memory, reset all register state, then Load "x" back — the value
	// should survive the round trip through M[addr(x)].
	var prog []target.Instr
	seven, err := e.EmitConstant(target.B, big.NewInt(7))
	require.NoError(t, err)
	prog = append(prog, seven...)
	alloc.BindFresh("x", target.B)
	prog = append(prog, alloc.Store("x")...)
	alloc.ResetRegistersState()

	reg, reload := alloc.Load("x", nil)
	prog = append(prog, reload...)
	prog = append(prog, target.Put{Reg: reg}, target.Halt{})

	resolved, _, err := target.NewAssembler(false).Resolve(prog)
	require.NoError(t, err)

	var out bytes.Buffer
	vm := target.NewInterp(strings.NewReader(""), &out)
	require.NoError(t, vm.Run(resolved))
	assert.Equal(t, "7\n", out.String())
}

func TestSaveVariablesSpillsEveryDirtyRegister(t *testing.T) {
	tab := regalloc.NewAddressTable(0)
	e := macro.NewEmitter()
	alloc := regalloc.NewAllocator(tab, e)

	var prog []target.Instr
	five, err := e.EmitConstant(target.B, big.NewInt(5))
	require.NoError(t, err)
	prog = append(prog, five...)
	alloc.BindFresh("y", target.B)

	prog = append(prog, alloc.SaveVariables()...)
	alloc.ResetRegistersState()

	reg, reload := alloc.Load("y", nil)
	prog = append(prog, reload...)
	prog = append(prog, target.Put{Reg: reg}, target.Halt{})

	resolved, _, err := target.NewAssembler(false).Resolve(prog)
	require.NoError(t, err)

	var out bytes.Buffer
	vm := target.NewInterp(strings.NewReader(""), &out)
	require.NoError(t, vm.Run(resolved))
	assert.Equal(t, "5\n", out.String(), "SaveVariables must have spilled y to memory before the reset")
}

func TestSelectEvictsCheapestSpillPenaltyNotFurthestNextUse(t *testing.T) {
	tab := regalloc.NewAddressTable(0)
	e := macro.NewEmitter()
	alloc := regalloc.NewAllocator(tab, e)

	var regs []target.Reg
	for _, r := range target.AllRegisters {
		if r == target.A {
			continue
		}
		regs = append(regs, r)
	}
	require.True(t, len(regs) >= 2, "need at least two non-addressing registers to exercise eviction")

	cheapKey, expensiveKey := "cheap", "expensive"
	tab.Address(cheapKey) // address 0: trivially cheap to spill
	for i := 0; i < 999; i++ {
		tab.Address(fmt.Sprintf("filler%d", i))
	}
	tab.Address(expensiveKey) // lands at a large, bit-costly address

	alloc.BindFresh(cheapKey, regs[0])
	alloc.BindFresh(expensiveKey, regs[1])
	for i := 2; i < len(regs); i++ {
		alloc.BindFresh(fmt.Sprintf("other%d", i), regs[i])
	}

	// Claim cheapKey is needed again immediately (distance 0) and
	// expensiveKey is never used again (absent from the map) — a
	// next-use-distance policy would evict expensiveKey and keep cheapKey.
	// Spec.md §4.5's penalty formula must evict cheapKey anyway, since its
	// address is by far the cheaper one to reconstruct and spill.
	distance := map[string]int{cheapKey: 0}
	reg, spill := alloc.Select(distance)
	assert.NotEmpty(t, spill)
	assert.Equal(t, regs[0], reg, "the register holding the cheapest-to-spill address must be evicted")
}

func TestSeizeEvictsSpecificRegisterAndFreesItForReuse(t *testing.T) {
	tab := regalloc.NewAddressTable(0)
	e := macro.NewEmitter()
	alloc := regalloc.NewAllocator(tab, e)

	reg, _ := alloc.Select(nil)
	alloc.BindFresh("z", reg)

	spill := alloc.Seize(reg)
	assert.NotEmpty(t, spill, "seizing an occupied, dirty register must spill its occupant")

	reg2, noSpill := alloc.Select(nil)
	assert.Equal(t, reg, reg2, "the freshly-seized register should be offered again as free")
	assert.Empty(t, noSpill)
}
