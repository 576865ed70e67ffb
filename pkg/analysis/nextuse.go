package analysis

import "rmcc/pkg/ir"

// UseState is either Dead or Live(nextUseInstruction), the per-instruction,
// per-operand next-use fact of spec.md §4.1.
type UseState struct {
	Live         bool
	NextUseIndex int // meaningful only when Live is true
}

var Dead = UseState{Live: false}

func LiveAt(index int) UseState { return UseState{Live: true, NextUseIndex: index} }

// NextUse is the next-use table for a single block: for each instruction index,
// the UseState of every operand known at that point.
type NextUse struct {
	// States[i] is the next-use state recorded at instruction i: operands
	// that i uses are Live(i); every other operand, including the one i
	// defines, shows its next use after i.
	States []map[string]UseState
}

// At returns the UseState for op recorded at instruction index i, defaulting to
// Dead if op has never been mentioned in the block.
func (n *NextUse) At(i int, op ir.Operand) UseState {
	if st, ok := n.States[i][ir.OperandKey(op)]; ok {
		return st
	}
	return Dead
}

// ComputeNextUse computes the intra-block next-use map for a single block given
// its live-out set (spec.md §4.1). Every operand appearing in the block, plus
// every operand in liveOut, starts Live(last instruction); the block is then
// walked backward: a definition marks the operand Dead immediately after the
// defining instruction, a use marks it Live(current instruction).
func ComputeNextUse(b *ir.Block, liveOut OperandSet) *NextUse {
	n := len(b.Instr)
	result := &NextUse{States: make([]map[string]UseState, n)}
	if n == 0 {
		return result
	}

	state := map[string]UseState{}
	lastIndex := n - 1
	for key := range liveOut {
		state[key] = LiveAt(lastIndex)
	}
	for _, inst := range b.Instr {
		for _, use := range inst.Uses() {
			state[ir.OperandKey(use)] = LiveAt(lastIndex)
		}
		if def := inst.Defines(); def != nil {
			if _, ok := state[ir.OperandKey(def)]; !ok {
				state[ir.OperandKey(def)] = LiveAt(lastIndex)
			}
		}
	}

	// Walk backward. At each instruction, apply its uses, record the
	// snapshot, then apply its definition: States[i] reflects i's own reads
	// but not its write, and the write's Dead shows from States[i-1] back to
	// the previous use.
	for i := n - 1; i >= 0; i-- {
		inst := b.Instr[i]

		for _, use := range inst.Uses() {
			state[ir.OperandKey(use)] = LiveAt(i)
		}

		snapshot := make(map[string]UseState, len(state))
		for k, v := range state {
			snapshot[k] = v
		}
		result.States[i] = snapshot

		if def := inst.Defines(); def != nil {
			state[ir.OperandKey(def)] = Dead
		}
	}

	return result
}
