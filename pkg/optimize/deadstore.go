package optimize

import (
	"rmcc/pkg/analysis"
	"rmcc/pkg/ir"
)

// DeadStoreElim drops any Move(Constant, dst) whose dst is dead immediately
// after it, using per-block next-use (spec.md §4.2). Side-effecting
// instructions — Put, IndexedStore, branches, Halt, Get — are always kept; an
// IndexedStore is never removed even when its slot is otherwise known dead,
// since a later load could still observe it (spec.md §9 open question).
type DeadStoreElim struct{}

func (DeadStoreElim) Name() string { return "dead-store elimination" }

func (DeadStoreElim) Apply(prog *ir.Program) bool {
	live, err := analysis.Liveness(prog)
	if err != nil {
		return false
	}

	changed := false
	for _, b := range prog.Blocks {
		nu := analysis.ComputeNextUse(b, live[b.Name].Out)

		kept := make([]ir.Instruction, 0, len(b.Instr))
		for i, inst := range b.Instr {
			if isDeadConstStore(inst, i, nu) {
				changed = true
				continue
			}
			kept = append(kept, inst)
		}
		if len(kept) != len(b.Instr) {
			b.Instr = kept
		}
	}
	return changed
}

func isDeadConstStore(inst ir.Instruction, index int, nu *analysis.NextUse) bool {
	mv, ok := inst.(ir.Move)
	if !ok {
		return false
	}
	if _, ok := mv.Src.(ir.Constant); !ok {
		return false
	}
	// nu.At(index, dst) is recorded after this instruction's uses and before
	// its own definition is applied, so it gives dst's next use after this
	// instruction — Dead here means a later instruction overwrites dst before
	// any read.
	return !nu.At(index, mv.Dst).Live
}
