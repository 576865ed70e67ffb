// Package optimize rewrites an *ir.Program to a semantically equivalent but
// cheaper-to-execute one: array-to-scalar promotion, constant propagation with
// folding to a fixpoint, and dead-store elimination (spec.md §4.2).
//
// Pass is modelled the way the kanso-lang-kanso example repo models its IR
// optimization passes (internal/ir/optimizations.go): a small named interface
// with an Apply method reporting whether it changed anything, so a Pipeline can
// log progress and loop passes to a fixpoint uniformly.
package optimize

import "rmcc/pkg/ir"

// Pass is a single rewrite over a program. Apply may replace block instruction
// lists wholesale; it must never violate CFG well-formedness (spec.md §8).
type Pass interface {
	Name() string
	Apply(prog *ir.Program) bool
}

// Pipeline runs ArrayPromotion once, then re-runs ConstFold until a round
// reports no change, then finally applies DeadStoreElim. No reaching
// definitions are computed between ConstFold rounds; ConstFold only
// propagates constants within a single block.
//
// Pipeline has no fields: ArrayPromotion synthesizes its promoted-slot
// symtab.Entry values directly (keyed by base name + constant offset, never
// by a fresh ir.Temp), so there is no shared allocator state for passes to
// collide over.
type Pipeline struct{}

// Run executes the full optimization pipeline and returns whether any pass
// changed the program.
func (p *Pipeline) Run(prog *ir.Program) (bool, error) {
	if err := prog.Validate(); err != nil {
		return false, err
	}

	changedOverall := false

	if (&ArrayPromotion{}).Apply(prog) {
		changedOverall = true
	}

	for {
		changedThisRound := false
		if (&ConstFold{}).Apply(prog) {
			changedThisRound = true
		}
		if !changedThisRound {
			break
		}
		changedOverall = true
	}

	if (&DeadStoreElim{}).Apply(prog) {
		changedOverall = true
	}

	if err := prog.Validate(); err != nil {
		return changedOverall, err
	}
	return changedOverall, nil
}
