// Package analysis implements the dataflow analyses of spec.md §4.1: predecessors,
// dominators, block-level liveness, reaching definitions and intra-block next-use.
//
// Every analysis here is a pure function over a closed *ir.Program: none of them
// mutate the program, and all return immutable per-block (or per-instruction) maps,
// matching spec.md's "operate on a closed list of blocks" contract.
package analysis

import (
	"fmt"

	"rmcc/pkg/ir"
)

// Predecessors maps each block name to the set of block names whose terminator
// lists it as a target. Halt contributes no edges. Returns ErrMalformedCFG (via
// ir.Program.Validate, wrapped) if any block lacks a terminator.
func Predecessors(prog *ir.Program) (map[string]map[string]bool, error) {
	if err := prog.Validate(); err != nil {
		return nil, fmt.Errorf("analysis.Predecessors: %w", err)
	}

	preds := make(map[string]map[string]bool, len(prog.Blocks))
	for _, b := range prog.Blocks {
		preds[b.Name] = map[string]bool{}
	}
	for _, b := range prog.Blocks {
		for _, succ := range b.Successors() {
			preds[succ][b.Name] = true
		}
	}
	return preds, nil
}
