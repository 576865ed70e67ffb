package analysis

import "rmcc/pkg/ir"

// OperandSet is an immutable-by-convention set of operands keyed by ir.OperandKey,
// used for the live-in/live-out sets that Liveness returns.
type OperandSet map[string]ir.Operand

func (s OperandSet) Has(op ir.Operand) bool {
	_, ok := s[ir.OperandKey(op)]
	return ok
}

func (s OperandSet) clone() OperandSet {
	out := make(OperandSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func (s OperandSet) add(op ir.Operand) {
	s[ir.OperandKey(op)] = op
}

func (s OperandSet) union(other OperandSet) OperandSet {
	out := s.clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

func (s OperandSet) without(op ir.Operand) OperandSet {
	out := s.clone()
	delete(out, ir.OperandKey(op))
	return out
}

func (a OperandSet) equal(b OperandSet) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// BlockLiveness holds the live-in and live-out operand sets for a single block.
type BlockLiveness struct {
	In, Out OperandSet
}

// Liveness computes operand-granular, backward, all-paths liveness for every
// block (spec.md §4.1): out(b) = ∪ in(s) for successors s; walking the block in
// reverse, in = (out ∖ defines(inst)) ∪ uses(inst), iterated to a fixpoint.
func Liveness(prog *ir.Program) (map[string]*BlockLiveness, error) {
	if err := prog.Validate(); err != nil {
		return nil, err
	}

	result := make(map[string]*BlockLiveness, len(prog.Blocks))
	for _, b := range prog.Blocks {
		result[b.Name] = &BlockLiveness{In: OperandSet{}, Out: OperandSet{}}
	}
	changed := true
	for changed {
		changed = false
		for _, b := range prog.Blocks {
			out := OperandSet{}
			for _, succName := range b.Successors() {
				out = out.union(result[succName].In)
			}

			in := out
			for i := len(b.Instr) - 1; i >= 0; i-- {
				inst := b.Instr[i]
				if def := inst.Defines(); def != nil {
					in = in.without(def)
				}
				for _, use := range inst.Uses() {
					in = in.union(OperandSet{ir.OperandKey(use): use})
				}
			}

			bl := result[b.Name]
			if !bl.Out.equal(out) || !bl.In.equal(in) {
				bl.Out, bl.In = out, in
				changed = true
			}
		}
	}
	return result, nil
}
