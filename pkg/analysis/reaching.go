package analysis

import (
	"strconv"

	"rmcc/pkg/ir"
)

// Def identifies a single definition site: the instruction index within its block
// that wrote some operand.
type Def struct {
	Block string
	Index int
	Instr ir.Instruction
}

// DefSet is an immutable-by-convention set of Defs keyed by (block, index).
type DefSet map[string]Def

func defKey(block string, index int) string {
	return block + "#" + strconv.Itoa(index)
}

func (s DefSet) clone() DefSet {
	out := make(DefSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func (a DefSet) equal(b DefSet) bool {
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

// BlockReaching holds the reaching-definition sets at block entry and exit.
type BlockReaching struct {
	In, Out DefSet
}

// ReachingDefs computes forward, all-paths reaching definitions (spec.md §4.1):
// in(b) = ∪ out(p) for predecessors p; walking forward, out is updated by killing
// all prior definitions of the same operand and adding the current instruction,
// iterated to a fixpoint.
func ReachingDefs(prog *ir.Program) (map[string]*BlockReaching, error) {
	preds, err := Predecessors(prog)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*BlockReaching, len(prog.Blocks))
	for _, b := range prog.Blocks {
		result[b.Name] = &BlockReaching{In: DefSet{}, Out: DefSet{}}
	}

	changed := true
	for changed {
		changed = false
		for _, b := range prog.Blocks {
			in := DefSet{}
			for p := range preds[b.Name] {
				in = in.union(result[p].Out)
			}

			out := in.clone()
			for i, inst := range b.Instr {
				def := inst.Defines()
				if def == nil {
					continue
				}
				key := ir.OperandKey(def)
				out = killDefsOf(out, key)
				out[defKey(b.Name, i)] = Def{Block: b.Name, Index: i, Instr: inst}
			}

			br := result[b.Name]
			if !br.In.equal(in) || !br.Out.equal(out) {
				br.In, br.Out = in, out
				changed = true
			}
		}
	}
	return result, nil
}

func (s DefSet) union(other DefSet) DefSet {
	out := s.clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// killDefsOf removes every Def in s whose instruction defines the operand keyed
// by opKey, leaving defs of every other operand untouched.
func killDefsOf(s DefSet, opKey string) DefSet {
	out := make(DefSet, len(s))
	for k, d := range s {
		if ir.OperandKey(d.Instr.Defines()) == opKey {
			continue
		}
		out[k] = d
	}
	return out
}
