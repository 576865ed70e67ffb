package optimize

import (
	"fmt"

	"rmcc/pkg/ir"
	"rmcc/pkg/symtab"
)

// ArrayPromotion rewrites every IndexedLoad/IndexedStore on an array A into a
// Move against a synthesized scalar slot, provided every access to A uses a
// Constant offset (spec.md §4.2). If even one access to A has a non-constant
// offset, A is left untouched — the expensive lea() address-arithmetic macro
// (spec.md §4.5) is reserved for arrays that are genuinely indexed dynamically.
type ArrayPromotion struct{}

func (ArrayPromotion) Name() string { return "array-to-scalar promotion" }

func (ArrayPromotion) Apply(prog *ir.Program) bool {
	eligible, _ := scanArrayAccesses(prog)
	if len(eligible) == 0 {
		return false
	}

	slots := map[string]*symtab.Entry{} // "base.name#offset" -> synthesized scalar
	slotFor := func(base *symtab.Entry, offset string) *symtab.Entry {
		key := base.Name + "#" + offset
		if e, ok := slots[key]; ok {
			return e
		}
		e := &symtab.Entry{
			Name:        fmt.Sprintf("%s$%s", base.Name, offset),
			Kind:        symtab.Variable,
			Initialized: base.Initialized,
		}
		slots[key] = e
		return e
	}

	changed := false
	for _, b := range prog.Blocks {
		for i, inst := range b.Instr {
			switch n := inst.(type) {
			case ir.IndexedLoad:
				if !eligible[n.Base.Name] {
					continue
				}
				c, ok := n.Offset.(ir.Constant)
				if !ok {
					continue
				}
				slot := slotFor(n.Base, c.Key())
				b.Instr[i] = ir.Move{Src: ir.Name{Entry: slot}, Dst: n.Dst}
				changed = true

			case ir.IndexedStore:
				if !eligible[n.Base.Name] {
					continue
				}
				c, ok := n.Offset.(ir.Constant)
				if !ok {
					continue
				}
				slot := slotFor(n.Base, c.Key())
				b.Instr[i] = ir.Move{Src: n.Src, Dst: ir.Name{Entry: slot}}
				changed = true
			}
		}
	}
	return changed
}

// scanArrayAccesses returns the set of array names every one of whose
// accesses uses a Constant offset (the promotion precondition), along with
// the full set of arrays referenced at all (for bookkeeping/debug use).
func scanArrayAccesses(prog *ir.Program) (eligible map[string]bool, allOffsets map[string]bool) {
	touched := map[string]bool{}
	disqualified := map[string]bool{}

	note := func(base *symtab.Entry, offset ir.Operand) {
		touched[base.Name] = true
		if _, ok := offset.(ir.Constant); !ok {
			disqualified[base.Name] = true
		}
	}

	for _, b := range prog.Blocks {
		for _, inst := range b.Instr {
			switch n := inst.(type) {
			case ir.IndexedLoad:
				note(n.Base, n.Offset)
			case ir.IndexedStore:
				note(n.Base, n.Offset)
			}
		}
	}

	eligible = map[string]bool{}
	for name := range touched {
		if !disqualified[name] {
			eligible[name] = true
		}
	}
	return eligible, touched
}
