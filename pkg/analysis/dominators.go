package analysis

import "rmcc/pkg/ir"

// Dominators computes, for every block, the set of block names that dominate it
// (spec.md §4.1): dom(entry) = {entry}; dom(b) = {b} ∪ (∩ dom(p) for predecessors
// p of b) for all other blocks, iterated to a fixpoint starting from the universal
// set. Uses the "scan all nodes until stable" style spec.md §9 explicitly allows.
func Dominators(prog *ir.Program) (map[string]map[string]bool, error) {
	preds, err := Predecessors(prog)
	if err != nil {
		return nil, err
	}
	if len(prog.Blocks) == 0 {
		return map[string]map[string]bool{}, nil
	}

	entry := prog.Entry().Name
	all := make(map[string]bool, len(prog.Blocks))
	for _, b := range prog.Blocks {
		all[b.Name] = true
	}

	dom := make(map[string]map[string]bool, len(prog.Blocks))
	for name := range all {
		if name == entry {
			dom[name] = map[string]bool{entry: true}
		} else {
			dom[name] = cloneSet(all)
		}
	}

	changed := true
	for changed {
		changed = false
		for _, b := range prog.Blocks {
			if b.Name == entry {
				continue
			}
			next := intersectPredDoms(dom, preds[b.Name])
			next[b.Name] = true

			if !setEqual(next, dom[b.Name]) {
				dom[b.Name] = next
				changed = true
			}
		}
	}
	return dom, nil
}

func intersectPredDoms(dom map[string]map[string]bool, preds map[string]bool) map[string]bool {
	if len(preds) == 0 {
		return map[string]bool{}
	}
	var result map[string]bool
	for p := range preds {
		if result == nil {
			result = cloneSet(dom[p])
			continue
		}
		for name := range result {
			if !dom[p][name] {
				delete(result, name)
			}
		}
	}
	return result
}

func cloneSet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func setEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
