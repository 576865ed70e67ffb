package target

import (
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Assembler resolves a flat Instr stream — as emitted by pkg/codegen, with
// LabelDecl markers standing in for block/macro labels — into a program whose
// Jump/JZero/JOdd targets are decimal instruction indices, and renders that
// resolved program as text (spec.md §4.3 "Label table").
//
// The two-pass shape (first pass: walk, dropping LabelDecls while recording
// the index each label lands on; second pass: rewrite every jump target)
// mirrors the teacher's asm.Lowerer.Lower, which does the same thing for the
// Hack assembler's own label table, just with a richer target ISA here.
type Assembler struct {
	Debug bool
}

func NewAssembler(debug bool) *Assembler {
	return &Assembler{Debug: debug}
}

// Resolve drops every LabelDecl from prog, builds a table mapping each label
// name to the instruction index it lands on, and returns a new instruction
// slice with every Jump/JZero/JOdd Label rewritten to the decimal string of
// its resolved index. Multiple labels may land on the same index (e.g. an
// empty block whose only content is its terminator). Resolving a jump to a
// name absent from the table is an internal malformation — spec.md §3
// requires every jump target to name a block present in the input program,
// and label-emitting passes (codegen, macro) must never invent a dangling one.
func (a *Assembler) Resolve(prog []Instr) (resolved []Instr, labels map[string]int, err error) {
	labels = map[string]int{}
	filtered := make([]Instr, 0, len(prog))
	for _, inst := range prog {
		if decl, ok := inst.(LabelDecl); ok {
			labels[decl.Name] = len(filtered)
			continue
		}
		filtered = append(filtered, inst)
	}

	resolved = make([]Instr, len(filtered))
	for i, inst := range filtered {
		rewritten, err := a.rewrite(inst, labels)
		if err != nil {
			return nil, nil, fmt.Errorf("target: instruction %d: %w", i, err)
		}
		resolved[i] = rewritten
	}
	return resolved, labels, nil
}

func (a *Assembler) rewrite(inst Instr, labels map[string]int) (Instr, error) {
	switch n := inst.(type) {
	case Jump:
		idx, err := resolveLabel(labels, n.Label)
		if err != nil {
			return nil, err
		}
		return Jump{Label: idx}, nil
	case JZero:
		idx, err := resolveLabel(labels, n.Label)
		if err != nil {
			return nil, err
		}
		return JZero{Reg: n.Reg, Label: idx}, nil
	case JOdd:
		idx, err := resolveLabel(labels, n.Label)
		if err != nil {
			return nil, err
		}
		return JOdd{Reg: n.Reg, Label: idx}, nil
	default:
		return inst, nil
	}
}

func resolveLabel(labels map[string]int, name string) (string, error) {
	idx, ok := labels[name]
	if !ok {
		return "", fmt.Errorf("%w: undefined label %q", ErrUnresolvedLabel, name)
	}
	return strconv.Itoa(idx), nil
}

// ErrUnresolvedLabel tags the internal-error case of spec.md §7: a jump
// target that never corresponds to a label declaration in the input stream.
// This can only happen from a programming error upstream (codegen/macro
// emitting a Jump to a name it never declared), never from user input.
var ErrUnresolvedLabel = fmt.Errorf("target: unresolved label")

// Render writes resolved (the output of Resolve) as one instruction per
// line, in the numeric-target text format spec.md §6 requires. When
// a.Debug is set, every index that some label in labelsAt resolved to is
// preceded by a "# name:" comment line (spec.md §6 "precede lines with
// `# label:` comments at label points").
func (a *Assembler) Render(w io.Writer, resolved []Instr, labels map[string]int) error {
	labelsAt := map[int][]string{}
	for name, idx := range labels {
		labelsAt[idx] = append(labelsAt[idx], name)
	}
	for _, names := range labelsAt {
		sort.Strings(names)
	}

	for i, inst := range resolved {
		if a.Debug {
			for _, name := range labelsAt[i] {
				if _, err := fmt.Fprintln(w, "# "+name+":"); err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprintln(w, inst.String()); err != nil {
			return err
		}
	}
	// A label pointing one past the end of the program (e.g. a block whose
	// fallthrough target is never jumped to in practice, or the synthetic
	// "after-last-block" label some front ends add) still deserves its
	// comment in debug output even though no instruction follows it.
	if a.Debug {
		for _, name := range labelsAt[len(resolved)] {
			if _, err := fmt.Fprintln(w, "# "+name+":"); err != nil {
				return err
			}
		}
	}
	return nil
}
