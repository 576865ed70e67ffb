package ir

import "fmt"

// Block is a named, straight-line sequence of instructions terminating in
// exactly one control-flow instruction. Name is the label used to target it from
// a Jump/JumpIf elsewhere in the program.
type Block struct {
	Name  string
	Instr []Instruction
}

// Terminator returns the block's last instruction, which by CFG invariant is
// always a Jump, JumpIf or Halt. ok is false if the block is empty or its last
// instruction is not a valid terminator (MalformedCFG).
func (b *Block) Terminator() (Instruction, bool) {
	if len(b.Instr) == 0 {
		return nil, false
	}
	last := b.Instr[len(b.Instr)-1]
	return last, IsTerminator(last)
}

// Successors returns the blocks this block's terminator can transfer control to,
// by name. Jump has one, JumpIf has two (possibly identical), Halt has none.
func (b *Block) Successors() []string {
	term, ok := b.Terminator()
	if !ok {
		return nil
	}
	switch t := term.(type) {
	case Jump:
		return []string{t.Target}
	case JumpIf:
		return []string{t.IfTrue, t.IfFalse}
	case Halt:
		return nil
	default:
		return nil
	}
}

// Program is the closed list of basic blocks the front end hands to the core.
// The first block is the entry point (spec.md §3).
type Program struct {
	Blocks []*Block
}

func (p *Program) Entry() *Block {
	if len(p.Blocks) == 0 {
		return nil
	}
	return p.Blocks[0]
}

// ByName indexes blocks by label for O(1) lookup; built on demand since passes
// may replace the Blocks slice wholesale.
func (p *Program) ByName() map[string]*Block {
	m := make(map[string]*Block, len(p.Blocks))
	for _, b := range p.Blocks {
		m[b.Name] = b
	}
	return m
}

// Validate checks the CFG invariants of spec.md §3: every block ends in exactly
// one terminator, and every jump target names a block present in the program.
func (p *Program) Validate() error {
	byName := p.ByName()
	for _, b := range p.Blocks {
		if _, ok := b.Terminator(); !ok {
			return fmt.Errorf("%w: block %q has no terminator as its last instruction", ErrMalformedCFG, b.Name)
		}
		for i, inst := range b.Instr {
			if i != len(b.Instr)-1 && IsTerminator(inst) {
				return fmt.Errorf("%w: block %q has a terminator before its last instruction", ErrMalformedCFG, b.Name)
			}
		}
		for _, succ := range b.Successors() {
			if _, ok := byName[succ]; !ok {
				return fmt.Errorf("%w: block %q targets undefined block %q", ErrMalformedCFG, b.Name, succ)
			}
		}
	}
	return nil
}

// ErrMalformedCFG tags internal-error diagnostics raised when the CFG invariants
// of spec.md §3/§7 are violated — always a programming error, never a source error.
var ErrMalformedCFG = fmt.Errorf("malformed CFG")
