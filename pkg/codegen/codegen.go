// Package codegen is the back-end driver: it walks an optimized ir.Program
// block by block, in program order, and lowers each quadruple to the
// register-allocated instruction sequence of pkg/target, using pkg/macro for
// anything the raw ISA can't do directly and pkg/regalloc to decide where
// each live value lives (spec.md §4.6).
//
// Peephole recognition of the cheap idioms (x+1, x-1, 2*x, x/2, x%2) happens
// right here, inline in the Binary case, rather than as a separate rewrite
// pass over already-generated code — the teacher's code generators (hack,
// vm, asm) are all one-pass emitters in the same style.
package codegen

import (
	"fmt"
	"math/big"

	"rmcc/pkg/analysis"
	"rmcc/pkg/ir"
	"rmcc/pkg/macro"
	"rmcc/pkg/regalloc"
	"rmcc/pkg/symtab"
	"rmcc/pkg/target"
)

// Generator owns the one Emitter/Allocator pair used for an entire program,
// so label numbering and address assignment stay consistent across blocks.
type Generator struct {
	Emit  *macro.Emitter
	Alloc *regalloc.Allocator

	reserved map[target.Reg]bool
}

func NewGenerator(addr *regalloc.AddressTable) *Generator {
	e := macro.NewEmitter()
	return &Generator{
		Emit:     e,
		Alloc:    regalloc.NewAllocator(addr, e),
		reserved: map[target.Reg]bool{},
	}
}

// Generate lowers every block of prog, in order, to a flat Instr stream with
// LabelDecl markers at each block's start (so pkg/target.Assembler can
// resolve Jump/JumpIf targets directly against ir.Block names).
func (g *Generator) Generate(prog *ir.Program) ([]target.Instr, error) {
	if err := prog.Validate(); err != nil {
		return nil, err
	}
	live, err := analysis.Liveness(prog)
	if err != nil {
		return nil, err
	}

	var out []target.Instr
	for _, b := range prog.Blocks {
		out = append(out, target.LabelDecl{Name: b.Name})

		nu := analysis.ComputeNextUse(b, live[b.Name].Out)
		for i, inst := range b.Instr {
			dist := distanceAt(nu, i)
			instrs, err := g.emit(inst, dist)
			if err != nil {
				return nil, fmt.Errorf("codegen: block %q instruction %d: %w", b.Name, i, err)
			}
			out = append(out, instrs...)
		}

		// Every block boundary is a potential merge point (a jump target can
		// have more than one predecessor), so registers can't carry state
		// across it: flush everything to memory and start the next block
		// with a clean slate (spec.md §4.6).
		out = append(out, g.Alloc.SaveVariables()...)
		g.Alloc.ResetRegistersState()
		g.reserved = map[target.Reg]bool{}
	}
	return out, nil
}

func distanceAt(nu *analysis.NextUse, i int) map[string]int {
	d := map[string]int{}
	for k, st := range nu.States[i] {
		if st.Live {
			d[k] = st.NextUseIndex
		}
	}
	return d
}

// reserve picks a register not currently reserved for another in-flight
// value within the instruction being lowered, on top of whatever the caller
// additionally pins, and marks it reserved until release. This exists
// because Select alone doesn't know which registers this one quadruple has
// already committed to using.
func (g *Generator) reserve(dist map[string]int, pinned ...target.Reg) (target.Reg, []target.Instr) {
	all := append(append([]target.Reg{}, pinned...), g.reservedList()...)
	reg, spill := g.Alloc.Select(dist, all...)
	g.reserved[reg] = true
	return reg, spill
}

func (g *Generator) release(reg target.Reg) { delete(g.reserved, reg) }

func (g *Generator) reservedList() []target.Reg {
	out := make([]target.Reg, 0, len(g.reserved))
	for r := range g.reserved {
		out = append(out, r)
	}
	return out
}

// bind commits reg as the permanent home of key, releasing it from the
// transient reservation set (BindFresh's own bookkeeping takes over).
func (g *Generator) bind(key string, reg target.Reg) {
	g.Alloc.BindFresh(key, reg)
	g.release(reg)
}

// load brings op's value into a register, materializing it fresh if op is a
// Constant. The returned register is reserved until release is called.
func (g *Generator) load(op ir.Operand, dist map[string]int, pinned ...target.Reg) (target.Reg, []target.Instr, error) {
	if c, ok := op.(ir.Constant); ok {
		reg, spill := g.reserve(dist, pinned...)
		instrs, err := g.Emit.EmitConstant(reg, c.Value)
		if err != nil {
			return "", nil, err
		}
		return reg, append(spill, instrs...), nil
	}
	all := append(append([]target.Reg{}, pinned...), g.reservedList()...)
	reg, instrs := g.Alloc.Load(ir.OperandKey(op), dist, all...)
	g.reserved[reg] = true
	return reg, instrs, nil
}

func arrayKey(e *symtab.Entry) string { return "arr:" + e.Name }

// effectiveOffset returns a register holding idx's array-relative offset
// (idx - base.Lo), leaving idxReg itself untouched since it may still be a
// live named variable (e.g. a loop counter used again later).
func (g *Generator) effectiveOffset(idxReg target.Reg, base *symtab.Entry, dist map[string]int) (target.Reg, []target.Instr, error) {
	if base.Lo == 0 {
		return idxReg, nil, nil
	}
	resultReg, spill1 := g.reserve(dist, idxReg)
	var out []target.Instr
	out = append(out, spill1...)
	out = append(out, target.Copy{Dst: resultReg, Src: idxReg})

	loReg, spill2 := g.reserve(dist, idxReg, resultReg)
	out = append(out, spill2...)
	instrs, err := g.Emit.EmitConstant(loReg, big.NewInt(base.Lo))
	if err != nil {
		return "", nil, err
	}
	out = append(out, instrs...)
	out = append(out, target.Sub{Dst: resultReg, Src: loReg})
	g.release(loReg)
	return resultReg, out, nil
}

func (g *Generator) emit(inst ir.Instruction, dist map[string]int) ([]target.Instr, error) {
	switch n := inst.(type) {
	case ir.Move:
		return g.genMove(n, dist)
	case ir.Get:
		return g.genGet(n, dist)
	case ir.Put:
		return g.genPut(n, dist)
	case ir.IndexedLoad:
		return g.genIndexedLoad(n, dist)
	case ir.IndexedStore:
		return g.genIndexedStore(n, dist)
	case ir.Binary:
		return g.genBinary(n, dist)
	case ir.Jump:
		return []target.Instr{target.Jump{Label: n.Target}}, nil
	case ir.JumpIf:
		return g.genJumpIf(n, dist)
	case ir.Halt:
		return []target.Instr{target.Halt{}}, nil
	default:
		return nil, fmt.Errorf("codegen: unhandled instruction kind %T", inst)
	}
}

func (g *Generator) genMove(m ir.Move, dist map[string]int) ([]target.Instr, error) {
	dstKey := ir.OperandKey(m.Dst)

	if c, ok := m.Src.(ir.Constant); ok {
		dstReg, spill := g.reserve(dist)
		instrs, err := g.Emit.EmitConstant(dstReg, c.Value)
		if err != nil {
			return nil, err
		}
		out := append(spill, instrs...)
		g.bind(dstKey, dstReg)
		return out, nil
	}

	srcReg, pre, err := g.load(m.Src, dist)
	if err != nil {
		return nil, err
	}
	dstReg, spill := g.reserve(dist, srcReg)
	out := append(pre, spill...)
	out = append(out, target.Copy{Dst: dstReg, Src: srcReg})
	g.release(srcReg)
	g.bind(dstKey, dstReg)
	return out, nil
}

func (g *Generator) genGet(get ir.Get, dist map[string]int) ([]target.Instr, error) {
	dstKey := ir.OperandKey(get.Dst)
	dstReg, spill := g.reserve(dist)
	out := append(spill, g.Emit.Get(dstReg)...)
	g.bind(dstKey, dstReg)
	return out, nil
}

func (g *Generator) genPut(put ir.Put, dist map[string]int) ([]target.Instr, error) {
	reg, pre, err := g.load(put.Src, dist)
	if err != nil {
		return nil, err
	}
	out := append(pre, g.Emit.Put(reg)...)
	g.release(reg)
	return out, nil
}

func (g *Generator) genIndexedLoad(ld ir.IndexedLoad, dist map[string]int) ([]target.Instr, error) {
	idxReg, pre, err := g.load(ld.Offset, dist)
	if err != nil {
		return nil, err
	}
	out := pre

	effReg, adj, err := g.effectiveOffset(idxReg, ld.Base, dist)
	if err != nil {
		return nil, err
	}
	out = append(out, adj...)

	dstReg, spill := g.reserve(dist, idxReg, effReg)
	out = append(out, spill...)
	out = append(out, g.Alloc.LeaIndexed(arrayKey(ld.Base), effReg, ld.Base.Size())...)
	out = append(out, target.Load{Reg: dstReg})

	g.release(idxReg)
	if effReg != idxReg {
		g.release(effReg)
	}
	g.bind(ir.OperandKey(ld.Dst), dstReg)
	return out, nil
}

func (g *Generator) genIndexedStore(st ir.IndexedStore, dist map[string]int) ([]target.Instr, error) {
	srcReg, preSrc, err := g.load(st.Src, dist)
	if err != nil {
		return nil, err
	}
	idxReg, preIdx, err := g.load(st.Offset, dist, srcReg)
	if err != nil {
		return nil, err
	}
	out := append(preSrc, preIdx...)

	effReg, adj, err := g.effectiveOffset(idxReg, st.Base, dist)
	if err != nil {
		return nil, err
	}
	out = append(out, adj...)

	out = append(out, g.Alloc.LeaIndexed(arrayKey(st.Base), effReg, st.Base.Size())...)
	out = append(out, target.Store{Reg: srcReg})

	g.release(srcReg)
	g.release(idxReg)
	if effReg != idxReg {
		g.release(effReg)
	}
	return out, nil
}

// genBinary lowers result := left op right, recognizing the cheap idioms of
// spec.md §4.6 before falling back to the general macro for each operator:
// left+1/1+left -> INC, left-1 -> DEC, left+left/left*2/2*left -> twice, left/2 -> HALF,
// left%2 -> Rem2. ConstFold already removes the fully-constant and
// neutral-element cases upstream, so only genuinely runtime operations with
// these specific shapes reach here.
func (g *Generator) genBinary(b ir.Binary, dist map[string]int) ([]target.Instr, error) {
	dstKey := ir.OperandKey(b.Result)

	if idiom, ok := g.peephole(b, dist); ok {
		instrs, err := idiom()
		if err != nil {
			return nil, err
		}
		return instrs, nil
	}

	leftReg, preL, err := g.load(b.Left, dist)
	if err != nil {
		return nil, err
	}
	rightReg, preR, err := g.load(b.Right, dist, leftReg)
	if err != nil {
		return nil, err
	}
	out := append(preL, preR...)

	resultReg, spill := g.reserve(dist, leftReg, rightReg)
	out = append(out, spill...)

	switch b.Op {
	case ir.Add:
		out = append(out, g.Emit.AddInto(resultReg, leftReg, rightReg, resultReg)...)
	case ir.Sub:
		out = append(out, g.Emit.SubInto(resultReg, leftReg, rightReg, resultReg)...)
	case ir.Mul:
		// LongMul consumes both its "b" and "accum" registers, so copy the
		// right operand out first rather than clobbering rightReg (which may
		// still be a live named variable elsewhere) and use a fourth,
		// distinct accumulator register.
		bScratch, spillB := g.reserve(dist, leftReg, rightReg, resultReg)
		out = append(out, spillB...)
		out = append(out, target.Copy{Dst: bScratch, Src: rightReg})
		accumScratch, spillAccum := g.reserve(dist, leftReg, rightReg, resultReg, bScratch)
		out = append(out, spillAccum...)
		out = append(out, g.Emit.LongMul(resultReg, leftReg, bScratch, accumScratch)...)
		g.release(bScratch)
		g.release(accumScratch)
	case ir.Div:
		qScratch, dScratch, mScratch, sScratch, scratchSpill := g.fourScratch(dist, leftReg, rightReg, resultReg)
		out = append(out, scratchSpill...)
		out = append(out, g.Emit.LongDivRem(resultReg, qScratch, leftReg, rightReg, dScratch, mScratch, sScratch)...)
		g.release(qScratch)
		g.release(dScratch)
		g.release(mScratch)
		g.release(sScratch)
	case ir.Rem:
		qScratch, dScratch, mScratch, sScratch, scratchSpill := g.fourScratch(dist, leftReg, rightReg, resultReg)
		out = append(out, scratchSpill...)
		out = append(out, g.Emit.LongDivRem(qScratch, resultReg, leftReg, rightReg, dScratch, mScratch, sScratch)...)
		g.release(qScratch)
		g.release(dScratch)
		g.release(mScratch)
		g.release(sScratch)
	default:
		return nil, fmt.Errorf("codegen: unknown arithmetic operator %v", b.Op)
	}

	g.release(leftReg)
	g.release(rightReg)
	g.bind(dstKey, resultReg)
	return out, nil
}

// fourScratch reserves four registers beyond pinned for LongDivRem's own
// scratch operands (q, d, m, s), collecting any eviction spills it triggers.
func (g *Generator) fourScratch(dist map[string]int, pinned ...target.Reg) (q, d, m, s target.Reg, spill []target.Instr) {
	var sp []target.Instr
	q, sp1 := g.reserve(dist, pinned...)
	sp = append(sp, sp1...)
	d, sp2 := g.reserve(dist, append(pinned, q)...)
	sp = append(sp, sp2...)
	m, sp3 := g.reserve(dist, append(pinned, q, d)...)
	sp = append(sp, sp3...)
	s, sp4 := g.reserve(dist, append(pinned, q, d, m)...)
	sp = append(sp, sp4...)
	return q, d, m, s, sp
}

// peephole recognizes the cheap special-case shapes of spec.md §4.6 and
// returns a thunk emitting the idiom, or ok=false to fall through to the
// general-purpose macro expansion in genBinary.
func (g *Generator) peephole(b ir.Binary, dist map[string]int) (func() ([]target.Instr, error), bool) {
	isConstN := func(op ir.Operand, n int64) bool {
		c, ok := op.(ir.Constant)
		return ok && c.Value.Cmp(big.NewInt(n)) == 0
	}

	dstKey := ir.OperandKey(b.Result)

	switch b.Op {
	case ir.Add:
		if isConstN(b.Right, 1) {
			return func() ([]target.Instr, error) { return g.incIdiom(b.Left, dstKey, dist) }, true
		}
		if isConstN(b.Left, 1) {
			return func() ([]target.Instr, error) { return g.incIdiom(b.Right, dstKey, dist) }, true
		}
		if sameOperand(b.Left, b.Right) {
			return func() ([]target.Instr, error) { return g.twiceIdiom(b.Left, dstKey, dist) }, true
		}
	case ir.Sub:
		if isConstN(b.Right, 1) {
			return func() ([]target.Instr, error) { return g.decIdiom(b.Left, dstKey, dist) }, true
		}
	case ir.Mul:
		if isConstN(b.Right, 2) {
			return func() ([]target.Instr, error) { return g.twiceIdiom(b.Left, dstKey, dist) }, true
		}
		if isConstN(b.Left, 2) {
			return func() ([]target.Instr, error) { return g.twiceIdiom(b.Right, dstKey, dist) }, true
		}
	case ir.Div:
		if isConstN(b.Right, 2) {
			return func() ([]target.Instr, error) { return g.halfIdiom(b.Left, dstKey, dist) }, true
		}
	case ir.Rem:
		if isConstN(b.Right, 2) {
			return func() ([]target.Instr, error) { return g.rem2Idiom(b.Left, dstKey, dist) }, true
		}
	}
	return nil, false
}

func sameOperand(a, bOp ir.Operand) bool {
	an, aok := a.(ir.Name)
	bn, bok := bOp.(ir.Name)
	if aok && bok {
		return an.Entry == bn.Entry
	}
	at, atok := a.(ir.Temp)
	bt, btok := bOp.(ir.Temp)
	if atok && btok {
		return at.ID == bt.ID
	}
	return false
}

// destructiveOK reports whether operand's own key is the same as dstKey, the
// only case in which the peephole table's in-place row applies (Add(x,1,x)).
// Any other shape (Add(x,1,y), y a fresh temp) is the non-destructive row and
// must not clobber operand's register, since operand's own variable is still
// live (spec.md §4.6, §8 Semantics preservation).
func destructiveOK(operand ir.Operand, dstKey string) bool {
	return ir.OperandKey(operand) == dstKey
}

func (g *Generator) incIdiom(operand ir.Operand, dstKey string, dist map[string]int) ([]target.Instr, error) {
	reg, pre, err := g.load(operand, dist)
	if err != nil {
		return nil, err
	}
	if destructiveOK(operand, dstKey) {
		out := append(pre, g.Emit.IncInto(reg, reg)...)
		g.bind(dstKey, reg)
		return out, nil
	}
	dstReg, spill := g.reserve(dist, reg)
	out := append(pre, spill...)
	out = append(out, g.Emit.IncInto(dstReg, reg)...)
	g.release(reg)
	g.bind(dstKey, dstReg)
	return out, nil
}

func (g *Generator) decIdiom(operand ir.Operand, dstKey string, dist map[string]int) ([]target.Instr, error) {
	reg, pre, err := g.load(operand, dist)
	if err != nil {
		return nil, err
	}
	if destructiveOK(operand, dstKey) {
		out := append(pre, g.Emit.DecInto(reg, reg)...)
		g.bind(dstKey, reg)
		return out, nil
	}
	dstReg, spill := g.reserve(dist, reg)
	out := append(pre, spill...)
	out = append(out, g.Emit.DecInto(dstReg, reg)...)
	g.release(reg)
	g.bind(dstKey, dstReg)
	return out, nil
}

func (g *Generator) twiceIdiom(operand ir.Operand, dstKey string, dist map[string]int) ([]target.Instr, error) {
	reg, pre, err := g.load(operand, dist)
	if err != nil {
		return nil, err
	}
	if destructiveOK(operand, dstKey) {
		out := append(pre, g.Emit.Twice(reg)...)
		g.bind(dstKey, reg)
		return out, nil
	}
	dstReg, spill := g.reserve(dist, reg)
	out := append(pre, spill...)
	out = append(out, g.Emit.Copy(dstReg, reg)...)
	out = append(out, g.Emit.Twice(dstReg)...)
	g.release(reg)
	g.bind(dstKey, dstReg)
	return out, nil
}

func (g *Generator) halfIdiom(operand ir.Operand, dstKey string, dist map[string]int) ([]target.Instr, error) {
	reg, pre, err := g.load(operand, dist)
	if err != nil {
		return nil, err
	}
	if destructiveOK(operand, dstKey) {
		out := append(pre, g.Emit.Half(reg)...)
		g.bind(dstKey, reg)
		return out, nil
	}
	dstReg, spill := g.reserve(dist, reg)
	out := append(pre, spill...)
	out = append(out, g.Emit.Copy(dstReg, reg)...)
	out = append(out, g.Emit.Half(dstReg)...)
	g.release(reg)
	g.bind(dstKey, dstReg)
	return out, nil
}

func (g *Generator) rem2Idiom(operand ir.Operand, dstKey string, dist map[string]int) ([]target.Instr, error) {
	reg, pre, err := g.load(operand, dist)
	if err != nil {
		return nil, err
	}
	scratch, spill := g.reserve(dist, reg)
	dstReg, spill2 := g.reserve(dist, reg, scratch)
	out := append(pre, spill...)
	out = append(out, spill2...)
	out = append(out, g.Emit.Rem2(dstReg, reg, scratch)...)
	g.release(reg)
	g.release(scratch)
	g.bind(dstKey, dstReg)
	return out, nil
}

func (g *Generator) genJumpIf(j ir.JumpIf, dist map[string]int) ([]target.Instr, error) {
	leftReg, preL, err := g.load(j.Left, dist)
	if err != nil {
		return nil, err
	}
	rightReg, preR, err := g.load(j.Right, dist, leftReg)
	if err != nil {
		return nil, err
	}
	out := append(preL, preR...)

	s1, spill1 := g.reserve(dist, leftReg, rightReg)
	s2, spill2 := g.reserve(dist, leftReg, rightReg, s1)
	out = append(out, spill1...)
	out = append(out, spill2...)

	switch j.Cond {
	case ir.Eq:
		out = append(out, g.Emit.JumpNe(leftReg, rightReg, j.IfFalse, s1, s2)...)
		out = append(out, target.Jump{Label: j.IfTrue})
	case ir.Ne:
		out = append(out, g.Emit.JumpNe(leftReg, rightReg, j.IfTrue, s1, s2)...)
		out = append(out, target.Jump{Label: j.IfFalse})
	case ir.Lt:
		out = append(out, g.Emit.JumpLt(leftReg, rightReg, j.IfTrue, s1)...)
		out = append(out, target.Jump{Label: j.IfFalse})
	case ir.Gt:
		out = append(out, g.Emit.JumpGt(leftReg, rightReg, j.IfTrue, s1)...)
		out = append(out, target.Jump{Label: j.IfFalse})
	case ir.Le:
		out = append(out, g.Emit.JumpLe(leftReg, rightReg, j.IfTrue, s1)...)
		out = append(out, target.Jump{Label: j.IfFalse})
	case ir.Ge:
		out = append(out, g.Emit.JumpGe(leftReg, rightReg, j.IfTrue, s1)...)
		out = append(out, target.Jump{Label: j.IfFalse})
	default:
		return nil, fmt.Errorf("codegen: unknown relational operator %v", j.Cond)
	}

	g.release(leftReg)
	g.release(rightReg)
	g.release(s1)
	g.release(s2)
	return out, nil
}
