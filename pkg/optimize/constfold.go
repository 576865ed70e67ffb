package optimize

import (
	"math/big"

	"rmcc/pkg/ir"
	"rmcc/pkg/satmath"
)

// ConstFold alternates the two sub-passes of spec.md §4.2 — map maintenance,
// then propagation/folding — within each block, to a fixpoint. It never
// crosses a block boundary: knownConst is local to a single block's forward
// walk, so the pass is safe to run without first computing reaching
// definitions (blocks may be entered with different live values).
type ConstFold struct{}

func (ConstFold) Name() string { return "constant propagation and folding" }

func (ConstFold) Apply(prog *ir.Program) bool {
	changedOverall := false
	for _, b := range prog.Blocks {
		for foldBlockOnce(b) {
			changedOverall = true
		}
	}
	return changedOverall
}

// arraySlot keys a literal-offset array element for the knownConst map: the
// base array's name plus the literal offset's decimal text.
func arraySlot(baseName string, offset ir.Constant) string {
	return "arr:" + baseName + "#" + offset.Key()
}

// foldBlockOnce performs one forward pass over b: maintains knownConst,
// replaces known operands with literals, folds arithmetic and branches, and
// applies the neutral-element rewrites of spec.md §4.2. Returns whether it
// changed anything, so callers can loop to a fixpoint.
func foldBlockOnce(b *ir.Block) bool {
	known := map[string]*big.Int{}
	changed := false

	resolve := func(op ir.Operand) ir.Operand {
		if c, ok := op.(ir.Constant); ok {
			return c
		}
		if v, ok := known[ir.OperandKey(op)]; ok {
			return ir.Constant{Value: v}
		}
		return op
	}

	forget := func(op ir.Operand) {
		if op == nil {
			return
		}
		delete(known, ir.OperandKey(op))
	}

	for i, inst := range b.Instr {
		switch n := inst.(type) {
		case ir.Move:
			src := resolve(n.Src)
			if src != n.Src {
				n.Src = src
				changed = true
			}
			forget(n.Dst)
			if c, ok := src.(ir.Constant); ok {
				known[ir.OperandKey(n.Dst)] = c.Value
			}
			b.Instr[i] = n

		case ir.Get:
			forget(n.Dst)
			b.Instr[i] = n

		case ir.Put:
			src := resolve(n.Src)
			if src != n.Src {
				n.Src = src
				changed = true
			}
			b.Instr[i] = n

		case ir.IndexedLoad:
			offset := resolve(n.Offset)
			if offset != n.Offset {
				n.Offset = offset
				changed = true
			}
			forget(n.Dst)
			if c, ok := offset.(ir.Constant); ok {
				if v, ok := known[arraySlot(n.Base.Name, c)]; ok {
					rewritten := ir.Move{Src: ir.Constant{Value: v}, Dst: n.Dst}
					known[ir.OperandKey(n.Dst)] = v
					b.Instr[i] = rewritten
					changed = true
					continue
				}
			}
			b.Instr[i] = n

		case ir.IndexedStore:
			src := resolve(n.Src)
			offset := resolve(n.Offset)
			if src != n.Src || offset != n.Offset {
				n.Src, n.Offset = src, offset
				changed = true
			}
			if c, ok := offset.(ir.Constant); ok {
				if sc, ok := src.(ir.Constant); ok {
					known[arraySlot(n.Base.Name, c)] = sc.Value
				} else {
					delete(known, arraySlot(n.Base.Name, c))
				}
			}
			b.Instr[i] = n

		case ir.Binary:
			left, right := resolve(n.Left), resolve(n.Right)
			if left != n.Left || right != n.Right {
				n.Left, n.Right = left, right
				changed = true
			}

			if rewritten, ok := neutralRewrite(n); ok {
				b.Instr[i] = rewritten
				forget(n.Result)
				if c, ok := rewritten.Src.(ir.Constant); ok {
					known[ir.OperandKey(n.Result)] = c.Value
				}
				changed = true
				continue
			}

			lc, lok := left.(ir.Constant)
			rc, rok := right.(ir.Constant)
			if lok && rok {
				result := satmath.Eval(n.Op.String(), lc.Value, rc.Value)
				b.Instr[i] = ir.Move{Src: ir.Constant{Value: result}, Dst: n.Result}
				known[ir.OperandKey(n.Result)] = result
				changed = true
				continue
			}

			forget(n.Result)
			b.Instr[i] = n

		case ir.Jump:
			b.Instr[i] = n

		case ir.JumpIf:
			left, right := resolve(n.Left), resolve(n.Right)
			if left != n.Left || right != n.Right {
				n.Left, n.Right = left, right
				changed = true
			}
			lc, lok := left.(ir.Constant)
			rc, rok := right.(ir.Constant)
			if lok && rok {
				taken := n.IfFalse
				if evalRel(n.Cond, lc.Value, rc.Value) {
					taken = n.IfTrue
				}
				b.Instr[i] = ir.Jump{Target: taken}
				changed = true
				continue
			}
			b.Instr[i] = n

		case ir.Halt:
			b.Instr[i] = n
		}
	}

	return changed
}

func evalRel(op ir.RelOp, a, b *big.Int) bool {
	cmp := a.Cmp(b)
	switch op {
	case ir.Eq:
		return cmp == 0
	case ir.Ne:
		return cmp != 0
	case ir.Lt:
		return cmp < 0
	case ir.Gt:
		return cmp > 0
	case ir.Le:
		return cmp <= 0
	case ir.Ge:
		return cmp >= 0
	default:
		panic("optimize: unknown RelOp")
	}
}

// neutralRewrite applies the neutral-element identities of spec.md §4.2,
// EXCEPT x+1 which is deliberately left alone so the instruction selector can
// still recognize it and emit the INC idiom (spec.md §4.6).
func neutralRewrite(n ir.Binary) (ir.Move, bool) {
	lc, lIsConst := n.Left.(ir.Constant)
	rc, rIsConst := n.Right.(ir.Constant)

	isOne := func(c ir.Constant) bool { return c.Value.Cmp(big.NewInt(1)) == 0 }

	switch n.Op {
	case ir.Add:
		if rIsConst && rc.Value.Sign() == 0 {
			return ir.Move{Src: n.Left, Dst: n.Result}, true
		}
		if lIsConst && lc.Value.Sign() == 0 {
			return ir.Move{Src: n.Right, Dst: n.Result}, true
		}
	case ir.Sub:
		if rIsConst && rc.Value.Sign() == 0 {
			return ir.Move{Src: n.Left, Dst: n.Result}, true
		}
		if lIsConst && lc.Value.Sign() == 0 {
			return ir.Move{Src: ir.Constant{Value: big.NewInt(0)}, Dst: n.Result}, true
		}
	case ir.Mul:
		if (rIsConst && rc.Value.Sign() == 0) || (lIsConst && lc.Value.Sign() == 0) {
			return ir.Move{Src: ir.Constant{Value: big.NewInt(0)}, Dst: n.Result}, true
		}
		if rIsConst && isOne(rc) {
			return ir.Move{Src: n.Left, Dst: n.Result}, true
		}
		if lIsConst && isOne(lc) {
			return ir.Move{Src: n.Right, Dst: n.Result}, true
		}
	case ir.Div:
		if rIsConst && rc.Value.Sign() == 0 {
			return ir.Move{Src: ir.Constant{Value: big.NewInt(0)}, Dst: n.Result}, true
		}
		if rIsConst && isOne(rc) {
			return ir.Move{Src: n.Left, Dst: n.Result}, true
		}
	case ir.Rem:
		if rIsConst && isOne(rc) {
			return ir.Move{Src: ir.Constant{Value: big.NewInt(0)}, Dst: n.Result}, true
		}
	}
	return ir.Move{}, false
}
