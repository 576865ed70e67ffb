package frontend

import (
	"fmt"

	"rmcc/pkg/diag"
	"rmcc/pkg/ir"
	"rmcc/pkg/symtab"
)

// lowerer turns a parsed Program into a symtab.Table and an ir.Program,
// reporting every semantic error of spec.md §7's source-error taxonomy
// (undeclared symbol, double declaration, bad array bounds, iterator
// reassignment, type mismatch, uninitialized read) through a diag.Sink as it
// goes, rather than stopping at the first one — the same accumulate-then-
// validate discipline pkg/diag documents.
//
// Label uniqueness follows the teacher's jack.Lowerer convention, adopted
// already by pkg/macro.Emitter: a per-prefix counter, Label returning
// "prefix_N".
type lowerer struct {
	sink   *diag.Sink
	syms   *symtab.Table
	temps  ir.TempAllocator
	seq    map[string]int
	hidden int

	blocks []*ir.Block
	cur    *ir.Block
}

// Lower compiles prog into a symbol table and a flat, validated basic-block
// program. It always returns what it managed to build, even when sink has
// accumulated errors; callers must call sink.Validate() before trusting the
// result (spec.md §7).
func Lower(prog *Program, sink *diag.Sink) (*symtab.Table, *ir.Program, error) {
	l := &lowerer{
		sink: sink,
		syms: symtab.NewTable(),
		seq:  make(map[string]int),
	}
	l.declare(prog.Decls)

	l.startBlock("entry")
	l.lowerStmts(prog.Body)
	l.closeWith(ir.Halt{})

	out := &ir.Program{Blocks: l.blocks}
	if sink.HasErrors() {
		return l.syms, out, fmt.Errorf("frontend: semantic errors were reported")
	}
	if err := out.Validate(); err != nil {
		return l.syms, out, diag.NewInternal(err, "lowering produced a malformed CFG")
	}
	return l.syms, out, nil
}

func (l *lowerer) declare(decls []Decl) {
	for _, d := range decls {
		if d.Array && d.Hi < d.Lo {
			l.sink.Errorf(pos(d.Pos), "array %q has upper bound %d below lower bound %d", d.Name, d.Hi, d.Lo)
			continue
		}
		e := &symtab.Entry{Name: d.Name, Pos: symtab.Pos{Line: d.Pos.Line, Column: d.Pos.Column}}
		if d.Array {
			e.Kind = symtab.Array
			e.Lo, e.Hi = d.Lo, d.Hi
			e.Initialized = true // every array cell is conventionally zero-initialized
		}
		if !l.syms.Declare(e) {
			l.sink.Errorf(pos(d.Pos), "%q is already declared", d.Name)
		}
	}
}

// --- block building ---

func (l *lowerer) startBlock(name string) {
	b := &ir.Block{Name: name}
	l.blocks = append(l.blocks, b)
	l.cur = b
}

func (l *lowerer) emit(inst ir.Instruction) {
	l.cur.Instr = append(l.cur.Instr, inst)
}

// closeWith appends inst (a terminator) to the current block only if that
// block has not already been closed by an earlier terminator — guards
// against emitting unreachable instructions after, e.g., a WHILE whose body
// always READs or WRITEs and never otherwise branches.
func (l *lowerer) closeWith(term ir.Instruction) {
	if len(l.cur.Instr) > 0 {
		if _, ok := l.cur.Terminator(); ok {
			return
		}
	}
	l.emit(term)
}

func (l *lowerer) label(prefix string) string {
	l.seq[prefix]++
	return fmt.Sprintf("%s_%d", prefix, l.seq[prefix])
}

func (l *lowerer) hiddenName(prefix string) string {
	l.hidden++
	return fmt.Sprintf("%%%s%d", prefix, l.hidden)
}

// --- statements ---

func (l *lowerer) lowerStmts(stmts []Stmt) {
	for _, s := range stmts {
		l.lowerStmt(s)
	}
}

func (l *lowerer) lowerStmt(s Stmt) {
	switch st := s.(type) {
	case AssignStmt:
		l.lowerAssign(st)
	case ReadStmt:
		l.lowerRead(st)
	case WriteStmt:
		l.lowerWrite(st)
	case IfStmt:
		l.lowerIf(st)
	case WhileStmt:
		l.lowerWhile(st)
	case ForStmt:
		l.lowerFor(st)
	default:
		l.sink.Errorf(diag.Pos{}, "internal: unhandled statement kind %T", s)
	}
}

func (l *lowerer) lowerAssign(s AssignStmt) {
	value := l.lowerExpr(s.Value)
	l.store(s.Target, value)
}

func (l *lowerer) lowerRead(s ReadStmt) {
	e, ok := l.resolveVar(s.Target)
	if !ok {
		return
	}
	if e.Kind == symtab.Array {
		idx := l.lowerExpr(s.Target.Index)
		t := l.temps.New()
		l.emit(ir.Get{Dst: t})
		l.emit(ir.IndexedStore{Base: e, Offset: idx, Src: t})
		return
	}
	if e.Iterator {
		l.sink.Errorf(pos(s.Target.Pos), "%q is a loop iterator and cannot be assigned to in its own body", s.Target.Name)
		return
	}
	l.emit(ir.Get{Dst: ir.Name{Entry: e}})
	e.Initialized = true
}

func (l *lowerer) lowerWrite(s WriteStmt) {
	v := l.lowerExpr(s.Value)
	l.emit(ir.Put{Src: v})
}

func (l *lowerer) lowerIf(s IfStmt) {
	thenLabel := l.label("IF_THEN")
	endLabel := l.label("IF_END")
	elseLabel := endLabel
	if s.Else != nil {
		elseLabel = l.label("IF_ELSE")
	}

	left, right, op := l.lowerCond(s.Cond)
	l.closeWith(ir.JumpIf{Cond: op, Left: left, Right: right, IfTrue: thenLabel, IfFalse: elseLabel})

	l.startBlock(thenLabel)
	l.lowerStmts(s.Then)
	l.closeWith(ir.Jump{Target: endLabel})

	if s.Else != nil {
		l.startBlock(elseLabel)
		l.lowerStmts(s.Else)
		l.closeWith(ir.Jump{Target: endLabel})
	}

	l.startBlock(endLabel)
}

func (l *lowerer) lowerWhile(s WhileStmt) {
	condLabel := l.label("WHILE_COND")
	bodyLabel := l.label("WHILE_BODY")
	endLabel := l.label("WHILE_END")

	l.closeWith(ir.Jump{Target: condLabel})

	l.startBlock(condLabel)
	left, right, op := l.lowerCond(s.Cond)
	l.closeWith(ir.JumpIf{Cond: op, Left: left, Right: right, IfTrue: bodyLabel, IfFalse: endLabel})

	l.startBlock(bodyLabel)
	l.lowerStmts(s.Body)
	l.closeWith(ir.Jump{Target: condLabel})

	l.startBlock(endLabel)
}

// lowerFor implements the hidden down-counter pattern of spec.md §4/§8: the
// iterator is set to From (or To, for DOWNTO) once; a hidden counter starts
// at |To - From| and is tested for zero after the body runs each iteration,
// so it reaches zero exactly once and the loop exits, matching the
// post-test-then-decrement shape the scenario description calls out. A guard
// before the loop skips the body entirely when the range is empty (From > To
// for an ascending loop, From < To for a descending one), since From/To are
// arbitrary run-time values, not necessarily literals.
func (l *lowerer) lowerFor(s ForStmt) {
	iterEntry := l.resolveOrDeclareIterator(s.Iterator, s.Pos)
	counterName := l.hiddenName("for")
	counter := &symtab.Entry{Name: counterName, Kind: symtab.Variable, Initialized: true}
	l.syms.Declare(counter)

	from := l.lowerExpr(s.From)
	to := l.lowerExpr(s.To)

	setupLabel := l.label("FOR_SETUP")
	loopLabel := l.label("FOR_LOOP")
	decLabel := l.label("FOR_DEC")
	endLabel := l.label("FOR_END")

	// Ascending skips when From > To; descending skips when From < To (the
	// range From..To read backwards). Either way the non-empty direction's
	// span is To-From or From-To, always evaluated the way that leaves a
	// non-negative operand for satmath.Sub to consume.
	guardOp, diffLeft, diffRight := ir.Gt, to, from
	if s.DownTo {
		guardOp, diffLeft, diffRight = ir.Lt, from, to
	}
	l.closeWith(ir.JumpIf{Cond: guardOp, Left: from, Right: to, IfTrue: endLabel, IfFalse: setupLabel})

	l.startBlock(setupLabel)
	l.emit(ir.Move{Dst: ir.Name{Entry: iterEntry}, Src: from})
	diffTemp := l.temps.New()
	l.emit(ir.Binary{Op: ir.Sub, Left: diffLeft, Right: diffRight, Result: diffTemp})
	l.emit(ir.Move{Dst: ir.Name{Entry: counter}, Src: diffTemp})
	l.closeWith(ir.Jump{Target: loopLabel})

	l.startBlock(loopLabel)
	iterEntry.Iterator = true
	l.lowerStmts(s.Body)
	iterEntry.Iterator = false
	l.closeWith(ir.JumpIf{Cond: ir.Eq, Left: ir.Name{Entry: counter}, Right: ir.ConstInt(0), IfTrue: endLabel, IfFalse: decLabel})

	l.startBlock(decLabel)
	counterMinusOne := l.temps.New()
	l.emit(ir.Binary{Op: ir.Sub, Left: ir.Name{Entry: counter}, Right: ir.ConstInt(1), Result: counterMinusOne})
	l.emit(ir.Move{Dst: ir.Name{Entry: counter}, Src: counterMinusOne})
	step := l.temps.New()
	stepOp := ir.Add
	if s.DownTo {
		stepOp = ir.Sub
	}
	l.emit(ir.Binary{Op: stepOp, Left: ir.Name{Entry: iterEntry}, Right: ir.ConstInt(1), Result: step})
	l.emit(ir.Move{Dst: ir.Name{Entry: iterEntry}, Src: step})
	l.closeWith(ir.Jump{Target: loopLabel})

	l.startBlock(endLabel)
}

func (l *lowerer) resolveOrDeclareIterator(name string, p Pos) *symtab.Entry {
	if e, ok := l.syms.Lookup(name); ok {
		if e.Kind != symtab.Variable {
			l.sink.Errorf(pos(p), "%q cannot be used as a loop iterator: it is an array", name)
		}
		e.Initialized = true
		return e
	}
	e := &symtab.Entry{Name: name, Kind: symtab.Variable, Pos: symtab.Pos{Line: p.Line, Column: p.Column}, Initialized: true}
	l.syms.Declare(e)
	return e
}

// --- expressions ---

func (l *lowerer) lowerExpr(e Expr) ir.Operand {
	switch ex := e.(type) {
	case NumberExpr:
		return ir.ConstInt(ex.Value)
	case VarExpr:
		entry, ok := l.resolveVar(ex)
		if !ok {
			return ir.ConstInt(0)
		}
		if entry.Kind == symtab.Array {
			idx := l.lowerExpr(ex.Index)
			t := l.temps.New()
			l.emit(ir.IndexedLoad{Base: entry, Offset: idx, Dst: t})
			return t
		}
		if !entry.Initialized {
			l.sink.Errorf(pos(ex.Pos), "%q is read before being assigned", ex.Name)
		}
		return ir.Name{Entry: entry}
	case BinaryExpr:
		left := l.lowerExpr(ex.Left)
		right := l.lowerExpr(ex.Right)
		t := l.temps.New()
		l.emit(ir.Binary{Op: arithOp(ex.Op), Left: left, Right: right, Result: t})
		return t
	default:
		l.sink.Errorf(diag.Pos{}, "internal: unhandled expression kind %T", e)
		return ir.ConstInt(0)
	}
}

func (l *lowerer) lowerCond(c Cond) (ir.Operand, ir.Operand, ir.RelOp) {
	left := l.lowerExpr(c.Left)
	right := l.lowerExpr(c.Right)
	return left, right, relOp(c.Op)
}

// resolveVar looks up ex.Name, reporting undeclared-symbol and scalar/array
// mismatch errors; it never reports uninitialized-use (callers that read a
// value do that themselves, since a write site like assignment's target
// never needs that check).
func (l *lowerer) resolveVar(ex VarExpr) (*symtab.Entry, bool) {
	e, ok := l.syms.Lookup(ex.Name)
	if !ok {
		l.sink.Errorf(pos(ex.Pos), "undeclared identifier %q", ex.Name)
		return nil, false
	}
	if ex.Index != nil && e.Kind != symtab.Array {
		l.sink.Errorf(pos(ex.Pos), "%q is not an array", ex.Name)
		return nil, false
	}
	if ex.Index == nil && e.Kind == symtab.Array {
		l.sink.Errorf(pos(ex.Pos), "%q is an array and must be indexed", ex.Name)
		return nil, false
	}
	return e, true
}

func (l *lowerer) store(target VarExpr, value ir.Operand) {
	e, ok := l.resolveVar(target)
	if !ok {
		return
	}
	if e.Kind == symtab.Array {
		idx := l.lowerExpr(target.Index)
		l.emit(ir.IndexedStore{Base: e, Offset: idx, Src: value})
		return
	}
	if e.Iterator {
		l.sink.Errorf(pos(target.Pos), "%q is a loop iterator and cannot be assigned to in its own body", target.Name)
		return
	}
	l.emit(ir.Move{Dst: ir.Name{Entry: e}, Src: value})
	e.Initialized = true
}

func arithOp(op string) ir.ArithOp {
	switch op {
	case "+":
		return ir.Add
	case "-":
		return ir.Sub
	case "*":
		return ir.Mul
	case "/":
		return ir.Div
	case "%":
		return ir.Rem
	default:
		panic("frontend: unknown arithmetic operator " + op)
	}
}

func relOp(op string) ir.RelOp {
	switch op {
	case "=":
		return ir.Eq
	case "<>":
		return ir.Ne
	case "<":
		return ir.Lt
	case ">":
		return ir.Gt
	case "<=":
		return ir.Le
	case ">=":
		return ir.Ge
	default:
		panic("frontend: unknown relational operator " + op)
	}
}

func pos(p Pos) diag.Pos { return diag.Pos{Line: p.Line, Column: p.Column} }
