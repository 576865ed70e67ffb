// Package macro expands the small set of arithmetic and control-flow idioms
// spec.md §4.4/§4.5 asks the back end to support into sequences of the raw
// instructions of pkg/target — the machine has no multiply, divide, compare,
// or immediate-load instruction, so every one of those has to be built out of
// GET/PUT/LOAD/STORE/COPY/ADD/SUB/HALF/INC/DEC/JUMP/JZERO/JODD.
//
// Label uniqueness is handled the way the teacher's jack.Lowerer handles
// WHILE/IF label collisions: a per-prefix counter on the Emitter, so calling
// the same macro twice in one program never emits the same label name twice.
package macro

import (
	"fmt"
	"math/big"

	"rmcc/pkg/satmath"
	"rmcc/pkg/target"
)

// Emitter holds the label-uniqueness counters shared by every macro call
// within one compilation. A fresh Emitter must be used per cmd/rmcc
// invocation so label numbering is deterministic and reproducible.
type Emitter struct {
	seq map[string]int
}

func NewEmitter() *Emitter {
	return &Emitter{seq: map[string]int{}}
}

// Label returns a fresh, uniquely-numbered label under prefix.
func (e *Emitter) Label(prefix string) string {
	e.seq[prefix]++
	return fmt.Sprintf("%s_%d", prefix, e.seq[prefix])
}

// Get and Put wrap the raw instructions directly, so pkg/codegen emits
// READ/WRITE through the Emitter like the other macros.
func (e *Emitter) Get(r target.Reg) []target.Instr { return []target.Instr{target.Get{Reg: r}} }
func (e *Emitter) Put(r target.Reg) []target.Instr { return []target.Instr{target.Put{Reg: r}} }

// Copy emits COPY dst src, or nothing at all when dst and src already name
// the same register.
func (e *Emitter) Copy(dst, src target.Reg) []target.Instr {
	if dst == src {
		return nil
	}
	return []target.Instr{target.Copy{Dst: dst, Src: src}}
}

// Zero clears r to 0 via SUB r r, which saturates to zero regardless of r's
// prior contents — the machine has no load-immediate instruction.
func (e *Emitter) Zero(r target.Reg) []target.Instr {
	return []target.Instr{target.Sub{Dst: r, Src: r}}
}

// IncInto computes dst <- src+1. When dst==src this is the destructive form
// (a plain INC); otherwise src is left untouched.
func (e *Emitter) IncInto(dst, src target.Reg) []target.Instr {
	if dst == src {
		return []target.Instr{target.Inc{Reg: dst}}
	}
	out := e.Copy(dst, src)
	return append(out, target.Inc{Reg: dst})
}

// DecInto computes dst <- max(0, src-1), saturating. Same destructive/
// non-destructive distinction as IncInto.
func (e *Emitter) DecInto(dst, src target.Reg) []target.Instr {
	if dst == src {
		return []target.Instr{target.Dec{Reg: dst}}
	}
	out := e.Copy(dst, src)
	return append(out, target.Dec{Reg: dst})
}

// AddInto computes dst <- a+b using scratch as an intermediate so that
// neither a nor b is clobbered even when dst aliases one of them.
func (e *Emitter) AddInto(dst, a, b, scratch target.Reg) []target.Instr {
	out := e.Copy(scratch, a)
	out = append(out, target.Add{Dst: scratch, Src: b})
	return append(out, e.Copy(dst, scratch)...)
}

// SubInto computes dst <- max(0, a-b), saturating, without clobbering a or b.
func (e *Emitter) SubInto(dst, a, b, scratch target.Reg) []target.Instr {
	out := e.Copy(scratch, a)
	out = append(out, target.Sub{Dst: scratch, Src: b})
	return append(out, e.Copy(dst, scratch)...)
}

// Twice doubles r in place: r <- r+r.
func (e *Emitter) Twice(r target.Reg) []target.Instr {
	return []target.Instr{target.Add{Dst: r, Src: r}}
}

// Half halves r in place (integer division by two).
func (e *Emitter) Half(r target.Reg) []target.Instr {
	return []target.Instr{target.Half{Reg: r}}
}

// Rem2 computes dst <- src mod 2 using scratch as a working register,
// leaving src unmodified: scratch <- 2*(src/2), dst <- src - scratch.
func (e *Emitter) Rem2(dst, src, scratch target.Reg) []target.Instr {
	out := e.Copy(scratch, src)
	out = append(out, target.Half{Reg: scratch})
	out = append(out, target.Add{Dst: scratch, Src: scratch})
	out = append(out, e.Copy(dst, src)...)
	return append(out, target.Sub{Dst: dst, Src: scratch})
}

// JumpLe jumps to label iff a <= b, testing sat(a-b) == 0 in scratch.
func (e *Emitter) JumpLe(a, b target.Reg, label string, scratch target.Reg) []target.Instr {
	out := e.Copy(scratch, a)
	out = append(out, target.Sub{Dst: scratch, Src: b})
	return append(out, target.JZero{Reg: scratch, Label: label})
}

// JumpGe jumps to label iff a >= b, testing sat(b-a) == 0 in scratch.
func (e *Emitter) JumpGe(a, b target.Reg, label string, scratch target.Reg) []target.Instr {
	out := e.Copy(scratch, b)
	out = append(out, target.Sub{Dst: scratch, Src: a})
	return append(out, target.JZero{Reg: scratch, Label: label})
}

// JumpGt jumps to label iff a > b. Since only JZERO/JODD exist, the
// "jump if nonzero" case is built by inverting: jump over an unconditional
// jump when the zero test fails.
func (e *Emitter) JumpGt(a, b target.Reg, label string, scratch target.Reg) []target.Instr {
	skip := e.Label("GT_SKIP")
	out := e.Copy(scratch, a)
	out = append(out, target.Sub{Dst: scratch, Src: b})
	out = append(out, target.JZero{Reg: scratch, Label: skip})
	out = append(out, target.Jump{Label: label})
	out = append(out, target.LabelDecl{Name: skip})
	return out
}

// JumpLt jumps to label iff a < b, the mirror of JumpGt with operands
// swapped.
func (e *Emitter) JumpLt(a, b target.Reg, label string, scratch target.Reg) []target.Instr {
	return e.JumpGt(b, a, label, scratch)
}

// JumpNe jumps to label iff a != b. Exactly one of sat(a-b), sat(b-a) is
// nonzero whenever a != b, so their sum is zero iff a == b.
func (e *Emitter) JumpNe(a, b target.Reg, label string, s1, s2 target.Reg) []target.Instr {
	skip := e.Label("NE_SKIP")
	out := e.Copy(s1, a)
	out = append(out, target.Sub{Dst: s1, Src: b})
	out = append(out, e.Copy(s2, b)...)
	out = append(out, target.Sub{Dst: s2, Src: a})
	out = append(out, target.Add{Dst: s1, Src: s2})
	out = append(out, target.JZero{Reg: s1, Label: skip})
	out = append(out, target.Jump{Label: label})
	out = append(out, target.LabelDecl{Name: skip})
	return out
}

// JumpZero jumps to label iff r == 0 (a direct wrap of JZERO, kept here so
// callers never need to reach into pkg/target directly).
func (e *Emitter) JumpZero(r target.Reg, label string) []target.Instr {
	return []target.Instr{target.JZero{Reg: r, Label: label}}
}

// LongMul computes dst <- a*b via double-and-add (the "Russian peasant"
// algorithm), the standard way to multiply on a machine with ADD/HALF/JODD
// but no MUL (spec.md §4.5). b and accum are both consumed as scratch
// registers; a and dst may alias freely.
func (e *Emitter) LongMul(dst, a, b, accum target.Reg) []target.Instr {
	loop := e.Label("MUL_LOOP")
	done := e.Label("MUL_DONE")
	add := e.Label("MUL_ADD")
	skipAdd := e.Label("MUL_SKIP_ADD")

	out := e.Copy(accum, a)
	out = append(out, e.Zero(dst)...)
	out = append(out, target.LabelDecl{Name: loop})
	out = append(out, target.JZero{Reg: b, Label: done})
	out = append(out, target.JOdd{Reg: b, Label: add})
	out = append(out, target.Jump{Label: skipAdd})
	out = append(out, target.LabelDecl{Name: add})
	out = append(out, target.Add{Dst: dst, Src: accum})
	out = append(out, target.LabelDecl{Name: skipAdd})
	out = append(out, target.Add{Dst: accum, Src: accum})
	out = append(out, target.Half{Reg: b})
	out = append(out, target.Jump{Label: loop})
	out = append(out, target.LabelDecl{Name: done})
	return out
}

// LongDivRem computes q <- a/b and r <- a%b (both 0 when b is 0, matching
// the saturating semantics of spec.md §4.1) via restoring division by
// repeated doubling: grow a shifted divisor d (with matching power-of-two
// multiplier m) until it exceeds the remainder, then shrink it back down,
// subtracting and accumulating the quotient bit whenever it still fits.
// d, m, and scratch are consumed; a and b are left untouched.
func (e *Emitter) LongDivRem(q, r, a, b, d, m, scratch target.Reg) []target.Instr {
	zero := e.Label("DIV_ZERO")
	done := e.Label("DIV_DONE")
	growLoop := e.Label("DIV_GROW")
	growDone := e.Label("DIV_GROW_DONE")
	shrinkLoop := e.Label("DIV_SHRINK")
	shrinkDone := e.Label("DIV_SHRINK_DONE")
	skipSub := e.Label("DIV_SKIP_SUB")

	var out []target.Instr
	out = append(out, target.JZero{Reg: b, Label: zero})

	out = append(out, e.Copy(r, a)...)
	out = append(out, e.Zero(q)...)
	out = append(out, e.Copy(d, b)...)
	out = append(out, e.Zero(m)...)
	out = append(out, target.Inc{Reg: m}) // m <- 1

	out = append(out, target.LabelDecl{Name: growLoop})
	out = append(out, e.JumpGt(d, r, growDone, scratch)...)
	out = append(out, target.Add{Dst: d, Src: d})
	out = append(out, target.Add{Dst: m, Src: m})
	out = append(out, target.Jump{Label: growLoop})
	out = append(out, target.LabelDecl{Name: growDone})

	out = append(out, target.LabelDecl{Name: shrinkLoop})
	out = append(out, target.JZero{Reg: m, Label: shrinkDone})
	out = append(out, e.JumpGt(d, r, skipSub, scratch)...)
	out = append(out, target.Sub{Dst: r, Src: d})
	out = append(out, target.Add{Dst: q, Src: m})
	out = append(out, target.LabelDecl{Name: skipSub})
	out = append(out, target.Half{Reg: d})
	out = append(out, target.Half{Reg: m})
	out = append(out, target.Jump{Label: shrinkLoop})
	out = append(out, target.LabelDecl{Name: shrinkDone})

	out = append(out, target.Jump{Label: done})
	out = append(out, target.LabelDecl{Name: zero})
	out = append(out, e.Zero(q)...)
	out = append(out, e.Zero(r)...)
	out = append(out, target.LabelDecl{Name: done})
	return out
}

// EmitConstant materializes v into r, choosing between two strategies by
// estimated instruction cost (spec.md §4.4): repeated INC costs v
// instructions; binary build (double-and-set-bit from the MSB down) costs
// about 5*bitlen(v)+popcount(v). The cheaper strategy wins; ties favor the
// simpler repeated-INC form.
func (e *Emitter) EmitConstant(r target.Reg, v *big.Int) ([]target.Instr, error) {
	if v.Sign() < 0 {
		return nil, fmt.Errorf("macro: EmitConstant: negative constant %s is not representable", v.String())
	}
	if v.Sign() == 0 {
		return e.Zero(r), nil
	}

	bitlen := satmath.BitLen(v)
	popcount := satmath.PopCount(v)
	buildCost := big.NewInt(int64(5*bitlen + popcount))

	if v.Cmp(buildCost) <= 0 {
		return e.repeatedInc(r, v), nil
	}
	return e.binaryBuild(r, v), nil
}

func (e *Emitter) repeatedInc(r target.Reg, v *big.Int) []target.Instr {
	out := e.Zero(r)
	one := big.NewInt(1)
	for i := new(big.Int).Set(v); i.Sign() > 0; i.Sub(i, one) {
		out = append(out, target.Inc{Reg: r})
	}
	return out
}

func (e *Emitter) binaryBuild(r target.Reg, v *big.Int) []target.Instr {
	out := e.Zero(r)
	bits := v.BitLen()
	for i := bits - 1; i >= 0; i-- {
		out = append(out, target.Add{Dst: r, Src: r})
		if v.Bit(i) == 1 {
			out = append(out, target.Inc{Reg: r})
		}
	}
	return out
}
