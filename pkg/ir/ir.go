// Package ir models the three-address intermediate representation that the
// back-end core consumes: operands, quadruple instructions, and basic blocks.
//
// Following the teacher's shape for tagged unions (asm.Statement, hack.Instruction,
// vm.Operation), Operand and Instruction are declared as empty interfaces satisfied
// by a closed set of concrete struct types; every consumer dispatches on them with
// an exhaustive type switch, never open dispatch (spec.md §9).
package ir

import (
	"fmt"
	"math/big"

	"rmcc/pkg/symtab"
)

// ----------------------------------------------------------------------------
// Operands

// Operand is one of Constant, Name or Temp. Equality is structural: two operands
// referring to the same constant value, the same symbol-table entry, or the same
// temp id compare equal and hash identically when used as map keys.
type Operand interface {
	isOperand()
	String() string
}

// Constant is an arbitrary-precision signed integer literal.
type Constant struct{ Value *big.Int }

func ConstInt(v int64) Constant { return Constant{Value: big.NewInt(v)} }

func (Constant) isOperand() {}
func (c Constant) String() string { return c.Value.String() }

// Key returns a comparable representation suitable for use as a map key, since
// *big.Int itself is not comparable with ==.
func (c Constant) Key() string { return "#" + c.Value.String() }

// Name refers to a symbol-table entry — a named variable or array.
type Name struct{ Entry *symtab.Entry }

func (Name) isOperand() {}
func (n Name) String() string { return n.Entry.Name }

// Temp is a compiler-generated scalar. Temps are defined by exactly one
// instruction (single static assignment of temps; named variables are not SSA).
type Temp struct{ ID int }

func (Temp) isOperand() {}
func (t Temp) String() string { return fmt.Sprintf("t%d", t.ID) }

// TempAllocator hands out fresh, monotonically increasing temp ids.
type TempAllocator struct{ next int }

func (a *TempAllocator) New() Temp {
	t := Temp{ID: a.next}
	a.next++
	return t
}

// OperandKey returns a string uniquely identifying an operand for use as a map
// key, since Name embeds a pointer and Constant embeds a *big.Int (neither usable
// directly as a Go map key component we can compare by value).
func OperandKey(op Operand) string {
	switch o := op.(type) {
	case Constant:
		return o.Key()
	case Name:
		return "n:" + o.Entry.Name
	case Temp:
		return fmt.Sprintf("t:%d", o.ID)
	default:
		panic(fmt.Sprintf("ir: unknown operand kind %T", op))
	}
}

// ----------------------------------------------------------------------------
// Relational operators (for JumpIf)

type RelOp uint8

const (
	Eq RelOp = iota
	Ne
	Lt
	Gt
	Le
	Ge
)

func (r RelOp) String() string {
	switch r {
	case Eq:
		return "="
	case Ne:
		return "<>"
	case Lt:
		return "<"
	case Gt:
		return ">"
	case Le:
		return "<="
	case Ge:
		return ">="
	default:
		return "?"
	}
}

// Negate returns the relational operator for the logical negation of r.
func (r RelOp) Negate() RelOp {
	switch r {
	case Eq:
		return Ne
	case Ne:
		return Eq
	case Lt:
		return Ge
	case Gt:
		return Le
	case Le:
		return Gt
	case Ge:
		return Lt
	default:
		panic("ir: unknown RelOp")
	}
}
