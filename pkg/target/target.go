// Package target models the eight-register machine of spec.md §4.3: its
// instruction set, registers, and word-addressable arbitrary-precision memory.
//
// As with ir.Instruction, Instr is a closed tagged union — a Go interface
// satisfied by a fixed set of concrete struct types — dispatched by exhaustive
// type switch in pkg/target itself (Assembler, Interp) and nowhere else;
// pkg/macro and pkg/regalloc only ever construct values of these types, they
// never case on them. This mirrors the teacher's hack.Instruction /
// asm.Statement pairing, with the Hack computer's fixed A/C instruction shape
// replaced by this machine's richer, already-specialized opcode list.
package target

// Reg names one of the machine's eight general-purpose registers. A is
// reserved as the implicit address register for LOAD/STORE (spec.md §3/§4.3)
// and is never handed out by the register allocator's Select.
type Reg string

const (
	A Reg = "A"
	B Reg = "B"
	C Reg = "C"
	D Reg = "D"
	E Reg = "E"
	F Reg = "F"
	G Reg = "G"
	H Reg = "H"
)

// AllRegisters lists every register in a fixed, deterministic order, used by
// pkg/regalloc to build its eviction-candidate order.
var AllRegisters = []Reg{A, B, C, D, E, F, G, H}

// Instr is one of the concrete instruction types below — the target ISA of
// spec.md §4.3. Jump, JZero and JOdd carry a Label that names a block or a
// macro-generated label until Assembler.Resolve rewrites it to the decimal
// string of its resolved instruction index.
type Instr interface {
	isInstr()
	String() string
}

// Get: r <- next integer read from stdin.
type Get struct{ Reg Reg }

func (Get) isInstr()        {}
func (i Get) String() string { return "GET " + string(i.Reg) }

// Put: write r to stdout.
type Put struct{ Reg Reg }

func (Put) isInstr()        {}
func (i Put) String() string { return "PUT " + string(i.Reg) }

// Load: r <- M[A].
type Load struct{ Reg Reg }

func (Load) isInstr()        {}
func (i Load) String() string { return "LOAD " + string(i.Reg) }

// Store: M[A] <- r.
type Store struct{ Reg Reg }

func (Store) isInstr()        {}
func (i Store) String() string { return "STORE " + string(i.Reg) }

// Copy: dst <- src.
type Copy struct{ Dst, Src Reg }

func (Copy) isInstr()        {}
func (i Copy) String() string { return "COPY " + string(i.Dst) + " " + string(i.Src) }

// Add: dst <- dst + src.
type Add struct{ Dst, Src Reg }

func (Add) isInstr()        {}
func (i Add) String() string { return "ADD " + string(i.Dst) + " " + string(i.Src) }

// Sub: dst <- max(0, dst - src) — saturating (spec.md §4.3/§6).
type Sub struct{ Dst, Src Reg }

func (Sub) isInstr()        {}
func (i Sub) String() string { return "SUB " + string(i.Dst) + " " + string(i.Src) }

// Half: r <- r / 2 (integer division).
type Half struct{ Reg Reg }

func (Half) isInstr()        {}
func (i Half) String() string { return "HALF " + string(i.Reg) }

// Inc: r <- r + 1.
type Inc struct{ Reg Reg }

func (Inc) isInstr()        {}
func (i Inc) String() string { return "INC " + string(i.Reg) }

// Dec: r <- r - 1, saturating at zero.
type Dec struct{ Reg Reg }

func (Dec) isInstr()        {}
func (i Dec) String() string { return "DEC " + string(i.Reg) }

// Jump: unconditional transfer to Label.
type Jump struct{ Label string }

func (Jump) isInstr()        {}
func (i Jump) String() string { return "JUMP " + i.Label }

// JZero: transfer to Label iff Reg == 0.
type JZero struct {
	Reg   Reg
	Label string
}

func (JZero) isInstr()        {}
func (i JZero) String() string { return "JZERO " + string(i.Reg) + " " + i.Label }

// JOdd: transfer to Label iff Reg is odd.
type JOdd struct {
	Reg   Reg
	Label string
}

func (JOdd) isInstr()        {}
func (i JOdd) String() string { return "JODD " + string(i.Reg) + " " + i.Label }

// Halt: stop execution.
type Halt struct{}

func (Halt) isInstr()        {}
func (Halt) String() string { return "HALT" }

// LabelDecl is a pseudo-instruction, never part of a resolved program: it
// marks that Name targets the instruction index immediately following it.
// Assembler.Resolve consumes every LabelDecl and never emits one back out.
type LabelDecl struct{ Name string }

func (LabelDecl) isInstr()        {}
func (i LabelDecl) String() string { return "# " + i.Name + ":" }
