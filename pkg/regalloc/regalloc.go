// Package regalloc is a classic descriptor-based register allocator for the
// eight-register machine of pkg/target (spec.md §4.1/§4.6): each live value
// is tracked by an address-descriptor entry (where it lives in memory) and a
// register-descriptor entry (which register, if any, currently holds it),
// mirroring the Aho/Ullman "next-use"-driven code generator spec.md §4.6
// calls for rather than a graph-coloring allocator — appropriate for a
// machine with only eight registers and no call stack.
//
// Resolution of symbols to memory addresses follows the same shape as the
// teacher's jack.ScopeTable.ResolveVariable: a table assigning each distinct
// key the next free slot the first time it's seen.
package regalloc

import (
	"math/big"

	"rmcc/pkg/macro"
	"rmcc/pkg/satmath"
	"rmcc/pkg/target"
)

// AddressTable assigns every distinct variable/array-slot key a permanent
// memory address, handed out in first-seen order starting at Base.
type AddressTable struct {
	Base int64

	addr map[string]int64
	next int64
}

func NewAddressTable(base int64) *AddressTable {
	return &AddressTable{Base: base, addr: map[string]int64{}, next: base}
}

// Address returns key's assigned memory address, allocating a fresh one on
// first use.
func (t *AddressTable) Address(key string) int64 {
	if a, ok := t.addr[key]; ok {
		return a
	}
	a := t.next
	t.addr[key] = a
	t.next++
	return a
}

// Reserve allocates n consecutive addresses for key (the base of an array of
// size n) and returns the address of its first element.
func (t *AddressTable) Reserve(key string, n int64) int64 {
	if a, ok := t.addr[key]; ok {
		return a
	}
	a := t.next
	t.addr[key] = a
	t.next += n
	return a
}

// Entries returns a snapshot of every key this table has assigned an address
// to so far, keyed by the same strings codegen uses (a bare variable name or
// "arr:name" for an array base) — used for the --debug address summary.
func (t *AddressTable) Entries() map[string]int64 {
	out := make(map[string]int64, len(t.addr))
	for k, v := range t.addr {
		out[k] = v
	}
	return out
}

// Location says whether a value currently lives in a register, in memory
// only, or in both (clean: the register copy matches memory).
type Location int

const (
	InMemory Location = iota
	InRegister
	InBoth
)

// Descriptor is the per-variable bookkeeping entry: where a live value
// currently resides, and whether its register copy (if any) has diverged
// from memory and must be spilled before the register can be reused.
type Descriptor struct {
	Loc   Location
	Reg   target.Reg
	Dirty bool
}

// Allocator tracks, for the duration of one code-gen run, which key occupies
// each register and the descriptor of each key currently resident in one.
// A is reserved exclusively for addressing (LOAD/STORE) and is never handed
// out by Select.
type Allocator struct {
	Addr *AddressTable
	Emit *macro.Emitter

	owner map[target.Reg]string // "" means free
	desc  map[string]*Descriptor
	order []target.Reg // candidate registers in eviction-preference order
}

func NewAllocator(addr *AddressTable, emit *macro.Emitter) *Allocator {
	a := &Allocator{
		Addr:  addr,
		Emit:  emit,
		owner: map[target.Reg]string{},
		desc:  map[string]*Descriptor{},
	}
	for _, r := range target.AllRegisters {
		if r == target.A {
			continue
		}
		a.owner[r] = ""
		a.order = append(a.order, r)
	}
	return a
}

func (a *Allocator) descriptorFor(key string) *Descriptor {
	d, ok := a.desc[key]
	if !ok {
		d = &Descriptor{Loc: InMemory}
		a.desc[key] = d
	}
	return d
}

// lea sets the address register to key's memory address, via EmitConstant
// (spec.md §4.5's only way to place an arbitrary address into A).
func (a *Allocator) lea(key string) []target.Instr {
	addr := a.Addr.Address(key)
	instrs, err := a.Emit.EmitConstant(target.A, big.NewInt(addr))
	if err != nil {
		// addr is always >= 0, so EmitConstant can never reject it.
		panic(err)
	}
	return instrs
}

// spill writes reg's current occupant back to memory if its copy is dirty,
// and frees the register regardless. Used by Select/Seize when evicting.
func (a *Allocator) spill(reg target.Reg) []target.Instr {
	key := a.owner[reg]
	if key == "" {
		return nil
	}
	d := a.desc[key]
	var out []target.Instr
	if d.Dirty {
		out = append(out, a.lea(key)...)
		out = append(out, target.Store{Reg: reg})
		d.Dirty = false
	}
	d.Loc = InMemory
	d.Reg = ""
	a.owner[reg] = ""
	return out
}

// spillPenalty is spec.md §4.5's victim cost for a value currently sitting at
// memory address addr: min(addr, 5·bitlen(addr)+popcount(addr)) + 50 — the
// cheaper of the two emitConstant strategies for rematerializing addr into A
// to STORE the victim, plus a fixed penalty for the STORE itself. A register
// holding a value never yet written to memory (addr unassigned) still costs
// the same: it must still be addressed once to spill it.
func spillPenalty(addr int64) int64 {
	v := big.NewInt(addr)
	bitCost := int64(5*satmath.BitLen(v) + satmath.PopCount(v))
	cheapest := addr
	if bitCost < cheapest {
		cheapest = bitCost
	}
	return cheapest + 50
}

// Select picks a register to hold a fresh or reloaded value, evicting the
// current occupant if every register is busy. Eviction candidates (registers
// not yet selected) are ranked by spec.md §4.5's spill-penalty formula over
// the memory address their sole bound operand already owns (or would be
// assigned) — the cheapest victim to write back and re-`lea` wins, not the
// one with the furthest next use; ties break by a fixed scan order so
// allocation stays deterministic.
//
// pinned lists registers currently holding values an in-flight instruction
// still needs (e.g. an index already Load()ed for an indexed access) — they
// are excluded from eviction consideration even though their owner is set,
// so finishing the current instruction can never invalidate a register it
// already committed to using. distance is accepted for call-site
// compatibility with pkg/codegen's next-use bookkeeping but no longer drives
// eviction — spec.md §4.5/§9 names the penalty formula as the binding policy.
func (a *Allocator) Select(distance map[string]int, pinned ...target.Reg) (target.Reg, []target.Instr) {
	isPinned := func(r target.Reg) bool {
		for _, p := range pinned {
			if p == r {
				return true
			}
		}
		return false
	}

	for _, r := range a.order {
		if a.owner[r] == "" && !isPinned(r) {
			return r, nil
		}
	}

	victim := target.Reg("")
	bestPenalty := int64(-1)
	for _, r := range a.order {
		if isPinned(r) {
			continue
		}
		key := a.owner[r]
		penalty := spillPenalty(a.Addr.Address(key))
		if bestPenalty < 0 || penalty < bestPenalty {
			bestPenalty = penalty
			victim = r
		}
	}
	if victim == target.Reg("") {
		// every candidate register is pinned: this only happens when an
		// instruction needs more live temporaries at once than the machine
		// has free registers for, which pkg/codegen's call sites avoid.
		victim = a.order[0]
	}
	return victim, a.spill(victim)
}

// Load ensures key's value is resident in a register, returning that
// register and whatever spill/reload instructions were needed. If key is
// already register-resident, this is a no-op.
func (a *Allocator) Load(key string, distance map[string]int, pinned ...target.Reg) (target.Reg, []target.Instr) {
	if d, ok := a.desc[key]; ok && (d.Loc == InRegister || d.Loc == InBoth) {
		return d.Reg, nil
	}

	reg, out := a.Select(distance, pinned...)
	out = append(out, a.lea(key)...)
	out = append(out, target.Load{Reg: reg})

	d := a.descriptorFor(key)
	d.Loc, d.Reg, d.Dirty = InBoth, reg, false
	a.owner[reg] = key
	return reg, out
}

// LeaIndexed sets the address register to arrayKey's base address plus
// offsetReg's current value — the address computation a dynamically-indexed
// array access needs (spec.md §4.5), since LOAD/STORE only ever address
// through A. size reserves the array's whole element range on first use.
func (a *Allocator) LeaIndexed(arrayKey string, offsetReg target.Reg, size int64) []target.Instr {
	base := a.Addr.Reserve(arrayKey, size)
	instrs, err := a.Emit.EmitConstant(target.A, big.NewInt(base))
	if err != nil {
		panic(err)
	}
	if offsetReg != target.A {
		instrs = append(instrs, target.Add{Dst: target.A, Src: offsetReg})
	}
	return instrs
}

// Seize forcibly claims reg for a new occupant (e.g. an instruction whose
// opcode hard-codes which register it reads), evicting whatever it held.
func (a *Allocator) Seize(reg target.Reg) []target.Instr {
	return a.spill(reg)
}

// BindFresh records that key's value now lives, freshly computed, in reg
// (e.g. right after an ADD or a macro.EmitConstant), without emitting a
// load — the value is already there.
func (a *Allocator) BindFresh(key string, reg target.Reg) {
	if prev := a.owner[reg]; prev != "" && prev != key {
		if pd, ok := a.desc[prev]; ok {
			pd.Loc, pd.Reg = InMemory, ""
		}
	}
	d := a.descriptorFor(key)
	d.Loc, d.Reg, d.Dirty = InRegister, reg, true
	a.owner[reg] = key
}

// Store writes key's register copy back to memory immediately (used for
// WRITE-like side effects that must be visible before the value might be
// spilled implicitly later), without freeing the register.
func (a *Allocator) Store(key string) []target.Instr {
	d, ok := a.desc[key]
	if !ok || d.Loc == InMemory {
		return nil
	}
	out := a.lea(key)
	out = append(out, target.Store{Reg: d.Reg})
	d.Loc = InBoth
	d.Dirty = false
	return out
}

// ClearSelection drops a register's ownership record without writing
// anything back — used once a Seize'd register's old occupant is known to
// be dead (e.g. a dead-store-eliminated temp) and a spill would be wasted
// work.
func (a *Allocator) ClearSelection(reg target.Reg) {
	if key := a.owner[reg]; key != "" {
		delete(a.desc, key)
	}
	a.owner[reg] = ""
}

// SaveVariables spills every dirty register-resident value to memory. This
// runs before any control-flow edge that could merge with code generated
// along a different path (branch targets, loop back-edges): spec.md §4.6
// requires that variables be consistently in memory at every block boundary
// so the allocator can start the next block with a clean slate.
func (a *Allocator) SaveVariables() []target.Instr {
	var out []target.Instr
	for _, r := range a.order {
		out = append(out, a.spill(r)...)
	}
	return out
}

// ResetRegistersState forgets all register occupancy without spilling —
// used after SaveVariables (whose spills already made memory authoritative)
// to start the next block with every register considered free.
func (a *Allocator) ResetRegistersState() {
	for r := range a.owner {
		a.owner[r] = ""
	}
	a.desc = map[string]*Descriptor{}
}
