// Package sim simulates the RP2350 registers touched during bring-up, so the
// machine package can run on a host. Hardware that eventually becomes ready
// is modeled with short settle delays counted in register polls.
package sim

import (
	"fmt"

	"github.com/rvpico/bringup/src/volatile"
)

// Op is the kind of a bus access.
type Op uint8

const (
	OpLoad Op = iota
	OpStore
)

func (op Op) String() string {
	if op == OpStore {
		return "store"
	}
	return "load"
}

// Access is one recorded bus access.
type Access struct {
	Seq   int
	Op    Op
	Addr  uintptr // register address, alias stripped
	Alias uintptr // volatile.AliasSet, AliasClr, AliasXor or 0
	Value uint32  // value written, or value read
	After uint32  // register contents after a store
}

// ReadHook computes the value returned for a load. stored is the value held
// in the register file.
type ReadHook func(addr uintptr, stored uint32) uint32

// WriteHook runs after a store has been applied. It may return a different
// value to keep in the register file.
type WriteHook func(addr uintptr, old, new uint32) uint32

// Logger receives a line per store when set on a RegisterFile.
type Logger interface {
	Printf(format string, v ...any)
}

// DefaultSpinLimit is the number of consecutive loads of one address without
// any store in between after which a RegisterFile panics. Code under test
// spins forever on hardware that never converges; the limit turns a modeling
// bug into a failure.
const DefaultSpinLimit = 100000

// RegisterFile is a sparse 32-bit register space implementing volatile.Bus
// with RP2 alias semantics. It is not safe for concurrent use.
type RegisterFile struct {
	regs       map[uintptr]uint32
	readHooks  map[uintptr]ReadHook
	writeHooks map[uintptr]WriteHook
	noAlias    map[uintptr]bool
	names      map[uintptr]string

	trace   []Access
	seq     int
	Tracing bool
	Logger  Logger

	SpinLimit int
	lastLoad  uintptr
	spins     int
}

var _ volatile.Bus = (*RegisterFile)(nil)

// NewRegisterFile returns an empty register file. Unwritten registers read 0.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{
		regs:       make(map[uintptr]uint32),
		readHooks:  make(map[uintptr]ReadHook),
		writeHooks: make(map[uintptr]WriteHook),
		noAlias:    make(map[uintptr]bool),
		names:      make(map[uintptr]string),
		Tracing:    true,
		SpinLimit:  DefaultSpinLimit,
	}
}

// Load implements volatile.Bus.
func (rf *RegisterFile) Load(addr uintptr) uint32 {
	if addr == rf.lastLoad {
		rf.spins++
		if rf.SpinLimit > 0 && rf.spins > rf.SpinLimit {
			panic(fmt.Sprintf("sim: %d polls of %s without progress", rf.spins, rf.Name(addr)))
		}
	} else {
		rf.lastLoad, rf.spins = addr, 1
	}
	v := rf.regs[addr]
	if hook := rf.readHooks[addr]; hook != nil {
		v = hook(addr, v)
	}
	rf.record(Access{Op: OpLoad, Addr: addr, Value: v})
	return v
}

// Store implements volatile.Bus.
func (rf *RegisterFile) Store(addr uintptr, value uint32) {
	rf.lastLoad, rf.spins = 0, 0
	reg, alias := addr, uintptr(0)
	if !rf.noAlias[addr] {
		reg, alias = volatile.SplitAlias(addr)
	}
	old := rf.regs[reg]
	var v uint32
	switch alias {
	case volatile.AliasXor:
		v = old ^ value
	case volatile.AliasSet:
		v = old | value
	case volatile.AliasClr:
		v = old &^ value
	default:
		v = value
	}
	if hook := rf.writeHooks[reg]; hook != nil {
		v = hook(reg, old, v)
	}
	rf.regs[reg] = v
	rf.record(Access{Op: OpStore, Addr: reg, Alias: alias, Value: value, After: v})
	if rf.Logger != nil {
		rf.Logger.Printf("%-24s %-5s %#08x -> %#08x", rf.Name(reg), aliasName(alias), value, v)
	}
}

func (rf *RegisterFile) record(a Access) {
	rf.seq++
	if !rf.Tracing {
		return
	}
	a.Seq = rf.seq
	rf.trace = append(rf.trace, a)
}

// Peek returns the stored value of a register without running hooks.
func (rf *RegisterFile) Peek(addr uintptr) uint32 {
	return rf.regs[addr]
}

// Poke sets the stored value of a register without running hooks or tracing.
func (rf *RegisterFile) Poke(addr uintptr, value uint32) {
	rf.regs[addr] = value
}

// OnRead installs the read hook of a register.
func (rf *RegisterFile) OnRead(addr uintptr, hook ReadHook) {
	rf.readHooks[addr] = hook
}

// OnWrite installs the write hook of a register.
func (rf *RegisterFile) OnWrite(addr uintptr, hook WriteHook) {
	rf.writeHooks[addr] = hook
}

// NoAlias marks addr as a register whose neighbours at alias offsets are
// distinct registers (SIO has no atomic aliases).
func (rf *RegisterFile) NoAlias(addr uintptr) {
	rf.noAlias[addr] = true
}

// SetName labels a register in traces and logs.
func (rf *RegisterFile) SetName(addr uintptr, name string) {
	rf.names[addr] = name
}

// Name returns the label of a register, or its address.
func (rf *RegisterFile) Name(addr uintptr) string {
	if n, ok := rf.names[addr]; ok {
		return n
	}
	return fmt.Sprintf("%#08x", addr)
}

// Trace returns the recorded accesses, oldest first.
func (rf *RegisterFile) Trace() []Access {
	return rf.trace
}

// Stores returns the recorded stores, optionally only those to addrs.
func (rf *RegisterFile) Stores(addrs ...uintptr) []Access {
	var out []Access
	for _, a := range rf.trace {
		if a.Op != OpStore {
			continue
		}
		if len(addrs) == 0 || containsAddr(addrs, a.Addr) {
			out = append(out, a)
		}
	}
	return out
}

// ClearTrace forgets the recorded accesses.
func (rf *RegisterFile) ClearTrace() {
	rf.trace = rf.trace[:0]
}

// Registers returns a copy of every stored register value.
func (rf *RegisterFile) Registers() map[uintptr]uint32 {
	out := make(map[uintptr]uint32, len(rf.regs))
	for k, v := range rf.regs {
		out[k] = v
	}
	return out
}

func containsAddr(addrs []uintptr, addr uintptr) bool {
	for _, a := range addrs {
		if a == addr {
			return true
		}
	}
	return false
}

func aliasName(alias uintptr) string {
	switch alias {
	case volatile.AliasXor:
		return "xor"
	case volatile.AliasSet:
		return "set"
	case volatile.AliasClr:
		return "clr"
	}
	return ""
}
