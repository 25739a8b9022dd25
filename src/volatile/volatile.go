// Package volatile provides typed access to memory-mapped 32-bit registers.
//
// All accesses go through a Bus. On the target the bus performs real volatile
// loads and stores on physical addresses; on a host it is usually a simulated
// register file, which lets bring-up code run unmodified in tests.
//
// RP2 peripherals decode three aliases of every register: a write to
// addr+AliasXor toggles bits, addr+AliasSet sets bits and addr+AliasClr clears
// bits. The hardware applies these atomically, so SetBits and ClearBits never
// race with another bus master the way a read-modify-write would.
package volatile

// Atomic register aliases, as offsets from the register address.
const (
	AliasXor = 0x1000
	AliasSet = 0x2000
	AliasClr = 0x3000

	aliasMask = 0x3000
)

// Bus performs 32-bit loads and stores against a physical address space.
type Bus interface {
	Load(addr uintptr) uint32
	Store(addr uintptr, value uint32)
}

// Register32 is a single 32-bit register reached through a Bus.
type Register32 struct {
	bus  Bus
	addr uintptr
}

// Reg returns the register at addr on bus.
func Reg(bus Bus, addr uintptr) Register32 {
	return Register32{bus: bus, addr: addr}
}

// Addr returns the physical address of the register (its normal alias).
func (r Register32) Addr() uintptr {
	return r.addr
}

// Get returns the value of the register.
func (r Register32) Get() uint32 {
	return r.bus.Load(r.addr)
}

// Set writes value to the register.
func (r Register32) Set(value uint32) {
	r.bus.Store(r.addr, value)
}

// SetBits sets the bits in value through the atomic set alias.
func (r Register32) SetBits(value uint32) {
	r.bus.Store(r.addr+AliasSet, value)
}

// ClearBits clears the bits in value through the atomic clear alias.
func (r Register32) ClearBits(value uint32) {
	r.bus.Store(r.addr+AliasClr, value)
}

// XorBits toggles the bits in value through the atomic xor alias.
func (r Register32) XorBits(value uint32) {
	r.bus.Store(r.addr+AliasXor, value)
}

// HasBits reports whether any of the bits in value are set.
func (r Register32) HasBits(value uint32) bool {
	return r.Get()&value != 0
}

// ReplaceBits replaces the field mask<<pos with value<<pos using a plain
// read-modify-write. Use it only for registers no other master writes.
func (r Register32) ReplaceBits(value, mask uint32, pos uint8) {
	r.Set(r.Get()&^(mask<<pos) | (value&mask)<<pos)
}

// SplitAlias returns the register address and the alias offset a bus address
// was written through. Simulated buses use it to decode alias writes.
func SplitAlias(addr uintptr) (reg uintptr, alias uintptr) {
	return addr &^ aliasMask, addr & aliasMask
}
