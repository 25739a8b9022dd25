//go:build tinygo && tinygo.riscv

package machine

import "device/riscv"

// defaultTrap halts at a breakpoint for the debugger and stays there.
func defaultTrap(err error) {
	for {
		riscv.Asm("ebreak")
	}
}

func defaultBreakpoint(reason string) {
	riscv.Asm("ebreak")
}

// sendEvent is the Hazard3 h3.unblock hint, which wakes a core parked in
// h3.block (wfe equivalent).
func sendEvent() {
	riscv.Asm("slt x0, x0, x1")
}
