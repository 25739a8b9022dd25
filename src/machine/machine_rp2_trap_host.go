//go:build !(tinygo && tinygo.riscv)

package machine

// A host has no debugger attached to trap into, so a bad configuration is a
// panic.
func defaultTrap(err error) {
	panic(err)
}

func defaultBreakpoint(reason string) {}

func sendEvent() {}
