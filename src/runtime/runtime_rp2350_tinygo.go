//go:build tinygo && rp2350

package runtime

import (
	"github.com/rvpico/bringup/src/machine"
	"github.com/rvpico/bringup/src/volatile"
)

// Chip is the running chip. Its clocks are up before main runs.
var Chip *machine.Chip

func init() {
	Chip = Start(volatile.MMIO, machine.Config{}, nil)
}

// LaunchCore1 starts the second core at entry with the given stack and
// vector table. It returns once core 1 has acknowledged the launch.
func LaunchCore1(vectorTable, stackPointer, entry uint32) {
	Chip.LaunchCore1(vectorTable, stackPointer, entry)
}
