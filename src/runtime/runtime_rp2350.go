package runtime

import (
	"github.com/rvpico/bringup/src/machine"
	"github.com/rvpico/bringup/src/volatile"
)

// Core1 is where the second core starts.
type Core1 struct {
	VectorTable  uint32
	StackPointer uint32
	Entry        uint32
}

// Start brings the chip on bus from reset to its running clock configuration
// and, if core1 is not nil, launches the second core.
func Start(bus volatile.Bus, config machine.Config, core1 *Core1) *machine.Chip {
	chip := machine.New(bus, config)
	chip.Boot()
	if core1 != nil {
		chip.LaunchCore1(core1.VectorTable, core1.StackPointer, core1.Entry)
	}
	return chip
}
