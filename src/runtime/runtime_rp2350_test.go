package runtime

import (
	"testing"

	"github.com/rvpico/bringup/src/device/rp"
	"github.com/rvpico/bringup/src/machine"
	"github.com/rvpico/bringup/src/sim"
)

func TestStart(t *testing.T) {
	tests := []struct {
		name  string
		core1 *Core1
	}{
		{"core0 only", nil},
		{"with core1", &Core1{VectorTable: 0x20000100, StackPointer: 0x20040000, Entry: 0x10000200}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := sim.NewRP2350()
			chip := Start(s, machine.Config{Event: s.Event}, tc.core1)
			if got := s.Peek(rp.RESETS_RESET); got != 0 {
				t.Errorf("RESET = %#x, want every block released", got)
			}
			if got := chip.Frequency(machine.ClkSys); got != 150*machine.MHz {
				t.Errorf("clk_sys %d Hz", got)
			}
			if s.Core1.Launched != (tc.core1 != nil) {
				t.Fatalf("core1 launched: %v", s.Core1.Launched)
			}
			if tc.core1 != nil && s.Core1.Entry != tc.core1.Entry {
				t.Errorf("core1 entry %#x", s.Core1.Entry)
			}
		})
	}
}
