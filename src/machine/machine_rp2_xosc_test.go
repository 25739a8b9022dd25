package machine

import (
	"testing"

	"github.com/rvpico/bringup/src/device/rp"
	"github.com/rvpico/bringup/src/volatile"
)

func TestXOSCStartupDelay(t *testing.T) {
	tests := []struct {
		hz, want uint32
	}{
		{12 * MHz, 47},
		{1 * MHz, 4},
		{15 * MHz, 59},
	}
	for _, tc := range tests {
		if got := XOSCStartupDelay(tc.hz); got != tc.want {
			t.Errorf("XOSCStartupDelay(%d) = %d, want %d", tc.hz, got, tc.want)
		}
	}
}

func TestStartOscillator(t *testing.T) {
	c, s, _ := newTestChip(t, Config{})
	if c.OscillatorStable() {
		t.Fatal("crystal stable before start")
	}
	c.StartOscillator(DefaultOscillatorConfig())
	if !c.OscillatorStable() {
		t.Fatal("crystal not stable")
	}
	if got := s.Peek(rp.XOSC_STARTUP); got != 47 {
		t.Errorf("STARTUP = %d", got)
	}
	ctrl := s.Peek(rp.XOSC_CTRL)
	if ctrl&rp.XOSC_CTRL_FREQ_RANGE_Msk != rp.XOSC_CTRL_FREQ_RANGE_1_15MHZ {
		t.Errorf("CTRL = %#x, lost the frequency range", ctrl)
	}
	enable := indexOf(s.Trace(), rp.XOSC_CTRL, volatile.AliasSet, rp.XOSC_CTRL_ENABLE_ENABLE)
	if enable < 0 {
		t.Error("not enabled through the set alias")
	}
}
