package machine

import (
	"testing"

	"github.com/rvpico/bringup/src/device/rp"
	"github.com/rvpico/bringup/src/sim"
	"github.com/rvpico/bringup/src/volatile"
)

type testLogger struct{ t *testing.T }

func (l testLogger) Printf(format string, v ...any) {
	l.t.Logf(format, v...)
}

// newTestChip returns a Chip on a fresh simulated RP2350. Traps are recorded
// instead of panicking.
func newTestChip(t *testing.T, cfg Config) (*Chip, *sim.Chip, *[]error) {
	t.Helper()
	s := sim.NewRP2350()
	var traps []error
	if cfg.Trap == nil {
		cfg.Trap = func(err error) { traps = append(traps, err) }
	}
	if cfg.Event == nil {
		cfg.Event = s.Event
	}
	if cfg.Logger == nil {
		cfg.Logger = testLogger{t}
	}
	return New(s, cfg), s, &traps
}

// indexOf returns the position in trace of the first store to addr through
// alias with a value matching mask, or -1.
func indexOf(trace []sim.Access, addr, alias uintptr, mask uint32) int {
	for i, a := range trace {
		if a.Op == sim.OpStore && a.Addr == addr && a.Alias == alias && a.Value&mask == mask {
			return i
		}
	}
	return -1
}

func TestNewDefaults(t *testing.T) {
	c := New(sim.NewRegisterFile(), Config{})
	cfg := c.Config()
	if cfg.XOSC != DefaultOscillatorConfig() {
		t.Errorf("XOSC = %+v", cfg.XOSC)
	}
	if cfg.PLLSys != DefaultPLLSysConfig || cfg.PLLUSB != DefaultPLLUSBConfig {
		t.Errorf("PLLs = %+v, %+v", cfg.PLLSys, cfg.PLLUSB)
	}
	if len(cfg.Clocks) != len(DefaultClockPlan()) {
		t.Errorf("%d clock slices, want %d", len(cfg.Clocks), len(DefaultClockPlan()))
	}
	if cfg.Trap == nil || cfg.Breakpoint == nil || cfg.Event == nil {
		t.Error("hooks left nil")
	}
}

func TestBoot(t *testing.T) {
	c, s, traps := newTestChip(t, Config{})
	c.Boot()
	if len(*traps) != 0 {
		t.Fatalf("traps: %v", *traps)
	}

	if got := s.Load(rp.RESETS_RESET_DONE); got != rp.ResetBits {
		t.Errorf("RESET_DONE = %#x, want %#x", got, rp.ResetBits)
	}
	if !c.OscillatorStable() {
		t.Error("crystal not stable")
	}
	for _, pll := range []PLLInstance{PLLSys, PLLUSB} {
		if !c.PLLLocked(pll) {
			t.Errorf("%v not locked", pll)
		}
	}

	for _, sc := range DefaultClockPlan() {
		if got := s.Peek(rp.CLOCKS_CLK_GPOUT0_CTRL + uintptr(sc.Clock)*rp.ClockSliceStride + 4); got != sc.Div {
			t.Errorf("%v: DIV = %#x, want %#x", sc.Clock, got, sc.Div)
		}
	}
	for _, tc := range []struct {
		cix ClockIndex
		src uint32
	}{
		{ClkRef, rp.CLOCKS_CLK_REF_CTRL_SRC_XOSC_CLKSRC},
		{ClkSys, rp.CLOCKS_CLK_SYS_CTRL_SRC_CLKSRC_CLK_SYS_AUX},
		{ClkUSB, 0},
		{ClkPeri, 0},
	} {
		src, ok := c.Source(tc.cix)
		if !ok || src != tc.src {
			t.Errorf("%v: source %d (%v), want %d", tc.cix, src, ok, tc.src)
		}
	}

	for _, tc := range []struct {
		cix  ClockIndex
		fc0  uint32
		want uint32
	}{
		{ClkRef, rp.CLOCKS_FC0_SRC_CLK_REF, 12 * MHz},
		{ClkSys, rp.CLOCKS_FC0_SRC_CLK_SYS, 150 * MHz},
		{ClkPeri, rp.CLOCKS_FC0_SRC_CLK_PERI, 150 * MHz},
		{ClkUSB, rp.CLOCKS_FC0_SRC_CLK_USB, 48 * MHz},
		{ClkADC, rp.CLOCKS_FC0_SRC_CLK_ADC, 48 * MHz},
	} {
		if got := c.Frequency(tc.cix); got != tc.want {
			t.Errorf("%v: Frequency = %d, want %d", tc.cix, got, tc.want)
		}
		if got := s.SourceHz(tc.fc0); got != tc.want {
			t.Errorf("%v: simulated %d Hz, want %d", tc.cix, got, tc.want)
		}
	}
	if got := c.ClkRefFreqMHz(); got != 12 {
		t.Errorf("ClkRefFreqMHz = %d", got)
	}
	if got := c.ClkSysFreqMHz(); got != 150 {
		t.Errorf("ClkSysFreqMHz = %d", got)
	}
	if got := c.PLLFreq(PLLUSB); got != 48*MHz {
		t.Errorf("PLLFreq(PLLUSB) = %d", got)
	}

	khz, frac := c.MeasureKHz(rp.CLOCKS_FC0_SRC_CLK_SYS)
	if khz != 150000 || frac != 0 {
		t.Errorf("MeasureKHz = %d + %d/32", khz, frac)
	}
	if got := s.Peek(rp.CLOCKS_FC0_MAX_KHZ); got != rp.CLOCKS_FC0_MAX_KHZ_Msk {
		t.Errorf("FC0_MAX_KHZ = %#x, want the 25-bit field maximum", got)
	}
}

func TestBootIdempotent(t *testing.T) {
	var breaks []string
	c, s, traps := newTestChip(t, Config{Breakpoint: func(r string) { breaks = append(breaks, r) }})
	c.Boot()
	c.Boot()
	if len(*traps) != 0 {
		t.Fatalf("traps: %v", *traps)
	}
	if len(breaks) != 2 {
		t.Errorf("breakpoints %q, want both PLLs already configured", breaks)
	}
	if got := s.SourceHz(rp.CLOCKS_FC0_SRC_CLK_SYS); got != 150*MHz {
		t.Errorf("clk_sys %d Hz after second boot", got)
	}
}

func TestCustomPlan(t *testing.T) {
	plan := []SliceConfig{
		{ClkRef, rp.CLOCKS_CLK_REF_CTRL_SRC_XOSC_CLKSRC, 0, DivOne},
		{ClkSys, rp.CLOCKS_CLK_SYS_CTRL_SRC_CLKSRC_CLK_SYS_AUX, rp.CLOCKS_CLK_SYS_CTRL_AUXSRC_CLKSRC_PLL_SYS, 2 * DivOne},
		{ClkPeri, 0, rp.CLOCKS_CLK_PERI_CTRL_AUXSRC_XOSC_CLKSRC, DivOne},
	}
	c, s, traps := newTestChip(t, Config{Clocks: plan})
	c.Boot()
	if len(*traps) != 0 {
		t.Fatalf("traps: %v", *traps)
	}
	if got := s.SourceHz(rp.CLOCKS_FC0_SRC_CLK_SYS); got != 75*MHz {
		t.Errorf("clk_sys %d Hz, want 75 MHz", got)
	}
	if got := c.Frequency(ClkPeri); got != 12*MHz {
		t.Errorf("clk_peri %d Hz, want 12 MHz", got)
	}
	if got := c.Frequency(ClkUSB); got != 0 {
		t.Errorf("clk_usb %d Hz, want unconfigured", got)
	}
}

func TestInvalidPlanTraps(t *testing.T) {
	plan := []SliceConfig{{ClkUSB, 0, 9, DivOne}}
	c, s, traps := newTestChip(t, Config{Clocks: plan})
	c.ClockDefaultsSet()
	if len(*traps) != 1 {
		t.Fatalf("traps: %v", *traps)
	}
	if got := s.Peek(rp.CLOCKS_CLK_USB_CTRL); got != 0 {
		t.Errorf("USB CTRL = %#x after trap", got)
	}
}

func TestFIFO(t *testing.T) {
	c, s, _ := newTestChip(t, Config{})
	f := c.FIFO()
	if f.Valid() {
		t.Fatal("data waiting at power-on")
	}
	if !f.Ready() {
		t.Fatal("FIFO full at power-on")
	}
	s.Core1.Preload(1, 2, 3)
	f.Drain()
	if f.Valid() || s.Core1.Pending() != 0 {
		t.Error("Drain left data behind")
	}
	f.PushBlocking(0)
	if got := f.PopBlocking(); got != 0 {
		t.Errorf("echo %#x", got)
	}
	if s.Events != 1 {
		t.Errorf("%d events, want 1", s.Events)
	}
	if got := s.Stores(rp.SIO_FIFO_WR); len(got) != 1 || got[0].Alias != 0 {
		t.Errorf("FIFO_WR stores %+v", got)
	}
}

func TestRegisterAliasesReachSim(t *testing.T) {
	s := sim.NewRP2350()
	r := volatile.Reg(s, rp.CLOCKS_CLK_SYS_RESUS_CTRL)
	r.SetBits(0x100)
	r.ClearBits(0x100)
	if got := s.Stores(rp.CLOCKS_CLK_SYS_RESUS_CTRL); len(got) != 2 {
		t.Fatalf("%d stores", len(got))
	}
}
