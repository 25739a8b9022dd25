package machine

import (
	"fmt"

	"github.com/rvpico/bringup/src/device/rp"
	"github.com/rvpico/bringup/src/volatile"
)

// ClockIndex identifies a clock slice.
type ClockIndex uint8

const (
	ClkGPOUT0 ClockIndex = iota // GPIO Muxing 0
	ClkGPOUT1                   // GPIO Muxing 1
	ClkGPOUT2                   // GPIO Muxing 2
	ClkGPOUT3                   // GPIO Muxing 3
	ClkRef                      // Watchdog and timers reference clock
	ClkSys                      // Processors, bus fabric, memory, memory mapped registers
	ClkPeri                     // Peripheral clock for UART and SPI
	ClkHSTX                     // High speed interface
	ClkUSB                      // USB clock
	ClkADC                      // ADC clock
	NumClocks
)

var clockNames = [NumClocks]string{
	"clk_gpout0", "clk_gpout1", "clk_gpout2", "clk_gpout3", "clk_ref",
	"clk_sys", "clk_peri", "clk_hstx", "clk_usb", "clk_adc",
}

func (cix ClockIndex) String() string {
	if cix < NumClocks {
		return clockNames[cix]
	}
	return "clk(?)"
}

// ParseClock returns the clock slice with the given name, as printed by
// String.
func ParseClock(name string) (ClockIndex, bool) {
	for i, n := range clockNames {
		if n == name {
			return ClockIndex(i), true
		}
	}
	return 0, false
}

// hasGlitchlessMux returns true if the clock contains a glitchless
// multiplexer.
//
// Clock muxing consists of two components:
//
// A glitchless mux, which can be switched freely, but whose inputs must be
// free-running.
//
// An auxiliary (glitchy) mux, whose output glitches when switched, but has
// no constraints on its inputs.
//
// Only CLK_REF and CLK_SYS have both.
func (cix ClockIndex) hasGlitchlessMux() bool {
	return cix == ClkSys || cix == ClkRef
}

// Glitchless source value that selects the auxiliary mux, on both CLK_REF
// and CLK_SYS.
const srcAux = rp.CLOCKS_CLK_SYS_CTRL_SRC_CLKSRC_CLK_SYS_AUX

// Largest valid SRC and AUXSRC value per slice. SRC is only meaningful for the
// glitchless slices.
var clockLimits = [NumClocks]struct{ maxSrc, maxAuxSrc uint32 }{
	ClkGPOUT0: {0, 0xe},
	ClkGPOUT1: {0, 0xe},
	ClkGPOUT2: {0, 0xe},
	ClkGPOUT3: {0, 0xe},
	ClkRef:    {3, 3},
	ClkSys:    {1, 5},
	ClkPeri:   {0, 6},
	ClkHSTX:   {0, 5},
	ClkUSB:    {0, 6},
	ClkADC:    {0, 5},
}

// SliceConfig is the source and divider setting of one clock slice.
type SliceConfig struct {
	Clock  ClockIndex
	Src    uint32 // glitchless source, ignored on auxiliary-only slices
	AuxSrc uint32
	Div    uint32 // 16.16 fixed point, DivOne is 1:1
}

// DivOne is the divider value for a 1:1 ratio.
const DivOne = 1 << rp.CLOCKS_DIV_INT_Pos

// DefaultClockPlan returns the slice settings applied by ClockDefaultsSet.
// CLK_REF and CLK_SYS come first: the other slices assume they are settled.
func DefaultClockPlan() []SliceConfig {
	return []SliceConfig{
		{ClkRef, rp.CLOCKS_CLK_REF_CTRL_SRC_XOSC_CLKSRC, 0, DivOne},
		{ClkSys, rp.CLOCKS_CLK_SYS_CTRL_SRC_CLKSRC_CLK_SYS_AUX, rp.CLOCKS_CLK_SYS_CTRL_AUXSRC_CLKSRC_PLL_SYS, DivOne},
		{ClkUSB, 0, rp.CLOCKS_CLK_USB_CTRL_AUXSRC_CLKSRC_PLL_USB, DivOne},
		{ClkADC, 0, rp.CLOCKS_CLK_ADC_CTRL_AUXSRC_CLKSRC_PLL_USB, DivOne},
		{ClkPeri, 0, rp.CLOCKS_CLK_PERI_CTRL_AUXSRC_CLK_SYS, DivOne},
	}
}

// CalcClockDiv returns the divider that derives freq from srcFreq.
func CalcClockDiv(srcFreq, freq uint32) uint32 {
	// Div register is 16.16 int.frac divider so multiply by 2^16 (left shift by 16)
	return uint32((uint64(srcFreq) << 16) / uint64(freq))
}

// Validate checks the selectors and divider against the slice's limits.
func (s SliceConfig) Validate() error {
	if s.Clock >= NumClocks {
		return fmt.Errorf("%w: %d", ErrInvalidClock, s.Clock)
	}
	lim := clockLimits[s.Clock]
	if s.Src > lim.maxSrc {
		return fmt.Errorf("%v: %w: %d", s.Clock, ErrInvalidSource, s.Src)
	}
	if s.AuxSrc > lim.maxAuxSrc {
		return fmt.Errorf("%v: %w: %d", s.Clock, ErrInvalidAuxSource, s.AuxSrc)
	}
	if s.Div != 0 && s.Div < DivOne {
		return fmt.Errorf("%v: %w: %#x", s.Clock, ErrInvalidDivider, s.Div)
	}
	return nil
}

type clockType struct {
	ctrl     volatile.Register32
	div      volatile.Register32
	selected volatile.Register32
}

type fcType struct {
	refKHz   volatile.Register32
	minKHz   volatile.Register32
	maxKHz   volatile.Register32
	delay    volatile.Register32
	interval volatile.Register32
	src      volatile.Register32
	status   volatile.Register32
	result   volatile.Register32
}

type clocksType struct {
	clk       [NumClocks]clockType
	resusCtrl volatile.Register32
	fc0       fcType
}

func newClocks(bus volatile.Bus) clocksType {
	var clks clocksType
	for i := range clks.clk {
		base := uintptr(rp.CLOCKS_CLK_GPOUT0_CTRL + i*rp.ClockSliceStride)
		clks.clk[i] = clockType{
			ctrl:     volatile.Reg(bus, base),
			div:      volatile.Reg(bus, base+4),
			selected: volatile.Reg(bus, base+8),
		}
	}
	clks.resusCtrl = volatile.Reg(bus, rp.CLOCKS_CLK_SYS_RESUS_CTRL)
	clks.fc0 = fcType{
		refKHz:   volatile.Reg(bus, rp.CLOCKS_FC0_REF_KHZ),
		minKHz:   volatile.Reg(bus, rp.CLOCKS_FC0_MIN_KHZ),
		maxKHz:   volatile.Reg(bus, rp.CLOCKS_FC0_MAX_KHZ),
		delay:    volatile.Reg(bus, rp.CLOCKS_FC0_DELAY),
		interval: volatile.Reg(bus, rp.CLOCKS_FC0_INTERVAL),
		src:      volatile.Reg(bus, rp.CLOCKS_FC0_SRC),
		status:   volatile.Reg(bus, rp.CLOCKS_FC0_STATUS),
		result:   volatile.Reg(bus, rp.CLOCKS_FC0_RESULT),
	}
	return clks
}

// sliceSelected reports whether a one-hot SELECTED snapshot shows src.
func sliceSelected(selected, src uint32) bool {
	return selected&(1<<src) != 0
}

// sliceEnabled reports whether a CTRL snapshot shows the generator running.
func sliceEnabled(ctrl uint32) bool {
	return ctrl&rp.CLOCKS_CTRL_ENABLED != 0
}

// configureGlitchless switches a slice that has a glitchless mux.
func (clk *clockType) configureGlitchless(src, auxsrc, div uint32) {
	// If increasing divisor, set divisor before source. Otherwise set source
	// before divisor. This avoids a momentary overspeed when e.g. switching
	// to a faster source and increasing divisor to compensate.
	if div > clk.div.Get() {
		clk.div.Set(div)
	}

	// If switching to the aux source, or changing the aux mux while it is
	// still selected, switch away from aux *first* to avoid passing glitches
	// when changing the aux mux.
	// Assume glitchless source 0 is no faster than the aux source.
	before := clk.ctrl.Get()
	auxChanges := before&rp.CLOCKS_CTRL_AUXSRC_Msk != auxsrc<<rp.CLOCKS_CTRL_AUXSRC_Pos
	if src == srcAux || (before&rp.CLOCKS_CTRL_SRC_Msk == srcAux && auxChanges) {
		clk.ctrl.ClearBits(rp.CLOCKS_CTRL_SRC_Msk)
		for !sliceSelected(clk.selected.Get(), 0) {
		}
	}

	// The set alias can only add bits. Drop stale selector bits first: the
	// glitchless mux on its own, then the aux mux once it is deselected.
	ctrl := clk.ctrl.Get()
	if stale := ctrl & rp.CLOCKS_CTRL_SRC_Msk &^ src; stale != 0 {
		clk.ctrl.ClearBits(stale)
		for !sliceSelected(clk.selected.Get(), ctrl&rp.CLOCKS_CTRL_SRC_Msk&^stale) {
		}
	}
	if stale := ctrl & rp.CLOCKS_CTRL_AUXSRC_Msk &^ (auxsrc << rp.CLOCKS_CTRL_AUXSRC_Pos); stale != 0 {
		clk.ctrl.ClearBits(stale)
	}

	// Set aux mux first, and then glitchless mux.
	clk.ctrl.SetBits(auxsrc<<rp.CLOCKS_CTRL_AUXSRC_Pos | src)
	for !sliceSelected(clk.selected.Get(), src) {
	}

	// Now that the source is configured, we can trust that the user-supplied
	// divisor is a safe value.
	clk.div.Set(div)
}

// configureAux switches a slice that only has the auxiliary mux. The mux
// glitches while switching, so the generator is stopped around the change.
func (clk *clockType) configureAux(auxsrc, div uint32) {
	if div > clk.div.Get() {
		clk.div.Set(div)
	}

	want := auxsrc << rp.CLOCKS_CTRL_AUXSRC_Pos
	if clk.ctrl.Get()&rp.CLOCKS_CTRL_AUXSRC_Msk != want {
		clk.ctrl.ClearBits(rp.CLOCKS_CTRL_ENABLE)
		for sliceEnabled(clk.ctrl.Get()) {
		}
		clk.ctrl.ClearBits(rp.CLOCKS_CTRL_AUXSRC_Msk &^ want)
		clk.ctrl.SetBits(want)
	}

	clk.ctrl.SetBits(rp.CLOCKS_CTRL_ENABLE)
	for !sliceEnabled(clk.ctrl.Get()) {
	}
	for !sliceSelected(clk.selected.Get(), 0) {
	}

	clk.div.Set(div)
}

// ConfigureSlice selects the sources of a clock slice and sets its divider,
// in the order that never runs the clock faster than either the old or the
// new setting. Invalid selectors trap before any register is written.
func (c *Chip) ConfigureSlice(cix ClockIndex, src, auxsrc, div uint32) {
	s := SliceConfig{Clock: cix, Src: src, AuxSrc: auxsrc, Div: div}
	if err := s.Validate(); err != nil {
		c.fatal(err)
		return
	}

	clk := &c.clocks.clk[cix]
	if cix.hasGlitchlessMux() {
		clk.configureGlitchless(src, auxsrc, div)
	} else {
		clk.configureAux(auxsrc, div)
	}

	c.configuredFreq[cix] = divideClock(c.sourceFreq(cix, src, auxsrc), div)
	c.logf("%v: src %d aux %d div %#x, %d Hz", cix, src, auxsrc, div, c.configuredFreq[cix])
}

// ClockDefaultsSet brings the clock tree from its reset state to the
// configured plan: crystal running, both PLLs locked, then every slice in
// Config.Clocks.
func (c *Chip) ClockDefaultsSet() {
	// Clocks must not resuscitate themselves halfway through.
	c.clocks.resusCtrl.Set(0)

	c.StartOscillator(c.config.XOSC)

	// Before we touch PLLs, switch sys and ref cleanly away from their aux
	// sources.
	for _, cix := range [...]ClockIndex{ClkSys, ClkRef} {
		clk := &c.clocks.clk[cix]
		clk.ctrl.ClearBits(rp.CLOCKS_CTRL_SRC_Msk)
		for !sliceSelected(clk.selected.Get(), 0) {
		}
	}
	c.configuredFreq[ClkRef] = roscFreq
	c.configuredFreq[ClkSys] = roscFreq

	c.StartPLL(PLLSys, c.config.PLLSys)
	c.StartPLL(PLLUSB, c.config.PLLUSB)

	for _, s := range c.config.Clocks {
		c.ConfigureSlice(s.Clock, s.Src, s.AuxSrc, s.Div)
	}
}
