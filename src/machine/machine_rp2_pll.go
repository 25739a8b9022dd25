package machine

import (
	"fmt"

	"github.com/rvpico/bringup/src/device/rp"
	"github.com/rvpico/bringup/src/volatile"
)

// PLL limits from the RP2350 datasheet.
const (
	PLLVCOMinHz   = 756 * MHz
	PLLVCOMaxHz   = 1596 * MHz
	PLLFBDivMin   = 16
	PLLFBDivMax   = 320
	PLLRefDivMax  = 63
	PLLPostDivMax = 7
)

// PLLInstance identifies one of the two PLLs.
type PLLInstance uint8

const (
	PLLSys PLLInstance = iota
	PLLUSB
	numPLLs
)

func (p PLLInstance) String() string {
	switch p {
	case PLLSys:
		return "PLL_SYS"
	case PLLUSB:
		return "PLL_USB"
	}
	return "PLL(?)"
}

// pllInstances holds the register base and reset block of every PLL.
var pllInstances = [numPLLs]struct {
	base  uintptr
	block rp.Block
}{
	PLLSys: {rp.PLL_SYS, rp.BlockPLL_SYS},
	PLLUSB: {rp.PLL_USB, rp.BlockPLL_USB},
}

// PLLConfig describes a PLL setting. The output frequency is
//
//	xosc / RefDiv * FBDIV / PostDiv1 / PostDiv2
//
// where FBDIV is derived from VCOFreqHz.
type PLLConfig struct {
	RefDiv    uint32
	VCOFreqHz uint32
	PostDiv1  uint32
	PostDiv2  uint32
}

// Default PLL settings for a 12 MHz crystal: 150 MHz for CLK_SYS and 48 MHz
// for USB and the ADC.
var (
	DefaultPLLSysConfig = PLLConfig{RefDiv: 1, VCOFreqHz: 1500 * MHz, PostDiv1: 5, PostDiv2: 2}
	DefaultPLLUSBConfig = PLLConfig{RefDiv: 1, VCOFreqHz: 1440 * MHz, PostDiv1: 6, PostDiv2: 5}
)

// RefFreq returns the PLL reference frequency for a crystal of xoscHz.
func (cfg PLLConfig) RefFreq(xoscHz uint32) uint32 {
	if cfg.RefDiv == 0 {
		return 0
	}
	return xoscHz / cfg.RefDiv
}

// FBDiv returns the integer feedback divider for a crystal of xoscHz.
func (cfg PLLConfig) FBDiv(xoscHz uint32) uint32 {
	ref := cfg.RefFreq(xoscHz)
	if ref == 0 {
		return 0
	}
	return cfg.VCOFreqHz / ref
}

// Prim returns the PRIM register value holding both post dividers.
func (cfg PLLConfig) Prim() uint32 {
	return cfg.PostDiv1<<rp.PLL_PRIM_POSTDIV1_Pos | cfg.PostDiv2<<rp.PLL_PRIM_POSTDIV2_Pos
}

// OutputFreq returns the frequency of the PLL's primary output.
func (cfg PLLConfig) OutputFreq(xoscHz uint32) uint32 {
	if cfg.PostDiv1 == 0 || cfg.PostDiv2 == 0 {
		return 0
	}
	vco := uint64(cfg.RefFreq(xoscHz)) * uint64(cfg.FBDiv(xoscHz))
	return uint32(vco / uint64(cfg.PostDiv1*cfg.PostDiv2))
}

// Validate checks cfg against the PLL's documented limits for a crystal of
// xoscHz. Nothing is clamped.
func (cfg PLLConfig) Validate(xoscHz uint32) error {
	if cfg.RefDiv < 1 || cfg.RefDiv > PLLRefDivMax {
		return fmt.Errorf("%w: refdiv %d", ErrRefDivider, cfg.RefDiv)
	}
	if cfg.VCOFreqHz < PLLVCOMinHz || cfg.VCOFreqHz > PLLVCOMaxHz {
		return fmt.Errorf("%w: %d Hz", ErrVCOOutOfRange, cfg.VCOFreqHz)
	}
	if fbdiv := cfg.FBDiv(xoscHz); fbdiv < PLLFBDivMin || fbdiv > PLLFBDivMax {
		return fmt.Errorf("%w: fbdiv %d", ErrFeedbackDivider, fbdiv)
	}
	if cfg.PostDiv1 < 1 || cfg.PostDiv1 > PLLPostDivMax ||
		cfg.PostDiv2 < 1 || cfg.PostDiv2 > PLLPostDivMax {
		return fmt.Errorf("%w: postdiv %d/%d", ErrPostDivider, cfg.PostDiv1, cfg.PostDiv2)
	}
	if ref := cfg.RefFreq(xoscHz); ref > cfg.VCOFreqHz/16 {
		return fmt.Errorf("%w: ref %d Hz", ErrReferenceTooFast, ref)
	}
	return nil
}

type pllType struct {
	instance PLLInstance
	block    rp.Block
	cs       volatile.Register32
	pwr      volatile.Register32
	fbdivInt volatile.Register32
	prim     volatile.Register32
}

func newPLL(bus volatile.Bus, instance PLLInstance) pllType {
	base := pllInstances[instance].base
	return pllType{
		instance: instance,
		block:    pllInstances[instance].block,
		cs:       volatile.Reg(bus, base+rp.PLL_CS),
		pwr:      volatile.Reg(bus, base+rp.PLL_PWR),
		fbdivInt: volatile.Reg(bus, base+rp.PLL_FBDIV_INT),
		prim:     volatile.Reg(bus, base+rp.PLL_PRIM),
	}
}

// pllLocked reports whether a CS snapshot shows the PLL locked.
func pllLocked(cs uint32) bool {
	return cs&rp.PLL_CS_LOCK != 0
}

// pllConverged reports whether register snapshots already hold the target
// dividers, so a new bring-up would only relock the same frequency.
func pllConverged(cs, fbdiv, prim, refdiv, wantFBDiv, wantPrim uint32) bool {
	return cs&rp.PLL_CS_REFDIV_Msk == refdiv &&
		fbdiv&rp.PLL_FBDIV_INT_Msk == wantFBDiv &&
		prim&rp.PLL_PRIM_Msk == wantPrim
}

// pll returns the register block of the given instance.
func (c *Chip) pll(instance PLLInstance) *pllType {
	switch instance {
	case PLLSys, PLLUSB:
		return &c.plls[instance]
	}
	return nil
}

// StartPLL brings up a PLL: validate, reset, program the dividers, power the
// VCO, wait for lock, and only then enable the post dividers. Enabling the
// post dividers before lock would pass an unsettled VCO downstream.
//
// An invalid configuration traps before any register is written. If the PLL
// already runs with the requested dividers nothing is changed.
func (c *Chip) StartPLL(instance PLLInstance, cfg PLLConfig) {
	p := c.pll(instance)
	if p == nil {
		c.fatal(fmt.Errorf("%w: %d", ErrInvalidPLL, instance))
		return
	}
	xoscHz := c.config.XOSC.FrequencyHz
	if err := cfg.Validate(xoscHz); err != nil {
		c.fatal(fmt.Errorf("%v: %w", instance, err))
		return
	}

	fbdiv := cfg.FBDiv(xoscHz)
	pdiv := cfg.Prim()

	if pllConverged(p.cs.Get(), p.fbdivInt.Get(), p.prim.Get(), cfg.RefDiv, fbdiv, pdiv) {
		c.pllFreq[instance] = cfg.OutputFreq(xoscHz)
		c.config.Breakpoint(instance.String() + " already configured")
		return
	}

	// Clear any stale lock state.
	c.ResetCycle(p.block)

	p.cs.Set(cfg.RefDiv)
	p.fbdivInt.Set(fbdiv)

	// Power the PLL core and VCO. POSTDIVPD stays set until lock.
	p.pwr.ClearBits(rp.PLL_PWR_PD | rp.PLL_PWR_VCOPD)

	for !pllLocked(p.cs.Get()) {
	}

	p.prim.Set(pdiv)
	p.pwr.ClearBits(rp.PLL_PWR_POSTDIVPD)

	c.pllFreq[instance] = cfg.OutputFreq(xoscHz)
	c.logf("%v: locked, vco %d Hz, output %d Hz", instance, cfg.VCOFreqHz, c.pllFreq[instance])
}

// PLLLocked reports whether the PLL reports lock.
func (c *Chip) PLLLocked(instance PLLInstance) bool {
	p := c.pll(instance)
	return p != nil && pllLocked(p.cs.Get())
}
