package machine

import (
	"math/bits"

	"github.com/rvpico/bringup/src/device/rp"
)

// Nominal frequencies of the on-chip oscillators. They are not trimmed, so
// these are only good enough for bookkeeping before the crystal takes over.
const (
	roscFreq  = 11 * MHz
	lposcFreq = 32768
)

// Frequency returns the frequency of a clock slice as last configured, in Hz.
// It returns 0 for a slice that has not been configured or runs from an
// external input.
func (c *Chip) Frequency(cix ClockIndex) uint32 {
	if cix >= NumClocks {
		return 0
	}
	return c.configuredFreq[cix]
}

// ClkRefFreqMHz returns the CLK_REF frequency in whole MHz. Timer and UART
// code use it to scale their counts.
func (c *Chip) ClkRefFreqMHz() uint32 {
	return c.configuredFreq[ClkRef] / MHz
}

// ClkSysFreqMHz returns the CLK_SYS frequency in whole MHz.
func (c *Chip) ClkSysFreqMHz() uint32 {
	return c.configuredFreq[ClkSys] / MHz
}

// PLLFreq returns the primary output frequency of a started PLL.
func (c *Chip) PLLFreq(instance PLLInstance) uint32 {
	if instance >= numPLLs {
		return 0
	}
	return c.pllFreq[instance]
}

// divideClock applies a 16.16 divider. A zero divider divides by 2^16.
func divideClock(freq, div uint32) uint32 {
	if div == 0 {
		return freq >> 16
	}
	return uint32((uint64(freq) << 16) / uint64(div))
}

// sourceFreq returns the frequency feeding a slice for the given selectors.
func (c *Chip) sourceFreq(cix ClockIndex, src, auxsrc uint32) uint32 {
	xosc := c.config.XOSC.FrequencyHz
	pllSys := c.pllFreq[PLLSys]
	pllUSB := c.pllFreq[PLLUSB]
	switch cix {
	case ClkRef:
		switch src {
		case rp.CLOCKS_CLK_REF_CTRL_SRC_ROSC_CLKSRC_PH:
			return roscFreq
		case rp.CLOCKS_CLK_REF_CTRL_SRC_CLKSRC_CLK_REF_AUX:
			if auxsrc == rp.CLOCKS_CLK_REF_CTRL_AUXSRC_CLKSRC_PLL_USB {
				return pllUSB
			}
			return 0
		case rp.CLOCKS_CLK_REF_CTRL_SRC_XOSC_CLKSRC:
			return xosc
		case rp.CLOCKS_CLK_REF_CTRL_SRC_LPOSC_CLKSRC:
			return lposcFreq
		}
	case ClkSys:
		if src == rp.CLOCKS_CLK_SYS_CTRL_SRC_CLK_REF {
			return c.configuredFreq[ClkRef]
		}
		return pick(auxsrc, pllSys, pllUSB, roscFreq, xosc)
	case ClkPeri:
		return pick(auxsrc, c.configuredFreq[ClkSys], pllSys, pllUSB, roscFreq, xosc)
	case ClkHSTX:
		return pick(auxsrc, c.configuredFreq[ClkSys], pllSys, pllUSB)
	case ClkUSB, ClkADC:
		return pick(auxsrc, pllUSB, pllSys, roscFreq, xosc)
	case ClkGPOUT0, ClkGPOUT1, ClkGPOUT2, ClkGPOUT3:
		switch auxsrc {
		case 0x0:
			return pllSys
		case 0x3:
			return pllUSB
		case 0x5:
			return roscFreq
		case 0x6:
			return xosc
		case 0x7:
			return lposcFreq
		case 0x8:
			return c.configuredFreq[ClkSys]
		case 0x9:
			return c.configuredFreq[ClkUSB]
		case 0xa:
			return c.configuredFreq[ClkADC]
		case 0xb:
			return c.configuredFreq[ClkRef]
		case 0xc:
			return c.configuredFreq[ClkPeri]
		case 0xd:
			return c.configuredFreq[ClkHSTX]
		}
	}
	return 0
}

// pick returns freqs[sel], or 0 for selectors past the known sources (the
// GPIN external inputs).
func pick(sel uint32, freqs ...uint32) uint32 {
	if sel < uint32(len(freqs)) {
		return freqs[sel]
	}
	return 0
}

// Source returns the glitchless source currently selected for a slice, as
// reported by its one-hot SELECTED register. ok is false while the mux is
// between sources.
func (c *Chip) Source(cix ClockIndex) (src uint32, ok bool) {
	if cix >= NumClocks {
		return 0, false
	}
	selected := c.clocks.clk[cix].selected.Get()
	if bits.OnesCount32(selected) != 1 {
		return 0, false
	}
	return uint32(bits.TrailingZeros32(selected)), true
}

// fcDone reports whether an FC0_STATUS snapshot shows a finished count.
func fcDone(status uint32) bool {
	return status&rp.CLOCKS_FC0_STATUS_DONE != 0
}

// MeasureKHz counts the frequency of an internal clock (one of the
// rp.CLOCKS_FC0_SRC_* values) against CLK_REF. It returns whole kHz and the
// fractional part in 1/32 kHz.
func (c *Chip) MeasureKHz(src uint32) (khz, frac uint32) {
	fc := &c.clocks.fc0
	fc.refKHz.Set(c.configuredFreq[ClkRef] / KHz)
	fc.minKHz.Set(0)
	fc.maxKHz.Set(rp.CLOCKS_FC0_MAX_KHZ_Msk)
	fc.interval.Set(11)
	fc.src.Set(src)
	for !fcDone(fc.status.Get()) {
	}
	result := fc.result.Get()
	return result >> rp.CLOCKS_FC0_RESULT_KHZ_Pos, result & rp.CLOCKS_FC0_RESULT_FRAC
}
