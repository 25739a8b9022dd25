package machine

import (
	"github.com/rvpico/bringup/src/device/rp"
	"github.com/rvpico/bringup/src/volatile"
)

// OscillatorConfig describes the external crystal.
type OscillatorConfig struct {
	// Crystal frequency. The PLLs and CLK_REF are derived from it.
	FrequencyHz uint32

	// FREQ_RANGE field value, rp.XOSC_CTRL_FREQ_RANGE_1_15MHZ for the usual
	// 12 MHz crystal.
	FreqRange uint32

	// Startup delay in multiples of 256 crystal cycles.
	StartupDelay uint32
}

// DefaultOscillatorConfig returns the settings for a 12 MHz crystal.
func DefaultOscillatorConfig() OscillatorConfig {
	const hz = 12 * MHz
	return OscillatorConfig{
		FrequencyHz:  hz,
		FreqRange:    rp.XOSC_CTRL_FREQ_RANGE_1_15MHZ,
		StartupDelay: XOSCStartupDelay(hz),
	}
}

// XOSCStartupDelay returns the STARTUP.DELAY value for a crystal of hz: about
// one millisecond, in units of 256 cycles.
func XOSCStartupDelay(hz uint32) uint32 {
	khz := hz / KHz
	return (khz + 128) / 256
}

type xoscType struct {
	ctrl    volatile.Register32
	status  volatile.Register32
	startup volatile.Register32
}

func newXOSC(bus volatile.Bus) xoscType {
	return xoscType{
		ctrl:    volatile.Reg(bus, rp.XOSC_CTRL),
		status:  volatile.Reg(bus, rp.XOSC_STATUS),
		startup: volatile.Reg(bus, rp.XOSC_STARTUP),
	}
}

// xoscStable reports whether a STATUS snapshot shows a stable oscillator.
func xoscStable(status uint32) bool {
	return status&rp.XOSC_STATUS_STABLE != 0
}

// StartOscillator configures and enables the crystal oscillator and waits
// until it is stable. It must complete before any PLL is started.
func (c *Chip) StartOscillator(cfg OscillatorConfig) {
	x := &c.xosc
	x.ctrl.ReplaceBits(cfg.FreqRange, rp.XOSC_CTRL_FREQ_RANGE_Msk, 0)
	x.startup.Set(cfg.StartupDelay & rp.XOSC_STARTUP_DELAY_Msk)

	// Enable through the set alias so no other CTRL bit is disturbed.
	ctrl := x.ctrl.Get() &^ rp.XOSC_CTRL_ENABLE_Msk
	x.ctrl.SetBits(ctrl | rp.XOSC_CTRL_ENABLE_ENABLE)

	for !xoscStable(x.status.Get()) {
	}
	c.logf("xosc: stable at %d Hz", cfg.FrequencyHz)
}

// OscillatorStable reports whether the crystal oscillator is running.
func (c *Chip) OscillatorStable() bool {
	return xoscStable(c.xosc.status.Get())
}
