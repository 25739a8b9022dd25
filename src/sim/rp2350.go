package sim

import (
	"fmt"

	"github.com/rvpico/bringup/src/device/rp"
)

// DefaultSettle is the number of polls a simulated block takes to become
// ready after the write that started it.
const DefaultSettle = 3

// Blocks the boot ROM leaves running when it hands over.
const romReleased = 1<<rp.BlockIO_QSPI |
	1<<rp.BlockPADS_QSPI |
	1<<rp.BlockSYSCFG |
	1<<rp.BlockSYSINFO

// Clock slice positions in the CLOCKS register block.
const (
	sliceRef  = 4
	sliceSys  = 5
	slicePeri = 6
	sliceHSTX = 7
	sliceUSB  = 8
	sliceADC  = 9
)

// Nominal frequencies of the free-running oscillators.
const (
	roscHz  = 11_000_000
	lposcHz = 32768
)

// Power-on values of the PLL registers.
const (
	pllResetCS  = 1
	pllResetPWR = rp.PLL_PWR_PD | rp.PLL_PWR_DSMPD | rp.PLL_PWR_POSTDIVPD | rp.PLL_PWR_VCOPD
	pllResetPRI = rp.PLL_PRIM_Msk
)

type pllState struct {
	base  uintptr
	block rp.Block
	wait  int
}

type sliceState struct {
	wait int
}

// Chip is a simulated RP2350 seen from core 0: the reset controller, the
// crystal oscillator, both PLLs, the clock slices with the frequency counter,
// and the SIO FIFO with core 1 running the boot ROM at the other end.
type Chip struct {
	*RegisterFile

	// Crystal frequency.
	XOSCHz uint32

	// Polls needed by resets, the oscillator, PLL lock, clock muxes and
	// the frequency counter.
	Settle int

	Core1 *Core1

	// Number of events signalled with Event.
	Events int

	pending [rp.NumBlocks]int
	xosc    int
	pll     [2]pllState
	slice   [rp.NumClockSlices]sliceState
	fc      int
}

// NewRP2350 returns a chip in the state the boot ROM leaves it in: running
// from the ring oscillator, crystal stopped, PLLs held in reset and core 1
// waiting for its launch sequence.
func NewRP2350() *Chip {
	c := &Chip{
		RegisterFile: NewRegisterFile(),
		XOSCHz:       12_000_000,
		Settle:       DefaultSettle,
		Core1:        NewCore1(),
	}
	c.pll[0] = pllState{base: rp.PLL_SYS, block: rp.BlockPLL_SYS}
	c.pll[1] = pllState{base: rp.PLL_USB, block: rp.BlockPLL_USB}

	c.attachResets()
	c.attachXOSC()
	for i := range c.pll {
		c.attachPLL(&c.pll[i])
	}
	c.attachClocks()
	c.attachSIO()
	return c
}

// Event records a SEV from core 0.
func (c *Chip) Event() {
	c.Events++
}

// settled counts down a settle counter, returning true once it has expired.
func settled(wait *int) bool {
	if *wait > 0 {
		*wait--
		return false
	}
	return true
}

func (c *Chip) attachResets() {
	c.SetName(rp.RESETS_RESET, "RESETS.RESET")
	c.SetName(rp.RESETS_WDSEL, "RESETS.WDSEL")
	c.SetName(rp.RESETS_RESET_DONE, "RESETS.RESET_DONE")
	c.Poke(rp.RESETS_RESET, rp.ResetBits&^romReleased)

	c.OnWrite(rp.RESETS_RESET, func(_ uintptr, old, v uint32) uint32 {
		v &= rp.ResetBits
		for b := rp.Block(0); b < rp.NumBlocks; b++ {
			m := b.Mask()
			switch {
			case old&m == 0 && v&m != 0:
				c.pending[b] = 0
				c.blockReset(b)
			case old&m != 0 && v&m == 0:
				c.pending[b] = c.Settle
			}
		}
		return v
	})
	c.OnRead(rp.RESETS_RESET_DONE, func(uintptr, uint32) uint32 {
		reset := c.Peek(rp.RESETS_RESET)
		var done uint32
		for b := rp.Block(0); b < rp.NumBlocks; b++ {
			if reset&b.Mask() == 0 && settled(&c.pending[b]) {
				done |= b.Mask()
			}
		}
		return done
	})
	// RESET_DONE is read-only.
	c.OnWrite(rp.RESETS_RESET_DONE, func(_ uintptr, old, _ uint32) uint32 { return old })
}

// inReset reports whether block is held in reset.
func (c *Chip) inReset(b rp.Block) bool {
	return c.Peek(rp.RESETS_RESET)&b.Mask() != 0
}

// blockReset returns the registers of a block to their power-on values.
func (c *Chip) blockReset(b rp.Block) {
	for i := range c.pll {
		p := &c.pll[i]
		if p.block != b {
			continue
		}
		c.Poke(p.base+rp.PLL_CS, pllResetCS)
		c.Poke(p.base+rp.PLL_PWR, pllResetPWR)
		c.Poke(p.base+rp.PLL_FBDIV_INT, 0)
		c.Poke(p.base+rp.PLL_PRIM, pllResetPRI)
		p.wait = 0
	}
}

func (c *Chip) attachXOSC() {
	c.SetName(rp.XOSC_CTRL, "XOSC.CTRL")
	c.SetName(rp.XOSC_STATUS, "XOSC.STATUS")
	c.SetName(rp.XOSC_STARTUP, "XOSC.STARTUP")
	c.Poke(rp.XOSC_CTRL, rp.XOSC_CTRL_FREQ_RANGE_1_15MHZ)

	c.OnWrite(rp.XOSC_CTRL, func(_ uintptr, old, v uint32) uint32 {
		if !xoscEnabled(old) && xoscEnabled(v) {
			c.xosc = c.Settle
		}
		return v
	})
	c.OnRead(rp.XOSC_STATUS, func(uintptr, uint32) uint32 {
		if xoscEnabled(c.Peek(rp.XOSC_CTRL)) && settled(&c.xosc) {
			return rp.XOSC_STATUS_STABLE
		}
		return 0
	})
}

func xoscEnabled(ctrl uint32) bool {
	return ctrl&rp.XOSC_CTRL_ENABLE_Msk == rp.XOSC_CTRL_ENABLE_ENABLE
}

// xoscHz returns the frequency of the crystal oscillator, 0 while stopped.
func (c *Chip) xoscHz() uint32 {
	if !xoscEnabled(c.Peek(rp.XOSC_CTRL)) {
		return 0
	}
	return c.XOSCHz
}

func (c *Chip) attachPLL(p *pllState) {
	name := "PLL_SYS"
	if p.block == rp.BlockPLL_USB {
		name = "PLL_USB"
	}
	c.SetName(p.base+rp.PLL_CS, name+".CS")
	c.SetName(p.base+rp.PLL_PWR, name+".PWR")
	c.SetName(p.base+rp.PLL_FBDIV_INT, name+".FBDIV_INT")
	c.SetName(p.base+rp.PLL_PRIM, name+".PRIM")
	c.blockReset(p.block)

	// Registers ignore writes while the block is in reset, and any change
	// of the loop parameters restarts the lock timer.
	relock := func(_ uintptr, old, v uint32) uint32 {
		if c.inReset(p.block) {
			return old
		}
		if v != old {
			p.wait = c.Settle
		}
		return v
	}
	c.OnWrite(p.base+rp.PLL_CS, func(addr uintptr, old, v uint32) uint32 {
		return relock(addr, old, v&^(rp.PLL_CS_LOCK|rp.PLL_CS_LOCK_N))
	})
	c.OnWrite(p.base+rp.PLL_PWR, func(addr uintptr, old, v uint32) uint32 {
		// Only the core and VCO power bits affect lock.
		const vco = rp.PLL_PWR_PD | rp.PLL_PWR_VCOPD
		if c.inReset(p.block) {
			return old
		}
		if (old^v)&vco != 0 {
			p.wait = c.Settle
		}
		return v
	})
	c.OnWrite(p.base+rp.PLL_FBDIV_INT, relock)
	c.OnWrite(p.base+rp.PLL_PRIM, func(_ uintptr, old, v uint32) uint32 {
		if c.inReset(p.block) {
			return old
		}
		return v
	})
	c.OnRead(p.base+rp.PLL_CS, func(_ uintptr, cs uint32) uint32 {
		if c.pllRunning(p) && settled(&p.wait) {
			cs |= rp.PLL_CS_LOCK
		}
		return cs
	})
}

// pllRunning reports whether the VCO of p is powered with sane dividers, so
// it will lock once settled.
func (c *Chip) pllRunning(p *pllState) bool {
	pwr := c.Peek(p.base + rp.PLL_PWR)
	fbdiv := c.Peek(p.base+rp.PLL_FBDIV_INT) & rp.PLL_FBDIV_INT_Msk
	refdiv := c.Peek(p.base+rp.PLL_CS) & rp.PLL_CS_REFDIV_Msk
	return !c.inReset(p.block) &&
		c.xoscHz() != 0 &&
		pwr&(rp.PLL_PWR_PD|rp.PLL_PWR_VCOPD) == 0 &&
		fbdiv >= 16 && fbdiv <= 320 &&
		refdiv != 0
}

// pllHz returns the primary output frequency of p, 0 unless the PLL is
// locked with its post dividers powered.
func (c *Chip) pllHz(p *pllState) uint32 {
	if !c.pllRunning(p) || p.wait > 0 {
		return 0
	}
	if c.Peek(p.base+rp.PLL_PWR)&rp.PLL_PWR_POSTDIVPD != 0 {
		return 0
	}
	refdiv := uint64(c.Peek(p.base+rp.PLL_CS) & rp.PLL_CS_REFDIV_Msk)
	fbdiv := uint64(c.Peek(p.base+rp.PLL_FBDIV_INT) & rp.PLL_FBDIV_INT_Msk)
	prim := c.Peek(p.base + rp.PLL_PRIM)
	pd1 := uint64(prim >> rp.PLL_PRIM_POSTDIV1_Pos & 7)
	pd2 := uint64(prim >> rp.PLL_PRIM_POSTDIV2_Pos & 7)
	if pd1 == 0 || pd2 == 0 {
		return 0
	}
	return uint32(uint64(c.xoscHz()) / refdiv * fbdiv / (pd1 * pd2))
}

func sliceCtrl(i int) uintptr {
	return uintptr(rp.CLOCKS_CLK_GPOUT0_CTRL + i*rp.ClockSliceStride)
}

var sliceNames = [rp.NumClockSlices]string{
	"GPOUT0", "GPOUT1", "GPOUT2", "GPOUT3", "REF", "SYS", "PERI", "HSTX", "USB", "ADC",
}

func (c *Chip) attachClocks() {
	c.SetName(rp.CLOCKS_CLK_SYS_RESUS_CTRL, "CLOCKS.SYS_RESUS_CTRL")
	for i := range c.slice {
		ctrl := sliceCtrl(i)
		div, selected := ctrl+4, ctrl+8
		c.SetName(ctrl, "CLOCKS."+sliceNames[i]+"_CTRL")
		c.SetName(div, "CLOCKS."+sliceNames[i]+"_DIV")
		c.SetName(selected, "CLOCKS."+sliceNames[i]+"_SELECTED")
		c.Poke(div, 1<<rp.CLOCKS_DIV_INT_Pos)

		s := &c.slice[i]
		// SELECTED is read-only on every slice.
		c.OnWrite(selected, func(_ uintptr, old, _ uint32) uint32 { return old })
		if i == sliceRef || i == sliceSys {
			c.OnWrite(ctrl, func(_ uintptr, old, v uint32) uint32 {
				if (old^v)&rp.CLOCKS_CTRL_SRC_Msk != 0 {
					s.wait = c.Settle
				}
				return v
			})
			c.OnRead(selected, func(uintptr, uint32) uint32 {
				if !settled(&s.wait) {
					return 0
				}
				return 1 << (c.Peek(ctrl) & rp.CLOCKS_CTRL_SRC_Msk)
			})
			continue
		}
		c.OnWrite(ctrl, func(_ uintptr, old, v uint32) uint32 {
			v &^= rp.CLOCKS_CTRL_ENABLED
			if (old^v)&rp.CLOCKS_CTRL_ENABLE != 0 {
				s.wait = c.Settle
			}
			return v
		})
		c.OnRead(ctrl, func(_ uintptr, v uint32) uint32 {
			enable := v&rp.CLOCKS_CTRL_ENABLE != 0
			if settled(&s.wait) == enable {
				v |= rp.CLOCKS_CTRL_ENABLED
			}
			return v
		})
		c.OnRead(selected, func(uintptr, uint32) uint32 { return 1 })
	}
	c.attachFC0()
}

// SliceHz returns the frequency a clock slice actually runs at, computed from
// the simulated registers.
func (c *Chip) SliceHz(i int) uint32 {
	if i < 0 || i >= rp.NumClockSlices {
		return 0
	}
	ctrl := c.Peek(sliceCtrl(i))
	aux := ctrl & rp.CLOCKS_CTRL_AUXSRC_Msk >> rp.CLOCKS_CTRL_AUXSRC_Pos
	pllSys, pllUSB := c.pllHz(&c.pll[0]), c.pllHz(&c.pll[1])
	var in uint32
	switch i {
	case sliceRef:
		switch ctrl & rp.CLOCKS_CTRL_SRC_Msk {
		case rp.CLOCKS_CLK_REF_CTRL_SRC_ROSC_CLKSRC_PH:
			in = roscHz
		case rp.CLOCKS_CLK_REF_CTRL_SRC_CLKSRC_CLK_REF_AUX:
			in = nth(aux, pllUSB)
		case rp.CLOCKS_CLK_REF_CTRL_SRC_XOSC_CLKSRC:
			in = c.xoscHz()
		case rp.CLOCKS_CLK_REF_CTRL_SRC_LPOSC_CLKSRC:
			in = lposcHz
		}
	case sliceSys:
		if ctrl&rp.CLOCKS_CTRL_SRC_Msk == rp.CLOCKS_CLK_SYS_CTRL_SRC_CLK_REF {
			in = c.SliceHz(sliceRef)
		} else {
			in = nth(aux, pllSys, pllUSB, roscHz, c.xoscHz())
		}
	case slicePeri:
		in = nth(aux, c.SliceHz(sliceSys), pllSys, pllUSB, roscHz, c.xoscHz())
	case sliceHSTX:
		in = nth(aux, c.SliceHz(sliceSys), pllSys, pllUSB)
	case sliceUSB, sliceADC:
		in = nth(aux, pllUSB, pllSys, roscHz, c.xoscHz())
	default:
		return 0
	}
	if i != sliceRef && i != sliceSys && ctrl&rp.CLOCKS_CTRL_ENABLE == 0 {
		return 0
	}
	div := c.Peek(sliceCtrl(i) + 4)
	if div == 0 {
		return in >> 16
	}
	return uint32(uint64(in) << 16 / uint64(div))
}

func nth(sel uint32, freqs ...uint32) uint32 {
	if sel < uint32(len(freqs)) {
		return freqs[sel]
	}
	return 0
}

// SourceHz returns the frequency of a frequency counter source.
func (c *Chip) SourceHz(src uint32) uint32 {
	switch src {
	case rp.CLOCKS_FC0_SRC_PLL_SYS_CLKSRC_PRIMARY:
		return c.pllHz(&c.pll[0])
	case rp.CLOCKS_FC0_SRC_PLL_USB_CLKSRC_PRIMARY:
		return c.pllHz(&c.pll[1])
	case rp.CLOCKS_FC0_SRC_ROSC_CLKSRC, rp.CLOCKS_FC0_SRC_ROSC_CLKSRC_PH:
		return roscHz
	case rp.CLOCKS_FC0_SRC_XOSC_CLKSRC:
		return c.xoscHz()
	case rp.CLOCKS_FC0_SRC_CLK_REF:
		return c.SliceHz(sliceRef)
	case rp.CLOCKS_FC0_SRC_CLK_SYS:
		return c.SliceHz(sliceSys)
	case rp.CLOCKS_FC0_SRC_CLK_PERI:
		return c.SliceHz(slicePeri)
	case rp.CLOCKS_FC0_SRC_CLK_USB:
		return c.SliceHz(sliceUSB)
	case rp.CLOCKS_FC0_SRC_CLK_ADC:
		return c.SliceHz(sliceADC)
	case rp.CLOCKS_FC0_SRC_CLK_HSTX:
		return c.SliceHz(sliceHSTX)
	}
	return 0
}

func (c *Chip) attachFC0() {
	for addr, name := range map[uintptr]string{
		rp.CLOCKS_FC0_REF_KHZ:  "CLOCKS.FC0_REF_KHZ",
		rp.CLOCKS_FC0_MIN_KHZ:  "CLOCKS.FC0_MIN_KHZ",
		rp.CLOCKS_FC0_MAX_KHZ:  "CLOCKS.FC0_MAX_KHZ",
		rp.CLOCKS_FC0_DELAY:    "CLOCKS.FC0_DELAY",
		rp.CLOCKS_FC0_INTERVAL: "CLOCKS.FC0_INTERVAL",
		rp.CLOCKS_FC0_SRC:      "CLOCKS.FC0_SRC",
		rp.CLOCKS_FC0_STATUS:   "CLOCKS.FC0_STATUS",
		rp.CLOCKS_FC0_RESULT:   "CLOCKS.FC0_RESULT",
	} {
		c.SetName(addr, name)
	}
	c.OnWrite(rp.CLOCKS_FC0_SRC, func(_ uintptr, _, v uint32) uint32 {
		c.fc = c.Settle
		return v
	})
	c.OnRead(rp.CLOCKS_FC0_STATUS, func(uintptr, uint32) uint32 {
		if c.Peek(rp.CLOCKS_FC0_SRC) == rp.CLOCKS_FC0_SRC_NULL || !settled(&c.fc) {
			return 0
		}
		return rp.CLOCKS_FC0_STATUS_DONE
	})
	c.OnRead(rp.CLOCKS_FC0_RESULT, func(uintptr, uint32) uint32 {
		hz := c.SourceHz(c.Peek(rp.CLOCKS_FC0_SRC))
		khz, frac := hz/1000, (hz%1000)*32/1000
		return khz<<rp.CLOCKS_FC0_RESULT_KHZ_Pos | frac
	})
}

func (c *Chip) attachSIO() {
	for addr, name := range map[uintptr]string{
		rp.SIO_FIFO_ST:    "SIO.FIFO_ST",
		rp.SIO_FIFO_WR:    "SIO.FIFO_WR",
		rp.SIO_FIFO_RD:    "SIO.FIFO_RD",
		rp.SIO_MTIME_CTRL: "SIO.MTIME_CTRL",
		rp.SIO_MTIME:      "SIO.MTIME",
		rp.SIO_MTIMEH:     "SIO.MTIMEH",
		rp.SIO_MTIMECMP:   "SIO.MTIMECMP",
		rp.SIO_MTIMECMPH:  "SIO.MTIMECMPH",
	} {
		c.SetName(addr, name)
		c.NoAlias(addr)
	}
	c.OnRead(rp.SIO_FIFO_ST, func(uintptr, uint32) uint32 {
		return c.Core1.status()
	})
	// Any write to FIFO_ST clears the sticky error flags.
	c.OnWrite(rp.SIO_FIFO_ST, func(uintptr, uint32, uint32) uint32 {
		c.Core1.wof, c.Core1.roe = false, false
		return 0
	})
	c.OnWrite(rp.SIO_FIFO_WR, func(_ uintptr, _, v uint32) uint32 {
		c.Core1.receive(v)
		return v
	})
	c.OnRead(rp.SIO_FIFO_RD, func(uintptr, uint32) uint32 {
		return c.Core1.reply()
	})
}

// Describe returns a one-line summary of the clock tree, for logs.
func (c *Chip) Describe() string {
	return fmt.Sprintf("xosc %d Hz, pll_sys %d Hz, pll_usb %d Hz, clk_ref %d Hz, clk_sys %d Hz, clk_peri %d Hz, clk_usb %d Hz, clk_adc %d Hz",
		c.xoscHz(), c.pllHz(&c.pll[0]), c.pllHz(&c.pll[1]),
		c.SliceHz(sliceRef), c.SliceHz(sliceSys), c.SliceHz(slicePeri),
		c.SliceHz(sliceUSB), c.SliceHz(sliceADC))
}
