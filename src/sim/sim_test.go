package sim

import (
	"testing"

	"github.com/rvpico/bringup/src/device/rp"
	"github.com/rvpico/bringup/src/volatile"
)

func TestRegisterFileAliases(t *testing.T) {
	rf := NewRegisterFile()
	const addr = 0x40010000
	rf.Store(addr, 0xf0)
	rf.Store(addr+volatile.AliasSet, 0x0f)
	rf.Store(addr+volatile.AliasClr, 0x30)
	rf.Store(addr+volatile.AliasXor, 0x101)
	if got, want := rf.Load(addr), uint32(0x1ce); got != want {
		t.Errorf("register = %#x, want %#x", got, want)
	}

	stores := rf.Stores(addr)
	if len(stores) != 4 {
		t.Fatalf("recorded %d stores, want 4", len(stores))
	}
	wantAlias := []uintptr{0, volatile.AliasSet, volatile.AliasClr, volatile.AliasXor}
	for i, s := range stores {
		if s.Alias != wantAlias[i] {
			t.Errorf("store %d: alias %#x, want %#x", i, s.Alias, wantAlias[i])
		}
		if i > 0 && s.Seq <= stores[i-1].Seq {
			t.Errorf("store %d: sequence %d not after %d", i, s.Seq, stores[i-1].Seq)
		}
	}
}

func TestRegisterFileNoAlias(t *testing.T) {
	rf := NewRegisterFile()
	const addr = 0xd0002000
	rf.NoAlias(addr)
	rf.Store(addr, 5)
	if got := rf.Peek(addr); got != 5 {
		t.Errorf("register = %d, want 5", got)
	}
	if got := rf.Peek(0xd0000000); got != 0 {
		t.Errorf("store leaked to %#x: %d", 0xd0000000, got)
	}
}

func TestRegisterFileSpinLimit(t *testing.T) {
	rf := NewRegisterFile()
	rf.SpinLimit = 10
	defer func() {
		if recover() == nil {
			t.Error("polling a register forever did not panic")
		}
	}()
	for rf.Load(0x40000000) == 0 {
	}
}

func TestResetSettles(t *testing.T) {
	c := NewRP2350()
	m := rp.BlockUART0.Mask()
	if c.Load(rp.RESETS_RESET_DONE)&m != 0 {
		t.Fatal("UART0 out of reset at power-on")
	}
	c.Store(rp.RESETS_RESET+volatile.AliasClr, m)
	polls := 0
	for c.Load(rp.RESETS_RESET_DONE)&m == 0 {
		polls++
	}
	if polls != c.Settle {
		t.Errorf("reset done after %d polls, want %d", polls, c.Settle)
	}
	c.Store(rp.RESETS_RESET+volatile.AliasSet, m)
	if c.Load(rp.RESETS_RESET_DONE)&m != 0 {
		t.Error("done bit survived reset")
	}
}

func TestPLLRegistersHeldInReset(t *testing.T) {
	c := NewRP2350()
	c.Store(rp.PLL_SYS+rp.PLL_FBDIV_INT, 125)
	if got := c.Peek(rp.PLL_SYS + rp.PLL_FBDIV_INT); got != 0 {
		t.Errorf("FBDIV_INT written while in reset: %d", got)
	}
	if got := c.Peek(rp.PLL_SYS + rp.PLL_PWR); got != pllResetPWR {
		t.Errorf("PWR = %#x, want %#x", got, pllResetPWR)
	}
}

func TestPLLLocks(t *testing.T) {
	c := NewRP2350()
	c.Store(rp.XOSC_CTRL+volatile.AliasSet, rp.XOSC_CTRL_ENABLE_ENABLE)
	c.Store(rp.RESETS_RESET+volatile.AliasClr, rp.BlockPLL_SYS.Mask())

	cs := uintptr(rp.PLL_SYS + rp.PLL_CS)
	c.Store(cs, 1)
	c.Store(rp.PLL_SYS+rp.PLL_FBDIV_INT, 125)
	if c.Load(cs)&rp.PLL_CS_LOCK != 0 {
		t.Fatal("locked while powered down")
	}
	c.Store(rp.PLL_SYS+rp.PLL_PWR+volatile.AliasClr, rp.PLL_PWR_PD|rp.PLL_PWR_VCOPD)
	for c.Load(cs)&rp.PLL_CS_LOCK == 0 {
	}
	if got := c.SourceHz(rp.CLOCKS_FC0_SRC_PLL_SYS_CLKSRC_PRIMARY); got != 0 {
		t.Errorf("output %d Hz with post dividers powered down", got)
	}
	c.Store(rp.PLL_SYS+rp.PLL_PRIM, 5<<rp.PLL_PRIM_POSTDIV1_Pos|2<<rp.PLL_PRIM_POSTDIV2_Pos)
	c.Store(rp.PLL_SYS+rp.PLL_PWR+volatile.AliasClr, rp.PLL_PWR_POSTDIVPD)
	if got, want := c.SourceHz(rp.CLOCKS_FC0_SRC_PLL_SYS_CLKSRC_PRIMARY), uint32(150_000_000); got != want {
		t.Errorf("output %d Hz, want %d", got, want)
	}
	if c.Load(cs)&rp.PLL_CS_LOCK == 0 {
		t.Error("powering the post dividers lost lock")
	}
}

func TestGlitchlessSelected(t *testing.T) {
	c := NewRP2350()
	sel := uintptr(rp.CLOCKS_CLK_SYS_SELECTED)
	if got := c.Load(sel); got != 1 {
		t.Fatalf("SELECTED = %#x at power-on, want 1", got)
	}
	c.Store(rp.CLOCKS_CLK_SYS_CTRL+volatile.AliasSet, 1)
	for i := 0; i < c.Settle; i++ {
		if got := c.Load(sel); got != 0 {
			t.Fatalf("poll %d: SELECTED = %#x mid-switch", i, got)
		}
	}
	if got := c.Load(sel); got != 2 {
		t.Errorf("SELECTED = %#x, want 2", got)
	}
}

func TestAuxEnabledFollowsEnable(t *testing.T) {
	c := NewRP2350()
	ctrl := uintptr(rp.CLOCKS_CLK_USB_CTRL)
	c.Store(ctrl+volatile.AliasSet, rp.CLOCKS_CTRL_ENABLE)
	polls := 0
	for c.Load(ctrl)&rp.CLOCKS_CTRL_ENABLED == 0 {
		polls++
	}
	if polls != c.Settle {
		t.Errorf("enabled after %d polls, want %d", polls, c.Settle)
	}
	c.Store(ctrl+volatile.AliasClr, rp.CLOCKS_CTRL_ENABLE)
	if c.Load(ctrl)&rp.CLOCKS_CTRL_ENABLED == 0 {
		t.Error("stopped without delay")
	}
	for c.Load(ctrl)&rp.CLOCKS_CTRL_ENABLED != 0 {
	}
	if got := c.Load(rp.CLOCKS_CLK_USB_CTRL + 8); got != 1 {
		t.Errorf("SELECTED = %#x, want 1", got)
	}
}

func TestFrequencyCounter(t *testing.T) {
	c := NewRP2350()
	c.Store(rp.CLOCKS_FC0_SRC, rp.CLOCKS_FC0_SRC_CLK_REF)
	for c.Load(rp.CLOCKS_FC0_STATUS)&rp.CLOCKS_FC0_STATUS_DONE == 0 {
	}
	result := c.Load(rp.CLOCKS_FC0_RESULT)
	if khz := result >> rp.CLOCKS_FC0_RESULT_KHZ_Pos; khz != 11000 {
		t.Errorf("clk_ref = %d kHz, want 11000", khz)
	}
}

func push(c *Chip, w uint32) uint32 {
	for c.Load(rp.SIO_FIFO_ST)&rp.SIO_FIFO_ST_RDY == 0 {
	}
	c.Store(rp.SIO_FIFO_WR, w)
	for c.Load(rp.SIO_FIFO_ST)&rp.SIO_FIFO_ST_VLD == 0 {
	}
	return c.Load(rp.SIO_FIFO_RD)
}

func TestCore1Launch(t *testing.T) {
	c := NewRP2350()
	seq := []uint32{0, 0, 1, 0x20000101, 0x20040000, 0x10000200}
	for i, w := range seq {
		if got := push(c, w); got != w {
			t.Fatalf("word %d: echo %#x, want %#x", i, got, w)
		}
	}
	c1 := c.Core1
	if !c1.Launched {
		t.Fatal("core 1 not launched")
	}
	if c1.VectorTable != 0x20000101 || c1.StackPointer != 0x20040000 || c1.Entry != 0x10000200 {
		t.Errorf("launched with vt %#x sp %#x entry %#x", c1.VectorTable, c1.StackPointer, c1.Entry)
	}
	if c1.RoundTrips != 6 || c1.Restarts != 0 {
		t.Errorf("%d round trips, %d restarts", c1.RoundTrips, c1.Restarts)
	}
}

func TestCore1OutOfSequence(t *testing.T) {
	c := NewRP2350()
	for _, w := range []uint32{0, 1} {
		push(c, w)
	}
	if c.Core1.Restarts != 1 {
		t.Errorf("restarts = %d, want 1", c.Core1.Restarts)
	}
	for _, w := range []uint32{0, 0, 1, 3, 4, 5} {
		push(c, w)
	}
	if !c.Core1.Launched || c.Core1.Entry != 5 {
		t.Errorf("launched %v at %#x", c.Core1.Launched, c.Core1.Entry)
	}
}

func TestCore1Preload(t *testing.T) {
	c := NewRP2350()
	c.Core1.Preload(1, 2, 3, 4, 5)
	if got := c.Core1.Pending(); got != 5 {
		t.Fatalf("pending = %d, want 5", got)
	}
	var got []uint32
	for c.Load(rp.SIO_FIFO_ST)&rp.SIO_FIFO_ST_VLD != 0 {
		got = append(got, c.Load(rp.SIO_FIFO_RD))
	}
	if len(got) != 5 || got[4] != 5 {
		t.Errorf("drained %v", got)
	}
	c.Load(rp.SIO_FIFO_RD)
	if c.Load(rp.SIO_FIFO_ST)&rp.SIO_FIFO_ST_ROE == 0 {
		t.Error("reading an empty FIFO did not flag ROE")
	}
	c.Store(rp.SIO_FIFO_ST, 0)
	if c.Load(rp.SIO_FIFO_ST)&rp.SIO_FIFO_ST_ROE != 0 {
		t.Error("ROE not cleared by a write to FIFO_ST")
	}
}
