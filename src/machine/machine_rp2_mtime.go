package machine

import (
	"github.com/rvpico/bringup/src/device/rp"
	"github.com/rvpico/bringup/src/volatile"
)

// TickCache remembers the last compare value computed by an MTimer so that
// restarting the timer with the same duration skips the multiplication.
// The zero value is an empty cache.
type TickCache struct {
	valid bool
	us    uint32
	mhz   uint32
	ticks uint64

	Hits   int
	Misses int
}

// Ticks returns the number of timer ticks in us microseconds at mhz.
func (tc *TickCache) Ticks(us, mhz uint32) uint64 {
	if tc.valid && tc.us == us && tc.mhz == mhz {
		tc.Hits++
		return tc.ticks
	}
	tc.Misses++
	tc.valid, tc.us, tc.mhz = true, us, mhz
	tc.ticks = uint64(us) * uint64(mhz)
	return tc.ticks
}

// MTimer is the RISC-V machine timer in SIO, counting CLK_REF cycles.
type MTimer struct {
	ctrl   volatile.Register32
	mtime  volatile.Register32
	mtimeh volatile.Register32
	cmp    volatile.Register32
	cmph   volatile.Register32

	mhz   uint32
	cache *TickCache
}

// MTimer returns the machine timer of the executing core. cache may be nil.
// Call it after the clocks are configured: the tick rate is read once.
func (c *Chip) MTimer(cache *TickCache) *MTimer {
	if cache == nil {
		cache = &TickCache{}
	}
	return &MTimer{
		ctrl:   volatile.Reg(c.bus, rp.SIO_MTIME_CTRL),
		mtime:  volatile.Reg(c.bus, rp.SIO_MTIME),
		mtimeh: volatile.Reg(c.bus, rp.SIO_MTIMEH),
		cmp:    volatile.Reg(c.bus, rp.SIO_MTIMECMP),
		cmph:   volatile.Reg(c.bus, rp.SIO_MTIMECMPH),
		mhz:    c.ClkRefFreqMHz(),
		cache:  cache,
	}
}

// Start restarts the counter from zero with the compare value set us
// microseconds ahead, so the timer interrupt pends after us.
func (t *MTimer) Start(us uint32) {
	ticks := t.cache.Ticks(us, t.mhz)

	t.ctrl.Set(0)
	t.mtime.Set(0)
	t.mtimeh.Set(0)
	// Park the low half high so no intermediate value can match.
	t.cmp.Set(0xffffffff)
	t.cmph.Set(uint32(ticks >> 32))
	t.cmp.Set(uint32(ticks))
	t.ctrl.Set(rp.SIO_MTIME_CTRL_EN | rp.SIO_MTIME_CTRL_FULLSPEED)
}

// Stop halts the counter.
func (t *MTimer) Stop() {
	t.ctrl.Set(0)
}
