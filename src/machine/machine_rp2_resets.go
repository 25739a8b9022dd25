package machine

import (
	"github.com/rvpico/bringup/src/device/rp"
	"github.com/rvpico/bringup/src/volatile"
)

const (
	// Blocks left alone by the initial sweep. The QSPI pads and IO keep the
	// flash we execute from alive, and the PLLs, USB and SYSCFG are cycled
	// explicitly later.
	initDontReset = 1<<rp.BlockIO_QSPI |
		1<<rp.BlockPADS_QSPI |
		1<<rp.BlockPLL_USB |
		1<<rp.BlockUSBCTRL |
		1<<rp.BlockSYSCFG |
		1<<rp.BlockPLL_SYS

	// Blocks kept in reset until the clocks they run from are configured.
	initKeepReset = 1<<rp.BlockHSTX |
		1<<rp.BlockADC |
		1<<rp.BlockSPI0 |
		1<<rp.BlockSPI1 |
		1<<rp.BlockUART0 |
		1<<rp.BlockUART1 |
		1<<rp.BlockUSBCTRL
)

type resetsType struct {
	reset volatile.Register32
	done  volatile.Register32
}

func newResets(bus volatile.Bus) resetsType {
	return resetsType{
		reset: volatile.Reg(bus, rp.RESETS_RESET),
		done:  volatile.Reg(bus, rp.RESETS_RESET_DONE),
	}
}

// resetDone reports whether every block in mask has left reset, given a
// snapshot of RESET_DONE.
func resetDone(done, mask uint32) bool {
	return done&mask == mask
}

// resetBlock puts the blocks specified by the bit pattern in bits into reset.
func (r *resetsType) resetBlock(bits uint32) {
	r.reset.SetBits(bits)
}

// unresetBlock takes the blocks specified by the bit pattern in bits out of
// reset.
func (r *resetsType) unresetBlock(bits uint32) {
	r.reset.ClearBits(bits)
}

// unresetBlockWait takes the blocks in bits out of reset and waits until the
// hardware reports all of them done. There is no timeout: a block that never
// completes is a hardware fault we cannot recover from this early.
func (r *resetsType) unresetBlockWait(bits uint32) {
	r.unresetBlock(bits)
	for !resetDone(r.done.Get(), bits) {
	}
}

// Hold puts block into reset.
func (c *Chip) Hold(block rp.Block) {
	c.resets.resetBlock(block.Mask())
}

// ReleaseBlocking takes block out of reset and waits for RESET_DONE to confirm
// it.
func (c *Chip) ReleaseBlocking(block rp.Block) {
	c.resets.unresetBlockWait(block.Mask())
}

// ResetCycle resets block and brings it back, returning once it is done.
func (c *Chip) ResetCycle(block rp.Block) {
	c.Hold(block)
	c.ReleaseBlocking(block)
}

// ResetDone reports whether block has completed leaving reset.
func (c *Chip) ResetDone(block rp.Block) bool {
	return resetDone(c.resets.done.Get(), block.Mask())
}

// InitialSweep resets every block that does not need to survive from the boot
// ROM, then releases all blocks that do not depend on a configured clock and
// waits until they are all done.
func (c *Chip) InitialSweep() {
	c.resets.resetBlock(rp.ResetBits &^ initDontReset)
	c.resets.unresetBlockWait(rp.ResetBits &^ initKeepReset)
	c.logf("resets: initial sweep done, %#08x held", uint32(initKeepReset))
}

// PostClockSweep releases every block still in reset. Call it once the clock
// tree is configured.
func (c *Chip) PostClockSweep() {
	c.resets.unresetBlock(rp.ResetBits)
	for c.resets.done.Get() != rp.ResetBits {
	}
	c.logf("resets: all blocks out of reset")
}
