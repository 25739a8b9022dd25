package machine

import (
	"github.com/rvpico/bringup/src/device/rp"
	"github.com/rvpico/bringup/src/volatile"
)

// FIFO is the executing core's end of the inter-processor mailboxes: it
// writes the queue towards the other core and reads the queue coming back.
// The hardware full/empty flags are the only synchronization needed.
type FIFO struct {
	st    volatile.Register32
	wr    volatile.Register32
	rd    volatile.Register32
	event func()
}

func newFIFO(bus volatile.Bus, event func()) FIFO {
	return FIFO{
		st:    volatile.Reg(bus, rp.SIO_FIFO_ST),
		wr:    volatile.Reg(bus, rp.SIO_FIFO_WR),
		rd:    volatile.Reg(bus, rp.SIO_FIFO_RD),
		event: event,
	}
}

// fifoValid reports whether an FIFO_ST snapshot shows data to read.
func fifoValid(st uint32) bool {
	return st&rp.SIO_FIFO_ST_VLD != 0
}

// fifoReady reports whether an FIFO_ST snapshot shows room to write.
func fifoReady(st uint32) bool {
	return st&rp.SIO_FIFO_ST_RDY != 0
}

// Valid reports whether a word is waiting to be read.
func (f *FIFO) Valid() bool {
	return fifoValid(f.st.Get())
}

// Ready reports whether the outgoing queue has room.
func (f *FIFO) Ready() bool {
	return fifoReady(f.st.Get())
}

// Drain discards everything waiting in the incoming queue.
func (f *FIFO) Drain() {
	for fifoValid(f.st.Get()) {
		f.rd.Get()
	}
}

// PushBlocking waits for room in the outgoing queue, writes data and wakes
// the other core.
func (f *FIFO) PushBlocking(data uint32) {
	for !fifoReady(f.st.Get()) {
	}
	f.wr.Set(data)
	f.event()
}

// PopBlocking waits for a word in the incoming queue and returns it.
func (f *FIFO) PopBlocking() uint32 {
	for !fifoValid(f.st.Get()) {
	}
	return f.rd.Get()
}

// Event wakes the other core if it waits for an event.
func (f *FIFO) Event() {
	f.event()
}
