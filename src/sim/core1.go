package sim

import "github.com/rvpico/bringup/src/device/rp"

// Core1 models the boot ROM on core 1 waiting to be launched. It reads words
// from core 0, echoes each one back and jumps once it has seen two zeros, a
// one, a vector table, a stack pointer and an entry point in a row. A word
// out of sequence makes it start over.
type Core1 struct {
	// Replies replaced for the given round trip (0-based). The ROM loses
	// its place as if it had not been listening.
	Corrupt map[int]uint32

	// Words core 0 has written, in order.
	Received []uint32

	// Launch parameters, valid once Launched is set.
	Launched     bool
	VectorTable  uint32
	StackPointer uint32
	Entry        uint32

	// Words answered, and how often the ROM had to start over.
	RoundTrips int
	Restarts   int

	outbox  []uint32
	blocked []uint32
	seq     int
	unread  int
	wof     bool
	roe     bool
}

// NewCore1 returns a core 1 waiting in the boot ROM with an empty FIFO.
func NewCore1() *Core1 {
	return &Core1{Corrupt: make(map[int]uint32)}
}

// Preload queues stale words towards core 0, as left over from whatever
// core 1 ran before.
func (c1 *Core1) Preload(words ...uint32) {
	for _, w := range words {
		c1.push(w)
	}
}

// Pending returns the number of words waiting for core 0.
func (c1 *Core1) Pending() int {
	return len(c1.outbox) + len(c1.blocked)
}

func (c1 *Core1) status() uint32 {
	var st uint32
	if c1.unread < rp.SIO_FIFO_DEPTH {
		st |= rp.SIO_FIFO_ST_RDY
	}
	if len(c1.outbox) > 0 {
		st |= rp.SIO_FIFO_ST_VLD
	}
	if c1.wof {
		st |= rp.SIO_FIFO_ST_WOF
	}
	if c1.roe {
		st |= rp.SIO_FIFO_ST_ROE
	}
	return st
}

func (c1 *Core1) push(w uint32) {
	if len(c1.outbox) < rp.SIO_FIFO_DEPTH {
		c1.outbox = append(c1.outbox, w)
		return
	}
	// The ROM blocks until core 0 makes room.
	c1.blocked = append(c1.blocked, w)
}

func (c1 *Core1) reply() uint32 {
	if len(c1.outbox) == 0 {
		c1.roe = true
		return 0
	}
	w := c1.outbox[0]
	c1.outbox = c1.outbox[1:]
	if len(c1.blocked) > 0 {
		c1.outbox = append(c1.outbox, c1.blocked[0])
		c1.blocked = c1.blocked[1:]
	}
	return w
}

// accepts reports whether w is valid at position seq of the launch sequence.
// The last three words are arbitrary addresses.
func accepts(seq int, w uint32) bool {
	switch seq {
	case 0, 1:
		return w == 0
	case 2:
		return w == 1
	}
	return true
}

func (c1 *Core1) receive(w uint32) {
	if c1.Launched {
		// Core 1 runs user code now and no longer reads the FIFO.
		if c1.unread == rp.SIO_FIFO_DEPTH {
			c1.wof = true
			return
		}
		c1.unread++
		return
	}
	c1.Received = append(c1.Received, w)
	n := c1.RoundTrips
	c1.RoundTrips++

	if bad, ok := c1.Corrupt[n]; ok {
		if c1.seq != 0 {
			c1.Restarts++
		}
		c1.seq = 0
		c1.push(bad)
		return
	}

	c1.push(w)

	switch {
	case w == 0 && c1.seq == 2:
		// Core 0 started over: this zero is the first of the sequence.
		c1.Restarts++
		c1.seq = 1
		return
	case !accepts(c1.seq, w):
		if c1.seq != 0 {
			c1.Restarts++
		}
		c1.seq = 0
		return
	}
	switch c1.seq {
	case 3:
		c1.VectorTable = w
	case 4:
		c1.StackPointer = w
	case 5:
		c1.Entry = w
		c1.Launched = true
	}
	c1.seq++
}
