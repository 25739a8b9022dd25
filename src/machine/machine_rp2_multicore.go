package machine

// launchLen is the number of words in the core 1 launch handshake.
const launchLen = 6

// LaunchSequence returns the words the boot ROM on core 1 expects before it
// jumps to entry: two zeros to synchronize, a one, then the vector table
// (bit 0 set selects vectored interrupts), the stack pointer and the entry
// point.
func LaunchSequence(vectorTable, stackPointer, entry uint32) [launchLen]uint32 {
	return [launchLen]uint32{0, 0, 1, vectorTable | 1, stackPointer, entry}
}

// handshakeNext returns the index of the next word to send after sent was
// answered with resp. A wrong echo means core 1 is not yet listening, or saw
// something else, so the sequence starts over.
func handshakeNext(i int, sent, resp uint32) int {
	if resp == sent {
		return i + 1
	}
	return 0
}

// LaunchCore1 starts core 1 at entry with the given stack pointer and vector
// table, through the boot ROM handshake on the inter-core FIFO. It retries for
// as long as core 1 answers wrongly and returns once core 1 has echoed the
// whole sequence and jumped.
func (c *Chip) LaunchCore1(vectorTable, stackPointer, entry uint32) {
	seq := LaunchSequence(vectorTable, stackPointer, entry)
	f := &c.fifo
	restarts := 0
	for i := 0; i < launchLen; {
		cmd := seq[i]
		if cmd == 0 {
			// Core 1 may have queued something before we started.
			f.Drain()
			f.Event()
		}
		f.PushBlocking(cmd)
		resp := f.PopBlocking()
		next := handshakeNext(i, cmd, resp)
		if next == 0 && i != 0 {
			restarts++
		}
		i = next
	}
	c.logf("core1: launched at %#08x, sp %#08x (%d restarts)", entry, stackPointer, restarts)
}
