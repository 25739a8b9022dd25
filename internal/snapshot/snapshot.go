// Package snapshot saves register contents as Intel HEX, grouped by
// peripheral, with a CRC-16 fingerprint per peripheral so two runs can be
// compared at a glance.
package snapshot

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/marcinbor85/gohex"
	"github.com/rvpico/bringup/src/device/rp"
	"github.com/sigurn/crc16"
)

// Peripherals are spaced at least this far apart in the address map.
const windowShift = 15

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// Names of the peripherals by base address.
var Names = map[uint32]string{
	rp.CLOCKS:   "CLOCKS",
	rp.RESETS:   "RESETS",
	rp.IO_BANK0: "IO_BANK0",
	rp.XOSC:     "XOSC",
	rp.PLL_SYS:  "PLL_SYS",
	rp.PLL_USB:  "PLL_USB",
	rp.BOOTRAM:  "BOOTRAM",
	rp.SIO:      "SIO",
}

// Block is the registers of one peripheral, from its lowest to its highest
// recorded address. Registers never written read as zero.
type Block struct {
	Name  string
	Base  uint32
	Words []uint32
	CRC   uint16
}

// Snapshot is a set of blocks ordered by address.
type Snapshot struct {
	Blocks []Block
}

// Take builds a snapshot from register values by address.
func Take(regs map[uintptr]uint32) Snapshot {
	byWindow := make(map[uint32]map[uint32]uint32)
	for addr, v := range regs {
		a := uint32(addr)
		w := a >> windowShift
		if byWindow[w] == nil {
			byWindow[w] = make(map[uint32]uint32)
		}
		byWindow[w][a&^3] = v
	}

	var s Snapshot
	for w, words := range byWindow {
		base := w << windowShift
		lo, hi := ^uint32(0), uint32(0)
		for a := range words {
			if a < lo {
				lo = a
			}
			if a > hi {
				hi = a
			}
		}
		b := Block{Name: name(base), Base: lo}
		b.Words = make([]uint32, (hi-lo)/4+1)
		for a, v := range words {
			b.Words[(a-lo)/4] = v
		}
		b.CRC = crc16.Checksum(b.bytes(), crcTable)
		s.Blocks = append(s.Blocks, b)
	}
	sort.Slice(s.Blocks, func(i, j int) bool {
		return s.Blocks[i].Base < s.Blocks[j].Base
	})
	return s
}

func name(base uint32) string {
	if n, ok := Names[base]; ok {
		return n
	}
	return fmt.Sprintf("%#08x", base)
}

func (b Block) bytes() []byte {
	buf := make([]byte, 4*len(b.Words))
	for i, w := range b.Words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}

// Registers returns the register values of the snapshot by address.
func (s Snapshot) Registers() map[uintptr]uint32 {
	regs := make(map[uintptr]uint32)
	for _, b := range s.Blocks {
		for i, w := range b.Words {
			regs[uintptr(b.Base)+uintptr(4*i)] = w
		}
	}
	return regs
}

// WriteHex writes the snapshot as Intel HEX, 16 bytes per record.
func (s Snapshot) WriteHex(w io.Writer) error {
	mem := gohex.NewMemory()
	for _, b := range s.Blocks {
		if err := mem.AddBinary(b.Base, b.bytes()); err != nil {
			return fmt.Errorf("snapshot: %s: %w", b.Name, err)
		}
	}
	return mem.DumpIntelHex(w, 16)
}

// ReadHex reads a snapshot written by WriteHex.
func ReadHex(r io.Reader) (Snapshot, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	regs := make(map[uintptr]uint32)
	for _, seg := range mem.GetDataSegments() {
		if seg.Address%4 != 0 || len(seg.Data)%4 != 0 {
			return Snapshot{}, fmt.Errorf("snapshot: segment at %#08x is not word aligned", seg.Address)
		}
		for i := 0; i < len(seg.Data); i += 4 {
			regs[uintptr(seg.Address)+uintptr(i)] = binary.LittleEndian.Uint32(seg.Data[i:])
		}
	}
	return Take(regs), nil
}

// Change is a block whose fingerprint differs between two snapshots.
type Change struct {
	Name     string
	Old, New uint16
}

// Compare returns the blocks of a and b with different fingerprints,
// including blocks present in only one of them.
func Compare(a, b Snapshot) []Change {
	old := make(map[string]uint16)
	for _, blk := range a.Blocks {
		old[blk.Name] = blk.CRC
	}
	var changes []Change
	seen := make(map[string]bool)
	for _, blk := range b.Blocks {
		seen[blk.Name] = true
		if crc, ok := old[blk.Name]; !ok || crc != blk.CRC {
			changes = append(changes, Change{Name: blk.Name, Old: crc, New: blk.CRC})
		}
	}
	for _, blk := range a.Blocks {
		if !seen[blk.Name] {
			changes = append(changes, Change{Name: blk.Name, Old: blk.CRC})
		}
	}
	return changes
}

// WriteSummary prints one line per block: name, address range and
// fingerprint.
func (s Snapshot) WriteSummary(w io.Writer) error {
	for _, b := range s.Blocks {
		end := b.Base + uint32(4*len(b.Words)) - 1
		if _, err := fmt.Fprintf(w, "%-9s %#08x-%#08x %3d words crc %04x\n", b.Name, b.Base, end, len(b.Words), b.CRC); err != nil {
			return err
		}
	}
	return nil
}
