package snapshot

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rvpico/bringup/src/device/rp"
	"github.com/rvpico/bringup/src/sim"
)

func TestTakeGroupsByPeripheral(t *testing.T) {
	regs := map[uintptr]uint32{
		rp.RESETS:        0x1fffffff,
		rp.RESETS + 0x8:  0x0000ffff,
		rp.XOSC:          0xaa0,
		rp.CLOCKS + 0x3c: 0x1,
		rp.SIO_FIFO_ST:   0x2,
	}
	s := Take(regs)
	var names []string
	for _, b := range s.Blocks {
		names = append(names, b.Name)
	}
	if got, want := strings.Join(names, ","), "CLOCKS,RESETS,XOSC,SIO"; got != want {
		t.Fatalf("blocks %s, want %s", got, want)
	}
	resets := s.Blocks[1]
	if resets.Base != rp.RESETS || len(resets.Words) != 3 || resets.Words[1] != 0 || resets.Words[2] != 0xffff {
		t.Errorf("RESETS block %+v", resets)
	}
	if len(s.Registers()) != len(regs)+1 {
		t.Errorf("%d registers, want the %d taken plus one gap", len(s.Registers()), len(regs))
	}
}

func TestTakeUnknownWindow(t *testing.T) {
	s := Take(map[uintptr]uint32{0x40070010: 1})
	if len(s.Blocks) != 1 || s.Blocks[0].Name != "0x40070000" || s.Blocks[0].Base != 0x40070010 {
		t.Errorf("blocks %+v", s.Blocks)
	}
}

func TestHexRoundTrip(t *testing.T) {
	chip := sim.NewRP2350()
	before := Take(chip.Registers())
	var buf bytes.Buffer
	if err := before.WriteHex(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(strings.TrimSpace(buf.String()), ":00000001FF") {
		t.Errorf("missing end of file record:\n%s", buf.String())
	}
	after, err := ReadHex(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if changes := Compare(before, after); len(changes) != 0 {
		t.Errorf("changes after round trip: %+v", changes)
	}
}

func TestCompare(t *testing.T) {
	a := Take(map[uintptr]uint32{rp.XOSC: 0xaa0, rp.RESETS: 1})
	b := Take(map[uintptr]uint32{rp.XOSC: 0xfabaa0, rp.PLL_SYS: 1})
	changes := Compare(a, b)
	got := make(map[string]Change)
	for _, c := range changes {
		got[c.Name] = c
	}
	if len(got) != 3 {
		t.Fatalf("changes %+v, want XOSC PLL_SYS RESETS", changes)
	}
	if c := got["PLL_SYS"]; c.Old != 0 || c.New == 0 {
		t.Errorf("new block %+v", c)
	}
	if c := got["RESETS"]; c.Old == 0 || c.New != 0 {
		t.Errorf("removed block %+v", c)
	}
}

// The fingerprint is CRC-16/XMODEM over the little-endian words.
func TestFingerprint(t *testing.T) {
	// "1234"
	s := Take(map[uintptr]uint32{rp.XOSC: 0x34333231})
	if crc := s.Blocks[0].CRC; crc != 0xd789 {
		t.Errorf("crc %04x, want d789", crc)
	}
}

func TestWriteSummary(t *testing.T) {
	s := Take(map[uintptr]uint32{rp.XOSC: 0xaa0, rp.XOSC + 4: 0})
	var buf bytes.Buffer
	if err := s.WriteSummary(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "XOSC      0x40048000-0x40048007   2 words crc ") {
		t.Errorf("summary %q", buf.String())
	}
}
