package machine

import (
	"testing"

	"github.com/rvpico/bringup/src/device/rp"
)

const (
	testVT    = 0x2000_0100
	testSP    = 0x2004_0000
	testEntry = 0x1000_0200
)

func TestLaunchSequence(t *testing.T) {
	got := LaunchSequence(testVT, testSP, testEntry)
	want := [launchLen]uint32{0, 0, 1, testVT | 1, testSP, testEntry}
	if got != want {
		t.Errorf("LaunchSequence = %#x, want %#x", got, want)
	}
}

func TestHandshakeNext(t *testing.T) {
	tests := []struct {
		i          int
		sent, resp uint32
		want       int
	}{
		{0, 0, 0, 1},
		{2, 1, 1, 3},
		{5, testEntry, testEntry, 6},
		{1, 0, 0xdeadbeef, 0},
		{4, testSP, 0, 0},
	}
	for _, tc := range tests {
		if got := handshakeNext(tc.i, tc.sent, tc.resp); got != tc.want {
			t.Errorf("handshakeNext(%d, %#x, %#x) = %d, want %d", tc.i, tc.sent, tc.resp, got, tc.want)
		}
	}
}

func TestLaunchCore1(t *testing.T) {
	c, s, _ := newTestChip(t, Config{})
	c.LaunchCore1(testVT, testSP, testEntry)

	c1 := s.Core1
	if !c1.Launched {
		t.Fatal("core 1 not launched")
	}
	if c1.RoundTrips != launchLen {
		t.Errorf("%d round trips, want %d", c1.RoundTrips, launchLen)
	}
	if got := c1.Received[launchLen-1]; got != testEntry {
		t.Errorf("last word %#x, want entry %#x", got, testEntry)
	}
	if c1.VectorTable != testVT|1 || c1.StackPointer != testSP || c1.Entry != testEntry {
		t.Errorf("launched with vt %#x sp %#x entry %#x", c1.VectorTable, c1.StackPointer, c1.Entry)
	}
	// One event per word, plus one per zero before it is sent.
	if s.Events != launchLen+2 {
		t.Errorf("%d events, want %d", s.Events, launchLen+2)
	}
	if c.FIFO().Valid() {
		t.Error("unread echo left in the FIFO")
	}
}

func TestLaunchCore1Resync(t *testing.T) {
	tests := []struct {
		name       string
		corrupt    int // round trip answered with garbage
		roundTrips int
	}{
		{"second zero", 1, 8},
		{"the one", 2, 9},
		{"vector table", 3, 10},
		{"entry", 5, 12},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, s, _ := newTestChip(t, Config{})
			s.Core1.Corrupt[tc.corrupt] = 0xdeadbeef
			c.LaunchCore1(testVT, testSP, testEntry)

			c1 := s.Core1
			if !c1.Launched || c1.Entry != testEntry {
				t.Fatalf("launched %v at %#x", c1.Launched, c1.Entry)
			}
			if c1.RoundTrips != tc.roundTrips {
				t.Errorf("%d round trips, want %d", c1.RoundTrips, tc.roundTrips)
			}
			// After the garbage the whole sequence is sent again.
			want := LaunchSequence(testVT, testSP, testEntry)
			tail := c1.Received[len(c1.Received)-launchLen:]
			for i := range want {
				if tail[i] != want[i] {
					t.Errorf("resent word %d = %#x, want %#x", i, tail[i], want[i])
				}
			}
		})
	}
}

func TestLaunchCore1DrainsStale(t *testing.T) {
	c, s, _ := newTestChip(t, Config{})
	s.Core1.Preload(0x11, 0x22, 0x33, 0x44, 0x55)
	c.LaunchCore1(testVT, testSP, testEntry)
	if s.Core1.RoundTrips != launchLen {
		t.Errorf("%d round trips, want %d", s.Core1.RoundTrips, launchLen)
	}
	if s.Load(rp.SIO_FIFO_ST)&rp.SIO_FIFO_ST_ROE != 0 {
		t.Error("read from an empty FIFO")
	}
}
