package diagnostics

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rvpico/bringup/internal/plan"
)

const badPlan = `
xosc:
  frequency: 200MHz
pll_sys:
  target: 150MHz
  vco: 1500MHz
pll_usb:
  vco: 2GHz
  postdiv1: 6
  postdiv2: 5
clocks:
  - clock: clk_rtc
  - clock: clk_sys
    # switch to the crystal
    src: xosc
  - clock: clk_usb
    auxsrc: 9
  - clock: clk_peri
    frac: 0x10000
core1:
  vector_table: 0x20000102
`

func TestLocate(t *testing.T) {
	src := []byte(badPlan)
	tests := []struct {
		field string
		line  int
	}{
		{"xosc.frequency", 3},
		{"pll_sys", 4},
		{"pll_usb.postdiv2", 10},
		{"clocks", 11},
		{"clocks[0].clock", 12},
		{"clocks[1]", 13},
		{"clocks[1].src", 15},
		{"clocks[2].auxsrc", 17},
		{"clocks[3].frac", 19},
		{"clocks[3].div", 18}, // not present: the item itself
		{"clocks[7]", 11},     // no such item: the list
		{"core1.vector_table", 21},
		{"core1.entry", 20},
		{"sim", 0},
	}
	for _, tc := range tests {
		if got := Locate(src, tc.field); got != tc.line {
			t.Errorf("Locate(%q) = %d, want %d", tc.field, got, tc.line)
		}
	}
}

func TestLocateDashAtColumnZero(t *testing.T) {
	src := []byte("clocks:\n- clock: clk_ref\n  src: xosc\n- clock: clk_sys\n  div: 2\n")
	if got := Locate(src, "clocks[1].div"); got != 5 {
		t.Errorf("line %d, want 5", got)
	}
}

func TestPlanErrors(t *testing.T) {
	src := []byte(badPlan)
	p, err := plan.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Config()
	diag := CreateDiagnostics("bad.yaml", src, err)
	var buf bytes.Buffer
	diag.WriteTo(&buf, "")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	wantPrefixes := []string{
		"bad.yaml:3: xosc.frequency: ",
		"bad.yaml:4: pll_sys: ",
		"bad.yaml:7: pll_usb: ",
		"bad.yaml:12: clocks[0].clock: ",
		"bad.yaml:15: clocks[1].src: ",
		"bad.yaml:16: clocks[2]: ",
		"bad.yaml:19: clocks[3].frac: ",
		"bad.yaml:21: core1.vector_table: ",
	}
	if len(lines) != len(wantPrefixes) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(wantPrefixes), buf.String())
	}
	for i, prefix := range wantPrefixes {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d: %q, want prefix %q", i, lines[i], prefix)
		}
	}
}

func TestYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"unknown field", "name: x\nxosc:\n  frequncy: 12MHz\n", 3, "frequncy"},
		{"syntax", "name: x\nxosc: a: b\n", 2, "mapping values"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := plan.Parse([]byte(tc.src))
			if err == nil {
				t.Fatal("no error")
			}
			diag := CreateDiagnostics("p.yaml", []byte(tc.src), err)
			if len(diag.Diagnostics) != 1 {
				t.Fatalf("diagnostics %+v", diag.Diagnostics)
			}
			d := diag.Diagnostics[0]
			if d.Pos.Line != tc.line || !strings.Contains(d.Msg, tc.msg) {
				t.Errorf("diagnostic %+v, want line %d containing %q", d, tc.line, tc.msg)
			}
		})
	}
}

func TestMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.yaml")
	_, err := plan.Load(path)
	diag := CreateDiagnostics(path, nil, err)
	var buf bytes.Buffer
	diag.WriteTo(&buf, dir)
	if got := buf.String(); !strings.HasPrefix(got, "missing.yaml: ") {
		t.Errorf("output %q", got)
	}
}

func TestRelativePosition(t *testing.T) {
	pos := Position{Filename: "/work/boards/pico2.yaml", Line: 4}
	if got := RelativePosition(pos, "/work").String(); got != filepath.FromSlash("boards/pico2.yaml")+":4" {
		t.Errorf("inside wd: %s", got)
	}
	if got := RelativePosition(pos, "/elsewhere").String(); got != "/work/boards/pico2.yaml:4" {
		t.Errorf("outside wd: %s", got)
	}
	if got := RelativePosition(pos, "").String(); got != "/work/boards/pico2.yaml:4" {
		t.Errorf("no wd: %s", got)
	}
}
