// Package plan reads clock plans: YAML files describing how a board brings up
// its RP2350 clock tree and, optionally, where core 1 starts.
//
// A plan names the crystal, both PLLs (by their dividers or by a target
// output frequency) and the clock slices to configure in order:
//
//	name: pico2
//	xosc:
//	  frequency: 12MHz
//	pll_sys:
//	  target: 150MHz
//	clocks:
//	  - clock: clk_ref
//	    src: xosc
//	  - clock: clk_sys
//	    src: aux
//	    auxsrc: pll_sys
//	core1:
//	  vector_table: 0x20000100
//	  stack_pointer: 0x20040000
//	  entry: 0x10000200
//
// Fields left out take the defaults of the machine package.
package plan

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rvpico/bringup/src/device/rp"
	"github.com/rvpico/bringup/src/machine"
	"gopkg.in/yaml.v2"
)

// Plan is a parsed clock plan.
type Plan struct {
	Name   string    `yaml:"name,omitempty"`
	XOSC   XOSC      `yaml:"xosc,omitempty"`
	PLLSys PLL       `yaml:"pll_sys,omitempty"`
	PLLUSB PLL       `yaml:"pll_usb,omitempty"`
	Clocks []Slice   `yaml:"clocks,omitempty"`
	Core1  *Launch   `yaml:"core1,omitempty"`
	Sim    *Scenario `yaml:"sim,omitempty"`
}

// XOSC describes the crystal.
type XOSC struct {
	Frequency Hz `yaml:"frequency,omitempty"`

	// In multiples of 256 crystal cycles. Zero derives about 1 ms from the
	// frequency.
	StartupDelay uint32 `yaml:"startup_delay,omitempty"`
}

// PLL sets a PLL either by its dividers or by a target output frequency.
type PLL struct {
	RefDiv   uint32 `yaml:"refdiv,omitempty"`
	VCO      Hz     `yaml:"vco,omitempty"`
	PostDiv1 uint32 `yaml:"postdiv1,omitempty"`
	PostDiv2 uint32 `yaml:"postdiv2,omitempty"`

	Target    Hz   `yaml:"target,omitempty"`
	Tolerance Hz   `yaml:"tolerance,omitempty"`
	LowVCO    bool `yaml:"low_vco,omitempty"`
}

// Slice is the setting of one clock slice.
type Slice struct {
	Clock  string   `yaml:"clock"`
	Src    Selector `yaml:"src,omitempty"`
	AuxSrc Selector `yaml:"auxsrc,omitempty"`

	// Divider as integer and 16-bit fractional part. Zero for both means
	// 1:1.
	Div  uint32 `yaml:"div,omitempty"`
	Frac uint32 `yaml:"frac,omitempty"`
}

// Launch is where core 1 starts.
type Launch struct {
	VectorTable  uint32 `yaml:"vector_table"`
	StackPointer uint32 `yaml:"stack_pointer"`
	Entry        uint32 `yaml:"entry"`
}

// Scenario adjusts the simulated chip a plan is run against.
type Scenario struct {
	// Register polls before simulated hardware becomes ready.
	Settle int `yaml:"settle,omitempty"`

	// Replies of the core 1 boot ROM replaced by garbage, by round trip.
	Corrupt map[int]uint32 `yaml:"corrupt,omitempty"`

	// Stale words waiting in the FIFO from core 1.
	Preload []uint32 `yaml:"preload,omitempty"`
}

// Selector is a mux input given by name, such as "pll_sys", or by number.
type Selector struct {
	Name  string
	Value uint32
}

// UnmarshalYAML accepts a selector number or name.
func (s *Selector) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var n uint32
	if err := unmarshal(&n); err == nil {
		*s = Selector{Value: n}
		return nil
	}
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	*s = Selector{Name: name}
	return nil
}

// MarshalYAML writes the name if there is one.
func (s Selector) MarshalYAML() (interface{}, error) {
	if s.Name != "" {
		return s.Name, nil
	}
	return s.Value, nil
}

func (s Selector) String() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprint(s.Value)
}

// Errors found while checking a plan.
var (
	ErrUnknownClock    = errors.New("unknown clock")
	ErrUnknownSelector = errors.New("unknown source")
	ErrFrequencyRange  = errors.New("crystal frequency outside 1-100 MHz")
	ErrFraction        = errors.New("fractional divider above 0xffff")
	ErrDivider         = errors.New("integer divider above 0xffff")
	ErrTargetAndDivs   = errors.New("both target and dividers given")
	ErrUnalignedVector = errors.New("vector table not 4-byte aligned")
)

// FieldError is a problem with one field of a plan.
type FieldError struct {
	Field string // path such as "clocks[2].auxsrc"
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Errors is every problem found in a plan, in the order of the fields.
type Errors []*FieldError

func (errs Errors) Error() string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (errs Errors) Unwrap() []error {
	out := make([]error, len(errs))
	for i, err := range errs {
		out[i] = err
	}
	return out
}

// Parse decodes a plan. Unknown fields are errors.
func Parse(data []byte) (*Plan, error) {
	p := new(Plan)
	if err := yaml.UnmarshalStrict(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Load reads and decodes the plan in file path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Marshal encodes p as YAML.
func (p *Plan) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Config checks the plan and turns it into a machine configuration. PLL
// targets are resolved to dividers. The returned error is of type Errors.
func (p *Plan) Config() (machine.Config, error) {
	var cfg machine.Config
	var errs Errors
	fail := func(field string, err error) {
		errs = append(errs, &FieldError{Field: field, Err: err})
	}

	cfg.XOSC = machine.DefaultOscillatorConfig()
	if hz := uint32(p.XOSC.Frequency); hz != 0 {
		rng, ok := freqRange(hz)
		if !ok {
			fail("xosc.frequency", fmt.Errorf("%w: %v", ErrFrequencyRange, p.XOSC.Frequency))
		}
		cfg.XOSC = machine.OscillatorConfig{
			FrequencyHz:  hz,
			FreqRange:    rng,
			StartupDelay: machine.XOSCStartupDelay(hz),
		}
	}
	if p.XOSC.StartupDelay != 0 {
		cfg.XOSC.StartupDelay = p.XOSC.StartupDelay
	}

	var err error
	if cfg.PLLSys, err = p.PLLSys.resolve(cfg.XOSC.FrequencyHz, machine.DefaultPLLSysConfig); err != nil {
		fail("pll_sys", err)
	}
	if cfg.PLLUSB, err = p.PLLUSB.resolve(cfg.XOSC.FrequencyHz, machine.DefaultPLLUSBConfig); err != nil {
		fail("pll_usb", err)
	}

	if len(p.Clocks) > 0 {
		cfg.Clocks = make([]machine.SliceConfig, 0, len(p.Clocks))
	}
	for i, s := range p.Clocks {
		field := fmt.Sprintf("clocks[%d]", i)
		sc, ok := s.resolve(field, fail)
		if !ok {
			continue
		}
		if err := sc.Validate(); err != nil {
			fail(field, err)
			continue
		}
		cfg.Clocks = append(cfg.Clocks, sc)
	}

	if p.Core1 != nil && p.Core1.VectorTable&3 != 0 {
		fail("core1.vector_table", fmt.Errorf("%w: %#x", ErrUnalignedVector, p.Core1.VectorTable))
	}

	if len(errs) > 0 {
		return cfg, errs
	}
	return cfg, nil
}

// freqRange returns the XOSC FREQ_RANGE setting for a crystal of hz.
func freqRange(hz uint32) (uint32, bool) {
	switch {
	case hz < 1*machine.MHz:
		return 0, false
	case hz <= 15*machine.MHz:
		return rp.XOSC_CTRL_FREQ_RANGE_1_15MHZ, true
	case hz <= 30*machine.MHz:
		return rp.XOSC_CTRL_FREQ_RANGE_10_30MHZ, true
	case hz <= 60*machine.MHz:
		return rp.XOSC_CTRL_FREQ_RANGE_25_60MHZ, true
	case hz <= 100*machine.MHz:
		return rp.XOSC_CTRL_FREQ_RANGE_40_100MHZ, true
	}
	return 0, false
}

func (p PLL) dividersSet() bool {
	return p.RefDiv != 0 || p.VCO != 0 || p.PostDiv1 != 0 || p.PostDiv2 != 0
}

// resolve returns the PLL setting, def if the plan leaves it out.
func (p PLL) resolve(xoscHz uint32, def machine.PLLConfig) (machine.PLLConfig, error) {
	switch {
	case p.Target != 0 && p.dividersSet():
		return def, ErrTargetAndDivs
	case p.Target != 0:
		found, err := machine.FindPLLConfig(xoscHz, uint32(p.Target), machine.PLLSearch{
			ToleranceHz: uint32(p.Tolerance),
			LowVCO:      p.LowVCO,
			Limit:       1,
		})
		if err != nil {
			return def, fmt.Errorf("%w: %v", err, p.Target)
		}
		return found[0].Config, nil
	case p.dividersSet():
		cfg := machine.PLLConfig{
			RefDiv:    p.RefDiv,
			VCOFreqHz: uint32(p.VCO),
			PostDiv1:  p.PostDiv1,
			PostDiv2:  p.PostDiv2,
		}
		if cfg.RefDiv == 0 {
			cfg.RefDiv = 1
		}
		if err := cfg.Validate(xoscHz); err != nil {
			return def, err
		}
		return cfg, nil
	}
	return def, nil
}

// resolve turns s into a slice configuration, reporting problems to fail.
func (s Slice) resolve(field string, fail func(string, error)) (machine.SliceConfig, bool) {
	cix, ok := machine.ParseClock(s.Clock)
	if !ok {
		fail(field+".clock", fmt.Errorf("%w %q", ErrUnknownClock, s.Clock))
		return machine.SliceConfig{}, false
	}
	sc := machine.SliceConfig{Clock: cix, Div: s.Div<<16 | s.Frac}
	if s.Div == 0 && s.Frac == 0 {
		sc.Div = machine.DivOne
	}
	ok = true
	if s.Div > 0xffff {
		fail(field+".div", fmt.Errorf("%w: %d", ErrDivider, s.Div))
		ok = false
	}
	if s.Frac > 0xffff {
		fail(field+".frac", fmt.Errorf("%w: %#x", ErrFraction, s.Frac))
		ok = false
	}
	var err error
	if sc.Src, err = s.Src.resolve(srcNames[cix]); err != nil {
		fail(field+".src", err)
		ok = false
	}
	if sc.AuxSrc, err = s.AuxSrc.resolve(auxNames(cix)); err != nil {
		fail(field+".auxsrc", err)
		ok = false
	}
	return sc, ok
}

func (s Selector) resolve(names []string) (uint32, error) {
	if s.Name == "" {
		return s.Value, nil
	}
	for i, n := range names {
		if n == s.Name {
			return uint32(i), nil
		}
	}
	if len(names) == 0 {
		return 0, fmt.Errorf("%w %q: slice has no such mux", ErrUnknownSelector, s.Name)
	}
	return 0, fmt.Errorf("%w %q, want one of %s", ErrUnknownSelector, s.Name, strings.Join(names, ", "))
}

// Glitchless mux inputs by selector value.
var srcNames = map[machine.ClockIndex][]string{
	machine.ClkRef: {"rosc", "aux", "xosc", "lposc"},
	machine.ClkSys: {"clk_ref", "aux"},
}

var gpoutAux = []string{
	"pll_sys", "gpin0", "gpin1", "pll_usb", "pll_usb_primary_ref_opcg",
	"rosc", "xosc", "lposc", "clk_sys", "clk_usb", "clk_adc", "clk_ref",
	"clk_peri", "clk_hstx", "otp_clk2fc",
}

// auxNames returns the auxiliary mux inputs of a slice by selector value.
func auxNames(cix machine.ClockIndex) []string {
	switch cix {
	case machine.ClkGPOUT0, machine.ClkGPOUT1, machine.ClkGPOUT2, machine.ClkGPOUT3:
		return gpoutAux
	case machine.ClkRef:
		return []string{"pll_usb", "gpin0", "gpin1", "pll_usb_primary_ref_opcg"}
	case machine.ClkSys:
		return []string{"pll_sys", "pll_usb", "rosc", "xosc", "gpin0", "gpin1"}
	case machine.ClkPeri:
		return []string{"clk_sys", "pll_sys", "pll_usb", "rosc", "xosc", "gpin0", "gpin1"}
	case machine.ClkHSTX:
		return []string{"clk_sys", "pll_sys", "pll_usb", "gpin0", "gpin1", "pll_usb_primary_ref_opcg"}
	case machine.ClkUSB:
		return []string{"pll_usb", "pll_sys", "rosc", "xosc", "gpin0", "gpin1", "pll_usb_primary_ref_opcg"}
	case machine.ClkADC:
		return []string{"pll_usb", "pll_sys", "rosc", "xosc", "gpin0", "gpin1"}
	}
	return nil
}
