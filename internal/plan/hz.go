package plan

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Hz is a frequency. In a plan it is written as a plain number of Hz or with
// a unit, as in "12MHz" or "48 MHz".
type Hz uint32

var errBadFrequency = errors.New("invalid frequency")

var units = []struct {
	suffix string
	scale  float64
}{
	{"ghz", 1e9},
	{"mhz", 1e6},
	{"khz", 1e3},
	{"hz", 1},
}

// ParseHz parses a frequency with an optional Hz, kHz, MHz or GHz unit.
func ParseHz(s string) (Hz, error) {
	str := strings.ToLower(strings.TrimSpace(s))
	scale := 1.0
	for _, u := range units {
		if strings.HasSuffix(str, u.suffix) {
			str = strings.TrimSpace(strings.TrimSuffix(str, u.suffix))
			scale = u.scale
			break
		}
	}
	str = strings.ReplaceAll(str, "_", "")
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q", errBadFrequency, s)
	}
	hz := v * scale
	r := math.Round(hz)
	if r < 0 || r > math.MaxUint32 || math.Abs(hz-r) > 1e-3 {
		return 0, fmt.Errorf("%w %q: not a whole number of Hz below 4.3 GHz", errBadFrequency, s)
	}
	return Hz(r), nil
}

func (f Hz) String() string {
	switch {
	case f == 0:
		return "0 Hz"
	case f%1_000_000 == 0:
		return fmt.Sprintf("%d MHz", f/1_000_000)
	case f%1_000 == 0:
		return fmt.Sprintf("%d kHz", f/1_000)
	}
	return fmt.Sprintf("%d Hz", uint32(f))
}

// Set implements flag.Value.
func (f *Hz) Set(s string) error {
	v, err := ParseHz(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// UnmarshalYAML accepts a number of Hz or a string with a unit.
func (f *Hz) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var n uint32
	if err := unmarshal(&n); err == nil {
		*f = Hz(n)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return f.Set(s)
}

// MarshalYAML writes f with its unit.
func (f Hz) MarshalYAML() (interface{}, error) {
	return strings.ReplaceAll(f.String(), " ", ""), nil
}
