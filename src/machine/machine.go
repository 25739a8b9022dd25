package machine

import (
	"errors"

	"github.com/rvpico/bringup/src/volatile"
)

var (
	ErrRefDivider       = errors.New("machine: PLL reference divider out of range")
	ErrVCOOutOfRange    = errors.New("machine: PLL VCO frequency out of range")
	ErrFeedbackDivider  = errors.New("machine: PLL feedback divider out of range")
	ErrPostDivider      = errors.New("machine: PLL post divider out of range")
	ErrReferenceTooFast = errors.New("machine: PLL reference frequency above VCO/16")
	ErrInvalidPLL       = errors.New("machine: invalid PLL instance")
	ErrInvalidClock     = errors.New("machine: invalid clock index")
	ErrInvalidSource    = errors.New("machine: invalid clock source")
	ErrInvalidAuxSource = errors.New("machine: invalid auxiliary clock source")
	ErrInvalidDivider   = errors.New("machine: invalid clock divider")
)

// Device is the chip name this package brings up.
const Device = "RP2350"

// Generic constants.
const (
	KHz = 1000
	MHz = 1000_000
	GHz = 1000_000_000
)

// Logger receives bring-up progress messages. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Config holds the chip-wide settings used during bring-up. The zero value of
// every field selects the default.
type Config struct {
	// Crystal oscillator parameters.
	XOSC OscillatorConfig

	// PLL parameters used by ClockDefaultsSet.
	PLLSys PLLConfig
	PLLUSB PLLConfig

	// Clock slices configured by ClockDefaultsSet, in order.
	Clocks []SliceConfig

	// Trap is called when a configuration is invalid. On hardware it halts at
	// a breakpoint and never returns. If it does return, the failing operation
	// returns without touching any register.
	Trap func(err error)

	// Breakpoint marks observable but successful events, such as a PLL that
	// is already configured. It returns normally.
	Breakpoint func(reason string)

	// Event wakes the other core if it is parked waiting for an event.
	Event func()

	Logger Logger
}

// Chip is the bring-up view of one RP2350 reached through a register bus.
// It is used from a single core and is not safe for concurrent use.
type Chip struct {
	bus    volatile.Bus
	config Config

	resets resetsType
	xosc   xoscType
	plls   [numPLLs]pllType
	clocks clocksType
	fifo   FIFO

	pllFreq        [numPLLs]uint32
	configuredFreq [NumClocks]uint32
}

// DefaultConfig returns the configuration used for zero Config fields: a
// 12 MHz crystal, CLK_SYS at 150 MHz and USB and ADC at 48 MHz.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (config Config) withDefaults() Config {
	if config.XOSC.FrequencyHz == 0 {
		config.XOSC = DefaultOscillatorConfig()
	}
	if config.PLLSys == (PLLConfig{}) {
		config.PLLSys = DefaultPLLSysConfig
	}
	if config.PLLUSB == (PLLConfig{}) {
		config.PLLUSB = DefaultPLLUSBConfig
	}
	if config.Clocks == nil {
		config.Clocks = DefaultClockPlan()
	}
	if config.Trap == nil {
		config.Trap = defaultTrap
	}
	if config.Breakpoint == nil {
		config.Breakpoint = defaultBreakpoint
	}
	if config.Event == nil {
		config.Event = sendEvent
	}
	return config
}

// New returns a Chip using bus for all register access.
func New(bus volatile.Bus, config Config) *Chip {
	config = config.withDefaults()
	c := &Chip{bus: bus, config: config}
	c.resets = newResets(bus)
	c.xosc = newXOSC(bus)
	for i := range c.plls {
		c.plls[i] = newPLL(bus, PLLInstance(i))
	}
	c.clocks = newClocks(bus)
	c.fifo = newFIFO(bus, config.Event)
	return c
}

// Config returns the configuration in effect, with defaults filled in.
func (c *Chip) Config() Config {
	return c.config
}

// FIFO returns the inter-core FIFO of the executing core.
func (c *Chip) FIFO() *FIFO {
	return &c.fifo
}

// fatal reports a configuration error. Callers must return right after it.
func (c *Chip) fatal(err error) {
	c.logf("fatal: %v", err)
	c.config.Trap(err)
}

func (c *Chip) logf(format string, v ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Printf(format, v...)
	}
}

// Boot runs the power-on sequence: the initial reset sweep, the default clock
// configuration and the release of the blocks that needed valid clocks.
func (c *Chip) Boot() {
	c.InitialSweep()
	c.ClockDefaultsSet()
	c.PostClockSweep()
}
