// Command bootsim runs the RP2350 bring-up against a simulated chip and
// prints what it did: the register stores, the resulting clock tree and,
// optionally, a snapshot of every register touched.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/rvpico/bringup/diagnostics"
	"github.com/rvpico/bringup/internal/plan"
	"github.com/rvpico/bringup/internal/snapshot"
	"github.com/rvpico/bringup/src/machine"
	"github.com/rvpico/bringup/src/sim"
)

var (
	planFlag    = flag.String("plan", "", "clock plan to run (YAML); the built-in defaults if empty")
	traceFlag   = flag.Bool("trace", false, "print every register store as it happens")
	hexFlag     = flag.String("hex", "", "write an Intel HEX snapshot of the registers to this file")
	compareFlag = flag.String("compare", "", "compare the registers against an Intel HEX snapshot")
	noLaunch    = flag.Bool("no-launch", false, "skip the core 1 launch even if the plan has one")
	verbose     = flag.Bool("v", false, "log bring-up progress")
)

type options struct {
	trace    bool
	launch   bool
	progress bool
}

// result of one simulated boot.
type result struct {
	chip   *sim.Chip
	traps  []error
	breaks []string
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: bootsim [-plan file.yaml] [options]\n\noptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(2)
	}

	stdout := colorable.NewColorableStdout()
	logger := log.New(colorable.NewColorableStderr(), "bootsim: ", 0)

	p, cfg, src, err := readPlan(*planFlag)
	if err != nil {
		printDiagnostics(*planFlag, src, err)
		os.Exit(1)
	}

	opts := options{trace: *traceFlag, launch: !*noLaunch, progress: *verbose}
	res := simulate(p, cfg, opts, stdout)
	for _, reason := range res.breaks {
		logger.Printf("breakpoint: %s", reason)
	}
	if len(res.traps) > 0 {
		for _, err := range res.traps {
			logger.Printf("trap: %v", err)
		}
		os.Exit(1)
	}

	if err := report(stdout, p, res); err != nil {
		logger.Fatal(err)
	}
	snap := snapshot.Take(res.chip.Registers())
	if *hexFlag != "" {
		if err := writeHex(*hexFlag, snap); err != nil {
			logger.Fatal(err)
		}
	}
	if *compareFlag != "" {
		changed, err := compare(stdout, *compareFlag, snap)
		if err != nil {
			logger.Fatal(err)
		}
		if changed {
			os.Exit(1)
		}
	}
}

func printDiagnostics(filename string, src []byte, err error) {
	wd, _ := os.Getwd()
	diagnostics.CreateDiagnostics(filename, src, err).WriteTo(os.Stderr, wd)
}

// readPlan reads and checks the plan at path, or returns the default plan if
// path is empty. The source is returned for diagnostics.
func readPlan(path string) (*plan.Plan, machine.Config, []byte, error) {
	p := &plan.Plan{Name: "defaults"}
	var src []byte
	if path != "" {
		var err error
		if src, err = os.ReadFile(path); err != nil {
			return nil, machine.Config{}, nil, err
		}
		if p, err = plan.Parse(src); err != nil {
			return nil, machine.Config{}, src, err
		}
	}
	cfg, err := p.Config()
	return p, cfg, src, err
}

// simulate boots a fresh simulated chip with cfg, then launches core 1 if the
// plan asks for it.
func simulate(p *plan.Plan, cfg machine.Config, opts options, w io.Writer) *result {
	res := &result{chip: sim.NewRP2350()}
	chip := res.chip
	chip.XOSCHz = cfg.XOSC.FrequencyHz
	if p.Sim != nil {
		if p.Sim.Settle != 0 {
			chip.Settle = p.Sim.Settle
		}
		for trip, v := range p.Sim.Corrupt {
			chip.Core1.Corrupt[trip] = v
		}
		chip.Core1.Preload(p.Sim.Preload...)
	}
	if opts.trace {
		chip.Logger = log.New(w, "store ", 0)
	}

	cfg.Trap = func(err error) { res.traps = append(res.traps, err) }
	cfg.Breakpoint = func(reason string) { res.breaks = append(res.breaks, reason) }
	cfg.Event = chip.Event
	if opts.progress {
		cfg.Logger = log.New(w, "machine: ", 0)
	}

	m := machine.New(chip, cfg)
	m.Boot()
	if len(res.traps) == 0 && opts.launch && p.Core1 != nil {
		m.LaunchCore1(p.Core1.VectorTable, p.Core1.StackPointer, p.Core1.Entry)
	}
	return res
}

func report(w io.Writer, p *plan.Plan, res *result) error {
	chip := res.chip
	if _, err := fmt.Fprintf(w, "plan %s: %d stores\n%s\n", p.Name, len(chip.Stores()), chip.Describe()); err != nil {
		return err
	}
	if p.Core1 == nil {
		return nil
	}
	c1 := chip.Core1
	if !c1.Launched {
		_, err := fmt.Fprintln(w, "core1: not launched")
		return err
	}
	_, err := fmt.Fprintf(w, "core1: entry %#08x sp %#08x vt %#08x after %d round trips, %d restarts, %d events\n",
		c1.Entry, c1.StackPointer, c1.VectorTable, c1.RoundTrips, c1.Restarts, chip.Events)
	return err
}

func writeHex(path string, snap snapshot.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := snap.WriteHex(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// compare prints the peripherals whose registers differ from the snapshot in
// path and reports whether there were any.
func compare(w io.Writer, path string, snap snapshot.Snapshot) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	golden, err := snapshot.ReadHex(f)
	if err != nil {
		return false, err
	}
	changes := snapshot.Compare(golden, snap)
	for _, c := range changes {
		fmt.Fprintf(w, "%-9s crc %04x -> %04x\n", c.Name, c.Old, c.New)
	}
	if len(changes) == 0 {
		return false, snap.WriteSummary(w)
	}
	return true, nil
}
