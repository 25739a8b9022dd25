// Command vcocalc finds RP2350 PLL settings for a target output frequency and
// checks clock plans.
//
//	vcocalc 133MHz
//	vcocalc -xosc 16MHz -tol 500kHz -n 5 125MHz
//	vcocalc -emit pll_sys 100MHz >> board.yaml
//	vcocalc -check board.yaml
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/rvpico/bringup/diagnostics"
	"github.com/rvpico/bringup/internal/plan"
	"github.com/rvpico/bringup/src/machine"
)

var (
	xosc      = plan.Hz(12 * machine.MHz)
	tolerance plan.Hz
	minRef    plan.Hz
	lowVCO    = flag.Bool("low-vco", false, "prefer the lowest VCO frequency (less power) over the highest")
	limit     = flag.Int("n", 1, "number of candidates to print, 0 for all")
	emit      = flag.String("emit", "", "print the best setting as a plan fragment for this PLL (pll_sys or pll_usb)")
	check     = flag.String("check", "", "check a clock plan and print its problems")
)

func init() {
	flag.Var(&xosc, "xosc", "crystal frequency")
	flag.Var(&tolerance, "tol", "accepted distance from the target")
	flag.Var(&minRef, "min-ref", "smallest reference frequency after REFDIV (default 5MHz)")
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: vcocalc [options] target...\n       vcocalc -check plan.yaml\n\noptions:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	stdout := colorable.NewColorableStdout()
	logger := log.New(colorable.NewColorableStderr(), "vcocalc: ", 0)

	if *check != "" {
		if !checkPlan(stdout, *check) {
			os.Exit(1)
		}
		return
	}
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	search := machine.PLLSearch{
		ToleranceHz: uint32(tolerance),
		LowVCO:      *lowVCO,
		MinRefHz:    uint32(minRef),
		Limit:       *limit,
	}
	failed := false
	for _, arg := range flag.Args() {
		target, err := plan.ParseHz(arg)
		if err != nil {
			logger.Fatal(err)
		}
		found, err := machine.FindPLLConfig(uint32(xosc), uint32(target), search)
		if errors.Is(err, machine.ErrNoPLLConfig) {
			logger.Printf("%v: no setting within %v of the target", target, tolerance)
			failed = true
			continue
		}
		if err != nil {
			logger.Fatal(err)
		}
		if *emit != "" {
			if err := emitPlan(stdout, *emit, found[0]); err != nil {
				logger.Fatal(err)
			}
			continue
		}
		printCandidates(stdout, target, found)
	}
	if failed {
		os.Exit(1)
	}
}

// printCandidates writes one line per candidate in the format of the pico-sdk
// vcocalc script.
func printCandidates(w io.Writer, target plan.Hz, found []machine.PLLCandidate) {
	for _, c := range found {
		fmt.Fprintf(w, "Requested: %s  Achieved: %s  REFDIV: %d  FBDIV: %d (VCO = %s)  PD1: %d  PD2: %d\n",
			mhz(uint32(target)), mhz(c.OutHz), c.Config.RefDiv, c.FBDiv, mhz(c.Config.VCOFreqHz),
			c.Config.PostDiv1, c.Config.PostDiv2)
	}
}

func mhz(hz uint32) string {
	return fmt.Sprintf("%.4g MHz", float64(hz)/1e6)
}

// emitPlan prints a plan fragment setting the given PLL to c.
func emitPlan(w io.Writer, pll string, c machine.PLLCandidate) error {
	setting := plan.PLL{
		RefDiv:   c.Config.RefDiv,
		VCO:      plan.Hz(c.Config.VCOFreqHz),
		PostDiv1: c.Config.PostDiv1,
		PostDiv2: c.Config.PostDiv2,
	}
	var p plan.Plan
	switch pll {
	case "pll_sys":
		p.PLLSys = setting
	case "pll_usb":
		p.PLLUSB = setting
	default:
		return fmt.Errorf("unknown PLL %q, want pll_sys or pll_usb", pll)
	}
	data, err := p.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// checkPlan prints the problems found in the plan at path, or a summary of the
// resulting clock tree if there are none.
func checkPlan(w io.Writer, path string) bool {
	wd, _ := os.Getwd()
	src, err := os.ReadFile(path)
	var p *plan.Plan
	if err == nil {
		p, err = plan.Parse(src)
	}
	var cfg machine.Config
	if err == nil {
		cfg, err = p.Config()
	}
	if err != nil {
		diagnostics.CreateDiagnostics(path, src, err).WriteTo(w, wd)
		return false
	}
	xoscHz := cfg.XOSC.FrequencyHz
	fmt.Fprintf(w, "%s: ok\n", diagnostics.RelativePosition(diagnostics.Position{Filename: path}, wd))
	fmt.Fprintf(w, "  pll_sys %s, pll_usb %s\n", mhz(cfg.PLLSys.OutputFreq(xoscHz)), mhz(cfg.PLLUSB.OutputFreq(xoscHz)))
	return true
}
