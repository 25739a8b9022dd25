package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/shlex"
)

// defaultOpenOCD attaches to both RISC-V harts of the RP2350 through a
// CMSIS-DAP probe.
const defaultOpenOCD = `openocd -s tcl -f interface/cmsis-dap.cfg -f target/rp2350-riscv.cfg -c "adapter speed 5000"`

// How long OpenOCD gets to exit after being asked to.
const openOCDGrace = 3 * time.Second

var errLogInUse = errors.New("log file is in use by another console")

// openOCD is a running OpenOCD whose output goes to a locked log file.
type openOCD struct {
	cmd  *exec.Cmd
	log  *os.File
	lock *flock.Flock
	done chan error
}

// startOpenOCD runs cmdline with its output in logfile. The log file stays
// locked until Close so two consoles can't share a probe by accident.
func startOpenOCD(cmdline, logfile string) (*openOCD, error) {
	args, err := shlex.Split(cmdline)
	if err != nil {
		return nil, fmt.Errorf("openocd command line: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("openocd command line is empty")
	}

	lock := flock.New(logfile)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", logfile, errLogInUse)
	}
	f, err := os.Create(logfile)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = f
	cmd.Stderr = f
	if err := cmd.Start(); err != nil {
		f.Close()
		lock.Unlock()
		return nil, err
	}
	o := &openOCD{cmd: cmd, log: f, lock: lock, done: make(chan error, 1)}
	go func() {
		o.done <- cmd.Wait()
	}()
	return o, nil
}

// Close stops OpenOCD, killing it if it does not exit in time, and releases
// the log file.
func (o *openOCD) Close() error {
	var err error
	if terr := terminate(o.cmd.Process); terr == nil {
		select {
		case <-o.done:
		case <-time.After(openOCDGrace):
			err = o.cmd.Process.Kill()
			<-o.done
		}
	} else {
		// Already gone, or the signal is unsupported.
		o.cmd.Process.Kill()
		<-o.done
	}
	if cerr := o.log.Close(); err == nil {
		err = cerr
	}
	if uerr := o.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}
