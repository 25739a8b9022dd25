//go:build unix

package main

import (
	"os"

	"golang.org/x/sys/unix"
)

// terminate asks p to exit.
func terminate(p *os.Process) error {
	return p.Signal(unix.SIGTERM)
}
