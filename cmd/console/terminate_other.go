//go:build !unix

package main

import "os"

// There is no polite way to stop a process here.
func terminate(p *os.Process) error {
	return p.Kill()
}
