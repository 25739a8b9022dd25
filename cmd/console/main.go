// Command console talks to a board over its UART while OpenOCD holds the
// debug probe. Lines typed on the keyboard go to the board; lines from the
// board are printed above the prompt. OpenOCD output goes to a log file.
//
//	console -d /dev/ttyACM0 -b 115200 -l openocd.log
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-tty"
	"go.bug.st/serial"
)

var (
	device   = flag.String("d", "", "UART device, such as /dev/ttyACM0")
	baudrate = flag.Int("b", 0, "baud rate of the UART, such as 115200")
	logfile  = flag.String("l", "", "file for OpenOCD output")
	timeout  = flag.Int("t", 1, "seconds to wait for the UART device to appear")
	openocd  = flag.String("openocd", defaultOpenOCD, "OpenOCD command line; empty to not start OpenOCD")
)

func main() {
	flag.Parse()
	logger := log.New(colorable.NewColorableStderr(), "console: ", 0)
	if *device == "" || *baudrate <= 0 || (*logfile == "" && *openocd != "") {
		fmt.Fprintln(os.Stderr, "usage: console -d device -b baudrate -l logfile [options]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := console(logger); err != nil {
		logger.Print(err)
		os.Exit(1)
	}
}

// console runs OpenOCD, if asked to, for as long as the session lasts.
func console(logger *log.Logger) error {
	if *openocd != "" {
		ocd, err := startOpenOCD(*openocd, *logfile)
		if err != nil {
			return err
		}
		defer func() {
			if err := ocd.Close(); err != nil {
				logger.Printf("openocd: %v", err)
			}
		}()
	}
	return run(logger)
}

func run(logger *log.Logger) error {
	port, err := openSerial(*device, *baudrate, time.Duration(*timeout)*time.Second)
	if err != nil {
		return err
	}
	defer port.Close()
	if err := port.ResetInputBuffer(); err != nil {
		return err
	}

	keys, err := tty.Open()
	if err != nil {
		return err
	}
	defer keys.Close()

	stop := make(chan struct{})
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		<-sigs
		close(stop)
	}()

	var stats traffic
	err = repl(port, keys, colorable.NewColorableStdout(), stop, &stats)
	logger.Printf("%s: %s", *device, &stats)
	return err
}

// openSerial opens device, retrying until it appears or the timeout passes.
func openSerial(device string, baudrate int, timeout time.Duration) (serial.Port, error) {
	deadline := time.Now().Add(timeout)
	mode := &serial.Mode{BaudRate: baudrate}
	for {
		port, err := serial.Open(device, mode)
		if err == nil {
			return port, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s: %w%s", device, err, availablePorts())
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func availablePorts() string {
	ports, err := serial.GetPortsList()
	if err != nil || len(ports) == 0 {
		return ""
	}
	return " (available: " + strings.Join(ports, ", ") + ")"
}
