package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/inhies/go-bytesize"
)

const prompt = "> "

// lineReader is the keyboard. *tty.TTY satisfies it.
type lineReader interface {
	ReadString() (string, error)
}

// traffic counts bytes on the serial link.
type traffic struct {
	sent     atomic.Int64
	received atomic.Int64
}

func (t *traffic) String() string {
	return fmt.Sprintf("sent %s, received %s",
		bytesize.New(float64(t.sent.Load())), bytesize.New(float64(t.received.Load())))
}

// repl sends every line typed on keys to conn and prints every line from conn
// on out, redrawing the prompt after each. It returns when stop is closed or
// either side fails; a keyboard at end of file is a normal exit.
func repl(conn io.ReadWriter, keys lineReader, out io.Writer, stop <-chan struct{}, stats *traffic) error {
	var mu sync.Mutex
	show := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		io.WriteString(out, s)
	}
	stopped := func() bool {
		select {
		case <-stop:
			return true
		default:
			return false
		}
	}
	// Both readers block in ReadString. Once stop is closed they drop what
	// they read and return; the caller closes conn to unblock the first.
	errc := make(chan error, 2)

	show(prompt)
	go func() {
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if stopped() {
				return
			}
			stats.received.Add(int64(len(line)))
			if line != "" {
				show("\r" + strings.TrimRight(line, "\r\n") + "\n" + prompt)
			}
			if err != nil {
				errc <- fmt.Errorf("serial: %w", err)
				return
			}
		}
	}()
	go func() {
		for {
			line, err := keys.ReadString()
			if stopped() {
				return
			}
			if err == io.EOF {
				errc <- nil
				return
			}
			if err != nil {
				errc <- err
				return
			}
			data := strings.TrimSpace(line) + "\n"
			n, err := io.WriteString(conn, data)
			stats.sent.Add(int64(n))
			if err != nil {
				errc <- fmt.Errorf("serial: %w", err)
				return
			}
			show("\n" + prompt)
		}
	}()

	select {
	case <-stop:
		show("\nExiting...\n")
		return nil
	case err := <-errc:
		return err
	}
}
