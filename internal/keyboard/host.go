//go:build unix

package keyboard

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

// pollInterval is how often stdin is polled and gates are checked.
const pollInterval = 5 * time.Millisecond

// Host reads raw stdin and feeds a Keyboard from a single goroutine.
type Host struct {
	kb      *Keyboard
	fd      int
	stopCh  chan struct{}
	done    chan struct{}
	quit    chan struct{}
	stopped sync.Once
	quitted sync.Once

	nonblockSet  bool
	oldTermState *term.State
}

// NewHost wraps kb for terminal input.
func NewHost(kb *Keyboard) *Host {
	return &Host{
		kb:     kb,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		quit:   make(chan struct{}),
	}
}

// Quit is closed when the user presses Esc or Ctrl-C.
func (h *Host) Quit() <-chan struct{} { return h.quit }

// Start puts stdin in raw non-blocking mode and begins reading.
func (h *Host) Start() error {
	h.fd = int(os.Stdin.Fd())
	if !term.IsTerminal(h.fd) {
		close(h.done)
		return fmt.Errorf("keyboard: stdin is not a terminal")
	}
	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		close(h.done)
		return fmt.Errorf("keyboard: raw mode: %w", err)
	}
	h.oldTermState = oldState

	if err := syscall.SetNonblock(h.fd, true); err != nil {
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
		close(h.done)
		return fmt.Errorf("keyboard: nonblocking stdin: %w", err)
	}
	h.nonblockSet = true

	go h.loop()
	return nil
}

func (h *Host) loop() {
	defer close(h.done)
	buf := make([]byte, 16)
	for {
		select {
		case <-h.stopCh:
			return
		default:
		}

		n, err := syscall.Read(h.fd, buf)
		now := time.Now()
		for i := 0; i < n; i++ {
			if h.kb.Press(buf[i], now) == ActionQuit {
				h.quitted.Do(func() { close(h.quit) })
			}
		}
		h.kb.Tick(now)
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK || n <= 0 {
			time.Sleep(pollInterval)
			continue
		}
		if err != nil {
			return
		}
	}
}

// Stop ends the reader and restores the terminal.
func (h *Host) Stop() {
	h.stopped.Do(func() {
		close(h.stopCh)
	})
	<-h.done
	if h.nonblockSet {
		_ = syscall.SetNonblock(h.fd, false)
		h.nonblockSet = false
	}
	if h.oldTermState != nil {
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
	}
}
