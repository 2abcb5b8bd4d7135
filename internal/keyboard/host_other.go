//go:build !unix

package keyboard

import "errors"

// Host is unavailable on this platform.
type Host struct {
	quit chan struct{}
}

func NewHost(kb *Keyboard) *Host { return &Host{quit: make(chan struct{})} }

func (h *Host) Quit() <-chan struct{} { return h.quit }

func (h *Host) Start() error {
	return errors.New("keyboard: raw terminal input is not supported on this platform")
}

func (h *Host) Stop() {}
