package macro

import (
	"os"
	"os/signal"
	"sync"
)

// HotkeySource is polled by the dispatcher. Pressed reports whether hotkey
// was pressed since the last call and consumes the press.
type HotkeySource interface {
	Pressed(hotkey string) bool
}

// Latch records presses delivered by the terminal UI.
type Latch struct {
	mu      sync.Mutex
	pending map[string]bool
}

func NewLatch() *Latch {
	return &Latch{pending: make(map[string]bool)}
}

// Press marks hotkey as pressed. Repeated presses before a poll collapse
// into one.
func (l *Latch) Press(hotkey string) {
	l.mu.Lock()
	l.pending[NormalizeHotkey(hotkey)] = true
	l.mu.Unlock()
}

func (l *Latch) Pressed(hotkey string) bool {
	key := NormalizeHotkey(hotkey)
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.pending[key] {
		return false
	}
	delete(l.pending, key)
	return true
}

// SignalHotkey turns an OS signal into a press of whatever hotkey is
// configured. A desktop shortcut running `pkill -USR1 macro` gives a global
// trigger without grabbing the keyboard.
type SignalHotkey struct {
	ch chan os.Signal
}

// NewSignalHotkey listens for sigs. With no signals it never fires.
func NewSignalHotkey(sigs ...os.Signal) *SignalHotkey {
	s := &SignalHotkey{ch: make(chan os.Signal, 1)}
	if len(sigs) > 0 {
		signal.Notify(s.ch, sigs...)
	}
	return s
}

func (s *SignalHotkey) Pressed(string) bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Stop unregisters the signal handler.
func (s *SignalHotkey) Stop() {
	signal.Stop(s.ch)
}

// AnyHotkey fires when any of its sources fires. Every source is polled so
// that simultaneous presses are all consumed.
type AnyHotkey []HotkeySource

func (a AnyHotkey) Pressed(hotkey string) bool {
	fired := false
	for _, src := range a {
		if src.Pressed(hotkey) {
			fired = true
		}
	}
	return fired
}
