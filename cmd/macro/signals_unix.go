//go:build unix

package main

import (
	"os"
	"syscall"
)

// triggerSignals fire the hotkey from outside the terminal, e.g. a desktop
// shortcut bound to `pkill -USR1 -x macro`.
var triggerSignals = []os.Signal{syscall.SIGUSR1}
