package macro

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Keyboard types text into whatever window has focus.
type Keyboard interface {
	Type(ctx context.Context, text string) error
	Enter(ctx context.Context) error
}

// XdotoolKeyboard drives an X11 session through the xdotool binary.
type XdotoolKeyboard struct {
	Path    string // defaults to "xdotool" on $PATH
	DelayMS int    // per-keystroke delay
}

func (k XdotoolKeyboard) run(ctx context.Context, args ...string) error {
	bin := k.Path
	if bin == "" {
		bin = "xdotool"
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s %s: %w: %s", bin, args[0], err, msg)
		}
		return fmt.Errorf("%s %s: %w", bin, args[0], err)
	}
	return nil
}

func (k XdotoolKeyboard) Type(ctx context.Context, text string) error {
	return k.run(ctx, "type", "--delay", strconv.Itoa(k.DelayMS), "--", text)
}

func (k XdotoolKeyboard) Enter(ctx context.Context) error {
	return k.run(ctx, "key", "Return")
}

// WriterKeyboard writes keystrokes to W instead of sending them. Used for
// dry runs.
type WriterKeyboard struct {
	mu sync.Mutex
	W  io.Writer
}

func (k *WriterKeyboard) Type(_ context.Context, text string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, err := io.WriteString(k.W, text)
	return err
}

func (k *WriterKeyboard) Enter(_ context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, err := io.WriteString(k.W, "\n")
	return err
}
