package tui

import (
	"slices"
	"testing"

	"nightboard/macro"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
)

func TestHotkeyName(t *testing.T) {
	assert.Equal(t, "f8", hotkeyName(tcell.NewEventKey(tcell.KeyF8, 0, tcell.ModNone)))
	assert.Equal(t, "pgup", hotkeyName(tcell.NewEventKey(tcell.KeyPgUp, 0, tcell.ModNone)))
	assert.Equal(t, "", hotkeyName(tcell.NewEventKey(tcell.KeyRune, 'a', tcell.ModNone)))
	assert.Equal(t, "", hotkeyName(tcell.NewEventKey(tcell.KeyF8, 0, tcell.ModShift)))
}

func TestEveryHotkeyHasAKey(t *testing.T) {
	var names []string
	for _, n := range tcell.KeyNames {
		names = append(names, macro.NormalizeHotkey(n))
	}
	for _, h := range macro.Hotkeys {
		assert.True(t, slices.Contains(names, h), "hotkey %q cannot be produced by the terminal", h)
	}
}

func TestSplitMessages(t *testing.T) {
	assert.Equal(t, []string{"gg", "nice one"}, splitMessages("gg\n\n  nice one  \n"))
	assert.Nil(t, splitMessages(" \n "))
}

func TestPalettesCoverThemes(t *testing.T) {
	for _, name := range macro.Themes {
		_, ok := palettes[name]
		assert.True(t, ok, "theme %q has no palette", name)
	}
}
