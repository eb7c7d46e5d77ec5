// Package tui is the terminal front end of the chat macro.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"nightboard/macro"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type palette struct {
	background tcell.Color
	text       tcell.Color
	field      tcell.Color
	fieldText  tcell.Color
	accent     tcell.Color
}

var palettes = map[string]palette{
	"dark": {
		background: tcell.ColorBlack,
		text:       tcell.ColorWhite,
		field:      tcell.ColorDarkSlateGray,
		fieldText:  tcell.ColorWhite,
		accent:     tcell.ColorDodgerBlue,
	},
	"light": {
		background: tcell.ColorWhiteSmoke,
		text:       tcell.ColorBlack,
		field:      tcell.ColorLightGray,
		fieldText:  tcell.ColorBlack,
		accent:     tcell.ColorNavy,
	},
}

// Options wires the UI to a running dispatcher.
type Options struct {
	Path       string
	Config     macro.Config
	LoadErr    error
	Dispatcher *macro.Dispatcher
	Latch      *macro.Latch
	Logger     *slog.Logger
}

// UI holds the widgets. All fields are only touched on the tview event
// goroutine.
type UI struct {
	opts   Options
	cfg    macro.Config
	active bool

	app      *tview.Application
	pages    *tview.Pages
	form     *tview.Form
	messages *tview.TextArea
	logView  *tview.TextView
	root     *tview.Flex
}

func New(opts Options) *UI {
	u := &UI{
		opts: opts,
		cfg:  opts.Config.Clone(),
		app:  tview.NewApplication(),
	}
	u.build()
	return u
}

// hotkeyName maps an unmodified special key to its name in macro.Hotkeys.
func hotkeyName(ev *tcell.EventKey) string {
	if ev.Key() == tcell.KeyRune || ev.Modifiers() != tcell.ModNone {
		return ""
	}
	name, ok := tcell.KeyNames[ev.Key()]
	if !ok {
		return ""
	}
	return macro.NormalizeHotkey(name)
}

// splitMessages turns the editor text into a message list, one per line.
func splitMessages(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// floatField updates *dst whenever the field holds a valid number.
func (u *UI) floatField(label string, dst *float64) {
	u.form.AddInputField(label, formatSeconds(*dst), 8, tview.InputFieldFloat, func(text string) {
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			*dst = v
			u.push()
		}
	})
}

func (u *UI) checkbox(label string, dst *bool) {
	u.form.AddCheckbox(label, *dst, func(checked bool) {
		*dst = checked
		u.push()
	})
}

func (u *UI) build() {
	u.form = tview.NewForm()
	u.form.SetBorder(true)
	u.form.SetTitle(" Settings ")

	hotkeyIdx := max(slices.Index(macro.Hotkeys, u.cfg.Hotkey), 0)
	u.form.AddDropDown("Hotkey", macro.Hotkeys, hotkeyIdx, func(option string, _ int) {
		if u.cfg.Hotkey != option {
			u.cfg.Hotkey = option
			u.push()
		}
	})
	u.checkbox("Auto space", &u.cfg.AutoSpace)
	u.checkbox("Auto enter", &u.cfg.AutoEnter)
	u.floatField("Delay (s)", &u.cfg.Delay)
	u.checkbox("Random delay", &u.cfg.RandomDelay)
	u.floatField("Min delay (s)", &u.cfg.MinDelay)
	u.floatField("Max delay (s)", &u.cfg.MaxDelay)
	u.checkbox("Big mode", &u.cfg.BigMode)
	u.checkbox("Mention mode", &u.cfg.MentionMode)
	u.form.AddInputField("Mention id", u.cfg.MentionID, 24, nil, func(text string) {
		u.cfg.MentionID = strings.TrimSpace(text)
		u.push()
	})
	themeIdx := max(slices.Index(macro.Themes, u.cfg.Theme), 0)
	u.form.AddDropDown("Theme", macro.Themes, themeIdx, func(option string, _ int) {
		if u.cfg.Theme != option {
			u.cfg.Theme = option
			u.applyTheme()
			u.push()
		}
	})
	u.form.AddButton("Start", u.toggle)
	u.form.AddButton("Save", u.save)
	u.form.AddButton("Quit", u.app.Stop)

	u.messages = tview.NewTextArea()
	u.messages.SetBorder(true)
	u.messages.SetTitle(" Messages (one per line) ")
	u.messages.SetText(strings.Join(u.cfg.Messages, "\n"), false)
	u.messages.SetChangedFunc(func() {
		u.cfg.Messages = splitMessages(u.messages.GetText())
		u.push()
	})

	u.logView = tview.NewTextView()
	u.logView.SetDynamicColors(true)
	u.logView.SetScrollable(true)
	u.logView.SetBorder(true)
	u.logView.SetTitle(" Sent ")
	u.logView.SetChangedFunc(func() { u.logView.ScrollToEnd() })

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(u.messages, 0, 1, false).
		AddItem(u.logView, 0, 1, false)
	u.root = tview.NewFlex().
		AddItem(u.form, 46, 0, true).
		AddItem(right, 0, 1, false)

	u.pages = tview.NewPages().AddPage("main", u.root, true, true)
	u.app.SetRoot(u.pages, true).EnableMouse(true)
	u.app.SetInputCapture(u.capture)
	u.applyTheme()
}

func (u *UI) capture(ev *tcell.EventKey) *tcell.EventKey {
	if name := hotkeyName(ev); name != "" && name == macro.NormalizeHotkey(u.cfg.Hotkey) {
		u.opts.Latch.Press(name)
		return nil
	}
	switch ev.Key() {
	case tcell.KeyCtrlS:
		u.save()
		return nil
	case tcell.KeyCtrlT:
		u.toggle()
		return nil
	}
	return ev
}

func (u *UI) applyTheme() {
	p, ok := palettes[u.cfg.Theme]
	if !ok {
		p = palettes["dark"]
	}
	u.form.SetBackgroundColor(p.background)
	u.form.SetLabelColor(p.text)
	u.form.SetFieldBackgroundColor(p.field)
	u.form.SetFieldTextColor(p.fieldText)
	u.form.SetButtonBackgroundColor(p.accent)
	u.form.SetBorderColor(p.accent)
	u.messages.SetBackgroundColor(p.background)
	u.messages.SetTextStyle(tcell.StyleDefault.Background(p.background).Foreground(p.text))
	u.messages.SetBorderColor(p.accent)
	u.logView.SetBackgroundColor(p.background)
	u.logView.SetTextColor(p.text)
	u.logView.SetBorderColor(p.accent)
	u.root.SetBackgroundColor(p.background)
}

// push hands the current settings to the dispatcher.
func (u *UI) push() {
	u.opts.Dispatcher.Update(u.cfg)
}

func (u *UI) setStartLabel() {
	label := "Start"
	if u.active {
		label = "Stop"
	}
	u.form.GetButton(0).SetLabel(label)
}

func (u *UI) toggle() {
	if !u.active {
		if err := u.cfg.Validate(); err != nil {
			u.showError("Cannot start", err)
			return
		}
	}
	u.opts.Dispatcher.SetActive(!u.active)
}

func (u *UI) save() {
	if err := u.cfg.Validate(); err != nil {
		u.showError("Settings not saved", err)
		return
	}
	if err := macro.Save(u.opts.Path, u.cfg); err != nil {
		u.opts.Logger.Error("Failed to save settings", "path", u.opts.Path, "error", err)
		u.showError("Settings not saved", err)
		return
	}
	u.opts.Logger.Info("Settings saved", "path", u.opts.Path)
	fmt.Fprintf(u.logView, "[gray]settings saved to %s[-]\n", tview.Escape(u.opts.Path))
}

func (u *UI) showError(title string, err error) {
	modal := tview.NewModal().
		SetText(fmt.Sprintf("%s\n\n%v", title, err)).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(int, string) {
			u.pages.RemovePage("error")
		})
	u.pages.AddPage("error", modal, false, true)
}

func (u *UI) handle(ev macro.Event) {
	stamp := ev.At.Format("15:04:05")
	switch ev.Kind {
	case macro.EventSent:
		fmt.Fprintf(u.logView, "[gray]%s[-] %s\n", stamp, tview.Escape(ev.Text))
	case macro.EventError:
		fmt.Fprintf(u.logView, "[gray]%s[-] [red]error:[-] %s\n", stamp, tview.Escape(ev.Err.Error()))
		u.showError("Sending stopped", ev.Err)
	case macro.EventState:
		u.active = ev.Active
		u.setStartLabel()
	}
}

// Run blocks until the user quits or ctx is cancelled.
func (u *UI) Run(ctx context.Context) error {
	go func() {
		for ev := range u.opts.Dispatcher.Events() {
			u.app.QueueUpdateDraw(func() { u.handle(ev) })
		}
	}()
	go func() {
		<-ctx.Done()
		u.app.Stop()
	}()
	if u.opts.LoadErr != nil {
		u.showError("Settings file could not be read; using defaults", u.opts.LoadErr)
	}
	return u.app.Run()
}
