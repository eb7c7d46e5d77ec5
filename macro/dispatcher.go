package macro

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// PollInterval is how often the dispatcher checks the hotkey.
const PollInterval = 20 * time.Millisecond

type EventKind int

const (
	EventSent EventKind = iota
	EventError
	EventState
)

// Event is published by the dispatcher for the presentation layer.
type Event struct {
	Kind   EventKind
	At     time.Time
	Text   string // EventSent
	Err    error  // EventError
	Active bool   // EventState
}

// Dispatcher owns the dispatch loop. Its configuration and active state are
// only touched by the Run goroutine; callers hand over new values through
// Update and SetActive.
type Dispatcher struct {
	keyboard Keyboard
	hotkey   HotkeySource
	logger   *slog.Logger
	rng      *rand.Rand
	selector *Selector
	interval time.Duration
	sleep    func(ctx context.Context, d time.Duration) error

	cfg    Config
	active bool

	configs chan Config
	toggles chan bool
	events  chan Event
}

type Option func(*Dispatcher)

// WithRand seeds message selection and delay jitter.
func WithRand(rng *rand.Rand) Option {
	return func(d *Dispatcher) { d.rng = rng }
}

// WithSleep replaces the pause between messages.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) { d.sleep = sleep }
}

func WithPollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) { d.interval = interval }
}

func NewDispatcher(cfg Config, keyboard Keyboard, hotkey HotkeySource, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		keyboard: keyboard,
		hotkey:   hotkey,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		interval: PollInterval,
		sleep:    sleepContext,
		cfg:      cfg.Clone(),
		configs:  make(chan Config, 1),
		toggles:  make(chan bool, 1),
		events:   make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.selector = NewSelector(d.rng)
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// offerLatest puts v on a one-slot channel, replacing any value not yet read.
func offerLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Update hands a configuration snapshot to the loop.
func (d *Dispatcher) Update(cfg Config) {
	offerLatest(d.configs, cfg.Clone())
}

// SetActive starts or stops reacting to the hotkey.
func (d *Dispatcher) SetActive(on bool) {
	offerLatest(d.toggles, on)
}

// Events is closed when Run returns.
func (d *Dispatcher) Events() <-chan Event {
	return d.events
}

func (d *Dispatcher) emit(ev Event) {
	ev.At = time.Now()
	select {
	case d.events <- ev:
	default:
		d.logger.Warn("Event dropped, consumer is behind", "kind", ev.Kind)
	}
}

func (d *Dispatcher) setActive(on bool) {
	if d.active == on {
		return
	}
	d.active = on
	d.logger.Info("Dispatcher state changed", "active", on)
	d.emit(Event{Kind: EventState, Active: on})
}

// drainControl applies any pending configuration and toggle without blocking.
func (d *Dispatcher) drainControl() {
	select {
	case cfg := <-d.configs:
		d.cfg = cfg
	default:
	}
	select {
	case on := <-d.toggles:
		d.setActive(on)
	default:
	}
}

// Run polls the hotkey until ctx is cancelled. A failed iteration is logged,
// reported as an EventError and deactivates the dispatcher; it never ends
// the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.events)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cfg := <-d.configs:
			d.cfg = cfg
		case on := <-d.toggles:
			d.setActive(on)
		case <-ticker.C:
			// A stop or new settings handed over while the previous message
			// was pacing must win over a tick that is ready at the same time.
			d.drainControl()
			pressed := d.hotkey.Pressed(d.cfg.Hotkey)
			if !d.active || !pressed {
				continue
			}
			err := d.fire(ctx)
			// Presses made while a message was typing or pacing are dropped.
			d.hotkey.Pressed(d.cfg.Hotkey)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				d.logger.Error("Dispatch failed", "error", err)
				d.emit(Event{Kind: EventError, Err: err})
				d.setActive(false)
			}
		}
	}
}

// fire sends one message and waits out the configured pause.
func (d *Dispatcher) fire(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panicked: %v", r)
		}
	}()

	msg, err := d.selector.Next(d.cfg.Messages)
	if err != nil {
		return err
	}
	text := Format(d.cfg, msg)
	if err := d.keyboard.Type(ctx, text); err != nil {
		return fmt.Errorf("type message: %w", err)
	}
	if d.cfg.AutoEnter {
		if err := d.keyboard.Enter(ctx); err != nil {
			return fmt.Errorf("press enter: %w", err)
		}
	}
	d.logger.Debug("Message sent", "text", text)
	d.emit(Event{Kind: EventSent, Text: text})
	return d.sleep(ctx, Pace(d.cfg, d.rng))
}
