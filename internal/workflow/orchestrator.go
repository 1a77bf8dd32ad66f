// Package workflow drives one conversion from a selected file and header
// fields to a downloaded document.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nconklindev/sheet2xml/internal/header"
	"github.com/nconklindev/sheet2xml/internal/logger"
	"github.com/nconklindev/sheet2xml/internal/metrics"
	"github.com/nconklindev/sheet2xml/internal/types"
	"github.com/nconklindev/sheet2xml/internal/upload"

	"github.com/rs/zerolog"
)

// User-facing messages.
const (
	MsgNotReady      = "Please ensure all fields are valid and an Excel file is uploaded"
	MsgNoDownloadURL = "No download URL received from server"
)

var (
	ErrNotReady      = errors.New(MsgNotReady)
	ErrBusy          = errors.New("a conversion is already running")
	ErrNoDownloadURL = errors.New(MsgNoDownloadURL)
)

// Simulated progress: +Step every Interval, capped at Ceiling until the
// real answer arrives.
const (
	DefaultInterval = 500 * time.Millisecond
	DefaultStep     = 10
	DefaultCeiling  = 90
)

// State is the orchestrator's conversion state.
type State int

const (
	StateIdle State = iota
	StateConverting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConverting:
		return "converting"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Converter is the remote call.
type Converter interface {
	Convert(ctx context.Context, file types.SelectedFile, fields []types.HeaderField) (*types.ConversionResponse, error)
}

// Navigator follows the download link of a finished conversion.
type Navigator interface {
	Navigate(ctx context.Context, downloadURL string) error
}

// Orchestrator owns the current file and header fields and runs the
// idle/converting state machine. Views read its state and call its
// methods; they never hold the canonical copies themselves.
type Orchestrator struct {
	mu       sync.Mutex
	state    State
	progress float64
	err      string
	file     *types.SelectedFile

	editor *header.Editor

	// selMu guards selector. Selector callbacks take mu, so selMu is
	// always acquired first and never while holding mu.
	selMu    sync.Mutex
	selector *upload.Selector

	client   Converter
	nav      Navigator
	interval time.Duration
	log      zerolog.Logger

	// OnProgress receives every progress change. It runs on the ticker
	// goroutine or the submitting goroutine.
	OnProgress func(float64)
}

type Option func(*Orchestrator)

// WithInterval changes the progress tick interval.
func WithInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.interval = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// New returns an idle orchestrator with one empty header row and no file.
// nav is told where to go after a successful conversion.
func New(client Converter, nav Navigator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:   client,
		nav:      nav,
		editor:   header.NewEditor(),
		interval: DefaultInterval,
		log:      logger.Get(),
	}
	o.selector = &upload.Selector{
		OnSelect: o.setFile,
		OnError:  o.setError,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Edit applies fn to the header fields. Edits are refused while a
// conversion is running.
func (o *Orchestrator) Edit(fn func(e *header.Editor) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateConverting {
		return ErrBusy
	}
	return fn(o.editor)
}

// ViewFields lets fn read the header fields without racing edits.
func (o *Orchestrator) ViewFields(fn func(e *header.Editor)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(o.editor)
}

// SelectFile offers candidates to the file selector.
func (o *Orchestrator) SelectFile(candidates []types.SelectedFile) error {
	o.selMu.Lock()
	defer o.selMu.Unlock()
	return o.selector.Accept(candidates)
}

// RejectFile records a file the picker refused outright.
func (o *Orchestrator) RejectFile() {
	o.selMu.Lock()
	defer o.selMu.Unlock()
	o.selector.Reject()
}

// RemoveFile clears the selection.
func (o *Orchestrator) RemoveFile() {
	o.selMu.Lock()
	defer o.selMu.Unlock()
	o.selector.Remove()
}

// SelectorState is a snapshot of the file selector for rendering.
type SelectorState struct {
	Err      string
	Rejected bool
	Disabled bool
}

func (o *Orchestrator) SelectorState() SelectorState {
	o.selMu.Lock()
	defer o.selMu.Unlock()
	return SelectorState{
		Err:      o.selector.Err(),
		Rejected: o.selector.Rejected(),
		Disabled: o.selector.Disabled(),
	}
}

func (o *Orchestrator) setSelectorDisabled(d bool) {
	o.selMu.Lock()
	o.selector.SetDisabled(d)
	o.selMu.Unlock()
}

func (o *Orchestrator) setFile(f *types.SelectedFile) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.file = f
	if f != nil {
		o.err = ""
	}
}

func (o *Orchestrator) setError(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = msg
}

// File returns the selected file, or nil.
func (o *Orchestrator) File() *types.SelectedFile {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.file
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Progress() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

// Err returns the message to show at the top level, or "".
func (o *Orchestrator) Err() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// ClearError dismisses the top-level message.
func (o *Orchestrator) ClearError() {
	o.setError("")
}

// Ready reports whether Submit would start a conversion.
func (o *Orchestrator) Ready() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.file != nil && o.editor.Valid() && o.state == StateIdle
}

// Submit runs one conversion to completion. It blocks until the service
// answers and the download link has been followed, and always leaves the
// orchestrator idle.
func (o *Orchestrator) Submit(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateConverting {
		o.mu.Unlock()
		return ErrBusy
	}
	if o.file == nil || !o.editor.Valid() {
		o.err = MsgNotReady
		o.mu.Unlock()
		metrics.ConversionsTotal.WithLabelValues(metrics.ResultRejected).Inc()
		return ErrNotReady
	}
	file := *o.file
	fields := o.editor.Fields()
	o.state = StateConverting
	o.progress = 0
	o.err = ""
	o.mu.Unlock()
	o.setSelectorDisabled(true)
	o.notify(0)

	defer func() {
		o.setSelectorDisabled(false)
		o.mu.Lock()
		o.state = StateIdle
		o.mu.Unlock()
	}()

	resp, err := o.convert(ctx, file, fields)
	if err == nil && resp.DownloadURL == "" {
		err = ErrNoDownloadURL
	}
	if err != nil {
		o.fail(err)
		return err
	}

	o.setProgress(100)
	metrics.ConversionsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	o.log.Info().Str("file", file.Name).Str("download_url", resp.DownloadURL).Msg("Conversion completed")

	if err := o.nav.Navigate(ctx, resp.DownloadURL); err != nil {
		o.log.Error().Err(err).Str("download_url", resp.DownloadURL).Msg("Download failed")
		o.setError(fmt.Sprintf("Download failed: %s", err.Error()))
		return fmt.Errorf("navigate to %s: %w", resp.DownloadURL, err)
	}
	return nil
}

// convert runs the remote call with the progress ticker alive for exactly
// its duration.
func (o *Orchestrator) convert(ctx context.Context, file types.SelectedFile, fields []types.HeaderField) (*types.ConversionResponse, error) {
	stop := o.startTicker()
	defer stop()
	return o.client.Convert(ctx, file, fields)
}

// unauthorized is implemented by client errors that carry a 401.
type unauthorized interface {
	Unauthorized() bool
}

func (o *Orchestrator) fail(err error) {
	metrics.ConversionsTotal.WithLabelValues(metrics.ResultFailure).Inc()
	o.log.Error().Err(err).Msg("Conversion failed")

	// A rejected session is handled by the client's redirect, not shown
	// as a conversion error.
	var u unauthorized
	sessionExpired := errors.As(err, &u) && u.Unauthorized()

	o.mu.Lock()
	o.progress = 0
	if sessionExpired {
		o.err = ""
	} else {
		o.err = "Conversion failed: " + err.Error()
	}
	o.mu.Unlock()
	o.notify(0)
}

func (o *Orchestrator) setProgress(p float64) {
	o.mu.Lock()
	o.progress = p
	o.mu.Unlock()
	o.notify(p)
}

func (o *Orchestrator) notify(p float64) {
	if o.OnProgress != nil {
		o.OnProgress(p)
	}
}

// startTicker advances progress until the returned stop func is called.
// stop waits for the ticker goroutine to exit, so no tick lands after it
// returns.
func (o *Orchestrator) startTicker() (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		t := time.NewTicker(o.interval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				o.mu.Lock()
				p := o.progress + DefaultStep
				if p > DefaultCeiling {
					p = DefaultCeiling
				}
				o.progress = p
				o.mu.Unlock()
				o.notify(p)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}
