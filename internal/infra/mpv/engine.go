// Package mpv implements the playback engine on top of libmpv.
package mpv

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/wildeyedskies/go-mpv/mpv"

	"github.com/osa030/camper/internal/app/engine"
)

// Config represents mpv engine configuration.
type Config struct {
	TickInterval time.Duration // Position report interval
	Volume       float64       // Initial volume, 0.0-1.0
}

// Engine drives a single libmpv instance. Commands return immediately;
// readiness, end-of-stream and errors arrive on the event stream. mpv calls
// run under an internal mutex, never on the consumer's goroutine.
type Engine struct {
	m      *mpv.Mpv
	events chan engine.Event
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	ready       bool  // Current load reached FILE_LOADED
	playing     bool  // Desired pause state is "playing"
	pendingPlay *bool // Play/pause issued before readiness, last write wins
	fileActive  bool  // A loadfile was issued and no END_FILE consumed yet
	swallowEnd  int   // END_FILE events caused by our own load/stop commands
}

// New creates and initializes the mpv instance.
func New(cfg Config) (*Engine, error) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 500 * time.Millisecond
	}

	m := mpv.Create()
	m.SetOptionString("audio-display", "no")
	m.SetOptionString("video", "no")
	m.ObserveProperty(0, "cache-buffering-state", mpv.FORMAT_INT64)

	if err := m.Initialize(); err != nil {
		m.TerminateDestroy()
		return nil, errors.Wrap(err, "failed to initialize mpv")
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		m:      m,
		events: make(chan engine.Event, 32),
		cancel: cancel,
	}
	if cfg.Volume > 0 {
		e.SetVolume(cfg.Volume)
	}

	e.wg.Add(2)
	go e.pumpEvents(ctx)
	go e.tickPosition(ctx, cfg.TickInterval)
	return e, nil
}

// Events returns the event stream.
func (e *Engine) Events() <-chan engine.Event {
	return e.events
}

// Load starts loading the stream URI. Readiness arrives as EventReady.
// The stream is loaded paused; playback starts on Play or a buffered toggle.
func (e *Engine) Load(uri string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fileActive {
		// Replacing an active file makes mpv emit END_FILE for it.
		e.swallowEnd++
	}
	e.ready = false
	e.playing = false
	e.pendingPlay = nil
	e.fileActive = true

	e.command("set", "pause", "yes")
	e.command("loadfile", uri)
}

// Play starts or resumes playback. Before readiness the request is buffered.
func (e *Engine) Play() error {
	return e.setPaused(false)
}

// Pause pauses playback. Before readiness the request is buffered.
func (e *Engine) Pause() error {
	return e.setPaused(true)
}

func (e *Engine) setPaused(paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		want := !paused
		e.pendingPlay = &want
		return nil
	}
	if paused {
		e.command("set", "pause", "yes")
	} else {
		e.command("set", "pause", "no")
	}
	e.playing = !paused
	return nil
}

// Seek jumps to an absolute position. Rejected with ErrNotReady until the
// load completes; the new position is reported by the next position tick.
func (e *Engine) Seek(pos time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return engine.ErrNotReady
	}
	e.command("seek", strconv.FormatFloat(pos.Seconds(), 'f', 3, 64), "absolute")
	return nil
}

// Stop unloads the current stream. The instance stays usable for Load.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fileActive {
		e.swallowEnd++
		e.fileActive = false
	}
	e.ready = false
	e.playing = false
	e.pendingPlay = nil
	e.command("stop")
}

// SetVolume sets the output volume, 0.0-1.0.
func (e *Engine) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.command("set", "volume", strconv.FormatFloat(v*100, 'f', 0, 64))
}

// Close shuts down the mpv instance and closes the event stream.
func (e *Engine) Close() {
	e.cancel()
	e.mu.Lock()
	e.command("quit")
	e.mu.Unlock()
	e.wg.Wait()
	e.m.TerminateDestroy()
	close(e.events)
}

// command issues an mpv command. Must be called with the mutex held.
func (e *Engine) command(args ...string) {
	if err := e.m.Command(args); err != nil {
		zlog.Warn().Err(err).Strs("args", args).Msg("mpv: command failed")
	}
}

func (e *Engine) pumpEvents(ctx context.Context) {
	defer e.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		ev := e.m.WaitEvent(1)
		if ev == nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		switch ev.Event_Id {
		case mpv.EVENT_SHUTDOWN:
			return
		case mpv.EVENT_FILE_LOADED:
			e.onFileLoaded()
		case mpv.EVENT_END_FILE:
			e.onEndFile()
		case mpv.EVENT_PROPERTY_CHANGE:
			e.onBuffering()
		}
	}
}

func (e *Engine) onFileLoaded() {
	e.mu.Lock()
	e.ready = true
	if e.pendingPlay != nil {
		want := *e.pendingPlay
		e.pendingPlay = nil
		if want {
			e.command("set", "pause", "no")
		}
		e.playing = want
	}
	e.mu.Unlock()
	e.emit(engine.Event{Type: engine.EventReady})
}

func (e *Engine) onEndFile() {
	e.mu.Lock()
	if e.swallowEnd > 0 {
		e.swallowEnd--
		e.mu.Unlock()
		return
	}
	wasReady := e.ready
	e.ready = false
	e.playing = false
	e.fileActive = false
	e.mu.Unlock()

	if wasReady {
		e.emit(engine.Event{Type: engine.EventEndOfStream})
	} else {
		// END_FILE without a prior FILE_LOADED means the load failed.
		e.emit(engine.Event{Type: engine.EventError, Err: errors.New("stream failed to load")})
	}
}

func (e *Engine) onBuffering() {
	e.mu.Lock()
	val, err := e.m.GetProperty("cache-buffering-state", mpv.FORMAT_INT64)
	e.mu.Unlock()
	if err != nil {
		return
	}
	if pct, ok := val.(int64); ok {
		e.emit(engine.Event{Type: engine.EventBuffering, Pct: int(pct)})
	}
}

func (e *Engine) tickPosition(ctx context.Context, interval time.Duration) {
	defer e.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		active := e.ready && e.playing
		var pos time.Duration
		if active {
			if val, err := e.m.GetProperty("time-pos", mpv.FORMAT_DOUBLE); err == nil {
				if sec, ok := val.(float64); ok {
					pos = time.Duration(sec * float64(time.Second))
				}
			}
		}
		e.mu.Unlock()

		if active {
			e.emit(engine.Event{Type: engine.EventPositionTick, Pos: pos})
		}
	}
}

// emit delivers an event without blocking the mpv goroutines. A full
// channel drops the event; the consumer only needs the latest state.
func (e *Engine) emit(ev engine.Event) {
	select {
	case e.events <- ev:
	default:
		zlog.Debug().Str("type", ev.Type.String()).Msg("mpv: event channel full, dropping")
	}
}
