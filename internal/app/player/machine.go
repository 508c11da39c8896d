package player

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/camper/internal/app/engine"
	"github.com/osa030/camper/internal/app/notification"
	"github.com/osa030/camper/internal/app/queue"
)

// ErrLoadTimeout marks a load that never reached readiness in time.
var ErrLoadTimeout = errors.New("loading timed out")

// StreamResolver resolves a track to a playable stream URL. Stream URLs
// expire, so resolution runs fresh on every (re)start of a track.
type StreamResolver interface {
	ResolveStreamURL(ctx context.Context, albumURL string, trackNum int) (string, error)
}

// Config holds machine configuration.
type Config struct {
	LoadingTimeout time.Duration // Bound on resolve+load before Error(timeout)
}

// resolveResult is the internal message posted by a resolution goroutine.
// The generation tags it to the load that requested it; stale results are
// discarded, which is how superseded loads get cancelled.
type resolveResult struct {
	gen uint64
	url string
	err error
}

// Machine owns the play queue and the engine and reconciles user commands,
// OS media commands and engine events into one authoritative state. All
// mutations happen on the Run goroutine, so the state needs no locking.
type Machine struct {
	engine   engine.Engine
	queue    *queue.Queue
	resolver StreamResolver
	cfg      Config

	cmdCh     chan command
	resolveCh chan resolveResult

	// Owner-goroutine state.
	state        State
	gen          uint64 // Current load generation
	engineLoaded bool   // Engine.Load issued for the current generation
	timeoutTimer *time.Timer
	timeoutC     <-chan time.Time

	notifier *notification.Manager[State]
}

// NewMachine creates the state machine. Run must be started for commands
// to take effect.
func NewMachine(eng engine.Engine, q *queue.Queue, resolver StreamResolver, cfg Config) *Machine {
	if cfg.LoadingTimeout <= 0 {
		cfg.LoadingTimeout = 15 * time.Second
	}
	return &Machine{
		engine:    eng,
		queue:     q,
		resolver:  resolver,
		cfg:       cfg,
		cmdCh:     make(chan command, 16),
		resolveCh: make(chan resolveResult, 4),
		state:     State{Status: StatusIdle},
		notifier:  notification.NewManager[State](16),
	}
}

// Subscribe registers a state observer. The channel is buffered and never
// blocks the machine; slow consumers miss intermediate snapshots.
func (m *Machine) Subscribe() (string, <-chan State) {
	return m.notifier.Subscribe()
}

// Unsubscribe removes a state observer.
func (m *Machine) Unsubscribe(id string) {
	m.notifier.Unsubscribe(id)
}

// Snapshot returns the latest published state.
func (m *Machine) Snapshot() State {
	return m.notifier.Latest()
}

// Run is the owner loop. It is the only goroutine that touches the queue
// and the state. Returns when ctx is cancelled.
func (m *Machine) Run(ctx context.Context) {
	m.publish()
	for {
		select {
		case <-ctx.Done():
			m.engine.Stop()
			m.notifier.Close()
			return
		case cmd := <-m.cmdCh:
			m.handleCommand(ctx, cmd)
		case res := <-m.resolveCh:
			m.handleResolved(res)
		case ev, ok := <-m.engine.Events():
			if !ok {
				return
			}
			m.handleEngineEvent(ctx, ev)
		case <-m.timeoutC:
			m.handleLoadTimeout()
		}
	}
}

func (m *Machine) handleCommand(ctx context.Context, cmd command) {
	switch cmd.typ {
	case cmdPlayEntries:
		m.queue.Replace(cmd.entries, cmd.index)
		if cur, ok := m.queue.Current(); ok {
			m.beginLoading(ctx, cur)
		} else {
			m.stopToIdle()
		}

	case cmdPlayAt:
		if m.queue.MoveCursorTo(cmd.index) {
			cur, _ := m.queue.Current()
			m.beginLoading(ctx, cur)
		}

	case cmdAppend:
		for _, e := range cmd.entries {
			m.queue.Append(e)
		}
		m.publish()

	case cmdInsertNext:
		for i := len(cmd.entries) - 1; i >= 0; i-- {
			m.queue.InsertNext(cmd.entries[i])
		}
		m.publish()

	case cmdRemoveAt:
		_, wasCurrent := m.queue.RemoveAt(cmd.index)
		if wasCurrent && m.state.Status != StatusIdle {
			if cur, ok := m.queue.Current(); ok {
				m.beginLoading(ctx, cur)
			} else {
				m.stopToIdle()
			}
		} else {
			m.publish()
		}

	case cmdPlayPause:
		switch m.state.Status {
		case StatusPlaying:
			m.pause()
		case StatusPaused:
			m.resume()
		case StatusIdle:
			if cur, ok := m.queue.Current(); ok {
				m.beginLoading(ctx, cur)
			}
		case StatusError:
			m.retry(ctx)
		}

	case cmdPause:
		if m.state.Status == StatusPlaying {
			m.pause()
		}

	case cmdResume:
		if m.state.Status == StatusPaused {
			m.resume()
		}

	case cmdNext:
		if next, ok := m.queue.Advance(); ok {
			m.beginLoading(ctx, next)
		} else if m.state.Status != StatusIdle {
			m.stopToIdle()
		}

	case cmdPrevious:
		if prev, ok := m.queue.Previous(); ok {
			m.beginLoading(ctx, prev)
		}

	case cmdSeek:
		// Forwarded only while playing or paused; silently ignored
		// otherwise. The position updates on the next engine tick.
		if m.state.Status == StatusPlaying || m.state.Status == StatusPaused {
			if err := m.engine.Seek(cmd.pos); err != nil {
				zlog.Debug().Err(err).Msg("player: seek rejected")
			}
		}

	case cmdRetry:
		if m.state.Status == StatusError {
			m.retry(ctx)
		}

	case cmdStop:
		m.stopToIdle()
	}
}

// beginLoading starts a new load generation for entry: the stream URL is
// resolved off the owner goroutine and the result posted back tagged with
// the generation. Any in-flight load for another entry becomes stale.
func (m *Machine) beginLoading(ctx context.Context, entry *queue.Entry) {
	m.gen++
	gen := m.gen
	m.engineLoaded = false
	m.armTimeout()
	m.setState(State{Status: StatusLoading, Entry: entry})

	track := entry.Track
	go func() {
		url, err := m.resolver.ResolveStreamURL(ctx, track.AlbumURL, track.TrackNum)
		select {
		case m.resolveCh <- resolveResult{gen: gen, url: url, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (m *Machine) handleResolved(res resolveResult) {
	if res.gen != m.gen || m.state.Status != StatusLoading {
		zlog.Debug().Uint64("gen", res.gen).Msg("player: discarding stale resolution")
		return
	}
	if res.err != nil {
		m.disarmTimeout()
		m.setState(State{Status: StatusError, Entry: m.state.Entry, Err: res.err})
		return
	}
	m.engine.Load(res.url)
	m.engineLoaded = true
}

func (m *Machine) handleEngineEvent(ctx context.Context, ev engine.Event) {
	switch ev.Type {
	case engine.EventReady:
		// Readiness only counts for the load this generation issued;
		// anything else is a leftover from a superseded load.
		if m.state.Status != StatusLoading || !m.engineLoaded {
			zlog.Debug().Msg("player: discarding stale readiness")
			return
		}
		m.disarmTimeout()
		if err := m.engine.Play(); err != nil {
			m.setState(State{Status: StatusError, Entry: m.state.Entry, Err: err})
			return
		}
		m.setState(State{Status: StatusPlaying, Entry: m.state.Entry})

	case engine.EventPositionTick:
		if m.state.Status == StatusPlaying || m.state.Status == StatusPaused {
			s := m.state
			s.Position = ev.Pos
			m.setState(s)
		}

	case engine.EventEndOfStream:
		if m.state.Status != StatusPlaying && m.state.Status != StatusPaused {
			return
		}
		if next, ok := m.queue.Advance(); ok {
			m.beginLoading(ctx, next)
		} else {
			m.stopToIdle()
		}

	case engine.EventError:
		if m.state.Status == StatusIdle {
			return
		}
		// An error arriving before this generation issued its Load can
		// only belong to a superseded load.
		if m.state.Status == StatusLoading && !m.engineLoaded {
			zlog.Debug().Err(ev.Err).Msg("player: discarding stale engine error")
			return
		}
		m.disarmTimeout()
		m.engine.Stop()
		// Queue cursor stays put so retry can re-issue the same entry.
		m.setState(State{Status: StatusError, Entry: m.state.Entry, Position: m.state.Position, Err: ev.Err})

	case engine.EventBuffering:
		zlog.Debug().Int("pct", ev.Pct).Msg("player: buffering")
	}
}

func (m *Machine) handleLoadTimeout() {
	m.timeoutTimer = nil
	m.timeoutC = nil
	if m.state.Status != StatusLoading {
		return
	}
	m.gen++ // Invalidate the pending resolution
	m.engine.Stop()
	m.setState(State{Status: StatusError, Entry: m.state.Entry, Err: ErrLoadTimeout})
}

func (m *Machine) pause() {
	if err := m.engine.Pause(); err != nil {
		zlog.Warn().Err(err).Msg("player: pause failed")
		return
	}
	s := m.state
	s.Status = StatusPaused
	m.setState(s)
}

func (m *Machine) resume() {
	if err := m.engine.Play(); err != nil {
		zlog.Warn().Err(err).Msg("player: resume failed")
		return
	}
	s := m.state
	s.Status = StatusPlaying
	m.setState(s)
}

func (m *Machine) retry(ctx context.Context) {
	if cur, ok := m.queue.Current(); ok {
		m.beginLoading(ctx, cur)
	} else {
		m.stopToIdle()
	}
}

func (m *Machine) stopToIdle() {
	m.gen++
	m.disarmTimeout()
	m.engine.Stop()
	m.setState(State{Status: StatusIdle})
}

func (m *Machine) armTimeout() {
	m.disarmTimeout()
	m.timeoutTimer = time.NewTimer(m.cfg.LoadingTimeout)
	m.timeoutC = m.timeoutTimer.C
}

func (m *Machine) disarmTimeout() {
	if m.timeoutTimer != nil {
		m.timeoutTimer.Stop()
		m.timeoutTimer = nil
	}
	m.timeoutC = nil
}

func (m *Machine) setState(s State) {
	m.state = s
	m.publish()
}

// publish recomputes capabilities and broadcasts a snapshot to all
// subscribers without blocking.
func (m *Machine) publish() {
	s := m.state
	s.CanNext = m.queue.CanAdvance()
	s.CanPrev = m.queue.CanRetreat()
	m.state = s
	m.notifier.Broadcast(s)
}
