package player

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/camper/internal/app/engine"
	"github.com/osa030/camper/internal/app/queue"
	"github.com/osa030/camper/internal/domain/catalog"
)

// fakeEngine records calls and lets tests inject backend events.
type fakeEngine struct {
	mu     sync.Mutex
	events chan engine.Event
	loads  []string
	plays  int
	pauses int
	stops  int
	seeks  []time.Duration
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: make(chan engine.Event, 16)}
}

func (f *fakeEngine) Load(uri string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, uri)
}

func (f *fakeEngine) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return nil
}

func (f *fakeEngine) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return nil
}

func (f *fakeEngine) Seek(pos time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, pos)
	return nil
}

func (f *fakeEngine) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeEngine) SetVolume(float64) {}

func (f *fakeEngine) Events() <-chan engine.Event { return f.events }

func (f *fakeEngine) Close() {}

func (f *fakeEngine) emit(ev engine.Event) { f.events <- ev }

func (f *fakeEngine) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loads)
}

func (f *fakeEngine) counts() (loads, plays, pauses, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loads), f.plays, f.pauses, f.stops
}

// autoResolver resolves immediately with a URL unique per call, so tests
// can tell a fresh resolution from a reused one.
type autoResolver struct {
	mu    sync.Mutex
	calls int
}

func (r *autoResolver) ResolveStreamURL(_ context.Context, albumURL string, trackNum int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return fmt.Sprintf("%s/stream/%d?n=%d", albumURL, trackNum, r.calls), nil
}

func (r *autoResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// gateResolver blocks each resolution until the test releases it.
type gateResolver struct {
	mu      sync.Mutex
	pending []chan struct{}
	started chan struct{}
	calls   int
}

func newGateResolver() *gateResolver {
	return &gateResolver{started: make(chan struct{}, 16)}
}

func (r *gateResolver) ResolveStreamURL(ctx context.Context, albumURL string, trackNum int) (string, error) {
	r.mu.Lock()
	r.calls++
	n := r.calls
	release := make(chan struct{})
	r.pending = append(r.pending, release)
	r.mu.Unlock()

	r.started <- struct{}{}
	select {
	case <-release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return fmt.Sprintf("%s/stream/%d?n=%d", albumURL, trackNum, n), nil
}

func (r *gateResolver) release(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	close(r.pending[i])
}

func (r *gateResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func mkEntries(n int) []queue.Entry {
	entries := make([]queue.Entry, 0, n)
	for i := 0; i < n; i++ {
		url := fmt.Sprintf("https://band.bandcamp.com/album/a%d", i)
		entries = append(entries, queue.NewEntry(
			catalog.Track{Title: fmt.Sprintf("track-%d", i), AlbumURL: url, TrackNum: i + 1},
			catalog.Origin{View: "album", AlbumURL: url},
		))
	}
	return entries
}

type fixture struct {
	eng    *fakeEngine
	m      *Machine
	states <-chan State
	cancel context.CancelFunc
}

func newFixture(t *testing.T, resolver StreamResolver, cfg Config) *fixture {
	t.Helper()
	eng := newFakeEngine()
	m := NewMachine(eng, queue.New(), resolver, cfg)
	_, states := m.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	t.Cleanup(cancel)
	return &fixture{eng: eng, m: m, states: states, cancel: cancel}
}

// waitState consumes states until pred matches or the deadline passes.
func waitState(t *testing.T, states <-chan State, what string, pred func(State) bool) State {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-states:
			if pred(s) {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state: %s", what)
			return State{}
		}
	}
}

// waitUntil polls cond until true or the deadline passes.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", what)
}

func TestMachine_PlayToPlaying(t *testing.T) {
	f := newFixture(t, &autoResolver{}, Config{})

	f.m.PlayEntries(mkEntries(2), 0)
	waitState(t, f.states, "loading", func(s State) bool { return s.Status == StatusLoading })
	waitUntil(t, "engine load", func() bool { return f.eng.loadCount() == 1 })

	f.eng.emit(engine.Event{Type: engine.EventReady})
	s := waitState(t, f.states, "playing", func(s State) bool { return s.Status == StatusPlaying })

	require.NotNil(t, s.Entry)
	assert.Equal(t, "track-0", s.Entry.Track.Title)
	assert.True(t, s.CanNext)
	assert.False(t, s.CanPrev)

	_, plays, _, _ := f.eng.counts()
	assert.Equal(t, 1, plays)
}

func TestMachine_StaleLoadDiscarded(t *testing.T) {
	resolver := newGateResolver()
	f := newFixture(t, resolver, Config{})

	// Start A, then request B before A's resolution completes.
	f.m.PlayEntries(mkEntries(2), 0)
	<-resolver.started
	f.m.PlayAt(1)
	<-resolver.started

	// A's late resolution must be discarded: no engine load for it.
	resolver.release(0)
	resolver.release(1)

	waitUntil(t, "engine load for B", func() bool { return f.eng.loadCount() > 0 })
	f.eng.emit(engine.Event{Type: engine.EventReady})
	s := waitState(t, f.states, "playing B", func(s State) bool { return s.Status == StatusPlaying })

	require.NotNil(t, s.Entry)
	assert.Equal(t, "track-1", s.Entry.Track.Title)

	f.eng.mu.Lock()
	defer f.eng.mu.Unlock()
	require.Len(t, f.eng.loads, 1, "exactly one load: the stale resolution is dropped")
	assert.Contains(t, f.eng.loads[0], "album/a1", "the load belongs to B")
}

func TestMachine_StaleEngineErrorDiscarded(t *testing.T) {
	resolver := newGateResolver()
	f := newFixture(t, resolver, Config{})

	// Start A and let its load reach the engine.
	f.m.PlayEntries(mkEntries(2), 0)
	<-resolver.started
	resolver.release(0)
	waitUntil(t, "load for A", func() bool { return f.eng.loadCount() == 1 })

	// Request B; while its resolution is still pending, A's load fails.
	f.m.PlayAt(1)
	<-resolver.started
	f.eng.emit(engine.Event{Type: engine.EventError, Err: fmt.Errorf("stream failed to load")})

	// A's late failure must not knock the machine out of Loading for B.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StatusLoading, f.m.Snapshot().Status)

	resolver.release(1)
	waitUntil(t, "load for B", func() bool { return f.eng.loadCount() == 2 })
	f.eng.emit(engine.Event{Type: engine.EventReady})
	s := waitState(t, f.states, "playing B", func(s State) bool { return s.Status == StatusPlaying })
	require.NotNil(t, s.Entry)
	assert.Equal(t, "track-1", s.Entry.Track.Title)
}

func TestMachine_EndOfStreamAdvances(t *testing.T) {
	f := newFixture(t, &autoResolver{}, Config{})

	f.m.PlayEntries(mkEntries(2), 0)
	waitUntil(t, "first load", func() bool { return f.eng.loadCount() == 1 })
	f.eng.emit(engine.Event{Type: engine.EventReady})
	waitState(t, f.states, "playing first", func(s State) bool { return s.Status == StatusPlaying })

	f.eng.emit(engine.Event{Type: engine.EventEndOfStream})
	s := waitState(t, f.states, "loading next", func(s State) bool { return s.Status == StatusLoading })
	require.NotNil(t, s.Entry)
	assert.Equal(t, "track-1", s.Entry.Track.Title, "advances exactly one entry")

	waitUntil(t, "second load", func() bool { return f.eng.loadCount() == 2 })
	f.eng.emit(engine.Event{Type: engine.EventReady})
	waitState(t, f.states, "playing second", func(s State) bool { return s.Status == StatusPlaying })

	// End of the last entry stops playback instead of wrapping.
	f.eng.emit(engine.Event{Type: engine.EventEndOfStream})
	s = waitState(t, f.states, "idle", func(s State) bool { return s.Status == StatusIdle })
	assert.Nil(t, s.Entry)
	assert.Equal(t, 2, f.eng.loadCount(), "no further load after the last entry")
}

func TestMachine_NextOnEmptyQueue(t *testing.T) {
	f := newFixture(t, &autoResolver{}, Config{})
	waitState(t, f.states, "initial idle", func(s State) bool { return s.Status == StatusIdle })

	f.m.Next()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StatusIdle, f.m.Snapshot().Status)
	loads, plays, pauses, stops := f.eng.counts()
	assert.Zero(t, loads)
	assert.Zero(t, plays)
	assert.Zero(t, pauses)
	assert.Zero(t, stops)
}

func TestMachine_SeekReflectsAfterTick(t *testing.T) {
	f := newFixture(t, &autoResolver{}, Config{})

	f.m.PlayEntries(mkEntries(1), 0)
	waitUntil(t, "load", func() bool { return f.eng.loadCount() == 1 })
	f.eng.emit(engine.Event{Type: engine.EventReady})
	waitState(t, f.states, "playing", func(s State) bool { return s.Status == StatusPlaying })

	f.m.Seek(90 * time.Second)
	waitUntil(t, "engine seek", func() bool {
		f.eng.mu.Lock()
		defer f.eng.mu.Unlock()
		return len(f.eng.seeks) == 1
	})
	assert.Equal(t, time.Duration(0), f.m.Snapshot().Position,
		"position updates only on the engine's tick, not on the command")

	f.eng.emit(engine.Event{Type: engine.EventPositionTick, Pos: 90 * time.Second})
	s := waitState(t, f.states, "position 90s", func(s State) bool { return s.Position == 90*time.Second })
	assert.Equal(t, StatusPlaying, s.Status)
}

func TestMachine_SeekIgnoredWhileIdle(t *testing.T) {
	f := newFixture(t, &autoResolver{}, Config{})
	waitState(t, f.states, "initial idle", func(s State) bool { return s.Status == StatusIdle })

	f.m.Seek(30 * time.Second)

	time.Sleep(100 * time.Millisecond)
	f.eng.mu.Lock()
	defer f.eng.mu.Unlock()
	assert.Empty(t, f.eng.seeks)
}

func TestMachine_LoadTimeoutThenRetry(t *testing.T) {
	resolver := newGateResolver()
	f := newFixture(t, resolver, Config{LoadingTimeout: 50 * time.Millisecond})

	f.m.PlayEntries(mkEntries(1), 0)
	<-resolver.started

	s := waitState(t, f.states, "timeout error", func(s State) bool { return s.Status == StatusError })
	assert.ErrorIs(t, s.Err, ErrLoadTimeout)
	require.NotNil(t, s.Entry)
	assert.Equal(t, "track-0", s.Entry.Track.Title, "queue cursor stays on the failed entry")

	// The first resolution completing after the timeout must be ignored.
	resolver.release(0)

	f.m.Retry()
	waitState(t, f.states, "loading again", func(s State) bool { return s.Status == StatusLoading })
	<-resolver.started
	resolver.release(1)

	waitUntil(t, "load with fresh url", func() bool { return f.eng.loadCount() == 1 })
	f.eng.mu.Lock()
	assert.Contains(t, f.eng.loads[0], "n=2", "retry re-resolves instead of reusing the stale url")
	f.eng.mu.Unlock()

	assert.Equal(t, 2, resolver.callCount())
}

func TestMachine_EngineErrorKeepsEntryForRetry(t *testing.T) {
	resolver := &autoResolver{}
	f := newFixture(t, resolver, Config{})

	f.m.PlayEntries(mkEntries(2), 0)
	waitUntil(t, "load", func() bool { return f.eng.loadCount() == 1 })
	f.eng.emit(engine.Event{Type: engine.EventReady})
	waitState(t, f.states, "playing", func(s State) bool { return s.Status == StatusPlaying })

	cause := fmt.Errorf("decode failed")
	f.eng.emit(engine.Event{Type: engine.EventError, Err: cause})
	s := waitState(t, f.states, "error", func(s State) bool { return s.Status == StatusError })
	assert.Equal(t, cause, s.Err)
	require.NotNil(t, s.Entry)
	assert.Equal(t, "track-0", s.Entry.Track.Title)

	_, _, _, stops := f.eng.counts()
	assert.Equal(t, 1, stops, "engine is stopped but stays usable")

	f.m.Retry()
	waitState(t, f.states, "loading after retry", func(s State) bool { return s.Status == StatusLoading })
	waitUntil(t, "reload", func() bool { return f.eng.loadCount() == 2 })
	assert.Equal(t, 2, resolver.callCount(), "retry resolved a fresh stream url")
}

func TestMachine_PauseResume(t *testing.T) {
	f := newFixture(t, &autoResolver{}, Config{})

	f.m.PlayEntries(mkEntries(1), 0)
	waitUntil(t, "load", func() bool { return f.eng.loadCount() == 1 })
	f.eng.emit(engine.Event{Type: engine.EventReady})
	waitState(t, f.states, "playing", func(s State) bool { return s.Status == StatusPlaying })

	f.m.Pause()
	waitState(t, f.states, "paused", func(s State) bool { return s.Status == StatusPaused })

	f.m.Resume()
	waitState(t, f.states, "playing again", func(s State) bool { return s.Status == StatusPlaying })

	_, plays, pauses, _ := f.eng.counts()
	assert.Equal(t, 2, plays)
	assert.Equal(t, 1, pauses)
}

func TestMachine_PreviousFromSecondEntry(t *testing.T) {
	f := newFixture(t, &autoResolver{}, Config{})

	f.m.PlayEntries(mkEntries(2), 1)
	waitUntil(t, "load", func() bool { return f.eng.loadCount() == 1 })
	f.eng.emit(engine.Event{Type: engine.EventReady})
	waitState(t, f.states, "playing second", func(s State) bool { return s.Status == StatusPlaying })

	f.m.Previous()
	s := waitState(t, f.states, "loading first", func(s State) bool { return s.Status == StatusLoading })
	require.NotNil(t, s.Entry)
	assert.Equal(t, "track-0", s.Entry.Track.Title)
	assert.False(t, s.CanPrev)
	assert.True(t, s.CanNext)
}

func TestMachine_RemoveCurrentEntry(t *testing.T) {
	f := newFixture(t, &autoResolver{}, Config{})

	f.m.PlayEntries(mkEntries(2), 0)
	waitUntil(t, "load", func() bool { return f.eng.loadCount() == 1 })
	f.eng.emit(engine.Event{Type: engine.EventReady})
	waitState(t, f.states, "playing", func(s State) bool { return s.Status == StatusPlaying })

	// Removing the playing entry forces a transition to the next one.
	f.m.RemoveAt(0)
	s := waitState(t, f.states, "loading replacement", func(s State) bool { return s.Status == StatusLoading })
	require.NotNil(t, s.Entry)
	assert.Equal(t, "track-1", s.Entry.Track.Title)

	waitUntil(t, "reload", func() bool { return f.eng.loadCount() == 2 })
	f.eng.emit(engine.Event{Type: engine.EventReady})
	waitState(t, f.states, "playing replacement", func(s State) bool { return s.Status == StatusPlaying })

	// Removing the last remaining entry stops playback.
	f.m.RemoveAt(0)
	s = waitState(t, f.states, "idle", func(s State) bool { return s.Status == StatusIdle })
	assert.Nil(t, s.Entry)
}

func TestMachine_ResolveErrorBecomesErrorState(t *testing.T) {
	resolver := &failingResolver{err: fmt.Errorf("stream gone")}
	f := newFixture(t, resolver, Config{})

	f.m.PlayEntries(mkEntries(1), 0)
	s := waitState(t, f.states, "error", func(s State) bool { return s.Status == StatusError })
	assert.ErrorContains(t, s.Err, "stream gone")
	assert.Zero(t, f.eng.loadCount(), "no engine load when resolution fails")
}

type failingResolver struct{ err error }

func (r *failingResolver) ResolveStreamURL(context.Context, string, int) (string, error) {
	return "", r.err
}
