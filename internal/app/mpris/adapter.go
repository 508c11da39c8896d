// Package mpris exports the player state on the org.mpris.MediaPlayer2
// D-Bus surface and relays OS media commands back into the player.
package mpris

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/camper/internal/app/player"
)

const (
	busName     = "org.mpris.MediaPlayer2.camper"
	objectPath  = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	rootIface   = "org.mpris.MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"
)

// Adapter owns the D-Bus connection and the exported properties. It holds
// no playback state of its own: outbound it mirrors player snapshots,
// inbound it translates method calls into player commands.
type Adapter struct {
	conn    *dbus.Conn
	props   *prop.Properties
	machine *player.Machine
}

// New connects to the session bus and claims the MPRIS name.
func New(machine *player.Machine) (*Adapter, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to session bus")
	}

	a := &Adapter{conn: conn, machine: machine}
	if err := a.export(); err != nil {
		conn.Close()
		return nil, err
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagReplaceExisting)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to request bus name")
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, errors.Newf("bus name %s already owned", busName)
	}
	return a, nil
}

func (a *Adapter) export() error {
	root := &rootHandler{}
	ph := &playerHandler{machine: a.machine}

	if err := a.conn.Export(root, objectPath, rootIface); err != nil {
		return errors.Wrap(err, "failed to export root interface")
	}
	if err := a.conn.Export(ph, objectPath, playerIface); err != nil {
		return errors.Wrap(err, "failed to export player interface")
	}

	props, err := prop.Export(a.conn, objectPath, a.propSpec())
	if err != nil {
		return errors.Wrap(err, "failed to export properties")
	}
	a.props = props
	return nil
}

func (a *Adapter) propSpec() map[string]map[string]*prop.Prop {
	fixed := func(v any) *prop.Prop {
		return &prop.Prop{Value: v, Writable: false, Emit: prop.EmitTrue}
	}
	return map[string]map[string]*prop.Prop{
		rootIface: {
			"Identity":            fixed("Camper"),
			"DesktopEntry":        fixed("camper"),
			"CanQuit":             fixed(false),
			"CanRaise":            fixed(false),
			"HasTrackList":        fixed(false),
			"SupportedUriSchemes": fixed([]string{}),
			"SupportedMimeTypes":  fixed([]string{}),
		},
		playerIface: {
			"PlaybackStatus": fixed("Stopped"),
			"Rate":           fixed(1.0),
			"MinimumRate":    fixed(1.0),
			"MaximumRate":    fixed(1.0),
			"Volume":         fixed(1.0),
			"Metadata":       fixed(map[string]dbus.Variant{}),
			"Position": {
				Value: int64(0), Writable: false, Emit: prop.EmitFalse,
			},
			"CanGoNext":     fixed(false),
			"CanGoPrevious": fixed(false),
			"CanPlay":       fixed(true),
			"CanPause":      fixed(true),
			"CanSeek":       fixed(true),
			"CanControl":    fixed(true),
		},
	}
}

// Run mirrors player state changes onto the bus until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context) {
	id, states := a.machine.Subscribe()
	defer a.machine.Unsubscribe(id)

	a.apply(a.machine.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-states:
			a.apply(s)
		}
	}
}

func (a *Adapter) apply(s player.State) {
	a.props.SetMust(playerIface, "PlaybackStatus", playbackStatus(s.Status))
	a.props.SetMust(playerIface, "Position", int64(s.Position/time.Microsecond))
	a.props.SetMust(playerIface, "CanGoNext", s.CanNext)
	a.props.SetMust(playerIface, "CanGoPrevious", s.CanPrev)
	a.props.SetMust(playerIface, "Metadata", metadataFor(s))
}

// Close releases the bus name and the connection.
func (a *Adapter) Close() {
	if _, err := a.conn.ReleaseName(busName); err != nil {
		zlog.Debug().Err(err).Msg("mpris: failed to release bus name")
	}
	if err := a.conn.Close(); err != nil {
		zlog.Debug().Err(err).Msg("mpris: failed to close connection")
	}
}

func playbackStatus(s player.Status) string {
	switch s {
	case player.StatusPlaying, player.StatusLoading:
		return "Playing"
	case player.StatusPaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

func metadataFor(s player.State) map[string]dbus.Variant {
	meta := map[string]dbus.Variant{}
	if s.Entry == nil {
		meta["mpris:trackid"] = dbus.MakeVariant(dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack"))
		return meta
	}

	t := s.Entry.Track
	meta["mpris:trackid"] = dbus.MakeVariant(trackObjectPath(s.Entry.ID))
	meta["xesam:title"] = dbus.MakeVariant(t.Title)
	meta["xesam:artist"] = dbus.MakeVariant([]string{t.Artist})
	meta["xesam:album"] = dbus.MakeVariant(t.Album)
	meta["xesam:url"] = dbus.MakeVariant(t.AlbumURL)
	if t.ArtURL != "" {
		meta["mpris:artUrl"] = dbus.MakeVariant(t.ArtURL)
	}
	if t.Duration != nil {
		meta["mpris:length"] = dbus.MakeVariant(int64(*t.Duration / time.Microsecond))
	}
	return meta
}

// trackObjectPath turns a queue entry ID into a valid D-Bus object path.
func trackObjectPath(id string) dbus.ObjectPath {
	return dbus.ObjectPath("/org/camper/track/" + strings.ReplaceAll(id, "-", "_"))
}

// rootHandler implements the org.mpris.MediaPlayer2 methods.
type rootHandler struct{}

func (h *rootHandler) Raise() *dbus.Error { return nil }
func (h *rootHandler) Quit() *dbus.Error  { return nil }

// playerHandler implements the org.mpris.MediaPlayer2.Player methods by
// forwarding to the machine's command vocabulary.
type playerHandler struct {
	machine *player.Machine
}

func (h *playerHandler) Next() *dbus.Error {
	h.machine.Next()
	return nil
}

func (h *playerHandler) Previous() *dbus.Error {
	h.machine.Previous()
	return nil
}

func (h *playerHandler) Pause() *dbus.Error {
	h.machine.Pause()
	return nil
}

func (h *playerHandler) PlayPause() *dbus.Error {
	h.machine.PlayPause()
	return nil
}

func (h *playerHandler) Play() *dbus.Error {
	switch h.machine.Snapshot().Status {
	case player.StatusPlaying:
		// Already playing.
	case player.StatusPaused:
		h.machine.Resume()
	default:
		h.machine.PlayPause()
	}
	return nil
}

func (h *playerHandler) Stop() *dbus.Error {
	h.machine.Stop()
	return nil
}

// Seek receives a relative offset in microseconds.
func (h *playerHandler) Seek(offset int64) *dbus.Error {
	s := h.machine.Snapshot()
	target := s.Position + time.Duration(offset)*time.Microsecond
	if target < 0 {
		target = 0
	}
	h.machine.Seek(target)
	return nil
}

// SetPosition receives an absolute position in microseconds.
func (h *playerHandler) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error {
	h.machine.Seek(time.Duration(position) * time.Microsecond)
	return nil
}

func (h *playerHandler) OpenUri(uri string) *dbus.Error {
	// Not supported: the catalog client is the only track source.
	return nil
}
