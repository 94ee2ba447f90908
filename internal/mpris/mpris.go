// Package mpris exports the published PlayerState on the desktop media
// control bus (org.mpris.MediaPlayer2) and forwards inbound transport
// calls to the controller.
package mpris

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"wavebridge/internal/core"
)

const (
	objectPath  = "/org/mpris/MediaPlayer2"
	rootIface   = "org.mpris.MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"

	callTimeout = 5 * time.Second
)

// Player is the slice of the controller the exporter drives.
type Player interface {
	Status() core.PlayerState
	Play(ctx context.Context) (core.PlayerState, error)
	Pause(ctx context.Context) (core.PlayerState, error)
	PlayPause(ctx context.Context) (core.PlayerState, error)
	Next(ctx context.Context) (core.PlayerState, error)
	Previous(ctx context.Context) (core.PlayerState, error)
	SeekBy(ctx context.Context, deltaMs int64) (core.PlayerState, error)
	SeekTo(ctx context.Context, positionMs int64) (core.PlayerState, error)
	SetVolume(ctx context.Context, volume float64) (core.PlayerState, error)
}

// Exporter owns the bus name and keeps the exported properties in sync
// with the state store.
type Exporter struct {
	name  string
	ctrl  Player
	store *core.Store
	log   *log.Logger

	conn  *dbus.Conn
	props *prop.Properties
	done  chan struct{}

	lastTrackID string
	lastStatus  core.Status
	lastPosMs   int64
}

// NewExporter creates an exporter claiming org.mpris.MediaPlayer2.<name>.
func NewExporter(name string, ctrl Player, store *core.Store, logger *log.Logger) *Exporter {
	return &Exporter{
		name:  name,
		ctrl:  ctrl,
		store: store,
		log:   logger.With("component", "mpris"),
		done:  make(chan struct{}),
	}
}

// Start connects to the session bus, exports both MPRIS interfaces and
// begins mirroring store updates onto the bus.
func (e *Exporter) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}
	e.conn = conn

	if err := conn.Export(&rootObject{e}, objectPath, rootIface); err != nil {
		return fmt.Errorf("export root interface: %w", err)
	}
	if err := conn.Export(&playerObject{e}, objectPath, playerIface); err != nil {
		return fmt.Errorf("export player interface: %w", err)
	}

	props, err := prop.Export(conn, objectPath, e.propSpec())
	if err != nil {
		return fmt.Errorf("export properties: %w", err)
	}
	e.props = props

	node := &introspect.Node{
		Name: objectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{Name: rootIface},
			{Name: playerIface},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), objectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("export introspection: %w", err)
	}

	busName := rootIface + "." + e.name
	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", busName)
	}

	e.log.Info("media controls exported", "bus_name", busName)
	go e.watch()
	return nil
}

// Close releases the bus name and disconnects.
func (e *Exporter) Close() error {
	close(e.done)
	if e.conn == nil {
		return nil
	}
	_, _ = e.conn.ReleaseName(rootIface + "." + e.name)
	return e.conn.Close()
}

// watch mirrors store publishes onto the bus. Property signals are only
// emitted for status, metadata and volume changes; position updates are
// written silently and a large position jump raises Seeked.
func (e *Exporter) watch() {
	updates := e.store.Watch()
	for {
		select {
		case <-e.done:
			return
		case <-updates:
		}
		e.apply(e.store.Load())
	}
}

func (e *Exporter) apply(st core.PlayerState) {
	posUs := microseconds(st.PositionMs)
	e.props.SetMust(playerIface, "Position", posUs)

	if status := playbackStatus(st.Status); st.Status != e.lastStatus {
		e.lastStatus = st.Status
		e.props.SetMust(playerIface, "PlaybackStatus", status)
	}
	if st.Volume >= 0 {
		e.props.SetMust(playerIface, "Volume", st.Volume)
	}

	trackID := ""
	if st.HasTrack() {
		trackID = st.Track.ID
	}
	if trackID != e.lastTrackID {
		e.lastTrackID = trackID
		e.props.SetMust(playerIface, "Metadata", metadataFor(e.name, st.Track))
		e.lastPosMs = st.PositionMs
		return
	}

	// Within one track, a jump larger than two poll-ish seconds means a
	// seek happened; the bus contract asks for an explicit signal.
	if delta := st.PositionMs - e.lastPosMs; delta < -2000 || delta > 4000 {
		if err := e.conn.Emit(objectPath, playerIface+".Seeked", posUs); err != nil {
			e.log.Debug("emit Seeked", "err", err)
		}
	}
	e.lastPosMs = st.PositionMs
}

func (e *Exporter) propSpec() map[string]map[string]*prop.Prop {
	st := e.store.Load()
	return map[string]map[string]*prop.Prop{
		rootIface: {
			"CanQuit":             {Value: false, Emit: prop.EmitFalse},
			"CanRaise":            {Value: false, Emit: prop.EmitFalse},
			"HasTrackList":        {Value: false, Emit: prop.EmitFalse},
			"Identity":            {Value: e.name, Emit: prop.EmitFalse},
			"SupportedUriSchemes": {Value: []string{}, Emit: prop.EmitFalse},
			"SupportedMimeTypes":  {Value: []string{}, Emit: prop.EmitFalse},
		},
		playerIface: {
			"PlaybackStatus": {Value: playbackStatus(st.Status), Emit: prop.EmitTrue},
			"LoopStatus":     {Value: "None", Emit: prop.EmitFalse},
			"Rate":           {Value: 1.0, Emit: prop.EmitFalse},
			"Shuffle":        {Value: false, Emit: prop.EmitFalse},
			"Metadata":       {Value: metadataFor(e.name, st.Track), Emit: prop.EmitTrue},
			"Volume":         {Value: 1.0, Writable: true, Emit: prop.EmitTrue, Callback: e.onVolume},
			"Position":       {Value: microseconds(st.PositionMs), Emit: prop.EmitFalse},
			"MinimumRate":    {Value: 1.0, Emit: prop.EmitFalse},
			"MaximumRate":    {Value: 1.0, Emit: prop.EmitFalse},
			"CanGoNext":      {Value: true, Emit: prop.EmitFalse},
			"CanGoPrevious":  {Value: true, Emit: prop.EmitFalse},
			"CanPlay":        {Value: true, Emit: prop.EmitFalse},
			"CanPause":       {Value: true, Emit: prop.EmitFalse},
			"CanSeek":        {Value: true, Emit: prop.EmitFalse},
			"CanControl":     {Value: true, Emit: prop.EmitFalse},
		},
	}
}

func (e *Exporter) onVolume(c *prop.Change) *dbus.Error {
	volume, ok := c.Value.(float64)
	if !ok {
		return prop.ErrInvalidArg
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if _, err := e.ctrl.SetVolume(ctx, volume); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// call runs a controller command with a bounded timeout and maps its
// error onto the bus.
func (e *Exporter) call(fn func(ctx context.Context) (core.PlayerState, error)) *dbus.Error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if _, err := fn(ctx); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// rootObject implements org.mpris.MediaPlayer2. The daemon has no window
// to raise and is not quittable from the bus.
type rootObject struct{ e *Exporter }

func (r *rootObject) Raise() *dbus.Error { return nil }
func (r *rootObject) Quit() *dbus.Error  { return nil }

// playerObject implements org.mpris.MediaPlayer2.Player.
type playerObject struct{ e *Exporter }

func (p *playerObject) Play() *dbus.Error      { return p.e.call(p.e.ctrl.Play) }
func (p *playerObject) Pause() *dbus.Error     { return p.e.call(p.e.ctrl.Pause) }
func (p *playerObject) PlayPause() *dbus.Error { return p.e.call(p.e.ctrl.PlayPause) }
func (p *playerObject) Next() *dbus.Error      { return p.e.call(p.e.ctrl.Next) }
func (p *playerObject) Previous() *dbus.Error  { return p.e.call(p.e.ctrl.Previous) }

func (p *playerObject) Stop() *dbus.Error {
	return p.e.call(p.e.ctrl.Pause)
}

// Seek takes a relative offset in microseconds.
func (p *playerObject) Seek(offsetUs int64) *dbus.Error {
	return p.e.call(func(ctx context.Context) (core.PlayerState, error) {
		return p.e.ctrl.SeekBy(ctx, offsetUs/1000)
	})
}

// SetPosition takes an absolute position in microseconds for a track.
func (p *playerObject) SetPosition(trackID dbus.ObjectPath, positionUs int64) *dbus.Error {
	return p.e.call(func(ctx context.Context) (core.PlayerState, error) {
		return p.e.ctrl.SeekTo(ctx, positionUs/1000)
	})
}

func (p *playerObject) OpenUri(uri string) *dbus.Error {
	return nil // remote queue only, external URIs are not playable
}

// microseconds converts the store's millisecond positions to the bus's
// microsecond unit.
func microseconds(ms int64) int64 {
	return ms * 1000
}

func playbackStatus(s core.Status) string {
	switch s {
	case core.StatusPlaying:
		return "Playing"
	case core.StatusPaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

// metadataFor builds the bus metadata map for a track. A nil track
// yields a map with only a trackid, which players treat as "nothing
// loaded".
func metadataFor(name string, t *core.Track) map[string]dbus.Variant {
	if t == nil || t.ID == "" {
		return map[string]dbus.Variant{
			"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath("/org/mpris/MediaPlayer2/" + name + "/NoTrack")),
		}
	}

	trackPath := dbus.ObjectPath("/org/mpris/MediaPlayer2/" + name + "/track/" + sanitizeID(t.ID))
	meta := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(trackPath),
		"mpris:length":  dbus.MakeVariant(microseconds(t.DurationMs)),
		"xesam:title":   dbus.MakeVariant(t.Title),
		"xesam:artist":  dbus.MakeVariant(t.Artists),
		"xesam:album":   dbus.MakeVariant(t.Album),
	}
	if t.ArtURL != "" {
		meta["mpris:artUrl"] = dbus.MakeVariant(t.ArtURL)
	}
	return meta
}

// sanitizeID makes a track identifier usable inside an object path,
// which only allows [A-Za-z0-9_].
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, id)
}
