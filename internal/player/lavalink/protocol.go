package lavalink

import (
	"encoding/json"
	"time"

	"github.com/nadzzz/interlude/internal/player"
)

// Websocket ops sent by a Lavalink v4 node.
const (
	opReady        = "ready"
	opPlayerUpdate = "playerUpdate"
	opStats        = "stats"
	opEvent        = "event"
)

// Event types carried by the "event" op.
const (
	eventTrackStart      = "TrackStartEvent"
	eventTrackEnd        = "TrackEndEvent"
	eventTrackException  = "TrackExceptionEvent"
	eventTrackStuck      = "TrackStuckEvent"
	eventWebSocketClosed = "WebSocketClosedEvent"
)

// Load result types returned by /v4/loadtracks.
const (
	loadTrack    = "track"
	loadPlaylist = "playlist"
	loadSearch   = "search"
	loadEmpty    = "empty"
	loadError    = "error"
)

// inbound is the union of every websocket message; fields are populated
// depending on Op and Type.
type inbound struct {
	Op        string `json:"op"`
	SessionID string `json:"sessionId"`
	Resumed   bool   `json:"resumed"`
	GuildID   string `json:"guildId"`

	State *playerState `json:"state"`

	Type        string     `json:"type"`
	Track       *apiTrack  `json:"track"`
	Reason      string     `json:"reason"`
	Exception   *exception `json:"exception"`
	ThresholdMs int64      `json:"thresholdMs"`
	Code        int        `json:"code"`
	ByRemote    bool       `json:"byRemote"`
}

type playerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int64 `json:"ping"`
}

type exception struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

type apiTrack struct {
	Encoded string    `json:"encoded"`
	Info    trackInfo `json:"info"`
}

type trackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	SourceName string `json:"sourceName"`
}

func (t apiTrack) toTrack() player.Track {
	return player.Track{
		Encoded:    t.Encoded,
		Identifier: t.Info.Identifier,
		URI:        t.Info.URI,
		Title:      t.Info.Title,
		Length:     time.Duration(t.Info.Length) * time.Millisecond,
	}
}

type loadResult struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type playlistData struct {
	Tracks []apiTrack `json:"tracks"`
}

// playerUpdate is the PATCH body for /v4/sessions/{session}/players/{guild}.
// Nil fields are left untouched by the node.
type playerUpdate struct {
	Track    *trackUpdate `json:"track,omitempty"`
	Position *int64       `json:"position,omitempty"`
	Paused   *bool        `json:"paused,omitempty"`
	Voice    *voiceState  `json:"voice,omitempty"`
}

// trackUpdate with a nil Encoded stops the player.
type trackUpdate struct {
	Encoded *string `json:"encoded"`
}

type voiceState struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

type apiError struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// playTrack also unpauses: the node keeps its paused flag across track
// changes.
func playTrack(t player.Track) playerUpdate {
	encoded := t.Encoded
	paused := false
	return playerUpdate{Track: &trackUpdate{Encoded: &encoded}, Paused: &paused}
}

func stopTrack() playerUpdate {
	return playerUpdate{Track: &trackUpdate{}}
}

func seekTo(d time.Duration) playerUpdate {
	ms := d.Milliseconds()
	return playerUpdate{Position: &ms}
}

func setPaused(paused bool) playerUpdate {
	return playerUpdate{Paused: &paused}
}
