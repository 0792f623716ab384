// Package player defines the playback data shared between the Lavalink
// client and the components that drive it.
//
// A player belongs to exactly one guild. It owns the queue, the current
// track pointer and the playback position, and reports lifecycle changes as
// Events in the order the audio node emits them.
package player

import "time"

// Track is a playable item known to the audio node.
type Track struct {
	// Encoded is the node's opaque representation, sent back when playing.
	Encoded string `json:"encoded"`

	// Identifier uniquely names the track on the node. Two tracks are the
	// same track when their identifiers match.
	Identifier string `json:"identifier"`

	// URI is where the node loaded the track from (file path or URL).
	URI string `json:"uri,omitempty"`

	Title  string        `json:"title,omitempty"`
	Length time.Duration `json:"length,omitempty"`
}

// Same reports whether t and other refer to the same track.
func (t Track) Same(other Track) bool {
	return t.Identifier == other.Identifier
}

// EventType identifies a playback lifecycle event.
type EventType int

const (
	TrackStart EventType = iota
	TrackEnd
	TrackException
	TrackStuck
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case TrackStart:
		return "track-start"
	case TrackEnd:
		return "track-end"
	case TrackException:
		return "track-exception"
	case TrackStuck:
		return "track-stuck"
	default:
		return "unknown"
	}
}

// EndReason explains why a track ended.
type EndReason string

const (
	EndFinished   EndReason = "finished"
	EndLoadFailed EndReason = "loadFailed"
	EndStopped    EndReason = "stopped"
	EndReplaced   EndReason = "replaced"
	EndCleanup    EndReason = "cleanup"
)

// MayStartNext reports whether the player should advance its queue after a
// track ended for this reason.
func (r EndReason) MayStartNext() bool {
	return r == EndFinished || r == EndLoadFailed
}

// Event is a playback lifecycle notification for one guild.
type Event struct {
	Type EventType

	// Track is the track the event refers to.
	Track Track

	// Reason is the end reason for TrackEnd and the failure message for
	// TrackException. Empty otherwise.
	Reason string

	// Threshold is how long the track was stuck (TrackStuck only).
	Threshold time.Duration
}

// Channel identifies a voice channel.
type Channel struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
}

// VoiceServer carries the voice credentials the chat gateway handed to the
// bot. The audio node needs them to join the channel on the bot's behalf.
type VoiceServer struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
}
