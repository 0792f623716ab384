// Package message defines the request and response types shared by the
// dispatcher and every transport.
package message

import (
	"time"

	"github.com/nadzzz/interlude/internal/player"
)

// SayRequest asks for text to be spoken in a guild's voice channel.
type SayRequest struct {
	// ID is a unique identifier for this request (UUID), assigned by the
	// transport if the caller left it empty.
	ID string `json:"id"`

	// GuildID and ChannelID locate the voice channel of the requesting user.
	// An empty ChannelID means the user is not in voice.
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`

	// UserID identifies who asked, for logging only.
	UserID string `json:"user_id,omitempty"`

	// Text is the raw command argument. It may start with a language code
	// ("fr bonjour tout le monde").
	Text string `json:"text"`

	// Voice carries the voice-server credentials the bot received from the
	// gateway for ChannelID.
	Voice player.VoiceServer `json:"voice"`

	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`
}

// Channel returns the voice channel the request targets.
func (r *SayRequest) Channel() player.Channel {
	return player.Channel{GuildID: r.GuildID, ChannelID: r.ChannelID}
}

// SayResult reports what was queued.
type SayResult struct {
	RequestID string `json:"request_id"`

	// Language is the language the text was spoken in.
	Language string `json:"language"`

	// Text is the text that was spoken, without a language prefix.
	Text string `json:"text"`

	// State is the coordinator state after the announcement was queued.
	State string `json:"state"`
}

// GuildConfig is a guild's effective announcement settings.
type GuildConfig struct {
	GuildID   string `json:"guild_id"`
	Lang      string `json:"lang"`
	PaddingMS int64  `json:"padding_ms"`
}

// SetLangRequest changes a guild's default language.
type SetLangRequest struct {
	Lang string `json:"lang"`
}

// SetPaddingRequest changes the silence added around announcements.
type SetPaddingRequest struct {
	PaddingMS int64 `json:"padding_ms"`
}

// LeaveResult confirms that a guild's session ended.
type LeaveResult struct {
	GuildID string `json:"guild_id"`
}

// LanguagesResult lists the language codes the synthesizer supports.
type LanguagesResult struct {
	Languages []string `json:"languages"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
