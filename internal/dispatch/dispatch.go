// Package dispatch implements the command surface shared by every transport.
//
// A say request runs through the announcement pipeline
// (synthesize → pad → submit) and ends up in the guild's coordinator, which
// interrupts whatever is playing and restores it afterwards. The remaining
// commands read and change the per-guild settings that pipeline uses.
package dispatch

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nadzzz/interlude/internal/announce"
	"github.com/nadzzz/interlude/internal/audio"
	"github.com/nadzzz/interlude/internal/guildconfig"
	"github.com/nadzzz/interlude/internal/message"
	"github.com/nadzzz/interlude/internal/player"
	"github.com/nadzzz/interlude/internal/session"
	"github.com/nadzzz/interlude/internal/tts"
)

var (
	// ErrEmptyText is returned when there is nothing to say.
	ErrEmptyText = errors.New("nothing to say")

	// ErrNotInVoice is returned when the requester is not in a voice channel.
	ErrNotInVoice = errors.New("requester is not in a voice channel")

	// ErrForbidden is returned when a settings change lacks the admin token.
	ErrForbidden = errors.New("admin token required")
)

// Preparer turns synthesized speech into a padded, playable file.
type Preparer interface {
	Pad(ctx context.Context, data []byte, contentType string, padding time.Duration) (*audio.File, error)
}

// ConfigStore holds per-guild settings.
type ConfigStore interface {
	Get(ctx context.Context, guildID string) (guildconfig.Settings, error)
	SetLang(ctx context.Context, guildID, lang string) error
	SetPadding(ctx context.Context, guildID string, padding time.Duration) error
}

// Announcer is a guild session accepting announcements.
type Announcer interface {
	Submit(ctx context.Context, a announce.Artifact) error
	State() announce.State
}

// AcquireFunc returns the session for a voice channel, joining it if needed.
type AcquireFunc func(ctx context.Context, ch player.Channel, vs player.VoiceServer) (Announcer, error)

// LeaveFunc ends a guild's session.
type LeaveFunc func(ctx context.Context, guildID string) error

// FromManager adapts a session manager to an AcquireFunc.
func FromManager(m *session.Manager) AcquireFunc {
	return func(ctx context.Context, ch player.Channel, vs player.VoiceServer) (Announcer, error) {
		s, err := m.Acquire(ctx, ch, vs)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Options wires a Dispatcher.
type Options struct {
	Synthesizer tts.Synthesizer
	Preparer    Preparer
	Store       ConfigStore
	Acquire     AcquireFunc
	Leave       LeaveFunc

	// AdminToken guards the settings setters. Empty disables the check.
	AdminToken string
}

// Dispatcher is the command surface.
type Dispatcher struct {
	synth      tts.Synthesizer
	preparer   Preparer
	store      ConfigStore
	acquire    AcquireFunc
	leave      LeaveFunc
	adminToken string
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	return &Dispatcher{
		synth:      opts.Synthesizer,
		preparer:   opts.Preparer,
		store:      opts.Store,
		acquire:    opts.Acquire,
		leave:      opts.Leave,
		adminToken: opts.AdminToken,
	}
}

// Say speaks req.Text in the requester's voice channel, interrupting any
// music. A leading supported language code selects the language; otherwise
// the guild's default is used.
func (d *Dispatcher) Say(ctx context.Context, req *message.SayRequest) (*message.SayResult, error) {
	start := time.Now()
	logger := slog.With("request_id", req.ID, "guild_id", req.GuildID, "user_id", req.UserID)

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if req.ChannelID == "" {
		return nil, ErrNotInVoice
	}

	settings, err := d.store.Get(ctx, req.GuildID)
	if err != nil {
		return nil, err
	}
	langs, err := d.synth.Languages(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing languages: %w", err)
	}
	lang, text := splitLanguage(text, langs, settings.Lang)
	logger.Info("say requested", "language", lang, "text_length", len(text))

	synth, err := d.synth.Synthesize(ctx, text, tts.SynthesizeOpts{Language: lang})
	if err != nil {
		logger.Error("synthesis failed", "error", err)
		return nil, err
	}

	file, err := d.preparer.Pad(ctx, synth.Audio, synth.ContentType, settings.Padding)
	if err != nil {
		return nil, fmt.Errorf("preparing announcement: %w", err)
	}

	sess, err := d.acquire(ctx, req.Channel(), req.Voice)
	if err != nil {
		d.discard(logger, file)
		return nil, fmt.Errorf("joining voice: %w", err)
	}

	if err := sess.Submit(ctx, file); err != nil {
		// A player operation failure means the coordinator already owns
		// the file; anything earlier leaves it with us.
		var opErr *announce.PlayerOperationError
		if !errors.As(err, &opErr) {
			d.discard(logger, file)
		}
		logger.Error("submitting announcement", "error", err)
		return nil, err
	}

	state := sess.State()
	logger.Info("announcement queued", "state", state, "duration", time.Since(start))
	return &message.SayResult{
		RequestID: req.ID,
		Language:  lang,
		Text:      text,
		State:     state.String(),
	}, nil
}

func (d *Dispatcher) discard(logger *slog.Logger, f *audio.File) {
	if err := f.Release(); err != nil {
		logger.Warn("releasing unused announcement", "uri", f.URI(), "error", err)
	}
}

// Languages lists the language codes Say and SetLang accept.
func (d *Dispatcher) Languages(ctx context.Context) (*message.LanguagesResult, error) {
	langs, err := d.synth.Languages(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing languages: %w", err)
	}
	return &message.LanguagesResult{Languages: langs}, nil
}

// GetConfig returns the guild's effective settings.
func (d *Dispatcher) GetConfig(ctx context.Context, guildID string) (*message.GuildConfig, error) {
	s, err := d.store.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return &message.GuildConfig{
		GuildID:   guildID,
		Lang:      s.Lang,
		PaddingMS: s.Padding.Milliseconds(),
	}, nil
}

// SetLang changes the guild's default language. The language must be one
// the synthesizer supports.
func (d *Dispatcher) SetLang(ctx context.Context, token, guildID, lang string) (*message.GuildConfig, error) {
	if err := d.authorize(token); err != nil {
		return nil, err
	}

	langs, err := d.synth.Languages(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing languages: %w", err)
	}
	canonical, ok := tts.Lookup(langs, strings.TrimSpace(lang))
	if !ok {
		return nil, tts.Fail(lang, tts.ErrUnsupportedLanguage)
	}

	if err := d.store.SetLang(ctx, guildID, canonical); err != nil {
		return nil, err
	}
	slog.Info("guild language changed", "guild_id", guildID, "lang", canonical)
	return d.GetConfig(ctx, guildID)
}

// SetPadding changes the silence added before and after announcements.
func (d *Dispatcher) SetPadding(ctx context.Context, token, guildID string, paddingMS int64) (*message.GuildConfig, error) {
	if err := d.authorize(token); err != nil {
		return nil, err
	}
	// Checked before converting so huge values cannot wrap around.
	if paddingMS < 0 || paddingMS > guildconfig.MaxPadding.Milliseconds() {
		return nil, fmt.Errorf("%d ms: %w", paddingMS, guildconfig.ErrInvalidPadding)
	}
	if err := d.store.SetPadding(ctx, guildID, time.Duration(paddingMS)*time.Millisecond); err != nil {
		return nil, err
	}
	slog.Info("guild padding changed", "guild_id", guildID, "padding_ms", paddingMS)
	return d.GetConfig(ctx, guildID)
}

// Leave disconnects the guild's player, dropping any announcement in flight
// along with the music it interrupted.
func (d *Dispatcher) Leave(ctx context.Context, token, guildID string) (*message.LeaveResult, error) {
	if err := d.authorize(token); err != nil {
		return nil, err
	}
	if err := d.leave(ctx, guildID); err != nil {
		return nil, err
	}
	slog.Info("left voice", "guild_id", guildID)
	return &message.LeaveResult{GuildID: guildID}, nil
}

func (d *Dispatcher) authorize(token string) error {
	if d.adminToken == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(d.adminToken)) != 1 {
		return ErrForbidden
	}
	return nil
}

// splitLanguage peels a leading language code off text. The first word only
// counts as a language when it is supported and something follows it.
func splitLanguage(text string, langs []string, fallback string) (lang, rest string) {
	first, tail, found := strings.Cut(text, " ")
	tail = strings.TrimSpace(tail)
	if !found || tail == "" {
		return fallback, text
	}
	if canonical, ok := tts.Lookup(langs, first); ok {
		return canonical, tail
	}
	return fallback, text
}
