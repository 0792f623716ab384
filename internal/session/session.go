// Package session keeps one playback session per guild: a connected player,
// the coordinator that drives it, and the goroutine feeding the player's
// events into that coordinator.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nadzzz/interlude/internal/announce"
	"github.com/nadzzz/interlude/internal/player"
)

// ErrNoSession is returned when a guild has no active session.
var ErrNoSession = errors.New("no active session")

// Player is a guild player as the session manager needs it.
type Player interface {
	announce.Player
	Connect(ctx context.Context, ch player.Channel, vs player.VoiceServer) error
	Disconnect(ctx context.Context) error
	Events() <-chan player.Event
	Channel() player.Channel
}

// PlayerFactory returns the player for a guild.
type PlayerFactory func(guildID string) Player

// Session is one guild's playback session.
type Session struct {
	guildID string
	player  Player
	coord   *announce.Coordinator
	logger  *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// GuildID returns the guild the session plays in.
func (s *Session) GuildID() string { return s.guildID }

// Submit hands an announcement to the session's coordinator.
func (s *Session) Submit(ctx context.Context, a announce.Artifact) error {
	return s.coord.Submit(ctx, a)
}

// State reports the coordinator's state.
func (s *Session) State() announce.State { return s.coord.State() }

// Channel returns the voice channel the session is connected to.
func (s *Session) Channel() player.Channel { return s.player.Channel() }

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	events := s.player.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.coord.HandleEvent(ctx, ev); err != nil {
				s.logger.Error("handling player event", "event", ev.Type, "error", err)
			}
		}
	}
}

func (s *Session) stop(ctx context.Context) error {
	s.cancel()
	<-s.done
	s.coord.Close()
	if err := s.player.Disconnect(ctx); err != nil {
		return fmt.Errorf("guild %s: %w", s.guildID, err)
	}
	s.logger.Info("session closed")
	return nil
}

// Manager owns every guild's session.
type Manager struct {
	factory PlayerFactory
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty manager.
func NewManager(factory PlayerFactory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		factory:  factory,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Acquire returns the session for ch's guild, connecting a player to ch on
// first use. A session in another channel of the same guild is moved.
func (m *Manager) Acquire(ctx context.Context, ch player.Channel, vs player.VoiceServer) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[ch.GuildID]; ok {
		if s.player.Channel() == ch {
			return s, nil
		}
		if err := s.player.Connect(ctx, ch, vs); err != nil {
			return nil, fmt.Errorf("moving session: %w", err)
		}
		s.logger.Info("session moved", "channel_id", ch.ChannelID)
		return s, nil
	}

	p := m.factory(ch.GuildID)
	if err := p.Connect(ctx, ch, vs); err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}

	logger := m.logger.With("guild_id", ch.GuildID)
	loopCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		guildID: ch.GuildID,
		player:  p,
		coord:   announce.New(p, logger),
		logger:  logger,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.run(loopCtx)

	m.sessions[ch.GuildID] = s
	logger.Info("session started", "channel_id", ch.ChannelID)
	return s, nil
}

// Len returns the number of active sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Leave ends the guild's session, releasing its in-flight announcement and
// disconnecting its player.
func (m *Manager) Leave(ctx context.Context, guildID string) error {
	m.mu.Lock()
	s, ok := m.sessions[guildID]
	delete(m.sessions, guildID)
	m.mu.Unlock()

	if !ok {
		return ErrNoSession
	}
	return s.stop(ctx)
}

// Close ends every session.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
