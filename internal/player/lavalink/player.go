package lavalink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nadzzz/interlude/internal/player"
)

const eventBufferSize = 64

// Player is one guild's playback state on the node.
//
// Queue and position are tracked locally; every mutation that the node has
// to know about is pushed with a player update. Events are published on
// Events() in the order the node sent them, after the local queue has been
// advanced, so a subscriber always sees the new current track.
type Player struct {
	node    *Node
	guildID string
	logger  *slog.Logger

	mu       sync.Mutex
	channel  player.Channel
	queue    []player.Track
	current  *player.Track
	paused   bool
	position time.Duration
	updated  time.Time

	events chan player.Event
	closed chan struct{}
	once   sync.Once
}

func newPlayer(n *Node, guildID string) *Player {
	return &Player{
		node:    n,
		guildID: guildID,
		logger:  n.logger.With("guild_id", guildID),
		events:  make(chan player.Event, eventBufferSize),
		closed:  make(chan struct{}),
	}
}

// GuildID returns the guild this player belongs to.
func (p *Player) GuildID() string { return p.guildID }

// Events returns the player's lifecycle events.
func (p *Player) Events() <-chan player.Event { return p.events }

// Channel returns the voice channel the player last connected to.
func (p *Player) Channel() player.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel
}

// Connect hands the voice credentials to the node so it joins ch.
func (p *Player) Connect(ctx context.Context, ch player.Channel, vs player.VoiceServer) error {
	err := p.node.updatePlayer(ctx, p.guildID, playerUpdate{Voice: &voiceState{
		Token:     vs.Token,
		Endpoint:  vs.Endpoint,
		SessionID: vs.SessionID,
	}})
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", ch.ChannelID, err)
	}

	p.mu.Lock()
	p.channel = ch
	p.mu.Unlock()
	p.logger.Info("voice connected", "channel_id", ch.ChannelID)
	return nil
}

// Disconnect destroys the node-side player and stops event delivery.
func (p *Player) Disconnect(ctx context.Context) error {
	p.once.Do(func() { close(p.closed) })
	p.node.forget(p.guildID)

	p.mu.Lock()
	p.queue = nil
	p.current = nil
	p.mu.Unlock()

	if err := p.node.destroyPlayer(ctx, p.guildID); err != nil {
		return fmt.Errorf("destroying player: %w", err)
	}
	return nil
}

// LoadTrack resolves identifier into the first playable track.
func (p *Player) LoadTrack(ctx context.Context, identifier string) (player.Track, error) {
	tracks, err := p.node.loadTracks(ctx, identifier)
	if err != nil {
		return player.Track{}, err
	}
	if len(tracks) == 0 {
		return player.Track{}, fmt.Errorf("%q: %w", identifier, ErrNoMatches)
	}
	return tracks[0].toTrack(), nil
}

// Current returns a copy of the playing track, or nil when idle.
func (p *Player) Current() *player.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	t := *p.current
	return &t
}

// Position returns the playback offset, extrapolated from the last report
// while the track is playing.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() time.Duration {
	if p.current == nil {
		return 0
	}
	pos := p.position
	if !p.paused && !p.updated.IsZero() {
		pos += time.Since(p.updated)
	}
	if p.current.Length > 0 && pos > p.current.Length {
		pos = p.current.Length
	}
	return pos
}

// Queue returns a copy of the pending tracks.
func (p *Player) Queue() []player.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]player.Track(nil), p.queue...)
}

// Enqueue appends a track to the queue.
func (p *Player) Enqueue(t player.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, t)
}

// EnqueueFront inserts tracks, in order, before everything already queued.
func (p *Player) EnqueueFront(tracks ...player.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q := make([]player.Track, 0, len(tracks)+len(p.queue))
	q = append(q, tracks...)
	p.queue = append(q, p.queue...)
}

// Play starts the head of the queue if nothing is playing.
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	busy := p.current != nil
	p.mu.Unlock()
	if busy {
		return nil
	}
	return p.startNext(ctx)
}

// Skip abandons the current track and starts the next one, stopping the
// player when the queue is empty.
func (p *Player) Skip(ctx context.Context) error {
	return p.startNext(ctx)
}

// Pause pauses or resumes playback.
func (p *Player) Pause(ctx context.Context, paused bool) error {
	p.mu.Lock()
	p.position = p.positionLocked()
	p.updated = time.Now()
	p.paused = paused
	p.mu.Unlock()

	return p.node.updatePlayer(ctx, p.guildID, setPaused(paused))
}

// Seek moves the playback offset of the current track.
func (p *Player) Seek(ctx context.Context, position time.Duration) error {
	p.mu.Lock()
	p.position = position
	p.updated = time.Now()
	p.mu.Unlock()

	return p.node.updatePlayer(ctx, p.guildID, seekTo(position))
}

func (p *Player) startNext(ctx context.Context) error {
	p.mu.Lock()
	p.position = 0
	p.updated = time.Now()
	p.paused = false
	if len(p.queue) == 0 {
		p.current = nil
		p.mu.Unlock()
		return p.node.updatePlayer(ctx, p.guildID, stopTrack())
	}
	next := p.queue[0]
	p.queue = p.queue[1:]
	p.current = &next
	p.mu.Unlock()

	p.logger.Debug("starting track", "track", next.Identifier)
	return p.node.updatePlayer(ctx, p.guildID, playTrack(next))
}

func (p *Player) onStateUpdate(s playerState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = time.Duration(s.Position) * time.Millisecond
	p.updated = time.Now()
}

func (p *Player) onEvent(msg *inbound) {
	var t player.Track
	if msg.Track != nil {
		t = msg.Track.toTrack()
	}

	switch msg.Type {
	case eventTrackStart:
		p.publish(player.Event{Type: player.TrackStart, Track: t})

	case eventTrackEnd:
		reason := player.EndReason(msg.Reason)
		if reason.MayStartNext() && p.isCurrent(t) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.startNext(ctx); err != nil {
				p.logger.Error("advancing queue", "error", err)
			}
			cancel()
		}
		p.publish(player.Event{Type: player.TrackEnd, Track: t, Reason: msg.Reason})

	case eventTrackException:
		ev := player.Event{Type: player.TrackException, Track: t}
		if msg.Exception != nil {
			ev.Reason = msg.Exception.Message
		}
		p.publish(ev)

	case eventTrackStuck:
		p.publish(player.Event{
			Type:      player.TrackStuck,
			Track:     t,
			Threshold: time.Duration(msg.ThresholdMs) * time.Millisecond,
		})

	case eventWebSocketClosed:
		p.logger.Warn("voice websocket closed", "code", msg.Code, "reason", msg.Reason, "by_remote", msg.ByRemote)

	default:
		p.logger.Debug("unknown player event", "type", msg.Type)
	}
}

func (p *Player) isCurrent(t player.Track) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil && p.current.Same(t)
}

// publish blocks until the subscriber accepts the event so that none are
// lost; it gives up once the player is disconnected.
func (p *Player) publish(ev player.Event) {
	select {
	case p.events <- ev:
	case <-p.closed:
	}
}
