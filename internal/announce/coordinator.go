package announce

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nadzzz/interlude/internal/player"
)

type announcement struct {
	artifact Artifact
	track    player.Track
}

type resumePoint struct {
	track    player.Track
	position time.Duration
}

// Coordinator owns the announcement state of one playback session.
//
// Submit, HandleEvent and Close are serialized: each holds the coordinator
// lock for its whole duration, including the player calls it issues.
type Coordinator struct {
	mu     sync.Mutex
	player Player
	logger *slog.Logger

	state   State
	current *announcement
	resume  *resumePoint
	closed  bool
}

// New creates a coordinator driving p.
func New(p Player, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{player: p, logger: logger}
}

// State returns the current bookkeeping state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit splices artifact into the queue so it plays immediately.
//
// Ownership of artifact passes to the coordinator once the player has
// resolved it into a track; if LoadTrack fails the error is returned and the
// caller still owns the artifact.
func (c *Coordinator) Submit(ctx context.Context, artifact Artifact) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	track, err := c.player.LoadTrack(ctx, artifact.URI())
	if err != nil {
		return fmt.Errorf("loading announcement %s: %w", artifact.URI(), err)
	}
	next := &announcement{artifact: artifact, track: track}

	playing := c.player.Current()
	switch {
	case playing == nil:
		// Nothing to interrupt. A leftover entry can only be stale here.
		if c.current != nil {
			c.release(c.current, "stale")
		}
		c.resume = nil
		c.current = next
		c.transition(StateAnnouncing, "submit on idle queue")

		c.player.Enqueue(track)
		return playerOp("play", c.player.Play(ctx))

	case c.current == nil:
		c.resume = &resumePoint{track: *playing, position: c.player.Position()}
		c.current = next
		c.transition(StateAnnouncingWithResume, "submit interrupting track")
		c.logger.Debug("interrupting track",
			"track", playing.Identifier, "position", c.resume.position)

		c.player.EnqueueFront(track, *playing)
		return playerOp("skip", c.player.Skip(ctx))

	default:
		c.release(c.current, "superseded")
		c.current = next
		c.logger.Debug("announcement superseded", "state", c.state)

		c.player.EnqueueFront(track)
		return playerOp("skip", c.player.Skip(ctx))
	}
}

// HandleEvent reacts to a playback event from the session's player.
//
// Events that match no transition are ignored. A returned error is always a
// *PlayerOperationError; the state change that triggered the operation has
// already been applied.
func (c *Coordinator) HandleEvent(ctx context.Context, ev player.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateIdle {
		return nil
	}

	switch ev.Type {
	case player.TrackException:
		c.logger.Warn("announcement playback failed",
			"track", ev.Track.Identifier, "reason", ev.Reason)
		c.finish("track exception")
		return nil

	case player.TrackStuck:
		c.logger.Warn("announcement playback stuck",
			"track", ev.Track.Identifier, "threshold", ev.Threshold)
		c.finish("track stuck")
		return playerOp("skip", c.player.Skip(ctx))

	case player.TrackEnd:
		return c.handleTrackEnd(ctx)

	default:
		return nil
	}
}

func (c *Coordinator) handleTrackEnd(ctx context.Context) error {
	now := c.player.Current()
	if now == nil {
		c.finish("queue drained")
		return nil
	}

	if c.state != StateAnnouncingWithResume || !now.Same(c.resume.track) {
		return nil
	}

	rp := *c.resume
	c.finish("restoring interrupted track")
	c.logger.Debug("restoring track", "track", rp.track.Identifier, "position", rp.position)

	if err := c.player.Pause(ctx, true); err != nil {
		return playerOp("pause", err)
	}
	if err := c.player.Seek(ctx, rp.position); err != nil {
		return playerOp("seek", err)
	}
	return playerOp("resume", c.player.Pause(ctx, false))
}

// Close releases any in-flight announcement. Later submissions fail with
// ErrClosed and later events are ignored.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if c.state != StateIdle {
		c.finish("coordinator closed")
	}
}

// finish releases the current announcement and drops the resume point.
func (c *Coordinator) finish(reason string) {
	if c.current != nil {
		c.release(c.current, reason)
	}
	c.current = nil
	c.resume = nil
	c.transition(StateIdle, reason)
}

func (c *Coordinator) release(a *announcement, reason string) {
	if err := a.artifact.Release(); err != nil {
		c.logger.Warn("releasing announcement artifact",
			"uri", a.artifact.URI(), "reason", reason, "error", err)
		return
	}
	c.logger.Debug("announcement artifact released", "uri", a.artifact.URI(), "reason", reason)
}

func (c *Coordinator) transition(to State, reason string) {
	if c.state != to {
		c.logger.Debug("announce state", "from", c.state, "to", to, "reason", reason)
	}
	c.state = to
}
