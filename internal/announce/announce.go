// Package announce splices spoken announcements into a guild's live playback
// queue and restores the interrupted track once they finish.
//
// A Coordinator tracks at most one in-flight announcement and at most one
// resume point. It mutates the player only through its public operations and
// learns about playback progress from the player's event stream:
//
//	Idle ──Submit(queue idle)──────────▶ Announcing
//	Idle ──Submit(track playing)───────▶ AnnouncingWithResume
//	Announcing* ──Submit───────────────▶ same state, old announcement released
//	Announcing* ──exception/stuck──────▶ Idle
//	Announcing* ──end, player idle─────▶ Idle
//	AnnouncingWithResume ──end, prior track current──▶ Idle (pause, seek, resume)
package announce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nadzzz/interlude/internal/player"
)

// ErrClosed is returned by Submit after the coordinator has been closed.
var ErrClosed = errors.New("coordinator closed")

// Artifact is a playable audio resource owned by the coordinator once
// submitted. Release must tolerate a resource that is already gone.
type Artifact interface {
	URI() string
	Release() error
}

// Player is the subset of a guild player the coordinator drives.
type Player interface {
	// LoadTrack resolves an artifact URI into a playable track.
	LoadTrack(ctx context.Context, identifier string) (player.Track, error)

	// Current returns the playing track, or nil when the player is idle.
	Current() *player.Track
	Position() time.Duration

	// Enqueue appends a track to the end of the queue.
	Enqueue(track player.Track)

	// EnqueueFront inserts tracks, in order, at the head of the queue.
	EnqueueFront(tracks ...player.Track)

	Play(ctx context.Context) error
	Skip(ctx context.Context) error
	Pause(ctx context.Context, paused bool) error
	Seek(ctx context.Context, position time.Duration) error
}

// State is the coordinator's bookkeeping state.
type State int

const (
	StateIdle State = iota
	StateAnnouncing
	StateAnnouncingWithResume
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAnnouncing:
		return "Announcing"
	case StateAnnouncingWithResume:
		return "AnnouncingWithResume"
	default:
		return "Unknown"
	}
}

// PlayerOperationError reports a player operation the engine rejected. The
// coordinator state has already advanced when this is returned.
type PlayerOperationError struct {
	Op  string
	Err error
}

func (e *PlayerOperationError) Error() string {
	return fmt.Sprintf("player %s: %v", e.Op, e.Err)
}

func (e *PlayerOperationError) Unwrap() error {
	return e.Err
}

func playerOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PlayerOperationError{Op: op, Err: err}
}
