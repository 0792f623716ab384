package announce

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/interlude/internal/player"
)

// fakePlayer models a client-side queue the way the Lavalink player does:
// Skip and a natural track end both advance to the head of the queue.
type fakePlayer struct {
	queue    []player.Track
	current  *player.Track
	position time.Duration
	calls    []string

	loadErr  error
	playErr  error
	skipErr  error
	pauseErr error
	seekErr  error
}

func track(id string) player.Track {
	return player.Track{Identifier: id, URI: id, Encoded: "enc:" + id}
}

func (p *fakePlayer) LoadTrack(_ context.Context, identifier string) (player.Track, error) {
	if p.loadErr != nil {
		return player.Track{}, p.loadErr
	}
	return track(identifier), nil
}

func (p *fakePlayer) Current() *player.Track {
	if p.current == nil {
		return nil
	}
	t := *p.current
	return &t
}

func (p *fakePlayer) Position() time.Duration { return p.position }

func (p *fakePlayer) Enqueue(t player.Track) {
	p.calls = append(p.calls, "enqueue:"+t.Identifier)
	p.queue = append(p.queue, t)
}

func (p *fakePlayer) EnqueueFront(tracks ...player.Track) {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.Identifier
	}
	p.calls = append(p.calls, "front:"+strings.Join(ids, ","))
	p.queue = append(append([]player.Track{}, tracks...), p.queue...)
}

func (p *fakePlayer) advance() {
	p.position = 0
	if len(p.queue) == 0 {
		p.current = nil
		return
	}
	t := p.queue[0]
	p.queue = p.queue[1:]
	p.current = &t
}

func (p *fakePlayer) Play(context.Context) error {
	p.calls = append(p.calls, "play")
	if p.playErr != nil {
		return p.playErr
	}
	if p.current == nil {
		p.advance()
	}
	return nil
}

func (p *fakePlayer) Skip(context.Context) error {
	p.calls = append(p.calls, "skip")
	if p.skipErr != nil {
		return p.skipErr
	}
	p.advance()
	return nil
}

func (p *fakePlayer) Pause(_ context.Context, paused bool) error {
	p.calls = append(p.calls, fmt.Sprintf("pause:%t", paused))
	return p.pauseErr
}

func (p *fakePlayer) Seek(_ context.Context, position time.Duration) error {
	p.calls = append(p.calls, "seek:"+position.String())
	if p.seekErr != nil {
		return p.seekErr
	}
	p.position = position
	return nil
}

// finish simulates the engine reaching the end of the current track.
func (p *fakePlayer) finish() player.Event {
	ended := *p.current
	p.advance()
	return player.Event{Type: player.TrackEnd, Track: ended, Reason: string(player.EndFinished)}
}

func (p *fakePlayer) count(call string) int {
	n := 0
	for _, c := range p.calls {
		if c == call {
			n++
		}
	}
	return n
}

type fakeArtifact struct {
	uri      string
	releases int
	err      error
}

func (a *fakeArtifact) URI() string { return a.uri }

func (a *fakeArtifact) Release() error {
	a.releases++
	return a.err
}

func playing(id string, pos time.Duration) *fakePlayer {
	t := track(id)
	return &fakePlayer{current: &t, position: pos}
}

func TestSubmit_InterruptsAndRestoresPosition(t *testing.T) {
	ctx := context.Background()
	p := playing("song.mp3", 12*time.Second)
	c := New(p, nil)
	hello := &fakeArtifact{uri: "hello.mp3"}

	require.NoError(t, c.Submit(ctx, hello))

	assert.Equal(t, []string{"front:hello.mp3,song.mp3", "skip"}, p.calls)
	assert.Equal(t, StateAnnouncingWithResume, c.State())
	require.NotNil(t, c.current)
	assert.Equal(t, "hello.mp3", c.current.track.Identifier)
	require.NotNil(t, c.resume)
	assert.Equal(t, "song.mp3", c.resume.track.Identifier)
	assert.Equal(t, 12*time.Second, c.resume.position)
	assert.Equal(t, "hello.mp3", p.Current().Identifier)

	p.calls = nil
	require.NoError(t, c.HandleEvent(ctx, p.finish()))

	assert.Equal(t, []string{"pause:true", "seek:12s", "pause:false"}, p.calls)
	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.current)
	assert.Nil(t, c.resume)
	assert.Equal(t, 1, hello.releases)
	assert.Equal(t, 12*time.Second, p.Position())
	assert.Equal(t, "song.mp3", p.Current().Identifier)
}

func TestSubmit_IdleQueueCreatesNoResumePoint(t *testing.T) {
	ctx := context.Background()
	p := &fakePlayer{}
	c := New(p, nil)
	hi := &fakeArtifact{uri: "hi.mp3"}

	require.NoError(t, c.Submit(ctx, hi))

	assert.Equal(t, []string{"enqueue:hi.mp3", "play"}, p.calls)
	assert.Equal(t, StateAnnouncing, c.State())
	assert.Nil(t, c.resume)

	require.NoError(t, c.HandleEvent(ctx, p.finish()))

	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.current)
	assert.Equal(t, 1, hi.releases)
	assert.Zero(t, p.count("pause:true"))
}

func TestSubmit_IdleQueueNeverResumesLaterTracks(t *testing.T) {
	ctx := context.Background()
	p := &fakePlayer{}
	c := New(p, nil)
	hi := &fakeArtifact{uri: "hi.mp3"}

	require.NoError(t, c.Submit(ctx, hi))
	// Someone queued music behind the announcement.
	p.Enqueue(track("song.mp3"))

	require.NoError(t, c.HandleEvent(ctx, p.finish()))

	assert.Nil(t, c.resume)
	assert.Zero(t, p.count("pause:true"))
	assert.Zero(t, p.count("seek:0s"))
	assert.Equal(t, StateAnnouncing, c.State())
	assert.Zero(t, hi.releases)
}

func TestSubmit_SupersedesInFlightAnnouncement(t *testing.T) {
	ctx := context.Background()
	p := &fakePlayer{}
	c := New(p, nil)
	a := &fakeArtifact{uri: "a.mp3"}
	b := &fakeArtifact{uri: "b.mp3"}

	require.NoError(t, c.Submit(ctx, a))
	require.NoError(t, c.Submit(ctx, b))

	assert.Equal(t, 1, a.releases)
	assert.Zero(t, b.releases)
	require.NotNil(t, c.current)
	assert.Equal(t, "b.mp3", c.current.track.Identifier)
	assert.Equal(t, []string{"enqueue:a.mp3", "play", "front:b.mp3", "skip"}, p.calls)
	assert.Equal(t, "b.mp3", p.Current().Identifier)
}

func TestSubmit_SupersessionKeepsOriginalResumePoint(t *testing.T) {
	ctx := context.Background()
	p := playing("song.mp3", 42*time.Second)
	c := New(p, nil)
	arts := []*fakeArtifact{{uri: "a.mp3"}, {uri: "b.mp3"}, {uri: "c.mp3"}}

	for _, a := range arts {
		require.NoError(t, c.Submit(ctx, a))
	}

	assert.Equal(t, 1, arts[0].releases)
	assert.Equal(t, 1, arts[1].releases)
	assert.Zero(t, arts[2].releases)
	require.NotNil(t, c.resume)
	assert.Equal(t, "song.mp3", c.resume.track.Identifier)
	assert.Equal(t, 42*time.Second, c.resume.position)
	assert.Equal(t, 3, p.count("skip"))

	require.NoError(t, c.HandleEvent(ctx, p.finish()))

	assert.Equal(t, "song.mp3", p.Current().Identifier)
	assert.Equal(t, 1, p.count("seek:42s"))
	for _, a := range arts {
		assert.Equal(t, 1, a.releases, a.uri)
	}
}

func TestHandleEvent_SkipTransitionIsNoOp(t *testing.T) {
	ctx := context.Background()
	p := playing("song.mp3", time.Second)
	c := New(p, nil)
	a := &fakeArtifact{uri: "a.mp3"}
	require.NoError(t, c.Submit(ctx, a))

	// The engine reports the interrupted track as replaced.
	ev := player.Event{Type: player.TrackEnd, Track: track("song.mp3"), Reason: string(player.EndReplaced)}
	require.NoError(t, c.HandleEvent(ctx, ev))

	assert.Equal(t, StateAnnouncingWithResume, c.State())
	assert.Zero(t, a.releases)
}

func TestHandleEvent_TrackException(t *testing.T) {
	ctx := context.Background()
	p := playing("song.mp3", 5*time.Second)
	c := New(p, nil)
	a := &fakeArtifact{uri: "a.mp3"}
	require.NoError(t, c.Submit(ctx, a))
	p.calls = nil

	err := c.HandleEvent(ctx, player.Event{Type: player.TrackException, Track: track("a.mp3"), Reason: "decode"})

	require.NoError(t, err)
	assert.Equal(t, 1, a.releases)
	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.current)
	assert.Nil(t, c.resume)
	assert.Empty(t, p.calls)
}

func TestHandleEvent_TrackStuckSkipsOnce(t *testing.T) {
	ctx := context.Background()
	p := &fakePlayer{}
	c := New(p, nil)
	a := &fakeArtifact{uri: "a.mp3"}
	require.NoError(t, c.Submit(ctx, a))
	p.calls = nil

	err := c.HandleEvent(ctx, player.Event{Type: player.TrackStuck, Track: track("a.mp3"), Threshold: 10 * time.Second})

	require.NoError(t, err)
	assert.Equal(t, []string{"skip"}, p.calls)
	assert.Equal(t, 1, a.releases)
	assert.Equal(t, StateIdle, c.State())

	// A second stuck report has nothing left to recover.
	require.NoError(t, c.HandleEvent(ctx, player.Event{Type: player.TrackStuck}))
	assert.Equal(t, []string{"skip"}, p.calls)
	assert.Equal(t, 1, a.releases)
}

func TestHandleEvent_IdleIgnoresEverything(t *testing.T) {
	ctx := context.Background()
	p := playing("song.mp3", 0)
	c := New(p, nil)

	for _, typ := range []player.EventType{player.TrackStart, player.TrackEnd, player.TrackException, player.TrackStuck} {
		require.NoError(t, c.HandleEvent(ctx, player.Event{Type: typ}))
	}
	assert.Empty(t, p.calls)
	assert.Equal(t, StateIdle, c.State())
}

func TestHandleEvent_UnrelatedTrackEndIsNoOp(t *testing.T) {
	ctx := context.Background()
	p := playing("song.mp3", 3*time.Second)
	c := New(p, nil)
	a := &fakeArtifact{uri: "a.mp3"}
	require.NoError(t, c.Submit(ctx, a))

	// Another command pushed a different track between the announcement and
	// the interrupted one.
	p.EnqueueFront(track("other.mp3"))
	p.calls = nil

	require.NoError(t, c.HandleEvent(ctx, p.finish()))

	assert.Empty(t, p.calls)
	assert.Equal(t, StateAnnouncingWithResume, c.State())
	assert.Zero(t, a.releases)
}

func TestHandleEvent_ResumeFailureKeepsStateAdvanced(t *testing.T) {
	ctx := context.Background()
	p := playing("song.mp3", 7*time.Second)
	c := New(p, nil)
	a := &fakeArtifact{uri: "a.mp3"}
	require.NoError(t, c.Submit(ctx, a))
	p.seekErr = errors.New("not seekable")

	err := c.HandleEvent(ctx, p.finish())

	var opErr *PlayerOperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "seek", opErr.Op)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 1, a.releases)
	assert.Zero(t, p.count("pause:false"))
}

func TestSubmit_SkipFailureSurfacesButStateAdvances(t *testing.T) {
	ctx := context.Background()
	p := playing("song.mp3", time.Second)
	p.skipErr = errors.New("node unavailable")
	c := New(p, nil)
	a := &fakeArtifact{uri: "a.mp3"}

	err := c.Submit(ctx, a)

	var opErr *PlayerOperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "skip", opErr.Op)
	assert.ErrorIs(t, err, p.skipErr)
	assert.Equal(t, StateAnnouncingWithResume, c.State())
	assert.Zero(t, a.releases)
}

func TestSubmit_LoadFailureLeavesOwnershipWithCaller(t *testing.T) {
	ctx := context.Background()
	p := playing("song.mp3", time.Second)
	p.loadErr = errors.New("no matches")
	c := New(p, nil)
	a := &fakeArtifact{uri: "a.mp3"}

	err := c.Submit(ctx, a)

	require.ErrorIs(t, err, p.loadErr)
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, p.calls)
	assert.Zero(t, a.releases)
}

func TestSubmit_ReleasesStaleAnnouncementOnIdleQueue(t *testing.T) {
	ctx := context.Background()
	p := playing("song.mp3", 2*time.Second)
	c := New(p, nil)
	a := &fakeArtifact{uri: "a.mp3"}
	require.NoError(t, c.Submit(ctx, a))

	// The queue was cleared behind the coordinator's back.
	p.current, p.queue = nil, nil

	b := &fakeArtifact{uri: "b.mp3"}
	require.NoError(t, c.Submit(ctx, b))

	assert.Equal(t, 1, a.releases)
	assert.Equal(t, StateAnnouncing, c.State())
	assert.Nil(t, c.resume)
}

func TestRelease_ErrorIsTolerated(t *testing.T) {
	ctx := context.Background()
	p := &fakePlayer{}
	c := New(p, nil)
	a := &fakeArtifact{uri: "a.mp3", err: errors.New("file already removed")}
	require.NoError(t, c.Submit(ctx, a))

	require.NoError(t, c.HandleEvent(ctx, p.finish()))

	assert.Equal(t, 1, a.releases)
	assert.Equal(t, StateIdle, c.State())
}

func TestClose_ReleasesInFlightAnnouncement(t *testing.T) {
	ctx := context.Background()
	p := playing("song.mp3", time.Second)
	c := New(p, nil)
	a := &fakeArtifact{uri: "a.mp3"}
	require.NoError(t, c.Submit(ctx, a))

	c.Close()
	c.Close()

	assert.Equal(t, 1, a.releases)
	assert.Equal(t, StateIdle, c.State())
	assert.ErrorIs(t, c.Submit(ctx, &fakeArtifact{uri: "b.mp3"}), ErrClosed)
	require.NoError(t, c.HandleEvent(ctx, p.finish()))
	assert.Equal(t, 1, a.releases)
}

// Every reachable way out of an announcement releases its artifact exactly
// once, no matter what the engine reports afterwards.
func TestArtifactsReleasedExactlyOnce(t *testing.T) {
	tests := []struct {
		name    string
		start   *fakePlayer
		trigger func(p *fakePlayer) player.Event
	}{
		{
			name:  "exception",
			start: playing("song.mp3", time.Second),
			trigger: func(p *fakePlayer) player.Event {
				return player.Event{Type: player.TrackException, Track: *p.current}
			},
		},
		{
			name:  "stuck",
			start: playing("song.mp3", time.Second),
			trigger: func(p *fakePlayer) player.Event {
				return player.Event{Type: player.TrackStuck, Track: *p.current}
			},
		},
		{
			name:    "end on idle queue",
			start:   &fakePlayer{},
			trigger: func(p *fakePlayer) player.Event { return p.finish() },
		},
		{
			name:    "end onto interrupted track",
			start:   playing("song.mp3", time.Second),
			trigger: func(p *fakePlayer) player.Event { return p.finish() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := tt.start
			c := New(p, nil)
			a := &fakeArtifact{uri: "a.mp3"}
			require.NoError(t, c.Submit(ctx, a))

			ev := tt.trigger(p)
			require.NoError(t, c.HandleEvent(ctx, ev))
			// Replays of the same event and a trailing end must not free again.
			require.NoError(t, c.HandleEvent(ctx, ev))
			require.NoError(t, c.HandleEvent(ctx, player.Event{Type: player.TrackEnd}))

			assert.Equal(t, 1, a.releases)
			assert.Equal(t, StateIdle, c.State())
			assert.Nil(t, c.resume)
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Idle", StateIdle.String())
	assert.Equal(t, "Announcing", StateAnnouncing.String())
	assert.Equal(t, "AnnouncingWithResume", StateAnnouncingWithResume.String())
	assert.Equal(t, "Unknown", State(99).String())
}
