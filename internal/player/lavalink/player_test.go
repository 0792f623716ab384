package lavalink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/interlude/internal/player"
)

const testPassword = "youshallnotpass"

// fakeNode emulates the parts of a Lavalink v4 server the player uses.
type fakeNode struct {
	srv    *httptest.Server
	connCh chan *websocket.Conn

	mu      sync.Mutex
	updates []playerUpdate
	deleted bool
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	f := &fakeNode{connCh: make(chan *websocket.Conn, 1)}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v4/websocket", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != testPassword {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{"op": "ready", "sessionId": "s1", "resumed": false})
		f.connCh <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	mux.HandleFunc("GET /v4/loadtracks", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("identifier")
		w.Header().Set("Content-Type", "application/json")
		switch id {
		case "missing":
			_, _ = w.Write([]byte(`{"loadType":"empty","data":{}}`))
			return
		case "corrupt":
			_, _ = w.Write([]byte(`{"loadType":"error","data":{"message":"unknown file format","severity":"common"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"loadType": "track",
			"data": map[string]any{
				"encoded": "enc:" + id,
				"info":    map[string]any{"identifier": id, "uri": id, "title": id, "length": 60000},
			},
		})
	})
	mux.HandleFunc("PATCH /v4/sessions/s1/players/g1", func(w http.ResponseWriter, r *http.Request) {
		var u playerUpdate
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.updates = append(f.updates, u)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("PATCH /v4/sessions/s1/players/broken", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":500,"error":"Internal Server Error","message":"voice gateway unreachable"}`))
	})
	mux.HandleFunc("DELETE /v4/sessions/s1/players/g1", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = true
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeNode) address() string {
	return strings.TrimPrefix(f.srv.URL, "http://")
}

func (f *fakeNode) lastUpdate(t *testing.T) playerUpdate {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.updates)
	return f.updates[len(f.updates)-1]
}

func openNode(t *testing.T) (*Node, *fakeNode, *websocket.Conn) {
	t.Helper()
	f := newFakeNode(t)
	n := NewNode(Config{Address: f.address(), Password: testPassword, UserID: "42"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, n.Open(ctx))
	t.Cleanup(func() { _ = n.Close() })

	var conn *websocket.Conn
	select {
	case conn = <-f.connCh:
	case <-time.After(5 * time.Second):
		t.Fatal("websocket never connected")
	}
	return n, f, conn
}

func nextEvent(t *testing.T, p *Player) player.Event {
	t.Helper()
	select {
	case ev := <-p.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
		return player.Event{}
	}
}

func TestNode_OpenWaitsForReady(t *testing.T) {
	n, _, _ := openNode(t)

	assert.Equal(t, "s1", n.SessionID())
	assert.True(t, n.Connected())
}

func TestPlayer_LoadTrack(t *testing.T) {
	n, _, _ := openNode(t)
	p := n.Player("g1")
	ctx := context.Background()

	tr, err := p.LoadTrack(ctx, "/tmp/hello.wav")
	require.NoError(t, err)
	assert.Equal(t, "enc:/tmp/hello.wav", tr.Encoded)
	assert.Equal(t, "/tmp/hello.wav", tr.Identifier)
	assert.Equal(t, time.Minute, tr.Length)

	_, err = p.LoadTrack(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoMatches)

	_, err = p.LoadTrack(ctx, "corrupt")
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Contains(t, err.Error(), "unknown file format")
}

func TestPlayer_RequestError(t *testing.T) {
	n, _, _ := openNode(t)
	p := n.Player("broken")

	err := p.Connect(context.Background(), player.Channel{GuildID: "broken", ChannelID: "c1"}, player.VoiceServer{Token: "tok"})
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.MethodPatch, reqErr.Method)
	assert.Equal(t, http.StatusInternalServerError, reqErr.Status)
	assert.Equal(t, "voice gateway unreachable", reqErr.Message)
}

func TestPlayer_NextTrackUnpauses(t *testing.T) {
	n, f, _ := openNode(t)
	p := n.Player("g1")
	ctx := context.Background()
	p.Enqueue(player.Track{Identifier: "a", Encoded: "enc:a"})
	p.Enqueue(player.Track{Identifier: "b", Encoded: "enc:b"})
	require.NoError(t, p.Play(ctx))
	require.NoError(t, p.Pause(ctx, true))

	require.NoError(t, p.Skip(ctx))
	u := f.lastUpdate(t)
	require.NotNil(t, u.Track)
	assert.Equal(t, "enc:b", *u.Track.Encoded)
	require.NotNil(t, u.Paused)
	assert.False(t, *u.Paused)
}

func TestPlayer_PlaySkipAndStop(t *testing.T) {
	n, f, _ := openNode(t)
	p := n.Player("g1")
	ctx := context.Background()

	p.Enqueue(player.Track{Identifier: "b", Encoded: "enc:b"})
	p.EnqueueFront(player.Track{Identifier: "a", Encoded: "enc:a"})

	require.NoError(t, p.Play(ctx))
	require.NotNil(t, p.Current())
	assert.Equal(t, "a", p.Current().Identifier)
	assert.Equal(t, "enc:a", *f.lastUpdate(t).Track.Encoded)

	// Play is a no-op while something is playing.
	require.NoError(t, p.Play(ctx))
	assert.Equal(t, "a", p.Current().Identifier)

	require.NoError(t, p.Skip(ctx))
	assert.Equal(t, "b", p.Current().Identifier)
	assert.Empty(t, p.Queue())

	require.NoError(t, p.Skip(ctx))
	assert.Nil(t, p.Current())
	stop := f.lastUpdate(t)
	require.NotNil(t, stop.Track)
	assert.Nil(t, stop.Track.Encoded)
}

func TestPlayer_PauseAndSeek(t *testing.T) {
	n, f, _ := openNode(t)
	p := n.Player("g1")
	ctx := context.Background()
	p.Enqueue(player.Track{Identifier: "a", Encoded: "enc:a", Length: time.Minute})
	require.NoError(t, p.Play(ctx))

	require.NoError(t, p.Pause(ctx, true))
	require.NotNil(t, f.lastUpdate(t).Paused)
	assert.True(t, *f.lastUpdate(t).Paused)

	require.NoError(t, p.Seek(ctx, 12*time.Second))
	require.NotNil(t, f.lastUpdate(t).Position)
	assert.Equal(t, int64(12000), *f.lastUpdate(t).Position)
	// Paused, so the position does not drift.
	assert.Equal(t, 12*time.Second, p.Position())
}

func TestPlayer_TrackEndAdvancesBeforePublishing(t *testing.T) {
	n, f, conn := openNode(t)
	p := n.Player("g1")
	ctx := context.Background()
	p.Enqueue(player.Track{Identifier: "a", Encoded: "enc:a"})
	p.Enqueue(player.Track{Identifier: "b", Encoded: "enc:b"})
	require.NoError(t, p.Play(ctx))

	require.NoError(t, conn.WriteJSON(map[string]any{
		"op": "event", "type": "TrackEndEvent", "guildId": "g1", "reason": "finished",
		"track": map[string]any{"encoded": "enc:a", "info": map[string]any{"identifier": "a"}},
	}))

	ev := nextEvent(t, p)
	assert.Equal(t, player.TrackEnd, ev.Type)
	assert.Equal(t, "a", ev.Track.Identifier)
	assert.Equal(t, "finished", ev.Reason)
	require.NotNil(t, p.Current())
	assert.Equal(t, "b", p.Current().Identifier)
	assert.Equal(t, "enc:b", *f.lastUpdate(t).Track.Encoded)
}

func TestPlayer_ReplacedTrackDoesNotAdvance(t *testing.T) {
	n, _, conn := openNode(t)
	p := n.Player("g1")
	ctx := context.Background()
	p.Enqueue(player.Track{Identifier: "a", Encoded: "enc:a"})
	p.Enqueue(player.Track{Identifier: "b", Encoded: "enc:b"})
	require.NoError(t, p.Play(ctx))

	require.NoError(t, conn.WriteJSON(map[string]any{
		"op": "event", "type": "TrackEndEvent", "guildId": "g1", "reason": "replaced",
		"track": map[string]any{"encoded": "enc:a", "info": map[string]any{"identifier": "a"}},
	}))

	ev := nextEvent(t, p)
	assert.Equal(t, "replaced", ev.Reason)
	assert.Equal(t, "a", p.Current().Identifier)
	assert.Len(t, p.Queue(), 1)
}

func TestPlayer_FailureEvents(t *testing.T) {
	n, _, conn := openNode(t)
	p := n.Player("g1")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"op": "event", "type": "TrackExceptionEvent", "guildId": "g1",
		"track":     map[string]any{"encoded": "enc:a", "info": map[string]any{"identifier": "a"}},
		"exception": map[string]any{"message": "decoder failed", "severity": "common"},
	}))
	require.NoError(t, conn.WriteJSON(map[string]any{
		"op": "event", "type": "TrackStuckEvent", "guildId": "g1", "thresholdMs": 10000,
		"track": map[string]any{"encoded": "enc:a", "info": map[string]any{"identifier": "a"}},
	}))

	ex := nextEvent(t, p)
	assert.Equal(t, player.TrackException, ex.Type)
	assert.Equal(t, "decoder failed", ex.Reason)

	stuck := nextEvent(t, p)
	assert.Equal(t, player.TrackStuck, stuck.Type)
	assert.Equal(t, 10*time.Second, stuck.Threshold)
}

func TestPlayer_ConnectAndDisconnect(t *testing.T) {
	n, f, _ := openNode(t)
	p := n.Player("g1")
	ctx := context.Background()
	ch := player.Channel{GuildID: "g1", ChannelID: "c1"}

	require.NoError(t, p.Connect(ctx, ch, player.VoiceServer{SessionID: "v", Token: "tok", Endpoint: "voice.example"}))
	voice := f.lastUpdate(t).Voice
	require.NotNil(t, voice)
	assert.Equal(t, "tok", voice.Token)
	assert.Equal(t, ch, p.Channel())

	require.NoError(t, p.Disconnect(ctx))
	f.mu.Lock()
	assert.True(t, f.deleted)
	f.mu.Unlock()
	assert.NotSame(t, p, n.Player("g1"))
}
