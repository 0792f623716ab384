// Package lavalink implements guild players on top of a Lavalink v4 audio node.
//
// The node plays one track per guild and reports progress over a websocket.
// Queues are kept client-side by Player, which advances to the next queued
// track whenever the node reports that a track finished on its own.
package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrNotConnected is returned when the node session is not established.
	ErrNotConnected = errors.New("lavalink node not connected")

	// ErrNoMatches is returned when a track lookup found nothing playable.
	ErrNoMatches = errors.New("no matching tracks")

	// ErrLoadFailed is returned when the node could not load an identifier.
	ErrLoadFailed = errors.New("lavalink load failed")
)

// RequestError is a failed REST call to the node: either the request never
// got a response (Err is set) or the node answered with an error status.
type RequestError struct {
	Method  string
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lavalink %s: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("lavalink %s: status %d: %s", e.Method, e.Status, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Config describes how to reach the node.
type Config struct {
	Address    string // host:port
	Password   string
	UserID     string // bot user id
	ClientName string
	Secure     bool
}

// Node is a connection to one Lavalink server shared by every guild player.
type Node struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	sessionID string
	players   map[string]*Player

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
}

// NewNode creates a node client. Call Open before using any player.
func NewNode(cfg Config) *Node {
	if cfg.ClientName == "" {
		cfg.ClientName = "interlude"
	}
	return &Node{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  slog.With("component", "lavalink", "address", cfg.Address),
		players: make(map[string]*Player),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (n *Node) baseURL(scheme string) string {
	if n.cfg.Secure {
		scheme += "s"
	}
	return scheme + "://" + n.cfg.Address
}

// Open dials the node websocket and waits for the ready op.
func (n *Node) Open(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", n.cfg.Password)
	header.Set("User-Id", n.cfg.UserID)
	header.Set("Client-Name", n.cfg.ClientName)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, n.baseURL("ws")+"/v4/websocket", header)
	if err != nil {
		return fmt.Errorf("dialing lavalink: %w", err)
	}

	n.mu.Lock()
	n.conn = conn
	n.mu.Unlock()

	go n.readLoop(conn)

	select {
	case <-n.ready:
		n.logger.Info("lavalink session ready", "session_id", n.SessionID())
		return nil
	case <-n.done:
		return fmt.Errorf("lavalink closed before ready: %w", ErrNotConnected)
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	}
}

// SessionID returns the node session id, empty until ready.
func (n *Node) SessionID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sessionID
}

// Connected reports whether the node session is usable.
func (n *Node) Connected() bool {
	select {
	case <-n.done:
		return false
	default:
	}
	return n.SessionID() != ""
}

// Player returns the guild's player, creating it on first use.
func (n *Node) Player(guildID string) *Player {
	n.mu.Lock()
	defer n.mu.Unlock()

	if p, ok := n.players[guildID]; ok {
		return p
	}
	p := newPlayer(n, guildID)
	n.players[guildID] = p
	return p
}

func (n *Node) existingPlayer(guildID string) *Player {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.players[guildID]
}

func (n *Node) forget(guildID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.players, guildID)
}

// Close shuts the websocket down. Players stop receiving events.
func (n *Node) Close() error {
	n.mu.Lock()
	conn := n.conn
	n.conn = nil
	n.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}

func (n *Node) readLoop(conn *websocket.Conn) {
	defer close(n.done)

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				n.logger.Error("lavalink websocket closed", "error", err)
			}
			return
		}
		n.handle(&msg)
	}
}

func (n *Node) handle(msg *inbound) {
	switch msg.Op {
	case opReady:
		n.mu.Lock()
		n.sessionID = msg.SessionID
		n.mu.Unlock()
		n.readyOnce.Do(func() { close(n.ready) })

	case opPlayerUpdate:
		if p := n.existingPlayer(msg.GuildID); p != nil && msg.State != nil {
			p.onStateUpdate(*msg.State)
		}

	case opEvent:
		p := n.existingPlayer(msg.GuildID)
		if p == nil {
			n.logger.Debug("event for unknown guild", "guild_id", msg.GuildID, "type", msg.Type)
			return
		}
		p.onEvent(msg)

	case opStats:
		// Node load is not used for routing; there is only one node.

	default:
		n.logger.Debug("unknown lavalink op", "op", msg.Op)
	}
}

// loadTracks resolves an identifier (file path, URL or search query).
func (n *Node) loadTracks(ctx context.Context, identifier string) ([]apiTrack, error) {
	endpoint := n.baseURL("http") + "/v4/loadtracks?identifier=" + url.QueryEscape(identifier)

	var res loadResult
	if err := n.do(ctx, http.MethodGet, endpoint, nil, &res); err != nil {
		return nil, err
	}

	switch res.LoadType {
	case loadTrack:
		var t apiTrack
		if err := json.Unmarshal(res.Data, &t); err != nil {
			return nil, fmt.Errorf("decoding track: %w", err)
		}
		return []apiTrack{t}, nil
	case loadSearch:
		var ts []apiTrack
		if err := json.Unmarshal(res.Data, &ts); err != nil {
			return nil, fmt.Errorf("decoding search result: %w", err)
		}
		return ts, nil
	case loadPlaylist:
		var pl playlistData
		if err := json.Unmarshal(res.Data, &pl); err != nil {
			return nil, fmt.Errorf("decoding playlist: %w", err)
		}
		return pl.Tracks, nil
	case loadEmpty:
		return nil, nil
	case loadError:
		var ex exception
		_ = json.Unmarshal(res.Data, &ex)
		return nil, fmt.Errorf("%w (%s): %s", ErrLoadFailed, ex.Severity, ex.Message)
	default:
		return nil, fmt.Errorf("%w: unknown load type %q", ErrLoadFailed, res.LoadType)
	}
}

func (n *Node) updatePlayer(ctx context.Context, guildID string, update playerUpdate) error {
	sid := n.SessionID()
	if sid == "" {
		return ErrNotConnected
	}
	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshalling player update: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v4/sessions/%s/players/%s", n.baseURL("http"), sid, guildID)
	return n.do(ctx, http.MethodPatch, endpoint, body, nil)
}

func (n *Node) destroyPlayer(ctx context.Context, guildID string) error {
	sid := n.SessionID()
	if sid == "" {
		return ErrNotConnected
	}
	endpoint := fmt.Sprintf("%s/v4/sessions/%s/players/%s", n.baseURL("http"), sid, guildID)
	return n.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

func (n *Node) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("lavalink %s: %w", method, err)
	}
	req.Header.Set("Authorization", n.cfg.Password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return &RequestError{Method: method, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := string(raw)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return &RequestError{Method: method, Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding lavalink response: %w", err)
	}
	return nil
}
