// Package transport defines the interface for pluggable request transports.
//
// Each transport (HTTP, gRPC) implements this interface and serves the same
// Service. The dispatcher doesn't care how requests arrive; it only works
// with the Service contract.
package transport

import (
	"context"
	"errors"

	"github.com/nadzzz/interlude/internal/announce"
	"github.com/nadzzz/interlude/internal/dispatch"
	"github.com/nadzzz/interlude/internal/guildconfig"
	"github.com/nadzzz/interlude/internal/message"
	"github.com/nadzzz/interlude/internal/player/lavalink"
	"github.com/nadzzz/interlude/internal/session"
	"github.com/nadzzz/interlude/internal/tts"
)

// Service is the command surface every transport exposes. It is implemented
// by dispatch.Dispatcher.
type Service interface {
	Say(ctx context.Context, req *message.SayRequest) (*message.SayResult, error)
	Languages(ctx context.Context) (*message.LanguagesResult, error)
	GetConfig(ctx context.Context, guildID string) (*message.GuildConfig, error)
	SetLang(ctx context.Context, token, guildID, lang string) (*message.GuildConfig, error)
	SetPadding(ctx context.Context, token, guildID string, paddingMS int64) (*message.GuildConfig, error)
	Leave(ctx context.Context, token, guildID string) (*message.LeaveResult, error)
}

var _ Service = (*dispatch.Dispatcher)(nil)

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http").
	Name() string

	// Listen starts accepting requests and serves them from svc.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, svc Service) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}

// Kind classifies a Service error for the transports' status codes.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindForbidden
	KindUpstream
	KindUnavailable
	KindNotFound
)

// Classify maps a Service error to its Kind.
func Classify(err error) Kind {
	var (
		synthErr *tts.SynthesisError
		opErr    *announce.PlayerOperationError
		reqErr   *lavalink.RequestError
	)
	switch {
	case errors.Is(err, dispatch.ErrEmptyText),
		errors.Is(err, dispatch.ErrNotInVoice),
		errors.Is(err, guildconfig.ErrInvalidPadding),
		errors.Is(err, tts.ErrUnsupportedLanguage):
		return KindInvalid
	case errors.Is(err, dispatch.ErrForbidden):
		return KindForbidden
	case errors.Is(err, session.ErrNoSession):
		return KindNotFound
	case errors.Is(err, announce.ErrClosed),
		errors.Is(err, lavalink.ErrNotConnected),
		errors.Is(err, lavalink.ErrNoMatches),
		errors.Is(err, lavalink.ErrLoadFailed),
		errors.As(err, &opErr),
		errors.As(err, &reqErr):
		return KindUnavailable
	case errors.As(err, &synthErr):
		return KindUpstream
	default:
		return KindInternal
	}
}
