// Package grpc implements the gRPC transport for interlude.
//
// The Announcer service is described by hand and carried with a JSON codec
// (content-subtype "json"), so clients need no generated stubs: they invoke
// "/interlude.v1.Announcer/Say" with a JSON-encodable request and the
// "json" call content-subtype. The standard grpc.health.v1 service is served
// alongside.
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/interlude/internal/transport"
)

// ServiceName is the fully qualified name of the Announcer service.
const ServiceName = "interlude.v1.Announcer"

// GuildRequest addresses one guild.
type GuildRequest struct {
	GuildID string `json:"guild_id"`
}

// SetLangRequest changes a guild's default language.
type SetLangRequest struct {
	GuildID string `json:"guild_id"`
	Lang    string `json:"lang"`
}

// SetPaddingRequest changes a guild's padding.
type SetPaddingRequest struct {
	GuildID   string `json:"guild_id"`
	PaddingMS int64  `json:"padding_ms"`
}

// Empty is the request of parameterless methods.
type Empty struct{}

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	server *grpc.Server
	health *health.Server
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen opens the TCP port and serves svc until ctx is cancelled.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.Serve(ctx, lis, svc)
}

// Serve serves svc on lis until ctx is cancelled.
func (t *Transport) Serve(ctx context.Context, lis net.Listener, svc transport.Service) error {
	t.server = grpc.NewServer(grpc.UnaryInterceptor(statusInterceptor))
	t.server.RegisterService(&serviceDesc, svc)

	t.health = health.NewServer()
	t.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(t.server, t.health)

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.health.Shutdown()
		t.server.GracefulStop()
	}()

	return t.server.Serve(lis)
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	if t.health != nil {
		t.health.Shutdown()
	}
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}

// statusInterceptor turns Service errors into gRPC statuses.
func statusInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err == nil {
		return resp, nil
	}
	if _, ok := status.FromError(err); ok {
		return nil, err
	}
	code := codeFor(err)
	if code == codes.Internal {
		slog.Error("grpc request failed", "method", info.FullMethod, "error", err)
	}
	return nil, status.Error(code, err.Error())
}

func codeFor(err error) codes.Code {
	switch transport.Classify(err) {
	case transport.KindInvalid:
		return codes.InvalidArgument
	case transport.KindForbidden:
		return codes.PermissionDenied
	case transport.KindUpstream, transport.KindUnavailable:
		return codes.Unavailable
	case transport.KindNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}

// bearer reads the admin token from the "authorization" metadata.
func bearer(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	for _, v := range md.Get("authorization") {
		if token, ok := strings.CutPrefix(v, "Bearer "); ok {
			return token
		}
	}
	return ""
}
