package grpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/nadzzz/interlude/internal/message"
	"github.com/nadzzz/interlude/internal/transport"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec marshals messages as JSON for the "json" content-subtype.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*transport.Service)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Say", Handler: unary("Say", func(ctx context.Context, svc transport.Service, req *message.SayRequest) (any, error) {
			return svc.Say(ctx, req)
		})},
		{MethodName: "Languages", Handler: unary("Languages", func(ctx context.Context, svc transport.Service, _ *Empty) (any, error) {
			return svc.Languages(ctx)
		})},
		{MethodName: "GetConfig", Handler: unary("GetConfig", func(ctx context.Context, svc transport.Service, req *GuildRequest) (any, error) {
			return svc.GetConfig(ctx, req.GuildID)
		})},
		{MethodName: "SetLang", Handler: unary("SetLang", func(ctx context.Context, svc transport.Service, req *SetLangRequest) (any, error) {
			return svc.SetLang(ctx, bearer(ctx), req.GuildID, req.Lang)
		})},
		{MethodName: "SetPadding", Handler: unary("SetPadding", func(ctx context.Context, svc transport.Service, req *SetPaddingRequest) (any, error) {
			return svc.SetPadding(ctx, bearer(ctx), req.GuildID, req.PaddingMS)
		})},
		{MethodName: "Leave", Handler: unary("Leave", func(ctx context.Context, svc transport.Service, req *GuildRequest) (any, error) {
			return svc.Leave(ctx, bearer(ctx), req.GuildID)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "interlude/v1/announcer.proto",
}

// unary builds a grpc.MethodHandler that decodes a *Req and calls fn,
// going through the server's interceptor when one is installed.
func unary[Req any](method string, fn func(context.Context, transport.Service, *Req) (any, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		svc := srv.(transport.Service)
		call := func(ctx context.Context, req any) (any, error) {
			return fn(ctx, svc, req.(*Req))
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, call)
	}
}
