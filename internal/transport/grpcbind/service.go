// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package grpcbind

import (
	"context"

	"google.golang.org/grpc"

	"github.com/lorenzo-online/lorenzo/internal/protocol"
	"github.com/lorenzo-online/lorenzo/internal/transport"
)

// ServiceName is the fully qualified name of the Match service.
const ServiceName = "lorenzo.transport.v1.Match"

// ConnectRequest opens a connection.
type ConnectRequest struct {
	Version string `json:"version"`
}

// ConnectResponse carries the session token.
type ConnectResponse struct {
	Token string `json:"token"`
}

// CredentialsRequest is sent by Login and Register.
type CredentialsRequest struct {
	Token       string                `json:"token"`
	Credentials transport.Credentials `json:"credentials"`
}

// ActionRequest submits an action.
type ActionRequest struct {
	Token  string                  `json:"token"`
	Action protocol.ActionEnvelope `json:"action"`
}

// TokenRequest names a connection.
type TokenRequest struct {
	Token string `json:"token"`
}

// Ack is the empty reply of the fire-and-forget calls.
type Ack struct{}

// MatchServer is the server API of the Match service.
type MatchServer interface {
	Connect(ctx context.Context, req *ConnectRequest) (*ConnectResponse, error)
	Login(ctx context.Context, req *CredentialsRequest) (*Ack, error)
	Register(ctx context.Context, req *CredentialsRequest) (*Ack, error)
	PerformAction(ctx context.Context, req *ActionRequest) (*Ack, error)
	Disconnect(ctx context.Context, req *TokenRequest) (*Ack, error)
	Notifications(req *TokenRequest, stream grpc.ServerStreamingServer[protocol.Envelope]) error
}

// RegisterMatchServer registers srv on s.
func RegisterMatchServer(s grpc.ServiceRegistrar, srv MatchServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatchServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Connect", MatchServer.Connect),
		unary("Login", MatchServer.Login),
		unary("Register", MatchServer.Register),
		unary("PerformAction", MatchServer.PerformAction),
		unary("Disconnect", MatchServer.Disconnect),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Notifications",
			Handler:       notificationsHandler,
			ServerStreams: true,
		},
	},
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(MatchServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MatchServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MatchServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func notificationsHandler(srv any, stream grpc.ServerStream) error {
	in := new(TokenRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(MatchServer).Notifications(in, &grpc.GenericServerStream[TokenRequest, protocol.Envelope]{ServerStream: stream})
}

// matchClient calls the Match service over conn.
type matchClient struct {
	cc grpc.ClientConnInterface
}

func (c matchClient) Connect(ctx context.Context, in *ConnectRequest, opts ...grpc.CallOption) (*ConnectResponse, error) {
	out := new(ConnectResponse)
	if err := c.cc.Invoke(ctx, fullMethod("Connect"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c matchClient) ack(ctx context.Context, method string, in any, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, fullMethod(method), in, new(Ack), opts...)
}

func (c matchClient) Notifications(ctx context.Context, in *TokenRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[protocol.Envelope], error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], fullMethod("Notifications"), opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[TokenRequest, protocol.Envelope]{ClientStream: stream}
	if err := x.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
