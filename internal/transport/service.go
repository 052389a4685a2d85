package transport

import (
	"context"

	"google.golang.org/grpc"
)

// BroadcastServer is implemented by Server; split out so the hand-written
// ServiceDesc below stays decoupled from the concrete type.
type BroadcastServer interface {
	Broadcast(context.Context, *Envelope) (*AckResponse, error)
	HealthCheck(context.Context, *HealthRequest) (*HealthResponse, error)
}

func broadcastHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Envelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BroadcastServer).Broadcast(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/polykernel.transport.v1.Transport/Broadcast"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BroadcastServer).Broadcast(ctx, req.(*Envelope))
	}
	return interceptor(ctx, in, info, handler)
}

func healthCheckHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HealthRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BroadcastServer).HealthCheck(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/polykernel.transport.v1.Transport/HealthCheck"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BroadcastServer).HealthCheck(ctx, req.(*HealthRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// serviceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would emit for a two-method "Transport" service; there is no .proto file
// in this module to generate it from, so it is authored directly against
// grpc.ServiceDesc's documented shape.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "polykernel.transport.v1.Transport",
	HandlerType: (*BroadcastServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Broadcast", Handler: broadcastHandler},
		{MethodName: "HealthCheck", Handler: healthCheckHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/transport/service.go",
}

// RegisterTransportServer registers srv on grpcServer.
func RegisterTransportServer(grpcServer *grpc.Server, srv BroadcastServer) {
	grpcServer.RegisterService(&serviceDesc, srv)
}
