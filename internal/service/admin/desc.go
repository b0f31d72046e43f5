package admin

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "matchrelay.admin.v1.AdminService"

const (
	banUserMethod   = "/" + ServiceName + "/BanUser"
	unbanUserMethod = "/" + ServiceName + "/UnbanUser"
	statsMethod     = "/" + ServiceName + "/Stats"
)

// Server is the admin API. Messages are protobuf well-known types, so the
// service needs no generated code.
type Server interface {
	BanUser(context.Context, *wrapperspb.UInt64Value) (*emptypb.Empty, error)
	UnbanUser(context.Context, *wrapperspb.UInt64Value) (*emptypb.Empty, error)
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "BanUser", Handler: banUserHandler},
		{MethodName: "UnbanUser", Handler: unbanUserHandler},
		{MethodName: "Stats", Handler: statsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "matchrelay/admin/v1/admin.proto",
}

func banUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.UInt64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).BanUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: banUserMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).BanUser(ctx, req.(*wrapperspb.UInt64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func unbanUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.UInt64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).UnbanUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: unbanUserMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).UnbanUser(ctx, req.(*wrapperspb.UInt64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func statsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: statsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Stats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
