package ledger

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ledger.v1.LedgerService"

const (
	methodAppend          = "/" + ServiceName + "/Append"
	methodReadStream      = "/" + ServiceName + "/ReadStream"
	methodStreamVersion   = "/" + ServiceName + "/StreamVersion"
	methodVerifyIntegrity = "/" + ServiceName + "/VerifyIntegrity"
	methodListStreams     = "/" + ServiceName + "/ListStreams"
)

// LedgerServer is the server API for ledger.v1.LedgerService.
type LedgerServer interface {
	Append(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReadStream(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamVersion(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error)
	VerifyIntegrity(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListStreams(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
}

// ServiceDesc describes ledger.v1.LedgerService for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Append", Handler: unary(methodAppend, LedgerServer.Append)},
		{MethodName: "ReadStream", Handler: unary(methodReadStream, LedgerServer.ReadStream)},
		{MethodName: "StreamVersion", Handler: unary(methodStreamVersion, LedgerServer.StreamVersion)},
		{MethodName: "VerifyIntegrity", Handler: unary(methodVerifyIntegrity, LedgerServer.VerifyIntegrity)},
		{MethodName: "ListStreams", Handler: unary(methodListStreams, LedgerServer.ListStreams)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.proto",
}

// RegisterLedgerServer registers srv on registrar.
func RegisterLedgerServer(registrar grpc.ServiceRegistrar, srv LedgerServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// unary adapts a typed method into a grpc.MethodHandler.
func unary[Req any, PReq interface {
	*Req
	proto.Message
}, Resp proto.Message](fullMethod string, call func(LedgerServer, context.Context, PReq) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}
