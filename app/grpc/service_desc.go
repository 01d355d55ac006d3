package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The confirmation service is described by hand with well-known message
// types: requests carry the checkout session id as a StringValue and
// responses use the same field names as the JSON API inside a Struct.
const (
	ServiceName             = "payment_confirmations.ConfirmationService"
	StartConfirmationMethod = "/" + ServiceName + "/StartConfirmation"
	GetConfirmationMethod   = "/" + ServiceName + "/GetConfirmation"
)

type ConfirmationServer interface {
	StartConfirmation(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	GetConfirmation(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

var ConfirmationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConfirmationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartConfirmation", Handler: startConfirmationHandler},
		{MethodName: "GetConfirmation", Handler: getConfirmationHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "payment_confirmations.proto",
}

func RegisterConfirmationServer(s grpc.ServiceRegistrar, srv ConfirmationServer) {
	s.RegisterService(&ConfirmationServiceDesc, srv)
}

func startConfirmationHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConfirmationServer).StartConfirmation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: StartConfirmationMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ConfirmationServer).StartConfirmation(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getConfirmationHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConfirmationServer).GetConfirmation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetConfirmationMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ConfirmationServer).GetConfirmation(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls the confirmation service over an established connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) StartConfirmation(ctx context.Context, sessionID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, StartConfirmationMethod, wrapperspb.String(sessionID), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetConfirmation(ctx context.Context, sessionID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetConfirmationMethod, wrapperspb.String(sessionID), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
