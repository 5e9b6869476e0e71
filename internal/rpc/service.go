package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/mitre/hipcheck-fabric/internal/wire"
)

// ServiceName and MethodName mirror the names protoc-gen-go-grpc would have
// derived from a plugin.proto `service PluginService { rpc Execute(stream
// Query) returns (stream Query); }` definition, which this repo never had a
// protoc available to generate.
const (
	ServiceName = "hipcheck.fabric.PluginService"
	MethodName  = "Execute"
	fullMethod  = "/" + ServiceName + "/" + MethodName
)

// PluginServiceServer is the plugin-side handler of the Execute stream; this
// module defines and registers the service but contains no implementation.
// One call to Execute serves one bidirectional session: the host sends
// submit fragments and the plugin sends reply/sub-query fragments over the
// same stream.
type PluginServiceServer interface {
	Execute(PluginService_ExecuteServer) error
}

// PluginService_ExecuteServer is the server-side view of the stream.
type PluginService_ExecuteServer interface {
	Send(*wire.Query) error
	Recv() (*wire.Query, error)
	grpc.ServerStream
}

type pluginServiceExecuteServer struct {
	grpc.ServerStream
}

func (x *pluginServiceExecuteServer) Send(m *wire.Query) error {
	return x.ServerStream.SendMsg(m)
}

func (x *pluginServiceExecuteServer) Recv() (*wire.Query, error) {
	m := new(wire.Query)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func executeHandler(srv any, stream grpc.ServerStream) error {
	return srv.(PluginServiceServer).Execute(&pluginServiceExecuteServer{ServerStream: stream})
}

// ServiceDesc is registered with a *grpc.Server via RegisterPluginServiceServer.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PluginServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodName,
			Handler:       executeHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "internal/rpc/service.go",
}

// RegisterPluginServiceServer wires impl into s using our hand-rolled
// ServiceDesc, the non-protobuf equivalent of the generated
// RegisterXxxServer function.
func RegisterPluginServiceServer(s grpc.ServiceRegistrar, impl PluginServiceServer) {
	s.RegisterService(&ServiceDesc, impl)
}

// PluginServiceClient is the host-side handle used by internal/dispatch's
// PluginRouter to open one Execute stream per plugin connection.
type PluginServiceClient interface {
	Execute(ctx context.Context, opts ...grpc.CallOption) (PluginService_ExecuteClient, error)
}

type pluginServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPluginServiceClient builds a client bound to cc. cc must have been
// dialed with grpc.ForceCodec (see Dial in this package) so frames are
// encoded with the wire.Query codec instead of protobuf.
func NewPluginServiceClient(cc grpc.ClientConnInterface) PluginServiceClient {
	return &pluginServiceClient{cc: cc}
}

func (c *pluginServiceClient) Execute(ctx context.Context, opts ...grpc.CallOption) (PluginService_ExecuteClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], fullMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &pluginServiceExecuteClient{ClientStream: stream}, nil
}

// PluginService_ExecuteClient is the client-side view of the stream.
type PluginService_ExecuteClient interface {
	Send(*wire.Query) error
	Recv() (*wire.Query, error)
	grpc.ClientStream
}

type pluginServiceExecuteClient struct {
	grpc.ClientStream
}

func (x *pluginServiceExecuteClient) Send(m *wire.Query) error {
	return x.ClientStream.SendMsg(m)
}

func (x *pluginServiceExecuteClient) Recv() (*wire.Query, error) {
	m := new(wire.Query)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
