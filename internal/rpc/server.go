package rpc

import "google.golang.org/grpc"

// NewServer builds a *grpc.Server configured to use the wire.Query codec for
// every RPC, the plugin-process-side counterpart of Dial.
func NewServer(opts ...grpc.ServerOption) *grpc.Server {
	all := append([]grpc.ServerOption{grpc.ForceServerCodec(queryCodec{})}, opts...)
	return grpc.NewServer(all...)
}
