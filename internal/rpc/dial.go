package rpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Dial opens a client connection to a plugin subprocess listening at addr
// (a localhost TCP address or a unix socket path prefixed with "unix:").
// The transport is always plaintext (insecure credentials): Dial offers no
// TLS option, and it does not start the plugin process itself.
func Dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(queryCodec{})),
	)
}
