// Package rpc implements the bidirectional-streaming plugin channel
// (spec.md §4.1/§6) on top of google.golang.org/grpc. There is no protoc
// available in this build environment, so the service is wired by hand at
// the level protoc-gen-go-grpc would otherwise generate: a ServiceDesc, a
// pair of typed stream wrappers, and a custom wire.Query codec registered
// with grpc's pluggable encoding.Codec interface instead of protobuf.
package rpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"

	"github.com/mitre/hipcheck-fabric/internal/wire"
)

// CodecName is registered with grpc's global encoding registry and selected
// via grpc.ForceCodec/grpc.ForceServerCodec on every call in this package.
const CodecName = "hipcheck-query"

// queryCodec marshals *wire.Query values using the wire package's framing,
// in place of protobuf.
type queryCodec struct{}

func (queryCodec) Marshal(v any) ([]byte, error) {
	q, ok := v.(*wire.Query)
	if !ok {
		return nil, fmt.Errorf("rpc: codec cannot marshal %T, want *wire.Query", v)
	}
	return wire.Marshal(q)
}

func (queryCodec) Unmarshal(data []byte, v any) error {
	q, ok := v.(*wire.Query)
	if !ok {
		return fmt.Errorf("rpc: codec cannot unmarshal into %T, want *wire.Query", v)
	}
	decoded, err := wire.Unmarshal(data)
	if err != nil {
		return err
	}
	*q = *decoded
	return nil
}

func (queryCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(queryCodec{})
}
