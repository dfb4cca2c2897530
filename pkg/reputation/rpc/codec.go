package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Name is the content-subtype this codec registers under. Clients must set
// grpc.CallContentSubtype(Name) so the server selects it instead of the
// default proto codec.
const Name = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return Name
}
