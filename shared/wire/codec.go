package wire

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName deliberately shadows grpc-go's built-in "proto" codec name:
// registering under this name makes every RPC on this process's
// client/server use JSON marshaling without requiring per-call
// CallOptions, since grpc-go selects a codec by content-subtype and
// falls back to "proto" when the client sends no subtype (the default
// for both grpc.Dial and grpc.NewServer).
const codecName = "proto"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal %T: %w", v, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wire: unmarshal into %T: %w", v, err)
	}
	return nil
}
