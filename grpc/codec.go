package grpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is registered with google.golang.org/grpc/encoding so the
// administrative surface carries plain JSON messages instead of requiring
// a protoc-generated service definition — there is no .proto pipeline in
// this repo, and ordinary Go structs already describe the wire shape.
const jsonCodecName = "ddscore-json"

// jsonCodec implements encoding.Codec (Marshal/Unmarshal/Name) over
// encoding/json, the same serializer the originating implementation's
// pipeline-config and envelope-state surfaces already use at their JSON
// boundaries.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ddscore-json: marshal: %w", err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("ddscore-json: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
