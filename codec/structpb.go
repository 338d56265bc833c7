package codec

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Struct stores documents as google.protobuf.Struct messages.
// Values must be JSON-shaped: nil, bool, numbers, strings, []any and
// map[string]any. Numbers come back as float64.
type Struct[M ~map[string]any] struct{}

var _ Codec[map[string]any] = Struct[map[string]any]{}

func (Struct[M]) Encode(m M) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(s)
}

func (Struct[M]) Decode(b []byte) (M, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		var zero M
		return zero, err
	}
	return M(s.AsMap()), nil
}
