// Package codec turns cached values into bytes and back. The entity cache in
// remote/cached stores remote documents through one of these.
package codec

import (
	"fmt"
	"strings"
)

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// ByName returns the document codec registered under name:
// json, cbor, msgpack or protobuf. An empty name selects json.
func ByName[M ~map[string]any](name string) (Codec[M], error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON[M]{}, nil
	case "cbor":
		return NewCBOR[M](false)
	case "msgpack":
		return Msgpack[M]{}, nil
	case "protobuf", "proto":
		return Struct[M]{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
