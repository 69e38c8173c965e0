package codec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
)

// Serializer turns cached values into bytes and back.
type Serializer interface {
	// Marshal encodes v.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into the value pointed to by v.
	Unmarshal(data []byte, v any) error

	// Name returns the registry name of the serializer.
	Name() string
}

// NewSerializer returns the serializer registered under name.
func NewSerializer(name string) (Serializer, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "proto":
		return Proto{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown serializer %q (available: json, proto)", name)
	}
}

// JSON serializes values with encoding/json.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (JSON) Name() string { return "json" }

// Proto serializes proto.Message values with the protobuf wire format and
// falls back to JSON for everything else. The decision is made from the Go
// type on both sides, so a value is always decoded the way it was encoded.
type Proto struct{}

func (Proto) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	return json.Marshal(v)
}

func (Proto) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}

	// v is usually a **T where *T is the message type.
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		elem := rv.Elem()
		if elem.Kind() == reflect.Pointer {
			msgType := elem.Type()
			if msgType.Implements(reflect.TypeFor[proto.Message]()) {
				fresh := reflect.New(msgType.Elem())
				if err := proto.Unmarshal(data, fresh.Interface().(proto.Message)); err != nil {
					return err
				}
				elem.Set(fresh)
				return nil
			}
		}
	}
	return json.Unmarshal(data, v)
}

func (Proto) Name() string { return "proto" }
