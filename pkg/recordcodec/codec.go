package recordcodec

import (
	"encoding/json"
	"fmt"
)

// itemTag is the leading byte of every item-slot value, distinguishing an
// inline payload from a blob-referencing sentinel.
type itemTag byte

const (
	tagInline  itemTag = 0x00
	tagExternal itemTag = 0x01
)

// Serialize encodes record to its self-describing wire form.
func Serialize(record any) ([]byte, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("recordcodec: marshal: %w", err)
	}
	return raw, nil
}

// Deserialize decodes data into a zero-value T.
func Deserialize[T any](data []byte) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("recordcodec: unmarshal: %w", err)
	}
	return out, nil
}

// SerializeAny is Serialize under a name that reads naturally at
// polymorphic-dispatch call sites, where the static type behind record is
// only known as any.
func SerializeAny(record any) ([]byte, error) { return Serialize(record) }

// DeserializeAny decodes data into a fresh instance obtained from
// newInstance, for callers resolving the concrete type at runtime — e.g.
// polymorphic fetch dispatching on a schema registry's type code — rather
// than through a compile-time type parameter. newInstance must return a
// pointer.
func DeserializeAny(data []byte, newInstance func() any) (any, error) {
	out := newInstance()
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("recordcodec: unmarshal: %w", err)
	}
	return out, nil
}
