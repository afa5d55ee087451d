package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// Cbor is the default codec for the persistent channel. Struct json tags
// double as cbor field names, so the same types marshal consistently on
// both the HTTP bootstrap and the channel.
type Cbor struct{}

var (
	_ Marshaler   = Cbor{}
	_ Unmarshaler = Cbor{}
)

func (Cbor) Marshal(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func (Cbor) Unmarshal(data []byte, dst any) error {
	return cbor.Unmarshal(data, dst)
}
