// Package codec abstracts the wire encoding of the persistent channel so
// the transport does not hard-code a serialization format. The channel
// frames whole envelopes, so only the one-shot marshal forms exist.
package codec

type Marshaler interface {
	Marshal(v any) ([]byte, error)
}

type Unmarshaler interface {
	Unmarshal(data []byte, dst any) error
}
