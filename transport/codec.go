package transport

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Marshal encodes a request or response payload.
func Marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal %T: %w", v, err)
	}
	return data, nil
}

// Unmarshal decodes a payload produced by Marshal.
func Unmarshal(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("transport: unmarshal %T: %w", v, err)
	}
	return nil
}

// NewMessage encodes v as the payload of a message tagged tag.
func NewMessage(tag string, v any) (*Message, error) {
	payload, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Message{Tag: tag, Payload: payload}, nil
}
