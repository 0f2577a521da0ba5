package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	headerSize     = 4
	maxPayloadSize = 10 * 1024 * 1024
)

var (
	ErrShortFrame      = errors.New("frame shorter than header")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrEmptyPayload    = errors.New("empty payload")
)

// checkPayload applies the size limits shared by framing and payload decoding.
func checkPayload(n int, allowEmpty bool) error {
	switch {
	case n > maxPayloadSize:
		return fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, n, maxPayloadSize)
	case n == 0 && !allowEmpty:
		return ErrEmptyPayload
	}
	return nil
}

// Encode prefixes payload with the command id as 4 big-endian bytes.
func Encode(commandID uint32, payload []byte) ([]byte, error) {
	if err := checkPayload(len(payload), true); err != nil {
		return nil, err
	}
	frame := binary.BigEndian.AppendUint32(make([]byte, 0, headerSize+len(payload)), commandID)
	return append(frame, payload...), nil
}

// Decode splits a frame into command id and payload. The payload aliases
// data and must not be modified.
func Decode(data []byte) (uint32, []byte, error) {
	if len(data) < headerSize {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}
	if err := checkPayload(len(data)-headerSize, true); err != nil {
		return 0, nil, err
	}
	return binary.BigEndian.Uint32(data), data[headerSize:], nil
}

// DecodePayload unmarshals a payload into a fresh T. Every game message has
// a body, so an empty payload is an error.
func DecodePayload[T any](codec Codec, payload []byte) (T, error) {
	var out T
	if err := checkPayload(len(payload), false); err != nil {
		return out, err
	}
	if err := codec.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decode %T: %w", out, err)
	}
	return out, nil
}
