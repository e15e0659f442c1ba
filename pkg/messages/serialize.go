package messages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// SerializeMessage encodes m as JSON, zstd compressed when compress is set.
func SerializeMessage(m *Message, compress bool) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %v", err)
	}
	if !compress {
		return b, nil
	}

	compressed := bytes.NewBuffer(nil)
	compWriter, err := zstd.NewWriter(compressed, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %v", err)
	}
	if _, err := compWriter.Write(b); err != nil {
		return nil, fmt.Errorf("failed to compress message: %v", err)
	}
	if err := compWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd writer: %v", err)
	}

	return compressed.Bytes(), nil
}

// DeserializeMessage is the inverse of SerializeMessage.
func DeserializeMessage(data []byte, compressed bool) (*Message, error) {
	b := data
	if compressed {
		compReader, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %v", err)
		}
		defer compReader.Close()
		b, err = io.ReadAll(io.LimitReader(compReader, MessageBufferSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read decompressed message: %v", err)
		}
		if len(b) > MessageBufferSize {
			return nil, fmt.Errorf("decompressed message exceeds %d bytes", MessageBufferSize)
		}
	}

	message := &Message{}
	if err := json.Unmarshal(b, message); err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %v", err)
	}
	if message.Type == "" {
		return nil, fmt.Errorf("message has no type")
	}
	return message, nil
}

// DecodePayload unmarshals the payload of m into v.
func DecodePayload(m *Message, v interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("message %s has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %v", m.Type, err)
	}
	return nil
}
