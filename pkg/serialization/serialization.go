// Package serialization picks the wire format of persisted parlay documents.
package serialization

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
)

const (
	// JSONType stores documents as JSON, readable with redis-cli.
	JSONType = "json"

	// GobType stores documents as gob.
	GobType = "gob"
)

// Decoder reads one value from a stream. *json.Decoder and *gob.Decoder
// satisfy it.
type Decoder interface {
	Decode(v any) error
}

// Encoder writes one value to a stream. *json.Encoder and *gob.Encoder
// satisfy it.
type Encoder interface {
	Encode(v any) error
}

// Codec pairs the encoder and decoder factories of one format.
type Codec struct {
	Type    string
	Encoder func(io.Writer) Encoder
	Decoder func(io.Reader) Decoder
}

// For returns the codec registered under name. An empty name selects JSON.
func For(name string) (Codec, error) {
	switch name {
	case JSONType, "":
		return Codec{
			Type:    JSONType,
			Encoder: func(w io.Writer) Encoder { return json.NewEncoder(w) },
			Decoder: func(r io.Reader) Decoder { return json.NewDecoder(r) },
		}, nil
	case GobType:
		// Gob streams carry type info once per encoder, so each document
		// gets its own encoder.
		return Codec{
			Type:    GobType,
			Encoder: func(w io.Writer) Encoder { return gob.NewEncoder(w) },
			Decoder: func(r io.Reader) Decoder { return gob.NewDecoder(r) },
		}, nil
	default:
		return Codec{}, fmt.Errorf("unsupported serialization type: %s", name)
	}
}

// Marshal encodes v as one document.
func (c Codec) Marshal(v any) ([]byte, error) {
	if c.Encoder == nil {
		return nil, fmt.Errorf("codec %q has no encoder", c.Type)
	}
	var buf bytes.Buffer
	if err := c.Encoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("%s encode: %w", c.Type, err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes one document produced by Marshal into v.
func (c Codec) Unmarshal(data []byte, v any) error {
	if c.Decoder == nil {
		return fmt.Errorf("codec %q has no decoder", c.Type)
	}
	if err := c.Decoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("%s decode: %w", c.Type, err)
	}
	return nil
}
