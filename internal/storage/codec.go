package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/san-kum/swimsim/internal/dynamo"
)

// Codec serializes one value per call. Decode reads a single value and may
// buffer past its end, so blobs of a stream are decoded through their index
// entries.
type Codec interface {
	Name() string
	Ext() string
	Encode(w io.Writer, v any) error
	Decode(r io.Reader, v any) error
}

// NewCodec selects the codec for an output_format value.
func NewCodec(format string) (Codec, error) {
	switch strings.ToLower(format) {
	case "bincode":
		return Bincode{}, nil
	case "cbor":
		return newCBOR()
	case "json":
		return JSON{}, nil
	}
	return nil, &dynamo.ConfigError{Field: "environment.output_format", Reason: fmt.Sprintf("unknown format %q", format)}
}

type JSON struct{}

func (JSON) Name() string { return "Json" }
func (JSON) Ext() string  { return "json" }

func (JSON) Encode(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func (JSON) Decode(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

// CBOR uses the core deterministic encoding, so equal values give equal
// bytes.
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBOR() (*CBOR, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return &CBOR{enc: enc, dec: dec}, nil
}

func (*CBOR) Name() string { return "Cbor" }
func (*CBOR) Ext() string  { return "cbor" }

func (c *CBOR) Encode(w io.Writer, v any) error {
	return c.enc.NewEncoder(w).Encode(v)
}

func (c *CBOR) Decode(r io.Reader, v any) error {
	return c.dec.NewDecoder(r).Decode(v)
}
