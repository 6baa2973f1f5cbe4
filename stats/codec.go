package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Format is the encoding of a report.
type Format string

// Supported report formats.
const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
	FormatCBOR    Format = "cbor"
)

// ParseFormat converts a name into a Format.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatJSON, FormatMsgpack, FormatCBOR:
		return f, nil
	default:
		return "", fmt.Errorf("unknown stats format %q", name)
	}
}

// A Codec encodes and decodes reports.
type Codec interface {
	Encode(r Report) ([]byte, error)
	Decode(b []byte) (Report, error)
}

// NewCodec returns the codec of a format.
func NewCodec(format Format) (Codec, error) {
	switch format {
	case FormatJSON:
		return JSON{}, nil
	case FormatMsgpack:
		return Msgpack{}, nil
	case FormatCBOR:
		return NewCBOR()
	default:
		return nil, fmt.Errorf("unknown stats format %q", format)
	}
}

// JSON encodes reports as indented JSON.
type JSON struct{}

// Encode encodes a report.
func (JSON) Encode(r Report) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Decode decodes a report.
func (JSON) Decode(b []byte) (Report, error) {
	var r Report
	err := json.Unmarshal(b, &r)

	return r, err
}

// Msgpack encodes reports with MessagePack.
type Msgpack struct{}

// Encode encodes a report.
func (Msgpack) Encode(r Report) ([]byte, error) {
	return msgpack.Marshal(r)
}

// Decode decodes a report.
func (Msgpack) Decode(b []byte) (Report, error) {
	var r Report
	err := msgpack.Unmarshal(b, &r)

	return r, err
}

// CBOR encodes reports with deterministic CBOR, so that the same report
// always produces the same bytes.
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBOR creates a CBOR codec.
func NewCBOR() (CBOR, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return CBOR{}, err
	}

	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return CBOR{}, err
	}

	return CBOR{enc: enc, dec: dec}, nil
}

// Encode encodes a report.
func (c CBOR) Encode(r Report) ([]byte, error) {
	return c.enc.Marshal(r)
}

// Decode decodes a report.
func (c CBOR) Decode(b []byte) (Report, error) {
	var r Report
	err := c.dec.Unmarshal(b, &r)

	return r, err
}

// Encode writes a report in the given format.
func Encode(w io.Writer, r Report, format Format) error {
	codec, err := NewCodec(format)
	if err != nil {
		return err
	}

	b, err := codec.Encode(r)
	if err != nil {
		return fmt.Errorf("encoding stats as %s: %w", format, err)
	}

	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("writing stats: %w", err)
	}

	return nil
}
