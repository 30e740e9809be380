package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope wraps a payload for transport
type Envelope struct {
	Method string `json:"method"`
	Data   any    `json:"data"`
}

// RawEnvelope is a decoded envelope whose data is left undecoded.
type RawEnvelope struct {
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data"`
}

// NewEnvelope creates an envelope for method. The data value is not
// inspected.
func NewEnvelope(method string, data any) (*Envelope, error) {
	if method == "" {
		return nil, ErrMissingMethod
	}
	return &Envelope{Method: method, Data: data}, nil
}

// Marshal encodes the envelope as compact JSON. Non-ASCII characters and
// HTML-sensitive characters are written as-is.
func (e *Envelope) Marshal() ([]byte, error) {
	if e.Method == "" {
		return nil, ErrMissingMethod
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, fmt.Errorf("failed to marshal envelope %q: %w", e.Method, err)
	}

	// Encode terminates every value with a newline.
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses a message body produced by Envelope.Marshal.
func Decode(body []byte) (*RawEnvelope, error) {
	var raw RawEnvelope
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if raw.Method == "" {
		return nil, ErrMissingMethod
	}
	return &raw, nil
}

// DecodeData unmarshals the envelope data into v.
func (r *RawEnvelope) DecodeData(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("%w: missing data", ErrInvalidEnvelope)
	}
	return json.Unmarshal(r.Data, v)
}
