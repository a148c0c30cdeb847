// Package stream carries rich result objects from the agent-execution flow to
// the client response writer. Messages are a closed tagged union serialized as
// newline-delimited JSON; the per-session Buffer delivers them in write order
// and terminates on an end-of-stream sentinel.
package stream

import (
	"encoding/base64"

	json "github.com/goccy/go-json"
)

// Kind tags a Message so the client can reconstruct the payload without any
// Python-specific type knowledge.
type Kind string

const (
	KindText      Kind = "text"
	KindBytes     Kind = "bytes"
	KindDataFrame Kind = "dataframe"
	KindImagePNG  Kind = "image/png"
	KindOpaque    Kind = "opaque"
	KindEndStream Kind = "end_stream"
)

// Message is one unit on the wire: a kind, the payload field that kind uses,
// and an optional sender naming which agent produced it.
type Message struct {
	Kind    Kind            `json:"kind"`
	Data    string          `json:"data,omitempty"`    // text payload
	B64     string          `json:"b64,omitempty"`     // base64 payload for binary kinds
	Payload json.RawMessage `json:"payload,omitempty"` // structured payload (dataframe)
	Sender  string          `json:"sender,omitempty"`
}

// Text wraps a plain string.
func Text(s string) Message {
	return Message{Kind: KindText, Data: s}
}

// Binary wraps raw bytes under the given kind.
func Binary(kind Kind, payload []byte) Message {
	return Message{Kind: kind, B64: base64.StdEncoding.EncodeToString(payload)}
}

// EndStream is the sentinel that terminates a session stream.
func EndStream() Message {
	return Message{Kind: KindEndStream}
}

// WithSender returns a copy attributed to the given agent identity.
func (m Message) WithSender(sender string) Message {
	m.Sender = sender
	return m
}

// Encode renders the message as one JSON line, without the trailing newline.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

func (m *Message) decode(data []byte) error {
	return json.Unmarshal(data, m)
}
