package notebook

import (
	"encoding/base64"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Value is one result value produced by a cell. Live Python objects cannot
// cross the worker process boundary, so the worker tags every result with a
// shape the host understands; the closed set below mirrors those tags.
type Value interface {
	kind() string
}

// Text is a plain string result.
type Text string

// Bytes is a raw byte-sequence result.
type Bytes []byte

// Table is a tabular result in column-oriented split form: column names,
// row index labels and row-major data.
type Table struct {
	Columns []string          `json:"columns"`
	Index   []json.RawMessage `json:"index"`
	Data    [][]any           `json:"data"`
}

// Image is a rendered bitmap, always PNG-encoded by the worker.
type Image struct {
	PNG []byte
}

// Opaque is the fallback shape for results the worker could not map to any
// recognized tag. Payload is the worker's opaque serialization of the object;
// it is forwarded as-is and never interpreted by the host.
type Opaque struct {
	TypeName string
	Payload  []byte
}

func (Text) kind() string   { return "text" }
func (Bytes) kind() string  { return "bytes" }
func (Table) kind() string  { return "dataframe" }
func (Image) kind() string  { return "image/png" }
func (Opaque) kind() string { return "opaque" }

// decodeValue maps one tagged result object from the worker protocol into a
// Value. Unknown tags and undecodable payloads degrade to Opaque so that a
// worker-side change can never fail a cell on the host side.
func decodeValue(jv gjson.Result) Value {
	switch jv.Get("kind").String() {
	case "text":
		return Text(jv.Get("data").String())
	case "bytes":
		if raw, err := base64.StdEncoding.DecodeString(jv.Get("b64").String()); err == nil {
			return Bytes(raw)
		}
	case "dataframe":
		var t Table
		if err := json.Unmarshal([]byte(jv.Get("data").Raw), &t); err == nil {
			return t
		}
	case "image/png":
		if raw, err := base64.StdEncoding.DecodeString(jv.Get("b64").String()); err == nil {
			return Image{PNG: raw}
		}
	}
	payload, err := base64.StdEncoding.DecodeString(jv.Get("b64").String())
	if err != nil || len(payload) == 0 {
		payload = []byte(jv.Raw)
	}
	return Opaque{TypeName: jv.Get("type").String(), Payload: payload}
}
