package stream

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/kawashishu/spec-agent/notebook"
)

// Serialize converts an arbitrary result value into a transport Message.
// It is total: every recognized shape maps to its tagged variant, and
// everything else falls back to an opaque binary-safe encoding, so no result
// type can ever fail the streaming path.
func Serialize(value any, sender string) Message {
	switch v := value.(type) {
	case Message:
		return v.WithSender(sender)
	case string:
		return Text(v).WithSender(sender)
	case []byte:
		return Binary(KindBytes, v).WithSender(sender)
	case notebook.Text:
		return Text(string(v)).WithSender(sender)
	case notebook.Bytes:
		return Binary(KindBytes, v).WithSender(sender)
	case notebook.Table:
		payload, err := json.Marshal(v)
		if err != nil {
			return opaque(v, sender)
		}
		return Message{Kind: KindDataFrame, Payload: payload, Sender: sender}
	case notebook.Image:
		return Binary(KindImagePNG, v.PNG).WithSender(sender)
	case notebook.Opaque:
		return Binary(KindOpaque, v.Payload).WithSender(sender)
	case error:
		return Text(v.Error()).WithSender(sender)
	default:
		return opaque(value, sender)
	}
}

// opaque is the fallback arm: JSON-encode when possible, otherwise the Go
// verb rendering. Both yield a non-empty payload.
func opaque(value any, sender string) Message {
	raw, err := json.Marshal(value)
	if err != nil || string(raw) == "null" || string(raw) == "{}" {
		raw = []byte(fmt.Sprintf("%#v", value))
	}
	return Binary(KindOpaque, raw).WithSender(sender)
}
