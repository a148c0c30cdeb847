package agent

import (
	"context"

	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/kawashishu/spec-agent/sessions"
	"github.com/kawashishu/spec-agent/stream"
)

// RunContext carries the per-conversation state a tool may touch. It replaces
// ambient session globals: everything a tool needs arrives through this value.
type RunContext struct {
	Session *sessions.Session
	Sink    stream.Sink
}

// ToolFunc executes one tool call. Arguments arrive as the parsed JSON the
// model produced; the return value is handed back to the model verbatim.
type ToolFunc func(ctx context.Context, rc *RunContext, args gjson.Result) (string, error)

// Tool is a function the model can call, with an explicit JSON schema for
// its arguments.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Fn          ToolFunc
}

// Param describes one argument in a tool schema.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// ObjectSchema builds an object schema from the given parameters, preserving
// declaration order so the model sees arguments the way they are documented.
func ObjectSchema(params ...Param) *jsonschema.Schema {
	props := orderedmap.New[string, *jsonschema.Schema]()
	var required []string
	for _, p := range params {
		props.Set(p.Name, &jsonschema.Schema{
			Type:        p.Type,
			Description: p.Description,
		})
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}
