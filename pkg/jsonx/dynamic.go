// Package jsonx has JSON helpers that do not fit a specific domain package.
package jsonx

import json "github.com/goccy/go-json"

// ToDynamicJSON re-encodes a typed value as a loose map[string]any, the shape
// the LLM transport wants for tool arguments and structured outputs.
func ToDynamicJSON(val any) (map[string]any, error) {
	result := make(map[string]any)
	b, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	return result, nil
}
