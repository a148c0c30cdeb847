package notebook

import (
	"fmt"

	"github.com/go-openapi/swag"

	"github.com/kawashishu/spec-agent/guardrail"
)

// ImportPolicy selects which of the two import control profiles a notebook
// enforces. The guardrail deny-list always runs; the allow-list profile layers
// a second, narrower positive check on top of it.
type ImportPolicy int

const (
	// PolicyDenylist relies on the guardrail deny-list only. This is the
	// profile the production tool adapter uses.
	PolicyDenylist ImportPolicy = iota
	// PolicyAllowlist additionally rejects any top-level import outside the
	// configured allow-list. Stricter alternative profile.
	PolicyAllowlist
)

// DefaultAllowedModules is the allow-list used by PolicyAllowlist unless
// overridden: numeric, statistics, data-frame and plotting libraries, plus io,
// which the system-generated bootstrap cell needs to feed CSV text into pandas.
var DefaultAllowedModules = []string{
	"io",
	"math",
	"statistics",
	"numpy",
	"pandas",
	"matplotlib",
	"plotly",
}

// ImportPolicyError reports an import that resolves to a module outside the
// active allow-list. Like guardrail rejections it is fatal to the cell, never
// to the session.
type ImportPolicyError struct {
	Module string
	Line   int
}

func (e *ImportPolicyError) Error() string {
	return fmt.Sprintf("Import of '%s' is not allowed", e.Module)
}

// validateImports applies the allow-list to every module-level import in
// source. It shares the guardrail's scanner so both control layers see the
// same set of modules.
func validateImports(source string, allowed []string) error {
	for _, imp := range guardrail.Imports(source) {
		if !swag.ContainsStrings(allowed, imp.Root()) {
			return &ImportPolicyError{Module: imp.Module, Line: imp.Line}
		}
	}
	return nil
}
