package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kawashishu/spec-agent/notebook"
)

// BOMBootstrapCell builds the notebook cell that loads the BOM parent-child
// relationship table into the session environment as BOM_df. The CSV is
// inlined into the cell so the sandbox needs no filesystem or network access.
func BOMBootstrapCell(csv []byte) string {
	var sb strings.Builder
	sb.WriteString("import io\n")
	sb.WriteString("import pandas as pd\n")
	fmt.Fprintf(&sb, "BOM_df = pd.read_csv(io.StringIO(%s))\n", pythonString(string(csv)))
	return sb.String()
}

// BootstrapBOM reads the BOM CSV at path and executes the bootstrap cell
// against the notebook. Intended to run right after session creation, before
// any user turn.
func BootstrapBOM(ctx context.Context, nb *notebook.Notebook, path string) error {
	csv, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("bom: read %s: %w", path, err)
	}
	if _, err := nb.Exec(ctx, BOMBootstrapCell(csv)); err != nil {
		return fmt.Errorf("bom: bootstrap cell: %w", err)
	}
	return nil
}

// pythonString renders s as a Python string literal. Go's %q escaping is a
// subset of Python's, so quoting plus explicit escaping of the few
// divergent sequences is enough.
func pythonString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&sb, `\x%02x`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
