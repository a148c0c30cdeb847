package guardrail

import (
	"fmt"
	"strings"
)

// Import is one top-level import statement found in a source scan.
type Import struct {
	Module string // dotted module path as written, e.g. "os.path"
	Line   int    // 1-based physical line number
	From   bool   // true for "from X import ..." form
}

// Root returns the top-level module name, the unit both the deny-list and the
// interpreter allow-list operate on.
func (i Import) Root() string {
	if idx := strings.IndexByte(i.Module, '.'); idx >= 0 {
		return i.Module[:idx]
	}
	return i.Module
}

// Imports returns every module-level import statement in source. Statements
// inside string literals are not reported. The scan is shared with the
// notebook's import policy so both layers see the same set of modules.
func Imports(source string) []Import {
	scan, _ := tokenize(source)
	return scan.imports
}

type codeLine struct {
	number int
	text   string // string literal contents blanked, comments dropped
}

type scanResult struct {
	lines   []codeLine
	imports []Import
}

// tokenize walks the source once, tracking string literals (including triple
// quotes), comments and bracket depth. It returns the code-only view of each
// line plus the imports it saw. The returned error is advisory: it flags
// source that Python itself would refuse to parse.
func tokenize(source string) (scanResult, error) {
	var res scanResult

	var (
		inStr    bool
		strQuote byte
		triple   bool
		depth    int
	)

	lines := strings.Split(source, "\n")
	for idx, raw := range lines {
		var b strings.Builder
		i := 0
		for i < len(raw) {
			c := raw[i]
			if inStr {
				if c == '\\' && !triple {
					b.WriteByte(' ')
					i += 2
					continue
				}
				if c == strQuote {
					if triple {
						if strings.HasPrefix(raw[i:], strings.Repeat(string(strQuote), 3)) {
							inStr = false
							b.WriteString("   ")
							i += 3
							continue
						}
					} else {
						inStr = false
					}
				}
				b.WriteByte(' ')
				i++
				continue
			}
			switch c {
			case '#':
				i = len(raw) // rest of the line is comment
			case '\'', '"':
				inStr = true
				strQuote = c
				triple = strings.HasPrefix(raw[i:], strings.Repeat(string(c), 3))
				if triple {
					b.WriteString("   ")
					i += 3
				} else {
					b.WriteByte(' ')
					i++
				}
			case '(', '[', '{':
				depth++
				b.WriteByte(c)
				i++
			case ')', ']', '}':
				depth--
				b.WriteByte(c)
				i++
			default:
				b.WriteByte(c)
				i++
			}
		}
		if inStr && !triple {
			return res, fmt.Errorf("unterminated string literal at line %d", idx+1)
		}

		line := codeLine{number: idx + 1, text: b.String()}
		res.lines = append(res.lines, line)
		if depth == 0 {
			res.imports = append(res.imports, parseImports(line)...)
		}
	}

	if inStr {
		return res, fmt.Errorf("unterminated triple-quoted string")
	}
	if depth != 0 {
		return res, fmt.Errorf("unbalanced brackets")
	}
	return res, nil
}

func parseImports(line codeLine) []Import {
	text := strings.TrimSpace(line.text)
	switch {
	case strings.HasPrefix(text, "import "):
		var imports []Import
		for _, clause := range strings.Split(text[len("import "):], ",") {
			name := strings.TrimSpace(clause)
			if asIdx := strings.Index(name, " as "); asIdx >= 0 {
				name = strings.TrimSpace(name[:asIdx])
			}
			if name != "" {
				imports = append(imports, Import{Module: name, Line: line.number})
			}
		}
		return imports
	case strings.HasPrefix(text, "from "):
		rest := text[len("from "):]
		impIdx := strings.Index(rest, " import ")
		if impIdx < 0 {
			return nil
		}
		name := strings.TrimSpace(rest[:impIdx])
		// relative imports ("from . import x") have no top-level module
		name = strings.TrimLeft(name, ".")
		if name == "" {
			return nil
		}
		return []Import{{Module: name, Line: line.number, From: true}}
	default:
		return nil
	}
}
