// Package guardrail performs static analysis of untrusted Python source before
// it is handed to the notebook interpreter. It is a deny-list: an empty result
// means "no objection", not "proven safe". The scan is defense-in-depth on top
// of whatever isolation the worker runner provides; string-built module names
// or getattr indirection can and will dodge it.
package guardrail

import (
	"fmt"
	"regexp"
	"strings"
)

// Finding describes one suspicious construct detected in a code submission.
// A submission with one or more findings is rejected as a whole; individual
// findings are informational and never partially enforced.
type Finding string

// suspiciousBuiltins are bare names whose call is flagged regardless of context.
var suspiciousBuiltins = map[string]struct{}{
	"eval":       {},
	"exec":       {},
	"__import__": {},
	"compile":    {},
}

// suspiciousModules is the import deny-list: OS access, process spawning,
// low-level memory, native serialization, networking, dynamic import, config
// parsing and introspection.
var suspiciousModules = map[string]struct{}{
	"os": {}, "sys": {}, "subprocess": {}, "shutil": {}, "ctypes": {},
	"pickle": {}, "importlib": {}, "socket": {}, "requests": {},
	"paramiko": {}, "ftplib": {}, "urllib": {}, "yaml": {}, "marshal": {},
	"inspect": {},
}

// suspiciousAttributes are (module, attribute) pairs whose call form
// module.attribute(...) is flagged: the process-execution family, privilege
// changes, filesystem deletion/move and subprocess invocation.
var suspiciousAttributes = map[[2]string]struct{}{
	{"os", "system"}: {}, {"os", "popen"}: {},
	{"os", "spawnl"}: {}, {"os", "spawnle"}: {}, {"os", "spawnlp"}: {},
	{"os", "spawnlpe"}: {}, {"os", "spawnv"}: {}, {"os", "spawnve"}: {},
	{"os", "spawnvp"}: {}, {"os", "spawnvpe"}: {},
	{"os", "fork"}:  {},
	{"os", "execv"}: {}, {"os", "execve"}: {}, {"os", "execvp"}: {}, {"os", "execvpe"}: {},
	{"os", "remove"}: {}, {"os", "rmdir"}: {},
	{"os", "setuid"}: {}, {"os", "setgid"}: {}, {"os", "chroot"}: {},
	{"os", "chmod"}: {}, {"os", "chown"}: {},
	{"subprocess", "call"}: {}, {"subprocess", "run"}: {}, {"subprocess", "Popen"}: {},
	{"subprocess", "check_call"}: {}, {"subprocess", "check_output"}: {},
	{"shutil", "rmtree"}: {}, {"shutil", "move"}: {}, {"shutil", "copy"}: {},
}

// suspiciousTextPatterns is the naive raw-text pass. It exists to catch
// obfuscation that dodges the structural scan, e.g. calls assembled inside
// strings that are later exec'd.
var suspiciousTextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`os\.system`),
	regexp.MustCompile(`subprocess`),
	regexp.MustCompile(`eval\s*\(`),
	regexp.MustCompile(`exec\s*\(`),
	regexp.MustCompile(`paramiko`),
	regexp.MustCompile(`requests`),
	regexp.MustCompile(`pickle`),
	regexp.MustCompile(`ctypes`),
}

var (
	bareCallRe = regexp.MustCompile(`(?:^|[^\w.])([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	attrCallRe = regexp.MustCompile(`(?:^|[^\w.])([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
)

// Detect analyzes source for suspicious imports, builtin calls, attribute
// calls and raw text patterns. It is a pure function: the same source always
// yields the same findings, and nothing is executed.
//
// When the source cannot be tokenized (unterminated string, unbalanced
// brackets) an advisory parse finding is emitted; execution is expected to
// fail naturally afterward.
func Detect(source string) []Finding {
	var findings []Finding

	scan, err := tokenize(source)
	if err != nil {
		findings = append(findings, Finding(fmt.Sprintf("Cannot parse code (syntax error): %v", err)))
	}

	for _, imp := range scan.imports {
		if _, bad := suspiciousModules[imp.Root()]; bad {
			if imp.From {
				findings = append(findings, Finding(fmt.Sprintf(
					"Importing from suspicious module '%s' at line %d", imp.Module, imp.Line)))
			} else {
				findings = append(findings, Finding(fmt.Sprintf(
					"Importing suspicious module '%s' at line %d", imp.Module, imp.Line)))
			}
		}
	}

	for _, line := range scan.lines {
		for _, m := range attrCallRe.FindAllStringSubmatch(line.text, -1) {
			if _, bad := suspiciousAttributes[[2]string{m[1], m[2]}]; bad {
				findings = append(findings, Finding(fmt.Sprintf(
					"Call to suspicious function '%s.%s' at line %d", m[1], m[2], line.number)))
			}
		}
		for _, m := range bareCallRe.FindAllStringSubmatch(line.text, -1) {
			if _, bad := suspiciousBuiltins[m[1]]; bad {
				findings = append(findings, Finding(fmt.Sprintf(
					"Call to suspicious builtin '%s' at line %d", m[1], line.number)))
			}
		}
	}

	for _, pattern := range suspiciousTextPatterns {
		if pattern.MatchString(source) {
			findings = append(findings, Finding(fmt.Sprintf(
				"Code contains suspicious pattern: '%s'", pattern.String())))
		}
	}

	return findings
}

// SuspiciousCodeError is returned when a code submission produced guardrail
// findings. It carries every finding so the caller can surface the full
// explanation to the agent.
type SuspiciousCodeError struct {
	Findings []Finding
}

func (e *SuspiciousCodeError) Error() string {
	msgs := make([]string, len(e.Findings))
	for i, f := range e.Findings {
		msgs[i] = string(f)
	}
	return "Suspicious code detected: " + strings.Join(msgs, "; ")
}
