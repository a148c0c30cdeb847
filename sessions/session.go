// Package sessions owns the per-conversation state of the service: the
// notebook interpreter, the outbound stream buffer, and the transcript. All
// state lives in an explicit Store handed to the server at startup; there are
// no package-level session maps.
package sessions

import (
	"sync"
	"time"

	"github.com/go-openapi/strfmt"

	"github.com/kawashishu/spec-agent/notebook"
	"github.com/kawashishu/spec-agent/stream"
)

// Turn is one transcript record in the role/content shape the LLM API uses.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session bundles everything owned by one chat conversation. The mutex
// serializes user turns and resets against a running agent turn: callers
// take it before appending a turn and hold it for the whole run, so a reset
// can never observe a half-executed cell.
type Session struct {
	ID       string
	User     string
	InitTime strfmt.DateTime

	Notebook *notebook.Notebook
	Buffer   stream.Pipe

	mu    sync.Mutex
	turns []Turn
}

// Lock acquires the per-session turn lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the per-session turn lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Append adds a transcript turn. Callers hold the session lock.
func (s *Session) Append(turns ...Turn) {
	s.turns = append(s.turns, turns...)
}

// Turns returns a copy of the transcript so far.
func (s *Session) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// TranscriptKey is the per-session storage key: the creation timestamp in a
// filename-safe form. Combined with the user name it places every transcript
// under a stable, chronologically sorted path.
func (s *Session) TranscriptKey() string {
	return time.Time(s.InitTime).Format("20060102_150405")
}
