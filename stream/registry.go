package stream

import (
	"github.com/alphadose/haxmap"
)

// Registry maps session identifiers to the pipe of their currently running
// agent turn. Entries exist only while a run is active; a client that lost its
// connection looks the pipe up here to reattach and drain the rest of the
// output. Sessions never share a pipe.
type Registry struct {
	pipes *haxmap.Map[string, Pipe]
}

func NewRegistry() *Registry {
	return &Registry{pipes: haxmap.New[string, Pipe]()}
}

// Put records the pipe of the session's active run, replacing any stale entry.
func (r *Registry) Put(sessionID string, p Pipe) {
	r.pipes.Set(sessionID, p)
}

// Get returns the active run's pipe, if one is registered.
func (r *Registry) Get(sessionID string) (Pipe, bool) {
	return r.pipes.Get(sessionID)
}

// Drop removes the session's entry. The run owns the pipe and closes it;
// Drop only ends its visibility.
func (r *Registry) Drop(sessionID string) {
	r.pipes.Del(sessionID)
}
