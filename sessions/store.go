package sessions

import (
	"context"
	"log/slog"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"

	"github.com/kawashishu/spec-agent/notebook"
	"github.com/kawashishu/spec-agent/pkg/slogx"
	"github.com/kawashishu/spec-agent/stream"
)

// NotebookFactory builds the interpreter for a newly created session.
type NotebookFactory func() (*notebook.Notebook, error)

// Store configuration options.
var (
	// WithNotebookFactory overrides how session notebooks are built, e.g. to
	// run workers in Docker or to switch the import policy.
	WithNotebookFactory = opts.ForName[Store, NotebookFactory]("factory")
	// WithTranscripts enables transcript persistence through the given store.
	WithTranscripts = opts.ForName[Store, TranscriptStore]("transcripts")
)

// Store is the process-wide session registry.
type Store struct {
	sessions    *haxmap.Map[string, *Session]
	factory     NotebookFactory
	transcripts TranscriptStore
}

// NewStore builds a session registry. Without options sessions get a
// local-process notebook with the default deny policy and no transcript
// persistence.
func NewStore(options ...opts.Option[Store]) (*Store, error) {
	store := &Store{
		sessions: haxmap.New[string, *Session](),
		factory:  func() (*notebook.Notebook, error) { return notebook.New() },
	}
	if err := opts.Apply(store, options); err != nil {
		return nil, err
	}
	return store, nil
}

// GetOrCreate returns the session for id, creating it on first use. The user
// name is recorded at creation time and ignored afterwards.
func (st *Store) GetOrCreate(id, user string) (*Session, error) {
	if existing, ok := st.sessions.Get(id); ok {
		return existing, nil
	}

	nb, err := st.factory()
	if err != nil {
		return nil, err
	}
	created := &Session{
		ID:       id,
		User:     user,
		InitTime: strfmt.DateTime(time.Now()),
		Notebook: nb,
		Buffer:   stream.NewBuffer(),
	}
	actual, loaded := st.sessions.GetOrSet(id, created)
	if loaded {
		// Lost the race: another request created the session first.
		_ = nb.Close()
		return actual, nil
	}
	slog.Info("session created", slogx.Session(id), slog.String("user", user))
	return created, nil
}

// Get returns the session for id if it exists.
func (st *Store) Get(id string) (*Session, bool) {
	return st.sessions.Get(id)
}

// Drop removes the session and tears down its worker and buffer. Safe to
// call for ids that were never created.
func (st *Store) Drop(id string) {
	s, ok := st.sessions.Get(id)
	if !ok {
		return
	}
	st.sessions.Del(id)

	s.Lock()
	defer s.Unlock()
	if err := s.Notebook.Close(); err != nil {
		slog.Warn("session notebook close", slogx.Session(id), slogx.Error(err))
	}
	_ = s.Buffer.Close()
	slog.Info("session dropped", slogx.Session(id))
}

// SaveTranscript persists the session's transcript when a transcript store is
// configured. Persistence is write-only and best effort: a failed save is
// logged by the caller, never fatal to the conversation.
func (st *Store) SaveTranscript(ctx context.Context, s *Session) error {
	if st.transcripts == nil {
		return nil
	}
	return st.transcripts.Save(ctx, s.User, s.TranscriptKey(), s.Turns())
}

// Close drops every live session. Intended for process shutdown.
func (st *Store) Close() {
	st.sessions.ForEach(func(id string, _ *Session) bool {
		st.Drop(id)
		return true
	})
}
