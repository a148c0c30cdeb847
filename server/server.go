// Package server exposes the chat assistant over HTTP. Assistant output
// streams to the client as newline-delimited JSON, one stream message per
// line, terminated by an end_stream sentinel.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"

	"github.com/kawashishu/spec-agent/agent"
	"github.com/kawashishu/spec-agent/pkg/slogx"
	"github.com/kawashishu/spec-agent/sessions"
	"github.com/kawashishu/spec-agent/stream"
)

// PipeFactory builds the stream pipe for one agent run. The default is the
// in-process buffer; a NATS-backed factory makes the stream consumable from
// other processes.
type PipeFactory func(sessionID string) stream.Pipe

// Server binds the session store and the agent runner to HTTP endpoints.
type Server struct {
	store   *sessions.Store
	runner  *agent.Runner
	root    *agent.Agent
	newPipe PipeFactory
	streams *stream.Registry
}

// WithPipeFactory overrides how per-run stream pipes are built.
var WithPipeFactory = opts.ForName[Server, PipeFactory]("newPipe")

// New builds the server. root is the conversation entry-point agent.
func New(store *sessions.Store, runner *agent.Runner, root *agent.Agent, options ...opts.Option[Server]) (*Server, error) {
	s := &Server{store: store, runner: runner, root: root, streams: stream.NewRegistry()}
	if err := opts.Apply(s, options); err != nil {
		return nil, err
	}
	if s.newPipe == nil {
		s.newPipe = func(string) stream.Pipe { return stream.NewBuffer() }
	}
	return s, nil
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /new_chat", s.handleNewChat)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /sessions/{id}/stream", s.handleAttachStream)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
	Prompt    string `json:"prompt"`
}

type newChatRequest struct {
	SessionID string `json:"session_id"`
}

// handleChat appends the user turn and streams the agent run back as NDJSON.
// The session lock is held for the entire run; the buffer is closed exactly
// once on every exit path, which is what terminates the client's stream.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		httpError(w, http.StatusBadRequest, "invalid chat request")
		return
	}

	sess, err := s.store.GetOrCreate(req.SessionID, req.Username)
	if err != nil {
		slog.Error("session create failed", slogx.Session(req.SessionID), slogx.Error(err))
		httpError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	sess.Lock()
	sess.Append(sessions.Turn{Role: "user", Content: req.Prompt})
	turns := sess.Turns()

	// One pipe per run: the previous run's pipe is already closed. The
	// registry entry lets a reconnecting client find the live stream.
	pipe := s.newPipe(sess.ID)
	sess.Buffer = pipe
	s.streams.Put(sess.ID, pipe)

	// The run outlives a disconnected client: it finishes, appends the
	// assistant turn, and saves the transcript either way.
	runCtx := context.WithoutCancel(r.Context())
	go func() {
		defer sess.Unlock()
		defer s.streams.Drop(sess.ID)
		defer func() {
			if err := pipe.Close(); err != nil {
				slog.Warn("stream close", slogx.Session(sess.ID), slogx.Error(err))
			}
		}()

		rc := &agent.RunContext{Session: sess, Sink: pipe}
		final, err := s.runner.Run(runCtx, rc, s.root, turns)
		if err != nil {
			slog.Error("agent run failed", slogx.Session(sess.ID), slogx.Error(err))
			_ = pipe.Write(runCtx, stream.Text("ERROR").WithSender("system"))
			return
		}

		sess.Append(sessions.Turn{Role: "assistant", Content: final})
		if err := s.store.SaveTranscript(runCtx, sess); err != nil {
			slog.Warn("transcript save failed", slogx.Session(sess.ID), slogx.Error(err))
		}
	}()

	s.streamNDJSON(w, r, sess.ID, pipe)
}

// handleAttachStream reattaches a client to the session's running agent turn,
// picking up the output the original connection did not consume. 404 when no
// run is active.
func (s *Server) handleAttachStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	pipe, ok := s.streams.Get(id)
	if !ok {
		httpError(w, http.StatusNotFound, "no active run for session")
		return
	}
	s.streamNDJSON(w, r, id, pipe)
}

func (s *Server) streamNDJSON(w http.ResponseWriter, r *http.Request, sessionID string, pipe stream.Pipe) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	for msg := range pipe.Stream(r.Context()) {
		line, err := msg.Encode()
		if err != nil {
			slog.Warn("message encode failed", slogx.Session(sessionID), slogx.Error(err))
			continue
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			// Client went away; the run keeps going and the transcript still saves.
			slog.Debug("client disconnected", slogx.Session(sessionID), slogx.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) handleNewChat(w http.ResponseWriter, r *http.Request) {
	var req newChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		httpError(w, http.StatusBadRequest, "invalid new_chat request")
		return
	}
	s.store.Drop(req.SessionID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		httpError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"user":       sess.User,
		"init_time":  sess.InitTime,
		"turns":      sess.Turns(),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("response encode failed", slogx.Error(err))
	}
}

func httpError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// ListenAndServe runs the server on addr until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	slog.Info("http server listening", slogx.LoggerName("server"), slog.String("addr", addr))
	if err := http.ListenAndServe(addr, s.Handler()); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
