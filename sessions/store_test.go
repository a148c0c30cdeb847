package sessions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestGetOrCreateIsStable(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)
	defer store.Close()

	a, err := store.GetOrCreate("sid-1", "alice")
	require.NoError(t, err)
	require.NotNil(t, a.Notebook)
	require.NotNil(t, a.Buffer)
	assert.Equal(t, "alice", a.User)

	// Second call with a different user keeps the original session.
	b, err := store.GetOrCreate("sid-1", "bob")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, "alice", b.User)
}

func TestDropRemovesAndTearsDown(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)

	s, err := store.GetOrCreate("sid-2", "alice")
	require.NoError(t, err)
	store.Drop("sid-2")

	_, ok := store.Get("sid-2")
	assert.False(t, ok)

	// Buffer was closed: the stream terminates immediately with the sentinel.
	count := 0
	for range s.Buffer.Stream(context.Background()) {
		count++
	}
	assert.Equal(t, 1, count)

	// Dropping an unknown id is a no-op.
	store.Drop("never-created")
}

func TestTurnsReturnsCopy(t *testing.T) {
	s := &Session{}
	s.Append(Turn{Role: "user", Content: "hi"})

	turns := s.Turns()
	turns[0].Content = "mutated"
	assert.Equal(t, "hi", s.Turns()[0].Content)
}

func TestSaveTranscriptToBlobStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(WithTranscripts(NewBlobStore(dir)))
	require.NoError(t, err)
	defer store.Close()

	s, err := store.GetOrCreate("sid-3", "alice")
	require.NoError(t, err)
	s.Append(
		Turn{Role: "user", Content: "plot revenue"},
		Turn{Role: "assistant", Content: "done"},
	)

	require.NoError(t, store.SaveTranscript(context.Background(), s))

	path := filepath.Join(dir, "alice", s.TranscriptKey()+".json")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	doc := gjson.ParseBytes(raw)
	require.True(t, doc.IsArray())
	assert.Equal(t, "user", doc.Get("0.role").String())
	assert.Equal(t, "plot revenue", doc.Get("0.content").String())
	assert.Equal(t, "assistant", doc.Get("1.role").String())
}

func TestSaveTranscriptWithoutStoreIsNoop(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)
	defer store.Close()

	s, err := store.GetOrCreate("sid-4", "alice")
	require.NoError(t, err)
	assert.NoError(t, store.SaveTranscript(context.Background(), s))
}

func TestEncodeTranscriptEmpty(t *testing.T) {
	doc, err := encodeTranscript(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(doc))
}
