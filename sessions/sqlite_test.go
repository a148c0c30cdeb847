package sessions

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestSQLiteStoreSaveAndOverwrite(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "transcripts.db"))
	require.NoError(t, err)
	defer store.Close()

	turns := []Turn{{Role: "user", Content: "hello"}}
	require.NoError(t, store.Save(ctx, "alice", "20250101_120000", turns))

	// Saving again for the same key replaces the snapshot.
	turns = append(turns, Turn{Role: "assistant", Content: "hi"})
	require.NoError(t, store.Save(ctx, "alice", "20250101_120000", turns))

	var body string
	row := store.db.QueryRowContext(ctx,
		`SELECT body FROM transcripts WHERE user = ? AND key = ?`,
		"alice", "20250101_120000")
	require.NoError(t, row.Scan(&body))

	doc := gjson.Parse(body)
	require.Equal(t, int64(2), doc.Get("#").Int())
	assert.Equal(t, "hi", doc.Get("1.content").String())
}

func TestSQLiteStoreSeparateUsers(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "transcripts.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(ctx, "alice", "k", []Turn{{Role: "user", Content: "a"}}))
	require.NoError(t, store.Save(ctx, "bob", "k", []Turn{{Role: "user", Content: "b"}}))

	var n int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM transcripts`).Scan(&n))
	assert.Equal(t, 2, n)
}
