package export

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CanopyHQ/progmem/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument(t *testing.T) *memory.Document {
	t.Helper()
	doc := memory.DefaultDocument()
	doc.BatchUpsert([]json.RawMessage{
		json.RawMessage(`{"title":"Registration API","summary":"Users can sign up","tags":["api","auth"],"confidence":0.8,"source":{"feature_id":1,"commit_hash":"abc123"}}`),
		json.RawMessage(`{"title":"OAuth Login","source_commit":"deadbeef","feature_id":2}`),
	}, memory.SyncMeta{SyncID: "sync-1", CommitRange: "abc123..deadbeef"})
	doc.RegisterRejections([]json.RawMessage{json.RawMessage(`"fp-rejected"`)}, "sync-1")
	return doc
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"":         FormatJSON,
		"JSON":     FormatJSON,
		"md":       FormatMarkdown,
		"markdown": FormatMarkdown,
		"sqlite3":  FormatSQLite,
		"db":       FormatSQLite,
	}
	for name, want := range tests {
		got, err := ParseFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseFormat("csv")
	assert.ErrorContains(t, err, "unknown format: csv")
}

func TestFormatExtension(t *testing.T) {
	assert.Equal(t, "json", FormatJSON.Extension())
	assert.Equal(t, "md", FormatMarkdown.Extension())
	assert.Equal(t, "db", FormatSQLite.Extension())
}

func TestWriteJSON(t *testing.T) {
	doc := sampleDocument(t)
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc))

	parsed, err := memory.ParseDocument(buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, parsed.Capabilities, 2)
	assert.Equal(t, []string{"fp-rejected"}, parsed.RejectedFingerprints)
}

func TestWriteMarkdown(t *testing.T) {
	doc := sampleDocument(t)
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, doc))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Project Memory\n"))
	assert.Contains(t, out, "## CAP-001 Registration API")
	assert.Contains(t, out, "Tags: api, auth | Confidence: 80%")
	assert.Contains(t, out, "Users can sign up")
	assert.Contains(t, out, "Source: feature 1, commit `abc123`, via prog_done")
	assert.Contains(t, out, "## CAP-002 OAuth Login")
	assert.Contains(t, out, "| sync-1 |")
	assert.Contains(t, out, "| 2 | 2 | 0 | 0 | 1 |")
}

func TestWriteSQLite(t *testing.T) {
	doc := sampleDocument(t)
	path := filepath.Join(t.TempDir(), "memory.db")

	_, err := WriteSQLite(path, doc)
	require.NoError(t, err)
	// Writing twice replaces the previous snapshot instead of failing on the schema.
	written, err := WriteSQLite(path, doc)
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM capabilities`).Scan(&count))
	assert.Equal(t, 2, count)

	var title string
	require.NoError(t, db.QueryRow(`
		SELECT c.title FROM capabilities c
		JOIN capability_tags t ON t.capability = c.position
		WHERE t.tag = 'auth'`).Scan(&title))
	assert.Equal(t, "Registration API", title)

	var rejected int
	require.NoError(t, db.QueryRow(`SELECT rejected_count FROM sync_history WHERE sync_id = 'sync-1'`).Scan(&rejected))
	assert.Equal(t, 1, rejected)

	var seq string
	require.NoError(t, db.QueryRow(`SELECT value FROM meta WHERE key = 'next_capability_seq'`).Scan(&seq))
	assert.Equal(t, "3", seq)

	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM rejected_fingerprints`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWriteSQLite_DuplicateFingerprintKeepsFirst(t *testing.T) {
	doc, err := memory.ParseDocument([]byte(`{"capabilities":[
		{"cap_id":"CAP-001","fingerprint":"same","title":"First","tags":["a"]},
		{"cap_id":"CAP-002","fingerprint":"same","title":"Second","tags":["b"]}
	]}`))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "dup.db")
	written, err := WriteSQLite(path, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var title string
	require.NoError(t, db.QueryRow(`SELECT title FROM capabilities WHERE fingerprint = 'same'`).Scan(&title))
	assert.Equal(t, "First", title)

	var tags int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM capability_tags`).Scan(&tags))
	assert.Equal(t, 1, tags)
}

func TestWriteSQLite_RepeatedCapIDIsKept(t *testing.T) {
	// A non-integer sequence resets to 1, so the next append reuses CAP-001.
	doc, err := memory.ParseDocument([]byte(`{"next_capability_seq":"2","capabilities":[
		{"cap_id":"CAP-001","fingerprint":"aaaa","title":"A"}
	]}`))
	require.NoError(t, err)
	res, err := doc.AppendCapability(memory.CapabilityPayload{Title: "B"})
	require.NoError(t, err)
	require.Equal(t, "CAP-001", res.Capability.CapID)

	path := filepath.Join(t.TempDir(), "reused.db")
	written, err := WriteSQLite(path, doc)
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM capabilities WHERE cap_id = 'CAP-001'`).Scan(&count))
	assert.Equal(t, 2, count)
}
