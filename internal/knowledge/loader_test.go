package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "single.json", `{"source_id":"a","category":"workout","raw_text":"Squat."}`)
	writeFile(t, dir, "batch.json", `[
		{"source_id":"b","category":"diet","tags":{"dietary_type":"vegan"},"raw_text":"Lentils."},
		{"source_id":"c","category":"recovery","raw_text":"Sleep."}
	]`)
	writeFile(t, dir, "ignored.txt", "not json")

	docs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	// Sorted path order: batch.json before single.json.
	assert.Equal(t, "b", docs[0].SourceID)
	assert.Equal(t, "c", docs[1].SourceID)
	assert.Equal(t, "a", docs[2].SourceID)
	assert.Equal(t, "vegan", docs[0].Tags["dietary_type"])
}

func TestLoadDir_Recursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o750))
	writeFile(t, sub, "doc.json", `{"source_id":"n","category":"workout","raw_text":"Rows."}`)

	docs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "n", docs[0].SourceID)
}

func TestLoadDir_Empty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestLoadFile_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.json", `{"source_id": `)

	_, err := LoadFile(filepath.Join(dir, "bad.json"))
	assert.Error(t, err)
}
