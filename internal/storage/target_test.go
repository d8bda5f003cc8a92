package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func TestTarget_Paths(t *testing.T) {
	target := NewTarget("/data", "course/01_file.mp4")

	assert.Equal(t, filepath.Join("/data", "course", "01_file.mp4"), target.Path())
	assert.Equal(t, target.Path()+PartialSuffix, target.PartialPath())
}

func TestTarget_ClassifyAbsent(t *testing.T) {
	target := NewTarget(t.TempDir(), "course/file.bin")

	state, err := target.Classify(100)
	require.NoError(t, err)
	assert.Equal(t, StateAbsent, state)
}

func TestTarget_ClassifyCompleteWithKnownSize(t *testing.T) {
	root := t.TempDir()
	target := NewTarget(root, "course/file.bin")
	writeFile(t, target.Path(), []byte("hello"))

	state, err := target.Classify(5)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, state)
}

func TestTarget_ClassifySizeMismatchIsPartial(t *testing.T) {
	root := t.TempDir()
	target := NewTarget(root, "course/file.bin")
	writeFile(t, target.Path(), []byte("hel"))

	state, err := target.Classify(5)
	require.NoError(t, err)
	assert.Equal(t, StatePartial, state)
}

func TestTarget_ClassifyUnknownSizeNonEmptyIsComplete(t *testing.T) {
	root := t.TempDir()
	target := NewTarget(root, "course/file.bin")
	writeFile(t, target.Path(), []byte("content"))

	state, err := target.Classify(0)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, state)
}

func TestTarget_ClassifyUnknownSizeEmptyIsPartial(t *testing.T) {
	root := t.TempDir()
	target := NewTarget(root, "course/file.bin")
	writeFile(t, target.Path(), nil)

	state, err := target.Classify(0)
	require.NoError(t, err)
	assert.Equal(t, StatePartial, state)
}

func TestTarget_ClassifyStrayPartialIsPartial(t *testing.T) {
	root := t.TempDir()
	target := NewTarget(root, "course/file.bin")
	writeFile(t, target.PartialPath(), []byte("half"))

	// a leftover .partial wins even when a complete-looking final exists
	writeFile(t, target.Path(), []byte("hello"))

	state, err := target.Classify(5)
	require.NoError(t, err)
	assert.Equal(t, StatePartial, state)
}

func TestTarget_DiscardRemovesPartialAndStaleFinal(t *testing.T) {
	root := t.TempDir()
	target := NewTarget(root, "course/file.bin")
	writeFile(t, target.PartialPath(), []byte("half"))
	writeFile(t, target.Path(), []byte("stale"))

	require.NoError(t, target.Discard())

	assert.NoFileExists(t, target.PartialPath())
	assert.NoFileExists(t, target.Path())
}

func TestTarget_DiscardIsIdempotent(t *testing.T) {
	target := NewTarget(t.TempDir(), "course/file.bin")

	assert.NoError(t, target.Discard())
	assert.NoError(t, target.Discard())
}

func TestTarget_CreatePartialTruncatesPreviousContent(t *testing.T) {
	root := t.TempDir()
	target := NewTarget(root, "course/file.bin")
	require.NoError(t, target.EnsureDir())
	writeFile(t, target.PartialPath(), []byte("previous attempt leftovers"))

	f, err := target.CreatePartial()
	require.NoError(t, err)
	_, err = f.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	content, err := os.ReadFile(target.PartialPath())
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), content)
}

func TestTarget_CommitRenamesPartialToFinal(t *testing.T) {
	root := t.TempDir()
	target := NewTarget(root, "course/file.bin")
	require.NoError(t, target.EnsureDir())
	writeFile(t, target.PartialPath(), []byte("validated content"))

	require.NoError(t, target.Commit())

	assert.NoFileExists(t, target.PartialPath())
	content, err := os.ReadFile(target.Path())
	require.NoError(t, err)
	assert.Equal(t, []byte("validated content"), content)

	state, err := target.Classify(int64(len("validated content")))
	require.NoError(t, err)
	assert.Equal(t, StateComplete, state)
}

func TestTarget_CommitWithoutPartialFails(t *testing.T) {
	target := NewTarget(t.TempDir(), "course/file.bin")
	require.NoError(t, target.EnsureDir())

	assert.Error(t, target.Commit())
}
