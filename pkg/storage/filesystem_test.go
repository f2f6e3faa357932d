package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	n, err := store.SaveStream("2026/10/a.png", strings.NewReader("png-bytes"), 64)
	require.NoError(t, err)
	assert.EqualValues(t, 9, n)

	file, err := store.Open("2026/10/a.png")
	require.NoError(t, err)
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	assert.Equal(t, "png-bytes", string(body))

	require.NoError(t, store.Delete("2026/10/a.png"))
	require.NoError(t, store.Delete("2026/10/a.png"))
	_, err = store.Open("2026/10/a.png")
	assert.Error(t, err)
}

func TestLocalStorageRejectsOversizedStream(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("big.pdf", strings.NewReader(strings.Repeat("x", 20)), 10)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	_, err = store.Open("big.pdf")
	assert.Error(t, err)
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("../escape.txt", strings.NewReader("x"), 0)
	assert.Error(t, err)
}
