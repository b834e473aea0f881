package docstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/carepoint/medassist/internal/pkg/errors"
)

func TestLocalStoreListAndOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.md"), []byte("beta"), 0o644))

	store, err := New("local", map[string]interface{}{"dir": dir})
	require.NoError(t, err)

	keys, err := store.List(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a.txt", "sub/b.md"}, keys)

	r, err := store.Open(context.Background(), "sub/b.md")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "beta", string(data))
}

func TestLocalStoreCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "corpus")
	store, err := New("local", map[string]interface{}{"dir": dir})
	require.NoError(t, err)

	keys, err := store.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, keys)
	require.DirExists(t, dir)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := New("local", map[string]interface{}{"dir": t.TempDir()})
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "../outside.txt")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestNewStoreValidation(t *testing.T) {
	_, err := New("local", map[string]interface{}{})
	require.Error(t, err)

	_, err = New("ftp", map[string]interface{}{"dir": "x"})
	require.Error(t, err)
}
