package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/troupe/pkg/adapters/file"
	"github.com/aretw0/troupe/pkg/domain"
	"github.com/aretw0/troupe/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunSessionStoreContract(t, store)
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	session := domain.NewSession("tavern")
	session.World = domain.NewWorldState()
	require.NoError(t, store.Save(ctx, session))

	_, err := os.Stat(filepath.Join(dir, "tavern.json"))
	assert.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_RejectsPathIDs(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	assert.ErrorIs(t, store.Save(ctx, domain.NewSession("../escape")), domain.ErrInvalidSessionID)
	assert.ErrorIs(t, store.Save(ctx, domain.NewSession(".hidden")), domain.ErrInvalidSessionID)
	_, err := store.Load(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidSessionID)
}

func TestFileStore_ListsTmpPrefixedIDs(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewSession("tmp-draft")))
	require.NoError(t, store.Save(ctx, domain.NewSession("tavern")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-tavern-123"), []byte("{}"), 0644))

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tavern", "tmp-draft"}, sessions)
}
