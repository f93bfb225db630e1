package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Clear(ctx))
	entries, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	first := NewEntry("qr", "https://example.com")
	second := NewEntry("qr", "hello")
	require.NoError(t, s.Append(ctx, first))
	require.NoError(t, s.Append(ctx, second))

	entries, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, "https://example.com", entries[0].Data)
	assert.Equal(t, "qr", entries[0].Type)
	assert.Equal(t, second.ID, entries[1].ID)

	require.NoError(t, s.Clear(ctx))
	entries, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(0))
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "history.json"), "", 0)
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	ctx := context.Background()

	s, err := NewFileStore(path, DefaultKey, 0)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, NewEntry("qr", "persisted")))
	require.NoError(t, s.Close())

	other, err := NewFileStore(path, "other_key", 0)
	require.NoError(t, err)
	require.NoError(t, other.Append(ctx, NewEntry("qr", "elsewhere")))

	again, err := NewFileStore(path, DefaultKey, 0)
	require.NoError(t, err)
	entries, err := again.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "persisted", entries[0].Data)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"scan_history"`)
	assert.Contains(t, string(raw), `"other_key"`)
}

func TestFileStoreRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := NewFileStore(path, "", 0)
	assert.Error(t, err)
}

func TestMaxEntries(t *testing.T) {
	ctx := context.Background()
	file, err := NewFileStore(filepath.Join(t.TempDir(), "h.json"), "", 3)
	require.NoError(t, err)

	for name, s := range map[string]Store{"memory": NewMemoryStore(3), "file": file} {
		t.Run(name, func(t *testing.T) {
			for i := range 5 {
				require.NoError(t, s.Append(ctx, NewEntry("qr", fmt.Sprint(i))))
			}
			entries, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, entries, 3)
			assert.Equal(t, "2", entries[0].Data)
			assert.Equal(t, "4", entries[2].Data)
		})
	}
}

func TestMemoryStoreConcurrentAppend(t *testing.T) {
	s := NewMemoryStore(0)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append(context.Background(), NewEntry("qr", fmt.Sprint(i)))
		}()
	}
	wg.Wait()
	entries, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 50)
}

func TestClosedStore(t *testing.T) {
	s := NewMemoryStore(0)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Append(context.Background(), NewEntry("qr", "x")), ErrClosed)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Options{Backend: "file", Path: filepath.Join(t.TempDir(), "h.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(ctx, Options{Backend: "file"})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Backend: "sqlite"})
	assert.Error(t, err)

	_, err = Open(ctx, Options{MaxEntries: -1})
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("QRSCAN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("QRSCAN_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, NewRedisClient(addr), "qrscan_test_history", 0)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}
