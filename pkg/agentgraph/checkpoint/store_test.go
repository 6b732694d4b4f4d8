package checkpoint_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/randalmurphal/agentgraph/pkg/agentgraph/checkpoint"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory creates a store instance for testing.
type storeFactory func(t *testing.T) checkpoint.Store

// storeContractTest runs contract tests against any Store implementation.
func storeContractTest(t *testing.T, factory storeFactory) {
	ctx := context.Background()

	t.Run("Save_and_Load", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		data := []byte(`{"key": "value"}`)
		loc, err := store.Save(ctx, "wf", "cp-1", data)
		require.NoError(t, err)
		assert.NotEmpty(t, loc)

		loaded, err := store.Load(ctx, "wf", "cp-1")
		require.NoError(t, err)
		assert.Equal(t, data, loaded)
	})

	t.Run("Load_NotFound", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Load(ctx, "wf", "missing")
		assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	})

	t.Run("Save_Overwrite", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Save(ctx, "wf", "cp", []byte("first"))
		require.NoError(t, err)
		_, err = store.Save(ctx, "wf", "cp", []byte("second"))
		require.NoError(t, err)

		loaded, err := store.Load(ctx, "wf", "cp")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), loaded)

		infos, err := store.List(ctx, "wf")
		require.NoError(t, err)
		assert.Len(t, infos, 1)
	})

	t.Run("Workflows_Are_Isolated", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Save(ctx, "wf-a", "cp", []byte("a"))
		require.NoError(t, err)
		_, err = store.Save(ctx, "wf-b", "cp", []byte("b"))
		require.NoError(t, err)

		a, err := store.Load(ctx, "wf-a", "cp")
		require.NoError(t, err)
		assert.Equal(t, []byte("a"), a)
	})

	t.Run("List_Empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		infos, err := store.List(ctx, "nothing-here")
		require.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run("List_Sorted_By_Name", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		for _, name := range []string{"charlie", "alpha", "bravo"} {
			_, err := store.Save(ctx, "wf", name, []byte(name))
			require.NoError(t, err)
		}

		infos, err := store.List(ctx, "wf")
		require.NoError(t, err)
		require.Len(t, infos, 3)
		assert.Equal(t, "alpha", infos[0].Name)
		assert.Equal(t, "bravo", infos[1].Name)
		assert.Equal(t, "charlie", infos[2].Name)
		assert.Equal(t, int64(len("charlie")), infos[2].Size)
		assert.Equal(t, "wf", infos[0].Workflow)
		assert.False(t, infos[0].UpdatedAt.IsZero())
	})

	t.Run("Delete", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Save(ctx, "wf", "cp", []byte("x"))
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, "wf", "cp"))

		_, err = store.Load(ctx, "wf", "cp")
		assert.ErrorIs(t, err, checkpoint.ErrNotFound)

		// Deleting again is not an error.
		assert.NoError(t, store.Delete(ctx, "wf", "cp"))

		infos, err := store.List(ctx, "wf")
		require.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run("Invalid_Names", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Save(ctx, "wf", "../escape", []byte("x"))
		assert.ErrorIs(t, err, checkpoint.ErrInvalidName)
		_, err = store.Save(ctx, "", "cp", []byte("x"))
		assert.ErrorIs(t, err, checkpoint.ErrInvalidName)

		_, err = store.Load(ctx, "wf", "../escape")
		assert.ErrorIs(t, err, checkpoint.ErrInvalidName)
		_, err = store.Load(ctx, "..", "cp")
		assert.ErrorIs(t, err, checkpoint.ErrInvalidName)
		_, err = store.List(ctx, "a/b")
		assert.ErrorIs(t, err, checkpoint.ErrInvalidName)
		assert.ErrorIs(t, store.Delete(ctx, "wf", ""), checkpoint.ErrInvalidName)
		assert.ErrorIs(t, store.Delete(ctx, "wf\\x", "cp"), checkpoint.ErrInvalidName)
	})

	t.Run("Colons_Stay_Distinct", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Save(ctx, "a", "b:c", []byte("first"))
		require.NoError(t, err)
		_, err = store.Save(ctx, "a:b", "c", []byte("second"))
		require.NoError(t, err)

		loaded, err := store.Load(ctx, "a", "b:c")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), loaded)
		loaded, err = store.Load(ctx, "a:b", "c")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), loaded)

		require.NoError(t, store.Delete(ctx, "a", "b:c"))
		loaded, err = store.Load(ctx, "a:b", "c")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), loaded)

		infos, err := store.List(ctx, "a:b")
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, "c", infos[0].Name)
	})

	t.Run("Closed", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())

		_, err := store.Save(ctx, "wf", "cp", []byte("x"))
		assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
		_, err = store.Load(ctx, "wf", "cp")
		assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
		_, err = store.List(ctx, "wf")
		assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
		assert.ErrorIs(t, store.Delete(ctx, "wf", "cp"), checkpoint.ErrStoreClosed)
	})

	t.Run("Concurrent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				name := "cp-" + string(rune('a'+i))
				_, err := store.Save(ctx, "wf", name, []byte(name))
				assert.NoError(t, err)
				_, err = store.Load(ctx, "wf", name)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		infos, err := store.List(ctx, "wf")
		require.NoError(t, err)
		assert.Len(t, infos, 20)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContractTest(t, func(t *testing.T) checkpoint.Store {
		return checkpoint.NewMemoryStore()
	})
}

func TestFileStore(t *testing.T) {
	storeContractTest(t, func(t *testing.T) checkpoint.Store {
		return checkpoint.NewFileStore(t.TempDir(), checkpoint.FormatJSON)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeContractTest(t, func(t *testing.T) checkpoint.Store {
		store, err := checkpoint.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	})
}

func TestRedisStore(t *testing.T) {
	storeContractTest(t, func(t *testing.T) checkpoint.Store {
		mr := miniredis.RunT(t)
		store, err := checkpoint.NewRedisStore(context.Background(), checkpoint.RedisConfig{Addr: mr.Addr()})
		require.NoError(t, err)
		return store
	})
}

func TestMemoryStore_Len(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	ctx := context.Background()

	_, _ = store.Save(ctx, "a", "1", []byte("x"))
	_, _ = store.Save(ctx, "a", "2", []byte("x"))
	_, _ = store.Save(ctx, "b", "1", []byte("x"))
	assert.Equal(t, 3, store.Len())
}

func TestMemoryStore_CopiesData(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	ctx := context.Background()

	buf := []byte("original")
	_, err := store.Save(ctx, "wf", "cp", buf)
	require.NoError(t, err)
	buf[0] = 'X'

	loaded, err := store.Load(ctx, "wf", "cp")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), loaded)
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store := checkpoint.NewFileStore(dir, checkpoint.FormatYAML)

	loc, err := store.Save(context.Background(), "research", "after-draft", []byte("version: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "research", "after-draft.yaml"), loc)
	assert.Equal(t, loc, store.Path("research", "after-draft"))
	assert.Equal(t, checkpoint.FormatYAML, store.Format())
}

func TestSQLiteStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	ctx := context.Background()

	store, err := checkpoint.NewSQLiteStore(path)
	require.NoError(t, err)
	_, err = store.Save(ctx, "wf", "cp", []byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "close is idempotent")

	reopened, err := checkpoint.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Load(ctx, "wf", "cp")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), data)
}

func TestRedisStore_TTLAndSharedClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	store := checkpoint.NewRedisStoreWithClient(client, "test:", time.Minute)

	loc, err := store.Save(ctx, "wf", "cp", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "redis://test:checkpoint:data:wf:cp", loc)
	assert.True(t, mr.Exists("test:checkpoint:data:wf:cp"))

	mr.FastForward(2 * time.Minute)

	_, err = store.Load(ctx, "wf", "cp")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	infos, err := store.List(ctx, "wf")
	require.NoError(t, err)
	assert.Empty(t, infos, "expired checkpoints drop out of the index")

	require.NoError(t, store.Close())
	assert.NoError(t, client.Ping(ctx).Err(), "shared client stays open")
}

func TestRedisStore_EscapesKeyParts(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	store := checkpoint.NewRedisStoreWithClient(client, "test:", 0)

	loc, err := store.Save(ctx, "a", "b:c", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "redis://test:checkpoint:data:a:b%3Ac", loc)

	loc, err = store.Save(ctx, "a:b", "c", []byte("y"))
	require.NoError(t, err)
	assert.Equal(t, "redis://test:checkpoint:data:a%3Ab:c", loc)

	assert.True(t, mr.Exists("test:checkpoint:index:a%3Ab"))
	assert.False(t, mr.Exists("test:checkpoint:data:a:b:c"))
}

func TestRedisStore_ConnectFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = checkpoint.NewRedisStore(context.Background(), checkpoint.RedisConfig{Addr: addr})
	assert.ErrorContains(t, err, "connect to redis")
}
