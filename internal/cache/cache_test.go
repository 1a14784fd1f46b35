package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func(t *testing.T) Cache {
	t.Helper()
	return map[string]func(t *testing.T) Cache{
		"memory": func(t *testing.T) Cache { return NewMemory() },
		"sqlite": func(t *testing.T) Cache {
			c, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
			require.NoError(t, err)
			return c
		},
		"badger": func(t *testing.T) Cache {
			c, err := OpenBadger(BadgerConfig{InMemory: true})
			require.NoError(t, err)
			return c
		},
	}
}

func TestCache_Contract(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := open(t)
			defer c.Close()

			_, ok, err := c.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, c.Set(ctx, "k", []byte("one")))
			got, ok, err := c.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "one", string(got))

			require.NoError(t, c.Set(ctx, "k", []byte("two")))
			got, _, err = c.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "two", string(got), "later writes replace earlier ones")
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	counts := map[string]int{"preset": 9}
	ok, err := GetJSON(ctx, c, CountsKey, &counts)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, map[string]int{"preset": 9}, counts, "absent key leaves default untouched")

	require.NoError(t, SetJSON(ctx, c, CountsKey, map[string]int{"A.a": 2}))

	var got map[string]int
	ok, err = GetJSON(ctx, c, CountsKey, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]int{"A.a": 2}, got)
}

func TestGetJSON_Corrupt(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	require.NoError(t, c.Set(ctx, CountsKey, []byte("{not json")))

	var got map[string]int
	_, err := GetJSON(ctx, c, CountsKey, &got)
	assert.ErrorContains(t, err, CountsKey)
}

func TestMemory_CopiesValues(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	buf := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", buf))
	buf[0] = 'x'

	got, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestOpen_Backends(t *testing.T) {
	dir := t.TempDir()

	for _, backend := range []string{"", BackendSQLite, BackendBadger, BackendMemory} {
		c, err := Open(Config{Backend: backend, Dir: dir})
		require.NoError(t, err, "backend %q", backend)
		require.NoError(t, c.Close())
	}

	_, err := Open(Config{Backend: "redis", Dir: dir})
	assert.ErrorContains(t, err, `unknown cache backend "redis"`)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{BackendSQLite, BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			c, err := Open(Config{Backend: backend, Dir: dir})
			require.NoError(t, err)
			require.NoError(t, SetJSON(ctx, c, CountsKey, map[string]int{"A.a": 1}))
			require.NoError(t, c.Close())

			c, err = Open(Config{Backend: backend, Dir: dir})
			require.NoError(t, err)
			defer c.Close()

			var got map[string]int
			ok, err := GetJSON(ctx, c, CountsKey, &got)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, map[string]int{"A.a": 1}, got)
		})
	}
}

func TestValidBackend(t *testing.T) {
	assert.True(t, ValidBackend(""))
	assert.True(t, ValidBackend("badger"))
	assert.False(t, ValidBackend("redis"))
}
