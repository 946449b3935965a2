package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chirpwire/chirpwire/internal/config"
)

func TestBuildLibsqlDSN(t *testing.T) {
	t.Run("URLGetsAuthToken", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123", dsn)
	})

	t.Run("URLKeepsExistingAuthToken", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io?authToken=existing",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=existing", dsn)
	})

	t.Run("MemoryPathPassesThrough", func(t *testing.T) {
		dsn, err := buildLibsqlDSN(config.StoreConfig{Path: ":memory:"})
		require.NoError(t, err)
		require.Equal(t, ":memory:", dsn)
	})

	t.Run("PlainPathGetsFileScheme", func(t *testing.T) {
		dir := t.TempDir()
		dsn, err := buildLibsqlDSN(config.StoreConfig{Path: dir + "/chirpwire.db"})
		require.NoError(t, err)
		require.Equal(t, "file:"+dir+"/chirpwire.db", dsn)
	})

	t.Run("EmptyConfigFails", func(t *testing.T) {
		_, err := buildLibsqlDSN(config.StoreConfig{})
		require.Error(t, err)
	})
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "postgres", Path: ":memory:"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported store driver")
}
