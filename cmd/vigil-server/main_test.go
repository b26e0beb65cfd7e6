package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Vigil/internal/config"
	"github.com/BrandonDHaskell/Vigil/internal/db"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

func TestOpenStores_SQLiteSeedsDevCategories(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{Storage: "sqlite", Env: "dev", DBPath: filepath.Join(t.TempDir(), "vigil.db")}

	st, err := openStores(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { st.close() })

	cats, err := st.categories.LoadCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.CategoryMaintenance, cats["Agente_1"])
	assert.Equal(t, types.CategorySecurity, cats["Agente_4"])

	recs, err := st.presence.LoadDevices(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSQLiteAttrs_SchemaVersion(t *testing.T) {
	ctx := context.Background()
	h, err := db.Open(ctx, db.Config{Path: filepath.Join(t.TempDir(), "vigil.db")})
	require.NoError(t, err)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	attrs := sqliteAttrs(ctx, h.DB, "vigil.db", logger)
	require.Len(t, attrs, 4)
	assert.Equal(t, "schema_version", attrs[2])
	assert.Positive(t, attrs[3])
	assert.Empty(t, logs.String())

	require.NoError(t, h.Close())
	attrs = sqliteAttrs(ctx, h.DB, "vigil.db", logger)
	assert.Equal(t, []any{"path", "vigil.db"}, attrs, "an unreadable version is omitted, not logged as 0")
	assert.Contains(t, logs.String(), "schema version unavailable")
	assert.Contains(t, logs.String(), "database is closed")
}

func TestOpenStores_ProdSkipsSeed(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{Storage: "sqlite", Env: "prod", DBPath: filepath.Join(t.TempDir(), "vigil.db")}

	st, err := openStores(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { st.close() })

	cats, err := st.categories.LoadCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestOpenStores_FileBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Config{Storage: "file", DataDir: dir}

	st, err := openStores(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer st.close()

	require.NoError(t, st.categories.SaveCategories(ctx, map[string]types.Category{"Agente_2": types.CategorySecurity}))
	assert.FileExists(t, filepath.Join(dir, "categories.json"))

	recs, err := st.presence.LoadDevices(ctx)
	require.NoError(t, err)
	assert.Nil(t, recs)
}
