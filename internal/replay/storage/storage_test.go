package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/logging"
	"github.com/tacband/skirmish/internal/replay/storage/gormstore"
	"github.com/tacband/skirmish/internal/replay/storage/memory"
	postgresstorage "github.com/tacband/skirmish/internal/replay/storage/postgres"
	sqlitestorage "github.com/tacband/skirmish/internal/replay/storage/sqlite"
	"github.com/tacband/skirmish/internal/replay/storage/websocket"
)

// Compile-time interface checks for every backend.
var (
	_ Backend    = (*memory.Backend)(nil)
	_ Exportable = (*memory.Backend)(nil)
	_ Backend    = (*gormstore.Backend)(nil)
	_ Backend    = (*sqlitestorage.Backend)(nil)
	_ Backend    = (*postgresstorage.Backend)(nil)
	_ Backend    = (*websocket.Backend)(nil)
)

func TestFactoryMemoryBackend(t *testing.T) {
	b, err := NewBackend(config.ReplayConfig{Backend: "memory", OutputDir: t.TempDir()}, logging.NewSlogManager())
	require.NoError(t, err)
	assert.IsType(t, (*memory.Backend)(nil), b)
}

func TestFactoryUnknownBackend(t *testing.T) {
	_, err := NewBackend(config.ReplayConfig{Backend: "carrier-pigeon"}, logging.NewSlogManager())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown replay backend")
}
