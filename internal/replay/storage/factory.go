package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/logging"
	"github.com/tacband/skirmish/internal/replay/storage/memory"
	postgresstorage "github.com/tacband/skirmish/internal/replay/storage/postgres"
	sqlitestorage "github.com/tacband/skirmish/internal/replay/storage/sqlite"
	"github.com/tacband/skirmish/internal/replay/storage/websocket"
)

const sqliteDumpInterval = 30 * time.Second

// NewBackend creates a replay storage backend based on configuration.
func NewBackend(cfg config.ReplayConfig, logManager *logging.SlogManager) (Backend, error) {
	switch cfg.Backend {
	case "memory":
		return memory.New(cfg), nil
	case "sqlite":
		path := cfg.SqlitePath
		if path == "" {
			path = filepath.Join(cfg.OutputDir, "skirmish.db")
		}
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: sqliteDumpInterval,
			DumpPath:     path,
		}, logManager)
	case "postgres":
		return postgresstorage.New(cfg.Postgres, logManager)
	case "websocket":
		return websocket.New(websocket.Config{
			URL:    cfg.WebsocketURL,
			Secret: cfg.WebsocketSecret,
		}, logManager.Component("replay-ws")), nil
	default:
		return nil, fmt.Errorf("unknown replay backend: %s", cfg.Backend)
	}
}
