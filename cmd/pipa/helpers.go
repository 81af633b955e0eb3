package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/fuelmx/pipa/internal/common"
	"github.com/fuelmx/pipa/internal/storage"
)

// initStore opens the audit database and runs migrations.
func initStore(ctx context.Context) (*storage.Store, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/pipa/pipa.db"
	}
	dbPath = expandPath(dbPath)

	store, err := storage.NewStore(dbPath)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("failed to open audit database at %s", dbPath), err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, common.NewUserError("failed to run audit database migrations", err)
	}

	return store, nil
}

// expandPath expands ~ and $VAR style environment variables in a file path.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}
	return os.ExpandEnv(path)
}
