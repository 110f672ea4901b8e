package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jmatosp/contaclara/internal/config"
	"github.com/jmatosp/contaclara/internal/storage"
)

// openStorage opens the configured ledger database and returns a cleanup
// function.
func openStorage() (*storage.SQLiteStorage, func(), error) {
	dbPath := config.ExpandPath(viper.GetString("database.path"))
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	cleanup := func() { _ = store.Close() }
	return store, cleanup, nil
}

// requireUser returns the configured user id or an error when none is set.
func requireUser() (string, error) {
	user := strings.TrimSpace(viper.GetString("user"))
	if user == "" {
		return "", fmt.Errorf("no user id set; pass --user or set CONTACLARA_USER")
	}
	return user, nil
}

// parseDateFlag parses an optional YYYY-MM-DD flag value.
func parseDateFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", value, err)
	}
	return &t, nil
}
