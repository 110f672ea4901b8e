package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS taxonomy_level1 (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL UNIQUE
				)`,
				`CREATE TABLE IF NOT EXISTS taxonomy_level2 (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					level1_id INTEGER NOT NULL REFERENCES taxonomy_level1(id),
					name TEXT NOT NULL,
					UNIQUE(level1_id, name)
				)`,
				`CREATE TABLE IF NOT EXISTS taxonomy_leaf (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					level2_id INTEGER NOT NULL REFERENCES taxonomy_level2(id),
					name TEXT NOT NULL,
					user_id TEXT NOT NULL DEFAULT '',
					UNIQUE(level2_id, name, user_id)
				)`,

				`CREATE TABLE IF NOT EXISTS app_categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					UNIQUE(user_id, name)
				)`,
				`CREATE TABLE IF NOT EXISTS app_category_leaves (
					app_category_id INTEGER NOT NULL REFERENCES app_categories(id),
					leaf_id INTEGER NOT NULL REFERENCES taxonomy_leaf(id),
					user_id TEXT NOT NULL,
					PRIMARY KEY (user_id, leaf_id)
				)`,

				`CREATE TABLE IF NOT EXISTS rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					keyword TEXT NOT NULL,
					negative_keyword TEXT NOT NULL DEFAULT '',
					leaf_id INTEGER NOT NULL REFERENCES taxonomy_leaf(id),
					priority INTEGER NOT NULL DEFAULT 0,
					type TEXT NOT NULL DEFAULT 'Despesa',
					fix_var TEXT NOT NULL DEFAULT 'Variável',
					active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_rules_user_active ON rules(user_id, active)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					date DATETIME NOT NULL,
					desc_raw TEXT NOT NULL,
					desc_norm TEXT NOT NULL DEFAULT '',
					amount REAL NOT NULL,
					currency TEXT NOT NULL DEFAULT 'EUR',
					leaf_id INTEGER NOT NULL REFERENCES taxonomy_leaf(id),
					category1 TEXT NOT NULL DEFAULT '',
					category2 TEXT NOT NULL DEFAULT '',
					category3 TEXT NOT NULL DEFAULT '',
					app_category_name TEXT NOT NULL DEFAULT '',
					type TEXT NOT NULL DEFAULT '',
					fix_var TEXT NOT NULL DEFAULT '',
					conflict INTEGER NOT NULL DEFAULT 0,
					candidates TEXT NOT NULL DEFAULT '',
					display INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_user_leaf_date ON transactions(user_id, leaf_id, date)`,
				`CREATE INDEX idx_transactions_user_conflict ON transactions(user_id, conflict)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Seed starter taxonomy",
		Up: func(tx *sql.Tx) error {
			seed := []struct {
				level1 string
				level2 string
				leaf   string
			}{
				{"Moradia", "Casa", "Renda"},
				{"Moradia", "Casa", "Condomínio"},
				{"Moradia", "Serviços", "Eletricidade"},
				{"Moradia", "Serviços", "Água"},
				{"Moradia", "Serviços", "Internet"},
				{"Alimentação", "Supermercado", "Supermercado"},
				{"Alimentação", "Restaurantes", "Restaurantes"},
				{"Transporte", "Público", "Passe"},
				{"Transporte", "Automóvel", "Combustível"},
				{"Lazer", "Assinaturas", "Streaming"},
				{"Rendimento", "Trabalho", "Salário"},
			}

			for _, s := range seed {
				if err := seedLeaf(tx, s.level1, s.level2, s.leaf); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

func seedLeaf(tx *sql.Tx, level1, level2, leaf string) error {
	if _, err := tx.Exec(`INSERT OR IGNORE INTO taxonomy_level1 (name) VALUES (?)`, level1); err != nil {
		return fmt.Errorf("failed to seed level1 %s: %w", level1, err)
	}
	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO taxonomy_level2 (level1_id, name)
		SELECT id, ? FROM taxonomy_level1 WHERE name = ?`, level2, level1); err != nil {
		return fmt.Errorf("failed to seed level2 %s: %w", level2, err)
	}
	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO taxonomy_leaf (level2_id, name)
		SELECT l2.id, ? FROM taxonomy_level2 l2
		JOIN taxonomy_level1 l1 ON l1.id = l2.level1_id
		WHERE l2.name = ? AND l1.name = ?`, leaf, level2, level1); err != nil {
		return fmt.Errorf("failed to seed leaf %s: %w", leaf, err)
	}
	return nil
}

// Migrate brings the database schema up to ExpectedSchemaVersion.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var current int
	if err := s.sqlDB.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := s.sqlDB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}

		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}

		// PRAGMA does not accept bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		slog.Info("applied migration", "version", m.Version, "description", m.Description)
	}

	return nil
}
