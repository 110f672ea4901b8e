package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmatosp/contaclara/internal/common"
	"github.com/jmatosp/contaclara/internal/model"
)

// systemCategoryName is the level1/level2 pair sheltering per-user reserved
// leaves like OPEN.
const systemCategoryName = "Sistema"

// ResolveLeafPath returns the full ancestor chain of a leaf. A leaf whose
// parents cannot be joined is reported as orphaned, not as missing.
func (q *queries) ResolveLeafPath(ctx context.Context, leafID int64) (model.LeafPath, error) {
	if err := validateContext(ctx); err != nil {
		return model.LeafPath{}, err
	}

	var leafName string
	var level2Name, level1Name sql.NullString
	err := q.db.QueryRowContext(ctx, `
		SELECT leaf.name, l2.name, l1.name
		FROM taxonomy_leaf leaf
		LEFT JOIN taxonomy_level2 l2 ON l2.id = leaf.level2_id
		LEFT JOIN taxonomy_level1 l1 ON l1.id = l2.level1_id
		WHERE leaf.id = ?`, leafID,
	).Scan(&leafName, &level2Name, &level1Name)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.LeafPath{}, fmt.Errorf("leaf %d: %w", leafID, common.ErrNotFound)
	case err != nil:
		return model.LeafPath{}, fmt.Errorf("failed to resolve leaf %d: %w", leafID, err)
	}

	if !level2Name.Valid || !level1Name.Valid {
		return model.LeafPath{}, fmt.Errorf("leaf %d: %w", leafID, common.ErrOrphanedLeaf)
	}

	return model.LeafPath{
		Level1Name: level1Name.String,
		Level2Name: level2Name.String,
		LeafName:   leafName,
	}, nil
}

// EnsureOpenLeaf idempotently provisions the reserved per-user OPEN leaf and
// returns its id. The leaf lives under the shared Sistema branch.
func (q *queries) EnsureOpenLeaf(ctx context.Context, userID string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}

	level2ID, err := q.ensureLevel2(ctx, systemCategoryName, systemCategoryName)
	if err != nil {
		return 0, err
	}

	if _, err := q.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO taxonomy_leaf (level2_id, name, user_id)
		VALUES (?, ?, ?)`, level2ID, model.OpenLeafName, userID); err != nil {
		return 0, fmt.Errorf("failed to provision OPEN leaf: %w", err)
	}

	var id int64
	err = q.db.QueryRowContext(ctx, `
		SELECT id FROM taxonomy_leaf WHERE level2_id = ? AND name = ? AND user_id = ?`,
		level2ID, model.OpenLeafName, userID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to look up OPEN leaf: %w", err)
	}
	return id, nil
}

// AppCategoryNameForLeaf returns the user's display label for a leaf, or the
// empty string when no AppCategory covers it.
func (q *queries) AppCategoryNameForLeaf(ctx context.Context, userID string, leafID int64) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}

	var name string
	err := q.db.QueryRowContext(ctx, `
		SELECT ac.name
		FROM app_category_leaves acl
		JOIN app_categories ac ON ac.id = acl.app_category_id
		WHERE acl.user_id = ? AND acl.leaf_id = ?`, userID, leafID,
	).Scan(&name)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("failed to look up app category for leaf %d: %w", leafID, err)
	}
	return name, nil
}

// EnsureLeaf idempotently creates the full level1/level2/leaf path for a
// shared taxonomy leaf and returns the leaf id.
func (q *queries) EnsureLeaf(ctx context.Context, level1, level2, leaf string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	for _, pair := range [][2]string{{level1, "level1"}, {level2, "level2"}, {leaf, "leaf"}} {
		if err := validateString(pair[0], pair[1]); err != nil {
			return 0, err
		}
	}

	level2ID, err := q.ensureLevel2(ctx, level1, level2)
	if err != nil {
		return 0, err
	}

	if _, err := q.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO taxonomy_leaf (level2_id, name, user_id) VALUES (?, ?, '')`,
		level2ID, leaf); err != nil {
		return 0, fmt.Errorf("failed to create leaf %s: %w", leaf, err)
	}

	var id int64
	err = q.db.QueryRowContext(ctx, `
		SELECT id FROM taxonomy_leaf WHERE level2_id = ? AND name = ? AND user_id = ''`,
		level2ID, leaf,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to look up leaf %s: %w", leaf, err)
	}
	return id, nil
}

// LeafListing is one row of the taxonomy listing surface.
type LeafListing struct {
	Level1Name string
	Level2Name string
	LeafName   string
	UserID     string
	LeafID     int64
}

// ListLeaves returns every leaf visible to the user: shared leaves plus the
// user's own reserved leaves.
func (q *queries) ListLeaves(ctx context.Context, userID string) ([]LeafListing, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT leaf.id, l1.name, l2.name, leaf.name, leaf.user_id
		FROM taxonomy_leaf leaf
		JOIN taxonomy_level2 l2 ON l2.id = leaf.level2_id
		JOIN taxonomy_level1 l1 ON l1.id = l2.level1_id
		WHERE leaf.user_id = '' OR leaf.user_id = ?
		ORDER BY l1.name, l2.name, leaf.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaves: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var leaves []LeafListing
	for rows.Next() {
		var l LeafListing
		if err := rows.Scan(&l.LeafID, &l.Level1Name, &l.Level2Name, &l.LeafName, &l.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan leaf: %w", err)
		}
		leaves = append(leaves, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leaves: %w", err)
	}
	return leaves, nil
}

func (q *queries) ensureLevel2(ctx context.Context, level1, level2 string) (int64, error) {
	if _, err := q.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO taxonomy_level1 (name) VALUES (?)`, level1); err != nil {
		return 0, fmt.Errorf("failed to create level1 %s: %w", level1, err)
	}

	if _, err := q.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO taxonomy_level2 (level1_id, name)
		SELECT id, ? FROM taxonomy_level1 WHERE name = ?`, level2, level1); err != nil {
		return 0, fmt.Errorf("failed to create level2 %s: %w", level2, err)
	}

	var id int64
	err := q.db.QueryRowContext(ctx, `
		SELECT l2.id FROM taxonomy_level2 l2
		JOIN taxonomy_level1 l1 ON l1.id = l2.level1_id
		WHERE l2.name = ? AND l1.name = ?`, level2, level1,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to look up level2 %s: %w", level2, err)
	}
	return id, nil
}
