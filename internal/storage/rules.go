package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmatosp/contaclara/internal/common"
	"github.com/jmatosp/contaclara/internal/model"
)

const ruleColumns = `id, user_id, keyword, negative_keyword, leaf_id, priority,
	type, fix_var, active, created_at, updated_at`

// ListActiveByUser returns the user's active rules, priority descending.
func (q *queries) ListActiveByUser(ctx context.Context, userID string) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT `+ruleColumns+` FROM rules
		WHERE user_id = ? AND active = 1
		ORDER BY priority DESC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRules(rows)
}

// GetRulesByIDs returns the user's rules with the given ids, active or not,
// so conflict review can still show rules that were deactivated after the
// conflict was recorded.
func (q *queries) GetRulesByIDs(ctx context.Context, userID string, ids []int64) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT `+ruleColumns+` FROM rules
		WHERE user_id = ? AND id IN (`+placeholders+`)
		ORDER BY id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules by id: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRules(rows)
}

// InsertOrMergeRule merges the keyword terms into an existing active rule
// with the same leaf, priority and negative keywords when one exists,
// otherwise inserts a new rule. Keyword validation happens in the engine
// before this is called.
func (q *queries) InsertOrMergeRule(ctx context.Context, rule model.Rule) (int64, bool, error) {
	if err := validateContext(ctx); err != nil {
		return 0, false, err
	}
	if err := validateString(rule.UserID, "rule user id"); err != nil {
		return 0, false, err
	}

	var existingID int64
	var existingKeyword string
	err := q.db.QueryRowContext(ctx, `
		SELECT id, keyword FROM rules
		WHERE user_id = ? AND leaf_id = ? AND priority = ? AND negative_keyword = ? AND active = 1
		ORDER BY id ASC LIMIT 1`,
		rule.UserID, rule.LeafID, rule.Priority, rule.NegativeKeyword,
	).Scan(&existingID, &existingKeyword)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := q.db.ExecContext(ctx, `
			INSERT INTO rules (user_id, keyword, negative_keyword, leaf_id, priority, type, fix_var, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rule.UserID, rule.Keyword, rule.NegativeKeyword, rule.LeafID,
			rule.Priority, string(rule.Type), string(rule.FixVar), rule.Active,
		)
		if err != nil {
			return 0, false, fmt.Errorf("failed to insert rule: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("failed to read inserted rule id: %w", err)
		}
		return id, false, nil

	case err != nil:
		return 0, false, fmt.Errorf("failed to look up mergeable rule: %w", err)
	}

	merged := mergeKeywords(existingKeyword, rule.Keyword)
	if merged != existingKeyword {
		if _, err := q.db.ExecContext(ctx, `
			UPDATE rules SET keyword = ?, updated_at = ? WHERE id = ?`,
			merged, time.Now().UTC(), existingID,
		); err != nil {
			return 0, false, fmt.Errorf("failed to merge rule keyword: %w", err)
		}
	}
	return existingID, true, nil
}

// mergeKeywords appends the terms of addition not already present in
// existing, comparing normalized forms.
func mergeKeywords(existing, addition string) string {
	have := make(map[string]bool)
	for _, t := range model.SplitTerms(existing) {
		have[common.Normalize(t)] = true
	}

	merged := existing
	for _, t := range model.SplitTerms(addition) {
		if n := common.Normalize(t); n != "" && !have[n] {
			have[n] = true
			merged += ";" + t
		}
	}
	return merged
}

func scanRules(rows *sql.Rows) ([]model.Rule, error) {
	var rules []model.Rule
	for rows.Next() {
		var r model.Rule
		var ruleType, fixVar string

		err := rows.Scan(
			&r.ID, &r.UserID, &r.Keyword, &r.NegativeKeyword, &r.LeafID,
			&r.Priority, &ruleType, &fixVar, &r.Active, &r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		r.Type = model.RuleType(ruleType)
		r.FixVar = model.FixVar(fixVar)
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return rules, nil
}
