package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmatosp/contaclara/internal/common"
	"github.com/jmatosp/contaclara/internal/model"
	"github.com/jmatosp/contaclara/internal/service"
)

const transactionColumns = `id, user_id, date, desc_raw, desc_norm, amount, currency,
	leaf_id, category1, category2, category3, app_category_name,
	type, fix_var, conflict, candidates, display`

// SaveTransactions inserts transactions, ignoring ids already present. The
// normalized description is computed here when the importer did not set it.
func (q *queries) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	for _, txn := range transactions {
		if err := validateString(txn.ID, "transaction id"); err != nil {
			return err
		}
		if err := validateString(txn.UserID, "transaction user id"); err != nil {
			return err
		}

		descNorm := txn.DescNorm
		if descNorm == "" {
			descNorm = common.Normalize(txn.DescRaw)
		}

		candidates, err := marshalCandidates(txn.Candidates)
		if err != nil {
			return err
		}

		_, err = q.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO transactions (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			txn.ID, txn.UserID, txn.Date, txn.DescRaw, descNorm, txn.Amount, txn.Currency,
			txn.LeafID, txn.Category1, txn.Category2, txn.Category3, txn.AppCategoryName,
			string(txn.Type), string(txn.FixVar), txn.Conflict, candidates, txn.Display,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}
	return nil
}

// ListByUser returns the user's transactions matching the filter, most recent
// first, bounded by filter.Limit when set.
func (q *queries) ListByUser(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`
	args := []any{userID}

	if !filter.IncludeHidden {
		query += ` AND display = 1`
	}
	if filter.LeafID != nil {
		query += ` AND leaf_id = ?`
		args = append(args, *filter.LeafID)
	}
	if filter.ExcludeLeafID != nil {
		query += ` AND leaf_id <> ?`
		args = append(args, *filter.ExcludeLeafID)
	}
	if filter.OnlyConflicts {
		query += ` AND conflict = 1`
	}
	if filter.StartDate != nil {
		query += ` AND date >= ?`
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		query += ` AND date <= ?`
		args = append(args, *filter.EndDate)
	}
	if filter.MinAbsAmount != nil {
		query += ` AND ABS(amount) >= ?`
		args = append(args, *filter.MinAbsAmount)
	}
	if filter.MaxAbsAmount != nil {
		query += ` AND ABS(amount) <= ?`
		args = append(args, *filter.MaxAbsAmount)
	}

	query += ` ORDER BY date DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// GetByIDs returns the user's transactions with the given ids. Missing ids
// are silently absent from the result.
func (q *queries) GetByIDs(ctx context.Context, userID string, ids []string) ([]model.Transaction, error) {
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
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND id IN (`+placeholders+`)
		ORDER BY date DESC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions by id: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// UpdateClassification writes the classification fields back to one
// transaction.
func (q *queries) UpdateClassification(ctx context.Context, txID string, update service.ClassificationUpdate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(txID, "txID"); err != nil {
		return err
	}

	candidates, err := marshalCandidates(update.Candidates)
	if err != nil {
		return err
	}

	res, err := q.db.ExecContext(ctx, `
		UPDATE transactions SET
			leaf_id = ?, category1 = ?, category2 = ?, category3 = ?,
			app_category_name = ?, type = ?, fix_var = ?, conflict = ?, candidates = ?
		WHERE id = ?`,
		update.LeafID, update.Category1, update.Category2, update.Category3,
		update.AppCategoryName, string(update.Type), string(update.FixVar),
		update.Conflict, candidates, txID,
	)
	if err != nil {
		return fmt.Errorf("failed to update classification for %s: %w", txID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %s: %w", txID, common.ErrNotFound)
	}
	return nil
}

func marshalCandidates(candidates []model.Candidate) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}
	data, err := json.Marshal(candidates)
	if err != nil {
		return "", fmt.Errorf("failed to marshal candidates: %w", err)
	}
	return string(data), nil
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var txns []model.Transaction
	for rows.Next() {
		var txn model.Transaction
		var txnType, fixVar, candidates string

		err := rows.Scan(
			&txn.ID, &txn.UserID, &txn.Date, &txn.DescRaw, &txn.DescNorm,
			&txn.Amount, &txn.Currency, &txn.LeafID,
			&txn.Category1, &txn.Category2, &txn.Category3, &txn.AppCategoryName,
			&txnType, &fixVar, &txn.Conflict, &candidates, &txn.Display,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		txn.Type = model.RuleType(txnType)
		txn.FixVar = model.FixVar(fixVar)
		if candidates != "" {
			if err := json.Unmarshal([]byte(candidates), &txn.Candidates); err != nil {
				return nil, fmt.Errorf("failed to unmarshal candidates for %s: %w", txn.ID, err)
			}
		}

		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txns, nil
}
