package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmatosp/contaclara/internal/common"
	"github.com/jmatosp/contaclara/internal/model"
	"github.com/jmatosp/contaclara/internal/service"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	var version int
	require.NoError(t, store.sqlDB.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Re-running is a no-op.
	require.NoError(t, store.Migrate(ctx))

	// The seed taxonomy is queryable.
	leaves, err := store.ListLeaves(ctx, "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, leaves)
}

func TestEnsureOpenLeaf(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	first, err := store.EnsureOpenLeaf(ctx, "u1")
	require.NoError(t, err)
	second, err := store.EnsureOpenLeaf(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Each user gets their own reserved leaf.
	other, err := store.EnsureOpenLeaf(ctx, "u2")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	path, err := store.ResolveLeafPath(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, model.LeafPath{Level1Name: "Sistema", Level2Name: "Sistema", LeafName: model.OpenLeafName}, path)
	assert.True(t, path.IsOpen())
}

func TestResolveLeafPath_NotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	_, err := store.ResolveLeafPath(ctx, 99999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestEnsureLeaf_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	first, err := store.EnsureLeaf(ctx, "Saúde", "Farmácia", "Medicamentos")
	require.NoError(t, err)
	second, err := store.EnsureLeaf(ctx, "Saúde", "Farmácia", "Medicamentos")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	path, err := store.ResolveLeafPath(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "Saúde", path.Level1Name)
	assert.Equal(t, "Medicamentos", path.LeafName)
}

func TestInsertOrMergeRule(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	leaf, err := store.EnsureLeaf(ctx, "Lazer", "Assinaturas", "Streaming")
	require.NoError(t, err)

	base := model.Rule{
		UserID: "u1", Keyword: "NETFLIX", LeafID: leaf, Priority: 2,
		Type: model.RuleTypeExpense, FixVar: model.FixVarFixed, Active: true,
	}

	id, merged, err := store.InsertOrMergeRule(ctx, base)
	require.NoError(t, err)
	assert.False(t, merged)

	// Same targeting merges the new term.
	next := base
	next.Keyword = "NETFLIX.COM"
	mergedID, merged, err := store.InsertOrMergeRule(ctx, next)
	require.NoError(t, err)
	assert.True(t, merged)
	assert.Equal(t, id, mergedID)

	// A term already present under normalization is not appended again.
	dup := base
	dup.Keyword = "netflix"
	_, merged, err = store.InsertOrMergeRule(ctx, dup)
	require.NoError(t, err)
	assert.True(t, merged)

	rules, err := store.ListActiveByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "NETFLIX;NETFLIX.COM", rules[0].Keyword)

	// A different priority is different targeting and inserts a new rule.
	higher := base
	higher.Priority = 5
	higherID, merged, err := store.InsertOrMergeRule(ctx, higher)
	require.NoError(t, err)
	assert.False(t, merged)
	assert.NotEqual(t, id, higherID)

	rules, err = store.ListActiveByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	// Priority descending.
	assert.Equal(t, 5, rules[0].Priority)
	assert.Equal(t, 2, rules[1].Priority)
}

func TestSaveTransactions(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	openLeaf, err := store.EnsureOpenLeaf(ctx, "u1")
	require.NoError(t, err)

	txn := model.Transaction{
		ID:       "t1",
		UserID:   "u1",
		Date:     time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		DescRaw:  "Farmácia Central",
		Amount:   -12.40,
		Currency: "EUR",
		LeafID:   openLeaf,
		Display:  true,
	}
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{txn}))

	// Re-importing the same id is a no-op.
	txn.Amount = -999
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{txn}))

	got, err := store.GetByIDs(ctx, "u1", []string{"t1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, -12.40, got[0].Amount, 0.001)
	assert.Equal(t, "FARMACIA CENTRAL", got[0].DescNorm)
}

func TestUpdateClassification(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	openLeaf, err := store.EnsureOpenLeaf(ctx, "u1")
	require.NoError(t, err)
	leaf, err := store.EnsureLeaf(ctx, "Lazer", "Assinaturas", "Streaming")
	require.NoError(t, err)

	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{{
		ID: "t1", UserID: "u1", Date: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		DescRaw: "NETFLIX.COM", Amount: -12.99, Currency: "EUR", LeafID: openLeaf, Display: true,
	}}))

	candidates := []model.Candidate{
		{LeafID: leaf, RuleID: 1, MatchedKeyword: "NETFLIX", Priority: 2, Category1: "Lazer", Category2: "Assinaturas", Category3: "Streaming"},
		{LeafID: openLeaf, RuleID: 2, MatchedKeyword: "COM", Priority: 2},
	}
	err = store.UpdateClassification(ctx, "t1", service.ClassificationUpdate{
		LeafID:     openLeaf,
		Conflict:   true,
		Candidates: candidates,
	})
	require.NoError(t, err)

	got, err := store.GetByIDs(ctx, "u1", []string{"t1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Conflict)
	assert.Equal(t, candidates, got[0].Candidates)

	// Resolving the conflict clears the candidate list.
	err = store.UpdateClassification(ctx, "t1", service.ClassificationUpdate{
		LeafID: leaf, Category1: "Lazer", Category2: "Assinaturas", Category3: "Streaming",
		Type: model.RuleTypeExpense, FixVar: model.FixVarFixed,
	})
	require.NoError(t, err)

	got, err = store.GetByIDs(ctx, "u1", []string{"t1"})
	require.NoError(t, err)
	assert.False(t, got[0].Conflict)
	assert.Empty(t, got[0].Candidates)
	assert.Equal(t, leaf, got[0].LeafID)
	assert.Equal(t, model.RuleTypeExpense, got[0].Type)
}

func TestUpdateClassification_NotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	err := store.UpdateClassification(ctx, "missing", service.ClassificationUpdate{LeafID: 1})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListByUser_Filters(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	openLeaf, err := store.EnsureOpenLeaf(ctx, "u1")
	require.NoError(t, err)
	leaf, err := store.EnsureLeaf(ctx, "Lazer", "Assinaturas", "Streaming")
	require.NoError(t, err)

	day := func(d int) time.Time { return time.Date(2026, 5, d, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{
		{ID: "t1", UserID: "u1", Date: day(1), DescRaw: "A", Amount: -10, Currency: "EUR", LeafID: openLeaf, Display: true},
		{ID: "t2", UserID: "u1", Date: day(5), DescRaw: "B", Amount: -250, Currency: "EUR", LeafID: leaf, Display: true},
		{ID: "t3", UserID: "u1", Date: day(9), DescRaw: "C", Amount: 50, Currency: "EUR", LeafID: openLeaf, Display: false},
		{ID: "t4", UserID: "u2", Date: day(2), DescRaw: "D", Amount: -5, Currency: "EUR", LeafID: openLeaf, Display: true},
	}))

	ids := func(txns []model.Transaction) []string {
		out := make([]string, 0, len(txns))
		for _, txn := range txns {
			out = append(out, txn.ID)
		}
		return out
	}

	// Hidden rows are excluded by default and scoped to the user.
	txns, err := store.ListByUser(ctx, "u1", service.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t1"}, ids(txns)) // date descending

	txns, err = store.ListByUser(ctx, "u1", service.TransactionFilter{IncludeHidden: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"t3", "t2", "t1"}, ids(txns))

	txns, err = store.ListByUser(ctx, "u1", service.TransactionFilter{LeafID: &openLeaf})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, ids(txns))

	txns, err = store.ListByUser(ctx, "u1", service.TransactionFilter{ExcludeLeafID: &openLeaf})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, ids(txns))

	start, end := day(2), day(6)
	txns, err = store.ListByUser(ctx, "u1", service.TransactionFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, ids(txns))

	minAmount := 100.0
	txns, err = store.ListByUser(ctx, "u1", service.TransactionFilter{MinAbsAmount: &minAmount})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, ids(txns))

	txns, err = store.ListByUser(ctx, "u1", service.TransactionFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, ids(txns))
}

func TestBeginTx_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	leaf, err := store.EnsureLeaf(ctx, "Lazer", "Assinaturas", "Streaming")
	require.NoError(t, err)

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	_, _, err = tx.InsertOrMergeRule(ctx, model.Rule{
		UserID: "u1", Keyword: "NETFLIX", LeafID: leaf, Priority: 1, Active: true,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	rules, err := store.ListActiveByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestBeginTx_CommitPersistsWrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	leaf, err := store.EnsureLeaf(ctx, "Lazer", "Assinaturas", "Streaming")
	require.NoError(t, err)

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	_, _, err = tx.InsertOrMergeRule(ctx, model.Rule{
		UserID: "u1", Keyword: "NETFLIX", LeafID: leaf, Priority: 1, Active: true,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	rules, err := store.ListActiveByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "NETFLIX", rules[0].Keyword)
}
