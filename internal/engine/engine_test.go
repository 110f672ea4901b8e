package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmatosp/contaclara/internal/model"
	"github.com/jmatosp/contaclara/internal/service"
	"github.com/jmatosp/contaclara/internal/storage"
)

func newTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seedTransaction(t *testing.T, store *storage.SQLiteStorage, id, desc string, amount float64, date time.Time, leafID int64) {
	t.Helper()
	err := store.SaveTransactions(context.Background(), []model.Transaction{{
		ID:       id,
		UserID:   "u1",
		Date:     date,
		DescRaw:  desc,
		Amount:   amount,
		Currency: "EUR",
		LeafID:   leafID,
		Display:  true,
	}})
	require.NoError(t, err)
}

func TestApplyClassification_SingleMatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	openLeaf, err := store.EnsureOpenLeaf(ctx, "u1")
	require.NoError(t, err)
	streamingLeaf, err := store.EnsureLeaf(ctx, "Lazer", "Assinaturas", "Streaming")
	require.NoError(t, err)

	_, _, err = store.InsertOrMergeRule(ctx, model.Rule{
		UserID:   "u1",
		Keyword:  "NETFLIX",
		LeafID:   streamingLeaf,
		Priority: 1,
		Type:     model.RuleTypeExpense,
		FixVar:   model.FixVarFixed,
		Active:   true,
	})
	require.NoError(t, err)

	seedTransaction(t, store, "t1", "Netflix.com Assinatura", -12.99, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), openLeaf)

	eng := New(store)
	result, err := eng.ApplyClassification(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Conflicts)

	txns, err := store.GetByIDs(ctx, "u1", []string{"t1"})
	require.NoError(t, err)
	require.Len(t, txns, 1)

	txn := txns[0]
	assert.Equal(t, streamingLeaf, txn.LeafID)
	assert.Equal(t, "Lazer", txn.Category1)
	assert.Equal(t, "Assinaturas", txn.Category2)
	assert.Equal(t, "Streaming", txn.Category3)
	assert.Equal(t, model.RuleTypeExpense, txn.Type)
	assert.Equal(t, model.FixVarFixed, txn.FixVar)
	assert.False(t, txn.Conflict)
	assert.Empty(t, txn.Candidates)

	// Re-running with unchanged rules is idempotent.
	again, err := eng.ApplyClassification(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, result, again)

	txns2, err := store.GetByIDs(ctx, "u1", []string{"t1"})
	require.NoError(t, err)
	assert.Equal(t, txns, txns2)
}

func TestApplyClassification_EqualPriorityIsConflict(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	openLeaf, err := store.EnsureOpenLeaf(ctx, "u1")
	require.NoError(t, err)
	groceriesLeaf, err := store.EnsureLeaf(ctx, "Alimentação", "Supermercado", "Supermercado")
	require.NoError(t, err)
	fuelLeaf, err := store.EnsureLeaf(ctx, "Transporte", "Automóvel", "Combustível")
	require.NoError(t, err)

	for _, r := range []model.Rule{
		{UserID: "u1", Keyword: "CONTINENTE", LeafID: groceriesLeaf, Priority: 2, Active: true},
		{UserID: "u1", Keyword: "BOMBA", LeafID: fuelLeaf, Priority: 2, Active: true},
	} {
		_, _, err := store.InsertOrMergeRule(ctx, r)
		require.NoError(t, err)
	}

	seedTransaction(t, store, "t1", "CONTINENTE BOMBA GAIA", -55.20, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), openLeaf)

	eng := New(store)
	result, err := eng.ApplyClassification(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 1, result.Conflicts)

	txns, err := store.GetByIDs(ctx, "u1", []string{"t1"})
	require.NoError(t, err)
	require.Len(t, txns, 1)

	txn := txns[0]
	assert.True(t, txn.Conflict)
	assert.GreaterOrEqual(t, len(txn.Candidates), 2)
	assert.Equal(t, openLeaf, txn.LeafID)

	// The conflict surface includes the competing rules' keyword text.
	conflicts, err := eng.GetConflictTransactions(ctx, "u1", service.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Len(t, conflicts[0].Rules, 2)
	keywords := []string{conflicts[0].Rules[0].Keyword, conflicts[0].Rules[1].Keyword}
	assert.Contains(t, keywords, "CONTINENTE")
	assert.Contains(t, keywords, "BOMBA")
}

func TestApplyClassification_HigherPriorityWinsOverMultipleMatches(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	openLeaf, err := store.EnsureOpenLeaf(ctx, "u1")
	require.NoError(t, err)
	groceriesLeaf, err := store.EnsureLeaf(ctx, "Alimentação", "Supermercado", "Supermercado")
	require.NoError(t, err)
	fuelLeaf, err := store.EnsureLeaf(ctx, "Transporte", "Automóvel", "Combustível")
	require.NoError(t, err)

	for _, r := range []model.Rule{
		{UserID: "u1", Keyword: "CONTINENTE", LeafID: groceriesLeaf, Priority: 5, Active: true},
		{UserID: "u1", Keyword: "BOMBA", LeafID: fuelLeaf, Priority: 1, Active: true},
	} {
		_, _, err := store.InsertOrMergeRule(ctx, r)
		require.NoError(t, err)
	}

	seedTransaction(t, store, "t1", "CONTINENTE BOMBA GAIA", -55.20, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), openLeaf)

	result, err := New(store).ApplyClassification(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Conflicts)

	txns, err := store.GetByIDs(ctx, "u1", []string{"t1"})
	require.NoError(t, err)
	assert.Equal(t, groceriesLeaf, txns[0].LeafID)
	assert.False(t, txns[0].Conflict)
}

func TestApplyClassification_NoMatchStaysOpen(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	openLeaf, err := store.EnsureOpenLeaf(ctx, "u1")
	require.NoError(t, err)

	seedTransaction(t, store, "t1", "LOJA DESCONHECIDA", -49.99, time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC), openLeaf)

	result, err := New(store).ApplyClassification(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Conflicts)

	txns, err := store.GetByIDs(ctx, "u1", []string{"t1"})
	require.NoError(t, err)
	assert.Equal(t, openLeaf, txns[0].LeafID)
	assert.False(t, txns[0].Conflict)
}

func TestApplyClassification_SkipsRuleWithMissingLeaf(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	openLeaf, err := store.EnsureOpenLeaf(ctx, "u1")
	require.NoError(t, err)

	// Rule points at a leaf that does not exist; the scan must survive.
	_, _, err = store.InsertOrMergeRule(ctx, model.Rule{
		UserID: "u1", Keyword: "NETFLIX", LeafID: 9999, Priority: 1, Active: true,
	})
	require.NoError(t, err)

	seedTransaction(t, store, "t1", "NETFLIX.COM", -12.99, time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC), openLeaf)

	result, err := New(store).ApplyClassification(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Updated)

	txns, err := store.GetByIDs(ctx, "u1", []string{"t1"})
	require.NoError(t, err)
	assert.Equal(t, openLeaf, txns[0].LeafID)
}

func TestCreateRuleAndApply(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	openLeaf, err := store.EnsureOpenLeaf(ctx, "u1")
	require.NoError(t, err)
	streamingLeaf, err := store.EnsureLeaf(ctx, "Lazer", "Assinaturas", "Streaming")
	require.NoError(t, err)

	seedTransaction(t, store, "t1", "SPOTIFY P3158A1", -6.99, time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC), openLeaf)

	eng := New(store)
	result, err := eng.CreateRuleAndApply(ctx, "u1", model.Rule{
		Keyword: "SPOTIFY", LeafID: streamingLeaf, Priority: 1,
		Type: model.RuleTypeExpense, FixVar: model.FixVarFixed,
	})
	require.NoError(t, err)
	assert.False(t, result.Merged)
	assert.Equal(t, 1, result.Applied.Updated)

	txns, err := store.GetByIDs(ctx, "u1", []string{"t1"})
	require.NoError(t, err)
	assert.Equal(t, streamingLeaf, txns[0].LeafID)

	// Same targeting merges instead of creating a second rule.
	merged, err := eng.CreateRuleAndApply(ctx, "u1", model.Rule{
		Keyword: "SPOTIFY AB", LeafID: streamingLeaf, Priority: 1,
		Type: model.RuleTypeExpense, FixVar: model.FixVarFixed,
	})
	require.NoError(t, err)
	assert.True(t, merged.Merged)
	assert.Equal(t, result.RuleID, merged.RuleID)

	rules, err := store.ListActiveByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "SPOTIFY;SPOTIFY AB", rules[0].Keyword)
}

func TestCreateRuleAndApply_RejectsInvalidRule(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	_, err := New(store).CreateRuleAndApply(ctx, "u1", model.Rule{Keyword: "   "})
	require.Error(t, err)

	rules, err := store.ListActiveByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, rules)
}
