package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmatosp/contaclara/internal/common"
	"github.com/jmatosp/contaclara/internal/model"
	"github.com/jmatosp/contaclara/internal/service"
)

// Engine runs rule matching over a user's transactions and writes the
// resulting classifications back through the store.
type Engine struct {
	store service.Storage
	// Progress, when set, is called after each transaction is processed.
	Progress func(done, total int)
}

// New creates a classification engine on top of the given storage.
func New(store service.Storage) *Engine {
	return &Engine{store: store}
}

// ApplyResult summarizes one classification run.
type ApplyResult struct {
	// Updated counts transactions classified by a unique top-priority rule.
	Updated int
	// Conflicts counts transactions flagged ambiguous for user review.
	Conflicts int
}

// CreateRuleResult is the outcome of CreateRuleAndApply.
type CreateRuleResult struct {
	Applied ApplyResult
	RuleID  int64
	Merged  bool
}

// ApplyClassification re-runs rule matching for all of a user's transactions,
// or only the given ids when txIDs is non-empty. Transactions matched by a
// unique top-priority rule are classified; ties are flagged as conflicts with
// the full candidate list persisted; transactions matching nothing return to
// the OPEN leaf.
func (e *Engine) ApplyClassification(ctx context.Context, userID string, txIDs []string) (ApplyResult, error) {
	return e.apply(ctx, e.store, userID, txIDs)
}

// CreateRuleAndApply validates and saves a rule, merging into an existing
// rule with identical targeting when one exists, then re-runs classification
// for the user. The whole operation runs in one storage transaction so a
// concurrent discovery scan sees either the pre- or post-reapply state.
func (e *Engine) CreateRuleAndApply(ctx context.Context, userID string, rule model.Rule) (CreateRuleResult, error) {
	rule.UserID = userID
	rule.Active = true
	if err := ValidateRule(&rule); err != nil {
		return CreateRuleResult{}, err
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return CreateRuleResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ruleID, merged, err := tx.InsertOrMergeRule(ctx, rule)
	if err != nil {
		return CreateRuleResult{}, fmt.Errorf("failed to save rule: %w", err)
	}

	applied, err := e.apply(ctx, tx, userID, nil)
	if err != nil {
		return CreateRuleResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return CreateRuleResult{}, fmt.Errorf("failed to commit rule and reclassification: %w", err)
	}

	return CreateRuleResult{RuleID: ruleID, Merged: merged, Applied: applied}, nil
}

// GetConflictTransactions lists a user's conflicted transactions together
// with the full rule records behind each candidate, including keyword and
// negative-keyword text, for display.
func (e *Engine) GetConflictTransactions(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.ConflictTransaction, error) {
	filter.OnlyConflicts = true
	txns, err := e.store.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflict transactions: %w", err)
	}

	ids := make([]int64, 0)
	seen := make(map[int64]bool)
	for _, txn := range txns {
		for _, c := range txn.Candidates {
			if !seen[c.RuleID] {
				seen[c.RuleID] = true
				ids = append(ids, c.RuleID)
			}
		}
	}

	rulesByID := make(map[int64]model.Rule, len(ids))
	if len(ids) > 0 {
		rules, err := e.store.GetRulesByIDs(ctx, userID, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load competing rules: %w", err)
		}
		for _, r := range rules {
			rulesByID[r.ID] = r
		}
	}

	conflicts := make([]model.ConflictTransaction, 0, len(txns))
	for _, txn := range txns {
		ct := model.ConflictTransaction{Transaction: txn}
		for _, c := range txn.Candidates {
			if r, ok := rulesByID[c.RuleID]; ok {
				ct.Rules = append(ct.Rules, r)
			}
		}
		conflicts = append(conflicts, ct)
	}
	return conflicts, nil
}

func (e *Engine) apply(ctx context.Context, s service.Stores, userID string, txIDs []string) (ApplyResult, error) {
	openLeafID, err := s.EnsureOpenLeaf(ctx, userID)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("failed to ensure OPEN leaf: %w", err)
	}

	rules, err := s.ListActiveByUser(ctx, userID)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("failed to list rules: %w", err)
	}
	matcher := NewMatcher(rules)
	rulesByID := make(map[int64]model.Rule, len(rules))
	for _, r := range rules {
		rulesByID[r.ID] = r
	}

	var txns []model.Transaction
	if len(txIDs) > 0 {
		txns, err = s.GetByIDs(ctx, userID, txIDs)
	} else {
		txns, err = s.ListByUser(ctx, userID, service.TransactionFilter{IncludeHidden: true})
	}
	if err != nil {
		return ApplyResult{}, fmt.Errorf("failed to list transactions: %w", err)
	}

	paths := newLeafPathCache(s)
	var result ApplyResult

	for i := range txns {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		txn := &txns[i]
		matchKey := txn.DescNorm
		if matchKey == "" {
			matchKey = common.Normalize(txn.DescRaw)
		}

		candidates := e.buildCandidates(ctx, paths, userID, matcher.Match(matchKey))

		update, outcome := decide(candidates, openLeafID)
		if outcome == outcomeApplied {
			// Type and fixVar default from the winning rule.
			if r, ok := rulesByID[candidates[0].RuleID]; ok {
				update.Type = r.Type
				update.FixVar = r.FixVar
			}
		}
		if err := s.UpdateClassification(ctx, txn.ID, update); err != nil {
			return result, fmt.Errorf("failed to update transaction %s: %w", txn.ID, err)
		}

		switch outcome {
		case outcomeApplied:
			result.Updated++
		case outcomeConflict:
			result.Conflicts++
		}

		if e.Progress != nil {
			e.Progress(i+1, len(txns))
		}
	}

	return result, nil
}

// buildCandidates turns rule matches into candidate records with denormalized
// leaf paths. A rule targeting a leaf that no longer resolves is skipped and
// logged as inconsistent; it never aborts matching for other rules.
func (e *Engine) buildCandidates(ctx context.Context, paths *leafPathCache, userID string, matches []RuleMatch) []model.Candidate {
	candidates := make([]model.Candidate, 0, len(matches))
	for _, m := range matches {
		path, appName, err := paths.resolve(ctx, userID, m.Rule.LeafID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrOrphanedLeaf) {
				paths.warnOnce(m.Rule.ID, m.Rule.LeafID, err)
				continue
			}
			common.LogError(err, "failed to resolve leaf path", common.Fields{"rule_id": m.Rule.ID, "leaf_id": m.Rule.LeafID})
			continue
		}
		candidates = append(candidates, model.Candidate{
			LeafID:          m.Rule.LeafID,
			RuleID:          m.Rule.ID,
			MatchedKeyword:  m.MatchedKeyword,
			Priority:        m.Rule.Priority,
			Strict:          m.Strict,
			Category1:       path.Level1Name,
			Category2:       path.Level2Name,
			Category3:       path.LeafName,
			AppCategoryName: appName,
		})
	}
	return candidates
}

type applyOutcome int

const (
	outcomeOpen applyOutcome = iota
	outcomeApplied
	outcomeConflict
)

// decide implements the result policy: zero candidates returns the
// transaction to OPEN; a unique top-priority candidate is applied; two or
// more candidates sharing the top priority become a conflict with the full
// candidate list persisted for review.
func decide(candidates []model.Candidate, openLeafID int64) (service.ClassificationUpdate, applyOutcome) {
	if len(candidates) == 0 {
		return service.ClassificationUpdate{LeafID: openLeafID}, outcomeOpen
	}

	top := candidates[0]
	tied := 1
	for _, c := range candidates[1:] {
		if c.Priority == top.Priority {
			tied++
		}
	}

	if tied > 1 {
		return service.ClassificationUpdate{
			LeafID:     openLeafID,
			Conflict:   true,
			Candidates: candidates,
		}, outcomeConflict
	}

	return service.ClassificationUpdate{
		LeafID:          top.LeafID,
		Category1:       top.Category1,
		Category2:       top.Category2,
		Category3:       top.Category3,
		AppCategoryName: top.AppCategoryName,
	}, outcomeApplied
}

// leafPathCache memoizes leaf path and app-category lookups for one apply
// run, and deduplicates inconsistent-rule warnings.
type leafPathCache struct {
	taxonomy service.TaxonomyStore
	paths    map[int64]model.LeafPath
	appNames map[int64]string
	warned   map[int64]bool
}

func newLeafPathCache(taxonomy service.TaxonomyStore) *leafPathCache {
	return &leafPathCache{
		taxonomy: taxonomy,
		paths:    make(map[int64]model.LeafPath),
		appNames: make(map[int64]string),
		warned:   make(map[int64]bool),
	}
}

func (c *leafPathCache) resolve(ctx context.Context, userID string, leafID int64) (model.LeafPath, string, error) {
	if path, ok := c.paths[leafID]; ok {
		return path, c.appNames[leafID], nil
	}
	path, err := c.taxonomy.ResolveLeafPath(ctx, leafID)
	if err != nil {
		return model.LeafPath{}, "", err
	}
	appName, err := c.taxonomy.AppCategoryNameForLeaf(ctx, userID, leafID)
	if err != nil {
		return model.LeafPath{}, "", err
	}
	c.paths[leafID] = path
	c.appNames[leafID] = appName
	return path, appName, nil
}

func (c *leafPathCache) warnOnce(ruleID, leafID int64, err error) {
	if c.warned[ruleID] {
		return
	}
	c.warned[ruleID] = true
	common.LogWarn("skipping rule with unresolvable leaf", common.Fields{
		"rule_id": ruleID,
		"leaf_id": leafID,
		"reason":  err.Error(),
	})
}
