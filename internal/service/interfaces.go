// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/jmatosp/contaclara/internal/model"
)

// Scan bounds. Batch scans never read more rows than these caps; callers
// needing exhaustive results page via date filters.
const (
	DiscoveryScanLimit = 2000
	RecurringScanLimit = 5000
	MaxResultLimit     = 200

	MinOccurrencesFloor   = 3
	MinOccurrencesCeiling = 24
)

// Sort keys accepted by the discovery and recurring engines.
const (
	SortByCount          = "count"
	SortByTotalAbsAmount = "totalAbsAmount"
	SortByLastSeen       = "lastSeen"
	SortByOccurrences    = "occurrences"
	SortByAbsAmount      = "absAmount"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// TransactionFilter defines filtering options for transaction queries.
// Pointer fields are ignored when nil. Hidden transactions (Display=false)
// are excluded unless IncludeHidden is set.
type TransactionFilter struct {
	StartDate     *time.Time
	EndDate       *time.Time
	MinAbsAmount  *float64
	MaxAbsAmount  *float64
	LeafID        *int64
	ExcludeLeafID *int64
	OnlyConflicts bool
	IncludeHidden bool
	Limit         int
}

// DiscoveryFilter bounds and orders a discovery scan.
type DiscoveryFilter struct {
	DateFrom     *time.Time
	DateTo       *time.Time
	MinAbsAmount *float64
	MaxAbsAmount *float64
	SortBy       string // count | totalAbsAmount | lastSeen
	SortDir      string // asc | desc
	Limit        int    // clamped to MaxResultLimit
}

// RecurringFilter bounds and orders a recurring-pattern scan.
type RecurringFilter struct {
	DateFrom       *time.Time
	DateTo         *time.Time
	SortBy         string // occurrences | absAmount
	SortDir        string // asc | desc
	MinOccurrences int    // clamped to [3,24]
	Limit          int    // clamped to MaxResultLimit
}

// ClassificationUpdate carries the classification fields written back to a
// transaction after rule matching.
type ClassificationUpdate struct {
	Category1       string
	Category2       string
	Category3       string
	AppCategoryName string
	Type            model.RuleType
	FixVar          model.FixVar
	Candidates      []model.Candidate
	LeafID          int64
	Conflict        bool
}

// TransactionStore is the read/write contract the engines need for
// transactions.
type TransactionStore interface {
	ListByUser(ctx context.Context, userID string, filter TransactionFilter) ([]model.Transaction, error)
	GetByIDs(ctx context.Context, userID string, ids []string) ([]model.Transaction, error)
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	UpdateClassification(ctx context.Context, txID string, update ClassificationUpdate) error
}

// RuleStore is the contract for classification rules.
type RuleStore interface {
	ListActiveByUser(ctx context.Context, userID string) ([]model.Rule, error)
	GetRulesByIDs(ctx context.Context, userID string, ids []int64) ([]model.Rule, error)
	// InsertOrMergeRule merges the keyword into an existing rule with
	// identical targeting (leaf, priority, negative keywords) when one
	// exists, otherwise inserts a new rule. It reports whether a merge
	// happened.
	InsertOrMergeRule(ctx context.Context, rule model.Rule) (int64, bool, error)
}

// TaxonomyStore is the contract for taxonomy lookups.
type TaxonomyStore interface {
	ResolveLeafPath(ctx context.Context, leafID int64) (model.LeafPath, error)
	// EnsureOpenLeaf idempotently provisions the reserved OPEN leaf for the
	// user and returns its id.
	EnsureOpenLeaf(ctx context.Context, userID string) (int64, error)
	// AppCategoryNameForLeaf returns the user's display label for a leaf,
	// or the empty string when no AppCategory covers it.
	AppCategoryNameForLeaf(ctx context.Context, userID string, leafID int64) (string, error)
}

// Stores groups the contracts the classification engine operates on, whether
// backed by the main storage handle or by an open database transaction.
type Stores interface {
	TransactionStore
	RuleStore
	TaxonomyStore
}

// Tx is a database transaction over the full store surface.
type Tx interface {
	Stores
	Commit() error
	Rollback() error
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	Stores
	BeginTx(ctx context.Context) (Tx, error)
	Migrate(ctx context.Context) error
	Close() error
}
