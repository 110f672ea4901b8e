package model

import (
	"math"
	"time"
)

// TransactionDirection indicates money flowing in or out.
type TransactionDirection string

// Direction constants.
const (
	DirectionExpense TransactionDirection = "expense"
	DirectionIncome  TransactionDirection = "income"
)

// Candidate records one rule match for a transaction. The full candidate
// list is persisted only when matching was ambiguous, so the user can see
// every competing rule and why it matched.
type Candidate struct {
	MatchedKeyword  string `json:"matched_keyword"`
	Category1       string `json:"category1"`
	Category2       string `json:"category2"`
	Category3       string `json:"category3"`
	AppCategoryName string `json:"app_category_name,omitempty"`
	LeafID          int64  `json:"leaf_id"`
	RuleID          int64  `json:"rule_id"`
	Priority        int    `json:"priority"`
	Strict          bool   `json:"strict"`
}

// Transaction is a single imported bank transaction. Category1/2/3 and
// AppCategoryName are denormalized from the taxonomy at classification time
// for read performance.
type Transaction struct {
	Date            time.Time
	ID              string
	UserID          string
	DescRaw         string
	DescNorm        string
	Currency        string
	Category1       string
	Category2       string
	Category3       string
	AppCategoryName string
	Type            RuleType
	FixVar          FixVar
	Candidates      []Candidate
	Amount          float64
	LeafID          int64
	Conflict        bool
	Display         bool
}

// Direction derives the money direction from the rule type when set,
// falling back to the amount sign.
func (t *Transaction) Direction() TransactionDirection {
	switch t.Type {
	case RuleTypeIncome:
		return DirectionIncome
	case RuleTypeExpense:
		return DirectionExpense
	}
	if t.Amount > 0 {
		return DirectionIncome
	}
	return DirectionExpense
}

// AbsAmount returns the absolute transaction amount.
func (t *Transaction) AbsAmount() float64 {
	return math.Abs(t.Amount)
}

// ConflictTransaction pairs a conflicted transaction with the full rule
// records behind its candidates, so the review surface can show the keyword
// and negative-keyword text of every competing rule.
type ConflictTransaction struct {
	Transaction Transaction
	Rules       []Rule
}
