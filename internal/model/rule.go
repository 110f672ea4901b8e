package model

import (
	"strings"
	"time"
)

// RuleType indicates whether a rule targets expenses or income.
type RuleType string

// Rule type constants.
const (
	RuleTypeExpense RuleType = "Despesa"
	RuleTypeIncome  RuleType = "Receita"
)

// FixVar is the fixed/variable cadence hint carried by a rule.
type FixVar string

// FixVar constants.
const (
	FixVarFixed    FixVar = "Fixo"
	FixVarVariable FixVar = "Variável"
)

// Rule is a keyword-based classification rule targeting exactly one taxonomy
// leaf. Keyword holds semicolon-separated terms matched case-insensitively
// against the normalized transaction description; any positive term matching
// makes the rule a candidate, unless a negative term also matches.
type Rule struct {
	CreatedAt       time.Time
	UpdatedAt       time.Time
	UserID          string
	Keyword         string
	NegativeKeyword string
	Type            RuleType
	FixVar          FixVar
	ID              int64
	LeafID          int64
	Priority        int
	Active          bool
}

// SplitTerms splits a semicolon-separated keyword field into trimmed,
// non-empty terms. It does not normalize; callers match against a
// normalized description and normalize terms themselves.
func SplitTerms(keyword string) []string {
	parts := strings.Split(keyword, ";")
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// PositiveTerms returns the rule's positive keyword terms.
func (r *Rule) PositiveTerms() []string {
	return SplitTerms(r.Keyword)
}

// NegativeTerms returns the rule's negative keyword terms, if any.
func (r *Rule) NegativeTerms() []string {
	return SplitTerms(r.NegativeKeyword)
}
