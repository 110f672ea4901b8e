// Package engine implements rule matching and the classification flow:
// evaluating a user's keyword rules against transactions, applying the
// unique top-priority match, and flagging ambiguous results as conflicts
// instead of silently picking a winner.
package engine

import (
	"sort"
	"strings"

	"github.com/jmatosp/contaclara/internal/common"
	"github.com/jmatosp/contaclara/internal/model"
)

// RuleMatch records one rule that matched a transaction's match key.
type RuleMatch struct {
	MatchedKeyword string
	Rule           model.Rule
	// Strict is set when the matched term equals the entire match key
	// rather than a partial substring. Used as a tie-break signal.
	Strict bool
}

// compiledRule holds a rule with its keyword terms pre-normalized so a batch
// run normalizes each rule once, not once per transaction.
type compiledRule struct {
	rule     model.Rule
	positive []string
	negative []string
}

// Matcher evaluates a fixed set of rules against transaction match keys.
type Matcher struct {
	rules []compiledRule
}

// NewMatcher compiles the given rules. Inactive rules and rules whose keyword
// normalizes to nothing are dropped; invalid rules are rejected at write
// time, so anything filtered here is legacy data.
func NewMatcher(rules []model.Rule) *Matcher {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if !r.Active {
			continue
		}
		positive := common.NormalizeTerms(r.PositiveTerms())
		if len(positive) == 0 {
			continue
		}
		compiled = append(compiled, compiledRule{
			rule:     r,
			positive: positive,
			negative: common.NormalizeTerms(r.NegativeTerms()),
		})
	}
	return &Matcher{rules: compiled}
}

// Match returns every rule matching the key, ordered by priority descending,
// strict matches first within a priority, then rule id ascending for
// determinism.
func (m *Matcher) Match(matchKey string) []RuleMatch {
	var matches []RuleMatch

	for _, cr := range m.rules {
		if term, strict, ok := matchRule(matchKey, cr); ok {
			matches = append(matches, RuleMatch{
				Rule:           cr.rule,
				MatchedKeyword: term,
				Strict:         strict,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Rule.Priority != matches[j].Rule.Priority {
			return matches[i].Rule.Priority > matches[j].Rule.Priority
		}
		if matches[i].Strict != matches[j].Strict {
			return matches[i].Strict
		}
		return matches[i].Rule.ID < matches[j].Rule.ID
	})

	return matches
}

// matchRule reports whether the rule matches the key. A rule matches when any
// positive term is a substring of the key and no negative term is. The
// returned term is an exact-key term when one exists, otherwise the first
// matching term in keyword order.
func matchRule(matchKey string, cr compiledRule) (term string, strict bool, ok bool) {
	for _, n := range cr.negative {
		if strings.Contains(matchKey, n) {
			return "", false, false
		}
	}

	first := ""
	for _, p := range cr.positive {
		if !strings.Contains(matchKey, p) {
			continue
		}
		if p == matchKey {
			return p, true, true
		}
		if first == "" {
			first = p
		}
	}
	if first == "" {
		return "", false, false
	}
	return first, false, true
}
