package engine

import (
	"fmt"
	"strings"

	"github.com/jmatosp/contaclara/internal/common"
	"github.com/jmatosp/contaclara/internal/model"
)

// ValidateRule rejects rules that could never behave sensibly at match time.
// Invalid rules are refused at write time rather than silently ignored later.
func ValidateRule(rule *model.Rule) error {
	positive := common.NormalizeTerms(rule.PositiveTerms())
	if len(positive) == 0 {
		return common.ErrEmptyKeyword
	}

	negative := common.NormalizeTerms(rule.NegativeTerms())
	if len(negative) > 0 && allCanceled(positive, negative) {
		return fmt.Errorf("%w: %q vs %q", common.ErrSelfCancelingRule, rule.Keyword, rule.NegativeKeyword)
	}

	switch rule.Type {
	case model.RuleTypeExpense, model.RuleTypeIncome, "":
	default:
		return fmt.Errorf("invalid rule type %q", rule.Type)
	}

	return nil
}

// allCanceled reports whether every positive term is doomed: a negative term
// that is a substring of a positive term fires on every key the positive term
// could ever match, so the rule can never produce a candidate.
func allCanceled(positive, negative []string) bool {
	for _, p := range positive {
		canceled := false
		for _, n := range negative {
			if strings.Contains(p, n) {
				canceled = true
				break
			}
		}
		if !canceled {
			return false
		}
	}
	return true
}
