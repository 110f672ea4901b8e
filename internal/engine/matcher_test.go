package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmatosp/contaclara/internal/common"
	"github.com/jmatosp/contaclara/internal/model"
)

func activeRule(id int64, keyword, negative string, priority int) model.Rule {
	return model.Rule{
		ID:              id,
		UserID:          "u1",
		Keyword:         keyword,
		NegativeKeyword: negative,
		LeafID:          id,
		Priority:        priority,
		Active:          true,
	}
}

func TestMatcher_Match(t *testing.T) {
	tests := []struct {
		name     string
		matchKey string
		rules    []model.Rule
		wantIDs  []int64
	}{
		{
			name:     "substring match",
			matchKey: "COMPRA CONTINENTE LISBOA",
			rules:    []model.Rule{activeRule(1, "continente", "", 0)},
			wantIDs:  []int64{1},
		},
		{
			name:     "case and diacritics insensitive terms",
			matchKey: "FARMACIA CENTRAL",
			rules:    []model.Rule{activeRule(1, "Farmácia", "", 0)},
			wantIDs:  []int64{1},
		},
		{
			name:     "any positive term is enough",
			matchKey: "PINGO DOCE AMADORA",
			rules:    []model.Rule{activeRule(1, "continente;pingo doce", "", 0)},
			wantIDs:  []int64{1},
		},
		{
			name:     "negative term suppresses the rule",
			matchKey: "AMAZON PRIME CHARGE",
			rules:    []model.Rule{activeRule(1, "AMAZON", "AMAZON PRIME", 0)},
			wantIDs:  nil,
		},
		{
			name:     "negative term absent allows the rule",
			matchKey: "AMAZON MARKETPLACE",
			rules:    []model.Rule{activeRule(1, "AMAZON", "AMAZON PRIME", 0)},
			wantIDs:  []int64{1},
		},
		{
			name:     "inactive rules never match",
			matchKey: "NETFLIX.COM",
			rules: []model.Rule{
				{ID: 1, Keyword: "NETFLIX", Active: false},
			},
			wantIDs: nil,
		},
		{
			name:     "priority descending",
			matchKey: "UBER EATS LISBOA",
			rules: []model.Rule{
				activeRule(1, "UBER", "", 1),
				activeRule(2, "UBER EATS", "", 5),
			},
			wantIDs: []int64{2, 1},
		},
		{
			name:     "rule id breaks priority ties",
			matchKey: "GALP ENERGIA",
			rules: []model.Rule{
				activeRule(7, "GALP", "", 3),
				activeRule(2, "ENERGIA", "", 3),
			},
			wantIDs: []int64{2, 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := NewMatcher(tt.rules).Match(tt.matchKey)

			gotIDs := make([]int64, 0, len(matches))
			for _, m := range matches {
				gotIDs = append(gotIDs, m.Rule.ID)
			}
			if tt.wantIDs == nil {
				assert.Empty(t, gotIDs)
			} else {
				assert.Equal(t, tt.wantIDs, gotIDs)
			}
		})
	}
}

func TestMatcher_StrictBeatsPartialAtSamePriority(t *testing.T) {
	rules := []model.Rule{
		activeRule(1, "NETFLIX", "", 2),
		activeRule(2, "NETFLIX.COM", "", 2),
	}

	matches := NewMatcher(rules).Match("NETFLIX.COM")

	assert.Len(t, matches, 2)
	assert.Equal(t, int64(2), matches[0].Rule.ID)
	assert.True(t, matches[0].Strict)
	assert.False(t, matches[1].Strict)
}

func TestMatcher_MatchedKeywordIsTheTermThatMatched(t *testing.T) {
	rules := []model.Rule{activeRule(1, "continente;pingo doce", "", 0)}

	matches := NewMatcher(rules).Match(common.Normalize("Pingo Doce Amadora"))

	assert.Len(t, matches, 1)
	assert.Equal(t, "PINGO DOCE", matches[0].MatchedKeyword)
}
