package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jmatosp/contaclara/internal/model"
)

const dateFormat = "2006-01-02"

// RenderDiscoveryTable renders discovery candidates as a ranked table.
func RenderDiscoveryTable(candidates []model.DiscoveryCandidate) string {
	if len(candidates) == 0 {
		return SubtleStyle.Render("No unclassified transaction groups found.")
	}

	var b strings.Builder
	b.WriteString(renderRow(TableHeaderStyle, "#", "COUNT", "TOTAL", "LAST SEEN", "DESCRIPTION"))
	b.WriteString("\n")

	for i, c := range candidates {
		b.WriteString(renderRow(TableCellStyle,
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", c.Count),
			fmt.Sprintf("%.2f", c.TotalAbsAmount),
			c.LastSeen.Format(dateFormat),
			truncate(c.Key, 48),
		))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderRecurringTable renders recurring suggestions with cadence and
// confidence.
func RenderRecurringTable(suggestions []model.RecurringSuggestion) string {
	if len(suggestions) == 0 {
		return SubtleStyle.Render("No recurring payment patterns found.")
	}

	var b strings.Builder
	b.WriteString(renderRow(TableHeaderStyle, "CADENCE", "CONF", "N", "AMOUNT", "DAY", "CATEGORY", "MERCHANT"))
	b.WriteString("\n")

	for _, s := range suggestions {
		day := "-"
		if s.ExpectedDayOfMonth > 0 {
			day = fmt.Sprintf("%d", s.ExpectedDayOfMonth)
		}
		b.WriteString(renderRow(TableCellStyle,
			string(s.Cadence),
			fmt.Sprintf("%.2f", s.Confidence),
			fmt.Sprintf("%d", s.Occurrences),
			fmt.Sprintf("%.2f", s.Amount),
			day,
			truncate(s.Category3, 20),
			truncate(s.MerchantKey, 32),
		))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderConflicts renders conflicted transactions with every competing rule,
// including its keyword and negative-keyword text.
func RenderConflicts(conflicts []model.ConflictTransaction) string {
	if len(conflicts) == 0 {
		return SubtleStyle.Render("No conflicts. Every transaction is classified or open.")
	}

	var b strings.Builder
	for _, ct := range conflicts {
		txn := ct.Transaction
		b.WriteString(WarningStyle.Render(fmt.Sprintf("%s %s  %.2f  %s",
			ConflictIcon, txn.Date.Format(dateFormat), txn.Amount, truncate(txn.DescRaw, 60))))
		b.WriteString("\n")

		rulesByID := make(map[int64]model.Rule, len(ct.Rules))
		for _, r := range ct.Rules {
			rulesByID[r.ID] = r
		}

		for _, c := range txn.Candidates {
			line := fmt.Sprintf("    rule %d (priority %d) matched %q → %s > %s > %s",
				c.RuleID, c.Priority, c.MatchedKeyword, c.Category1, c.Category2, c.Category3)
			if r, ok := rulesByID[c.RuleID]; ok {
				detail := fmt.Sprintf("  [keyword: %s", r.Keyword)
				if r.NegativeKeyword != "" {
					detail += fmt.Sprintf("; negative: %s", r.NegativeKeyword)
				}
				detail += "]"
				line += SubtleStyle.Render(detail)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderRow(style lipgloss.Style, cells ...string) string {
	widths := []int{4, 6, 12, 12, 48, 24, 32}
	rendered := make([]string, 0, len(cells))
	for i, cell := range cells {
		w := 12
		if i < len(widths) {
			w = widths[i]
		}
		rendered = append(rendered, style.Width(w).Render(cell))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
