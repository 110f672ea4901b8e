package model

import "time"

// Cadence is the inferred recurrence period of a recurring payment group.
type Cadence string

// Cadence constants.
const (
	CadenceWeekly    Cadence = "weekly"
	CadenceMonthly   Cadence = "monthly"
	CadenceQuarterly Cadence = "quarterly"
	CadenceYearly    Cadence = "yearly"
	CadenceUnknown   Cadence = "unknown"
)

// RecurringSuggestion is a group of classified transactions that looks like a
// recurring payment, with its statistically inferred cadence. Confidence is
// in [0,1]; tighter spacing between occurrences yields higher confidence.
type RecurringSuggestion struct {
	FirstSeen          time.Time
	LastSeen           time.Time
	MerchantKey        string
	Category1          string
	Category2          string
	Category3          string
	Direction          TransactionDirection
	Cadence            Cadence
	ExpectedMonths     []time.Month
	Amount             float64
	Confidence         float64
	LeafID             int64
	Occurrences        int
	ExpectedDayOfMonth int
}
