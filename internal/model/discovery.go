package model

import "time"

// SampleTransaction is the representative transaction kept for a discovery
// group. It is always one of the group's own transactions, never synthesized.
type SampleTransaction struct {
	Date    time.Time
	ID      string
	DescRaw string
	Amount  float64
}

// DiscoveryCandidate is a frequency-ranked cluster of still-unclassified
// transactions sharing a normalized description. Creating one rule from the
// top candidate retroactively resolves every transaction in its group.
type DiscoveryCandidate struct {
	FirstSeen      time.Time
	LastSeen       time.Time
	Key            string
	Sample         SampleTransaction
	Count          int
	TotalAbsAmount float64
}
