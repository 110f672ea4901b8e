// Package model defines the core domain models used throughout the application.
package model

// OpenLeafName is the reserved leaf meaning "not yet classified". One such
// leaf exists per user and is created lazily on first use.
const OpenLeafName = "OPEN"

// TaxonomyLevel1 is a root category of the taxonomy tree (e.g. "Moradia").
type TaxonomyLevel1 struct {
	Name string
	ID   int64
}

// TaxonomyLevel2 is a mid-tier grouping under a Level1 category.
type TaxonomyLevel2 struct {
	Name     string
	ID       int64
	Level1ID int64
}

// TaxonomyLeaf is a terminal node of the taxonomy tree. Every transaction and
// every rule resolves to exactly one leaf. A leaf whose ancestor chain cannot
// be resolved is invalid.
type TaxonomyLeaf struct {
	Name     string
	UserID   string // empty for shared leaves; set for per-user leaves (OPEN)
	ID       int64
	Level2ID int64
}

// LeafPath is the fully resolved ancestor chain of a leaf.
type LeafPath struct {
	Level1Name string
	Level2Name string
	LeafName   string
}

// IsOpen reports whether the path points at the reserved OPEN leaf.
func (p LeafPath) IsOpen() bool {
	return p.LeafName == OpenLeafName
}

// AppCategory is a user-scoped display label layered over taxonomy leaves.
// It lets a user rename or regroup leaves without altering the tree itself;
// many leaves may map to one AppCategory per user.
type AppCategory struct {
	Name   string
	UserID string
	ID     int64
}

// AppCategoryLeaf attaches one leaf to a user's AppCategory.
type AppCategoryLeaf struct {
	UserID        string
	AppCategoryID int64
	LeafID        int64
}
