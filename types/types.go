// Package types defines the wire and domain types shared by jimmy-client packages.
package types

import "strconv"

// ItemID identifies a submitted question (the "key" on the wire).
type ItemID int64

// String returns the decimal form of the id.
func (id ItemID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseItemID parses a decimal question id.
func ParseItemID(s string) (ItemID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ItemID(n), nil
}

// Link is a related result returned together with an answer.
type Link struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// StatusResult is the outcome of one status check.
// Position is only meaningful when Ready is false.
type StatusResult struct {
	Ready    bool
	Answer   string
	Links    []Link
	Position int
}

// RecentItem is one entry of the recent-items feed.
type RecentItem struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Answer string `json:"answer"`
}

// RecentTypeSearch is the only recent-item type surfaced to users.
const RecentTypeSearch = "search"

// IsAnsweredSearch reports whether the item is a search with both text and answer.
func (r RecentItem) IsAnsweredSearch() bool {
	return r.Type == RecentTypeSearch && r.Text != "" && r.Answer != ""
}
