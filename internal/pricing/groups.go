package pricing

import "github.com/angelmondragon/packfinderz-storefront/pkg/db/models"

// Group is a display group: all lines sharing a bundle group id, or a single unbundled line.
type Group struct {
	BundleGroupID string
	Lines         []models.CartLine
}

// IsBundle reports whether the group was formed from a bundle group id.
func (g Group) IsBundle() bool {
	return g.BundleGroupID != ""
}

// Total is the sum of the members' line totals.
func (g Group) Total() int64 {
	return BundleTotal(g.Lines)
}

// GroupLines partitions lines by bundle group id, keeping first-encounter order of groups
// and the original order of lines within each group.
func GroupLines(lines []models.CartLine) []Group {
	groups := make([]Group, 0, len(lines))
	index := map[string]int{}
	for _, line := range lines {
		bundleID := ""
		if line.BundleGroupID != nil {
			bundleID = *line.BundleGroupID
		}
		if bundleID == "" {
			groups = append(groups, Group{Lines: []models.CartLine{line}})
			continue
		}
		if at, ok := index[bundleID]; ok {
			groups[at].Lines = append(groups[at].Lines, line)
			continue
		}
		index[bundleID] = len(groups)
		groups = append(groups, Group{BundleGroupID: bundleID, Lines: []models.CartLine{line}})
	}
	return groups
}

// BundleTotal sums the current effective totals of the members.
func BundleTotal(members []models.CartLine) int64 {
	var total int64
	for _, line := range members {
		total += LineTotal(line)
	}
	return total
}

// CartTotal is the sum of effective price times quantity over every line.
func CartTotal(lines []models.CartLine) int64 {
	return BundleTotal(lines)
}
