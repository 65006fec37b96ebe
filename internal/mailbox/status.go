package mailbox

import "sort"

// Status is the unread count of one mailbox at scan time.
type Status struct {
	Name   string
	Unread int
	// Latest previews the newest unread message when previews are enabled.
	Latest string
}

// SortByName orders statuses by mailbox name in place.
func SortByName(statuses []Status) {
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
}
