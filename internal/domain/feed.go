package domain

// EventKind tags a row-level change event on the realtime channel.
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
)

// ChangeEvent is the payload delivered over the realtime channel.
// New carries the row after an insert/update, Old the row before a delete.
type ChangeEvent struct {
	Kind EventKind `json:"event"`
	New  *Bookmark `json:"new,omitempty"`
	Old  *Bookmark `json:"old,omitempty"`
}

// Reduce folds a change event into the bookmark list and returns the new
// list, newest-first. Malformed events (missing record or id) and unknown
// kinds leave the list untouched rather than failing loudly: the database
// remains the source of truth and the next full list load self-heals.
// The input slice is never mutated.
func Reduce(current []Bookmark, event ChangeEvent) []Bookmark {
	switch event.Kind {
	case EventInsert, EventUpdate:
		if event.New == nil || event.New.ID == "" {
			return current
		}
		return upsert(current, *event.New)
	case EventDelete:
		if event.Old == nil || event.Old.ID == "" {
			return current
		}
		return removeByID(current, event.Old.ID)
	default:
		return current
	}
}

// upsert drops any entry with the same id, prepends the new record and
// re-sorts. A full re-sort per event is O(n log n) but lists are small.
func upsert(current []Bookmark, next Bookmark) []Bookmark {
	merged := make([]Bookmark, 0, len(current)+1)
	merged = append(merged, next)
	for _, b := range current {
		if b.ID != next.ID {
			merged = append(merged, b)
		}
	}
	return SortByCreatedAtDesc(merged)
}

func removeByID(current []Bookmark, id string) []Bookmark {
	filtered := make([]Bookmark, 0, len(current))
	for _, b := range current {
		if b.ID != id {
			filtered = append(filtered, b)
		}
	}
	if len(filtered) == len(current) {
		// Nothing matched: deleting an unknown id is a no-op.
		return current
	}
	return filtered
}
