package queue

// Restore repairs a persisted state against the set of songs that still
// exist and are visible. Items pointing at other songs are dropped, empty or
// duplicated queue ids are regenerated and the current index is re-located
// on the item that was playing, or clamped when it is gone. A queue longer
// than MaxItems is cut to MaxItems items around the current one, dropping
// already played items first.
func (r *Reducer) Restore(s State, known map[uint]bool) State {
	out := State{
		Items:   make([]Item, 0, len(s.Items)),
		Shuffle: s.Shuffle,
		Repeat:  s.Repeat,
		Version: s.Version,
	}
	switch out.Repeat {
	case RepeatOff, RepeatAll, RepeatOne:
	default:
		out.Repeat = RepeatOff
	}

	seen := make(map[string]bool, len(s.Items))
	currentAt := -1
	for i, it := range s.Items {
		if !known[it.SongID] {
			continue
		}
		if it.QueueID == "" || seen[it.QueueID] {
			it.QueueID = r.NewID()
		}
		seen[it.QueueID] = true
		if i == s.CurrentIndex {
			currentAt = len(out.Items)
		}
		out.Items = append(out.Items, it)
	}

	switch {
	case len(out.Items) == 0:
		out.CurrentIndex = -1
	case currentAt >= 0:
		out.CurrentIndex = currentAt
	default:
		out.CurrentIndex = clamp(s.CurrentIndex, 0, len(out.Items)-1)
	}

	if r.MaxItems > 0 && len(out.Items) > r.MaxItems {
		start := out.CurrentIndex
		if start > len(out.Items)-r.MaxItems {
			start = len(out.Items) - r.MaxItems
		}
		out.Items = append([]Item(nil), out.Items[start:start+r.MaxItems]...)
		out.CurrentIndex -= start
	}

	if out.Shuffle {
		out.Original = restoreOriginal(s.Original, out.Items)
	}
	return out
}

// restoreOriginal keeps the saved pre-shuffle order when it still describes
// exactly the restored items, and falls back to the current order otherwise.
func restoreOriginal(original, items []Item) []Item {
	present := make(map[string]bool, len(items))
	for _, it := range items {
		present[it.QueueID] = true
	}
	kept := make([]Item, 0, len(items))
	for _, it := range original {
		if present[it.QueueID] {
			kept = append(kept, it)
			delete(present, it.QueueID)
		}
	}
	if len(kept) != len(items) {
		return append([]Item{}, items...)
	}
	return kept
}
