package reactor

import (
	"cmp"
	"slices"
)

// compareSources orders by priority ascending, then registration order.
func compareSources(a, b *Source) int {
	if c := cmp.Compare(a.priority, b.priority); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

// nextBatch selects the sources to dispatch: every pending source sharing
// the numerically smallest priority. Pending sources of larger priority
// values stay pending, for a later Run. The result reuses buf.
func nextBatch(slots []*Source, buf []*Source) []*Source {
	buf = buf[:0]
	first := true
	var lowest int
	for _, s := range slots {
		if !s.pending || s.detached {
			continue
		}
		switch {
		case first || s.priority < lowest:
			first = false
			lowest = s.priority
			buf = append(buf[:0], s)
		case s.priority == lowest:
			buf = append(buf, s)
		}
	}
	// slots are in ID order, and so is buf
	return buf
}

// prepareOrder selects the sources with a prepare callback that are enabled
// and not muted, in dispatch order. The result reuses buf.
func prepareOrder(slots []*Source, buf []*Source) []*Source {
	buf = buf[:0]
	for _, s := range slots {
		if s.prepare != nil && s.active() {
			buf = append(buf, s)
		}
	}
	slices.SortStableFunc(buf, compareSources)
	return buf
}
