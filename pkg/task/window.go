package task

// Needed computes the segment indices that must be submitted to keep the
// prefetch window full: every index in [cursor, min(cursor+ahead, total-1)]
// without a table entry. The result is ascending and empty when total is
// zero or the cursor is past the end. It has no side effects, so calling it
// twice without a table mutation in between yields the same set.
func Needed(cursor, total, ahead int, t *Table) []int {
	if total <= 0 || cursor < 0 || cursor >= total {
		return nil
	}

	end := cursor + ahead + 1
	if end > total {
		end = total
	}

	var needed []int
	for i := cursor; i < end; i++ {
		if !t.Has(i) {
			needed = append(needed, i)
		}
	}
	return needed
}
