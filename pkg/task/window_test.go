package task

import (
	"reflect"
	"testing"
)

func TestNeeded(t *testing.T) {
	tests := []struct {
		name    string
		cursor  int
		total   int
		ahead   int
		present []int
		want    []int
	}{
		{
			name:   "EmptyTable_FullWindow",
			cursor: 0, total: 10, ahead: 3,
			want: []int{0, 1, 2, 3},
		},
		{
			name:   "ClampAtEnd",
			cursor: 4, total: 5, ahead: 3,
			want: []int{4},
		},
		{
			name:   "ClampAtEnd_PartialWindow",
			cursor: 8, total: 10, ahead: 3,
			want: []int{8, 9},
		},
		{
			name:   "ZeroTotal",
			cursor: 0, total: 0, ahead: 3,
			want: nil,
		},
		{
			name:   "CursorPastEnd",
			cursor: 10, total: 10, ahead: 3,
			want: nil,
		},
		{
			name:   "ExistingEntriesSkipped",
			cursor: 0, total: 10, ahead: 3,
			present: []int{0, 2},
			want:    []int{1, 3},
		},
		{
			name:   "WindowFullyCovered",
			cursor: 2, total: 10, ahead: 2,
			present: []int{2, 3, 4},
			want:    nil,
		},
		{
			name:   "ZeroAhead_CursorOnly",
			cursor: 5, total: 10, ahead: 0,
			want: []int{5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := NewTable()
			tbl.InsertPending("sess-1", tt.present)

			got := Needed(tt.cursor, tt.total, tt.ahead, tbl)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Needed(%d, %d, %d) = %v, want %v", tt.cursor, tt.total, tt.ahead, got, tt.want)
			}

			// Bounds: never below cursor, never at or past total.
			for _, idx := range got {
				if idx < tt.cursor || idx >= tt.total {
					t.Errorf("index %d out of bounds [%d, %d)", idx, tt.cursor, tt.total)
				}
			}
		})
	}
}

func TestNeeded_Idempotent(t *testing.T) {
	tbl := NewTable()
	tbl.InsertPending("sess-1", []int{1, 3})

	first := Needed(0, 20, 5, tbl)
	second := Needed(0, 20, 5, tbl)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("two calls without table mutation differ: %v vs %v", first, second)
	}
}
