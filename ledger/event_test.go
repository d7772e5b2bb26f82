package ledger

import (
	"testing"
)

func TestEvent_Location(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  EventLocation
	}{
		{
			name: "without aggregate discriminant",
			event: Event{
				StreamID: "stream-1",
				Index:    7,
			},
			want: EventLocation{StreamID: "stream-1", Index: 7},
		},
		{
			name: "with aggregate discriminant",
			event: Event{
				StreamID:  "stream-1",
				Aggregate: "company",
				Index:     1,
			},
			want: EventLocation{StreamID: "stream-1", Aggregate: "company", Index: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.Location(); got != tt.want {
				t.Errorf("Location() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCommit_Location(t *testing.T) {
	tests := []struct {
		name   string
		commit Commit
		want   StreamLocation
	}{
		{
			name: "without aggregate discriminant",
			commit: Commit{
				StreamID: "stream-1",
				Version:  3,
			},
			want: StreamLocation{StreamID: "stream-1", CommitVersion: 3},
		},
		{
			name: "with aggregate discriminant",
			commit: Commit{
				StreamID:  "stream-2",
				Aggregate: "order",
				Version:   1,
			},
			want: StreamLocation{StreamID: "stream-2", Aggregate: "order", CommitVersion: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.commit.Location(); got != tt.want {
				t.Errorf("Location() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLoadResult_Empty(t *testing.T) {
	var result LoadResult
	if result.LastCommit != nil {
		t.Error("Expected LastCommit to be nil for empty result")
	}
	if result.LastEvent != nil {
		t.Error("Expected LastEvent to be nil for empty result")
	}
}
