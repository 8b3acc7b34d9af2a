package model

import "testing"

func TestParseTaskState(t *testing.T) {
	tests := []struct {
		in   string
		want TaskState
	}{
		{"pending", TaskPending},
		{"inferring", TaskInferring},
		{"ready", TaskReady},
		{"failed", TaskFailed},
		{"cancelled", TaskCancelled},
		{"", TaskPending},
		{"exploded", TaskPending},
	}
	for _, tt := range tests {
		if got := ParseTaskState(tt.in); got != tt.want {
			t.Errorf("ParseTaskState(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []TaskState{TaskReady, TaskFailed, TaskCancelled} {
		if !s.Terminal() {
			t.Errorf("%q should be terminal", s)
		}
	}
	for _, s := range []TaskState{TaskPending, TaskInferring} {
		if s.Terminal() {
			t.Errorf("%q should not be terminal", s)
		}
	}
}
