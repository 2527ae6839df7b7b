package models

import "testing"

func TestState_IsTerminal(t *testing.T) {
	cases := []struct {
		state State
		want  bool
	}{
		{StateCreated, false},
		{StateRetry, false},
		{StateActive, false},
		{StateCompleted, false},
		{StateExpired, true},
		{StateCancelled, true},
		{StateFailed, true},
	}

	for _, c := range cases {
		if got := c.state.IsTerminal(); got != c.want {
			t.Errorf("State(%d).IsTerminal() = %v, want %v", c.state, got, c.want)
		}
	}
}
