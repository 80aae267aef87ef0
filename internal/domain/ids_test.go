package domain

import (
	"strings"
	"testing"
)

func TestCleanRoomID(t *testing.T) {
	if _, err := CleanRoomID(""); err != ErrRoomEmpty {
		t.Fatalf("empty room: %v", err)
	}
	if _, err := CleanRoomID(strings.Repeat("x", MaxRoomIDLen+1)); err != ErrRoomTooLong {
		t.Fatalf("long room: %v", err)
	}
	room, err := CleanRoomID("lobby")
	if err != nil || room != "lobby" {
		t.Fatalf("CleanRoomID = %q, %v", room, err)
	}
}

func TestCleanDisplayName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", "guest"},
		{"alice", "alice"},
		{strings.Repeat("n", MaxDisplayNameLen+5), strings.Repeat("n", MaxDisplayNameLen)},
	}
	for _, c := range cases {
		if got := CleanDisplayName(c.in); got != c.want {
			t.Errorf("CleanDisplayName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
