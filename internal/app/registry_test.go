package app

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func memberNames(r *Registry, room domain.RoomID) []string {
	names := r.Names(room, "")
	sort.Strings(names)
	return names
}

func TestJoinLookupRemove(t *testing.T) {
	r := NewRegistry()

	r.Join("c1", nopConn{}, "r1", "alice")
	e, ok := r.Lookup("c1")
	if !ok {
		t.Fatal("expected entry for c1")
	}
	if e.Room != "r1" || e.Name != "alice" {
		t.Fatalf("got entry %+v", e)
	}

	removed, ok := r.Remove("c1")
	if !ok || removed.Name != "alice" {
		t.Fatalf("Remove = %+v, %v", removed, ok)
	}
	if _, ok := r.Lookup("c1"); ok {
		t.Fatal("entry survived Remove")
	}
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Remove("ghost"); ok {
		t.Fatal("Remove of unknown id reported success")
	}
}

func TestRejoinOverwrites(t *testing.T) {
	r := NewRegistry()

	r.Join("c1", nopConn{}, "r1", "alice")
	prev, replaced := r.Join("c1", nopConn{}, "r2", "alicia")
	if !replaced || prev.Room != "r1" || prev.Name != "alice" {
		t.Fatalf("prev = %+v, replaced = %v", prev, replaced)
	}

	// Never a member of both rooms.
	if got := memberNames(r, "r1"); len(got) != 0 {
		t.Fatalf("old room still lists %v", got)
	}
	if got := memberNames(r, "r2"); len(got) != 1 || got[0] != "alicia" {
		t.Fatalf("new room lists %v", got)
	}
}

func TestMembersOfExcludes(t *testing.T) {
	r := NewRegistry()
	r.Join("c1", nopConn{}, "r1", "alice")
	r.Join("c2", nopConn{}, "r1", "bob")
	r.Join("c3", nopConn{}, "r2", "carol")

	got := r.Names("r1", "c1")
	if len(got) != 1 || got[0] != "bob" {
		t.Fatalf("Names(r1, except c1) = %v", got)
	}
	if got := r.Names("r1", ""); len(got) != 2 {
		t.Fatalf("Names(r1) = %v", got)
	}
	// Roster of an unknown room is an empty, non-nil list.
	if got := r.Names("nope", ""); got == nil || len(got) != 0 {
		t.Fatalf("Names(nope) = %#v", got)
	}
}

func TestMembershipMatchesJoinLeaveSequence(t *testing.T) {
	r := NewRegistry()
	want := make(map[string]bool)

	for i := 0; i < 50; i++ {
		id := domain.ConnID(fmt.Sprintf("c%d", i%10))
		name := fmt.Sprintf("u%d", i%10)
		if i%3 == 0 {
			r.Remove(id)
			delete(want, name)
		} else {
			r.Join(id, nopConn{}, "r1", name)
			want[name] = true
		}

		got := memberNames(r, "r1")
		if len(got) != len(want) {
			t.Fatalf("step %d: members %v, want %v", i, got, want)
		}
		for _, n := range got {
			if !want[n] {
				t.Fatalf("step %d: stale member %s", i, n)
			}
		}
	}
}

func TestRooms(t *testing.T) {
	r := NewRegistry()
	r.Join("c1", nopConn{}, "r1", "alice")
	r.Join("c2", nopConn{}, "r1", "bob")
	r.Join("c3", nopConn{}, "r2", "carol")

	infos := r.Rooms()
	if len(infos) != 2 {
		t.Fatalf("Rooms() = %v", infos)
	}
	counts := make(map[domain.RoomID]int)
	for _, ri := range infos {
		counts[ri.Room] = ri.Members
	}
	if counts["r1"] != 2 || counts["r2"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestConcurrentJoinRemove(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := domain.ConnID(fmt.Sprintf("c%d", i))
			for j := 0; j < 100; j++ {
				r.Join(id, nopConn{}, "r1", "u")
				r.MembersOf("r1", id)
				r.Remove(id)
			}
		}(i)
	}
	wg.Wait()
	if got := r.Names("r1", ""); len(got) != 0 {
		t.Fatalf("leftover members %v", got)
	}
}
