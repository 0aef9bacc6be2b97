package core

import (
	"reflect"
	"testing"
)

func TestPresenceJoinReturnsFullSet(t *testing.T) {
	p := NewPresence()

	got := p.Join("room", "u1")
	if !reflect.DeepEqual(got, []string{"u1"}) {
		t.Fatalf("unexpected set after first join: %v", got)
	}

	got = p.Join("room", "u2")
	if !reflect.DeepEqual(got, []string{"u1", "u2"}) {
		t.Fatalf("unexpected set after second join: %v", got)
	}
}

func TestPresenceJoinIsIdempotent(t *testing.T) {
	p := NewPresence()

	p.Join("room", "u1")
	got := p.Join("room", "u1")
	if !reflect.DeepEqual(got, []string{"u1"}) {
		t.Fatalf("double join changed the set: %v", got)
	}
}

func TestPresenceLeaveDeletesEmptyRoom(t *testing.T) {
	p := NewPresence()

	p.Join("room", "u1")
	p.Leave("room", "u1")

	if got := p.Participants("room"); got != nil {
		t.Fatalf("expected no call after last leave, got %v", got)
	}
}

func TestPresenceLeaveUnknownIsNoop(t *testing.T) {
	p := NewPresence()
	p.Leave("room", "ghost")

	p.Join("room", "u1")
	p.Leave("room", "ghost")
	if got := p.Participants("room"); !reflect.DeepEqual(got, []string{"u1"}) {
		t.Fatalf("leave of absent user changed the set: %v", got)
	}
}

func TestPresenceEndClearsRoom(t *testing.T) {
	p := NewPresence()

	p.Join("room", "u1")
	p.Join("room", "u2")
	p.End("room")

	if got := p.Participants("room"); got != nil {
		t.Fatalf("expected empty call after end, got %v", got)
	}

	// A fresh call can start afterwards.
	if got := p.Join("room", "u3"); !reflect.DeepEqual(got, []string{"u3"}) {
		t.Fatalf("unexpected set after restart: %v", got)
	}
}

func TestPresenceDropUserReturnsAffectedRooms(t *testing.T) {
	p := NewPresence()

	p.Join("a", "u1")
	p.Join("b", "u1")
	p.Join("b", "u2")
	p.Join("c", "u2")

	affected := p.DropUser("u1")
	if !reflect.DeepEqual(affected, []string{"a", "b"}) {
		t.Fatalf("unexpected affected rooms: %v", affected)
	}

	if got := p.Participants("a"); got != nil {
		t.Fatalf("room a should be empty, got %v", got)
	}
	if got := p.Participants("b"); !reflect.DeepEqual(got, []string{"u2"}) {
		t.Fatalf("room b lost the wrong user: %v", got)
	}
	if got := p.Participants("c"); !reflect.DeepEqual(got, []string{"u2"}) {
		t.Fatalf("room c should be untouched: %v", got)
	}
}

func TestPresenceDropUserAbsentReturnsNothing(t *testing.T) {
	p := NewPresence()
	p.Join("a", "u1")

	if affected := p.DropUser("ghost"); len(affected) != 0 {
		t.Fatalf("expected no affected rooms, got %v", affected)
	}
}
