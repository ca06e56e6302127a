package ws

import "testing"

func TestHubAddAndRemoveSessionClient(t *testing.T) {
	hub := NewHub()

	hub.AddSessionClient("abc", nil, ConnInfo{ConnID: "c1", UserID: "u1"})
	if len(hub.sessionRooms) != 1 {
		t.Fatalf("expected session room to be created")
	}
	if info, ok := hub.getConnInfo("abc", nil); !ok || info.UserID != "u1" {
		t.Fatalf("expected conn info to be tracked")
	}

	hub.RemoveSessionClient("abc", nil)
	if len(hub.sessionRooms) != 0 {
		t.Fatalf("expected session room to be removed")
	}
	if _, ok := hub.getConnInfo("abc", nil); ok {
		t.Fatalf("expected conn info to be removed")
	}
}

func TestHubRemoveUnknownSessionClient(t *testing.T) {
	hub := NewHub()

	hub.RemoveSessionClient("missing", nil)
	if len(hub.sessionRooms) != 0 {
		t.Fatalf("expected no rooms")
	}
}
