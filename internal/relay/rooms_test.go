package relay

import (
	"testing"
	"time"
)

func TestJoinAssignsUniqueConnectionIDs(t *testing.T) {
	store := NewRoomStore()
	base := time.Unix(1_700_000_000, 0)

	first, _, _, err := store.Join("room-a", "", base)
	if err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	second, _, _, err := store.Join("room-a", "", base.Add(time.Second))
	if err != nil {
		t.Fatalf("second join failed: %v", err)
	}

	if first == second {
		t.Fatalf("expected unique connection ids, got duplicate %s", first)
	}
	if got := store.MemberCount("room-a"); got != 2 {
		t.Fatalf("expected 2 members, got %d", got)
	}
}

func TestJoinSnapshotExcludesSelf(t *testing.T) {
	store := NewRoomStore()
	base := time.Unix(1_700_100_000, 0)

	first, peers, streams, _ := store.Join("room-a", `{"name":"Ada"}`, base)
	if len(peers) != 0 || len(streams) != 0 {
		t.Fatalf("first member should see an empty room, got %d peers %d streams", len(peers), len(streams))
	}

	if err := store.AddStream("room-a", first, StreamInfo{ID: "st-1", Name: "Ada"}, base.Add(time.Second)); err != nil {
		t.Fatalf("add stream failed: %v", err)
	}

	_, peers, streams, _ = store.Join("room-a", "", base.Add(2*time.Second))
	if len(peers) != 1 || peers[0].ID != first {
		t.Fatalf("expected snapshot with first member, got %+v", peers)
	}
	if len(streams) != 1 || streams[0].ID != "st-1" {
		t.Fatalf("expected snapshot with announced stream, got %+v", streams)
	}
	if streams[0].ConnectionID != first {
		t.Fatalf("stream owner should be forced to the announcer, got %s", streams[0].ConnectionID)
	}
}

func TestRoomsAreIndependent(t *testing.T) {
	store := NewRoomStore()
	base := time.Unix(1_700_200_000, 0)

	a, _, _, _ := store.Join("room-a", "", base)
	store.Join("room-b", "", base.Add(time.Second))

	if err := store.AddStream("room-a", a, StreamInfo{ID: "st-a"}, base.Add(2*time.Second)); err != nil {
		t.Fatalf("add stream failed: %v", err)
	}

	_, _, streams, _ := store.Join("room-b", "", base.Add(3*time.Second))
	if len(streams) != 0 {
		t.Fatalf("room-b should not see room-a streams, got %+v", streams)
	}
}

func TestLeaveReturnsOwnedStreams(t *testing.T) {
	store := NewRoomStore()
	base := time.Unix(1_700_300_000, 0)

	a, _, _, _ := store.Join("room-a", "", base)
	b, _, _, _ := store.Join("room-a", "", base.Add(time.Second))

	store.AddStream("room-a", a, StreamInfo{ID: "st-cam"}, base.Add(2*time.Second))
	store.AddStream("room-a", a, StreamInfo{ID: "st-screen", VideoType: "screen"}, base.Add(3*time.Second))
	store.AddStream("room-a", b, StreamInfo{ID: "st-other"}, base.Add(4*time.Second))

	removed := store.Leave("room-a", a, base.Add(5*time.Second))
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed streams, got %d", len(removed))
	}
	for _, st := range removed {
		if st.ConnectionID != a {
			t.Fatalf("removed stream owned by %s, expected %s", st.ConnectionID, a)
		}
	}

	_, _, streams, _ := store.Join("room-a", "", base.Add(6*time.Second))
	if len(streams) != 1 || streams[0].ID != "st-other" {
		t.Fatalf("survivor's stream should remain, got %+v", streams)
	}
}

func TestEmptyRoomIsDeleted(t *testing.T) {
	store := NewRoomStore()
	base := time.Unix(1_700_400_000, 0)

	a, _, _, _ := store.Join("room-a", "", base)
	store.Leave("room-a", a, base.Add(time.Second))

	if got := store.MemberCount("room-a"); got != 0 {
		t.Fatalf("expected empty room, got %d members", got)
	}
	if err := store.AddStream("room-a", a, StreamInfo{ID: "st-1"}, base.Add(2*time.Second)); err != ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound after room teardown, got %v", err)
	}
}

func TestAddStreamRejectsUnknownMember(t *testing.T) {
	store := NewRoomStore()
	base := time.Unix(1_700_500_000, 0)

	store.Join("room-a", "", base)
	if err := store.AddStream("room-a", "ghost", StreamInfo{ID: "st-1"}, base.Add(time.Second)); err != ErrMemberNotFound {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
}

func TestRemoveStreamIsOwnerOnly(t *testing.T) {
	store := NewRoomStore()
	base := time.Unix(1_700_600_000, 0)

	a, _, _, _ := store.Join("room-a", "", base)
	b, _, _, _ := store.Join("room-a", "", base.Add(time.Second))
	store.AddStream("room-a", a, StreamInfo{ID: "st-1"}, base.Add(2*time.Second))

	if store.RemoveStream("room-a", b, "st-1", base.Add(3*time.Second)) {
		t.Fatalf("non-owner should not remove the stream")
	}
	if !store.RemoveStream("room-a", a, "st-1", base.Add(4*time.Second)) {
		t.Fatalf("owner removal should succeed")
	}
	if store.RemoveStream("room-a", a, "st-1", base.Add(5*time.Second)) {
		t.Fatalf("second removal should report missing stream")
	}
}

func TestExpiredRoomIsRecreatedOnJoin(t *testing.T) {
	store := NewRoomStore()
	base := time.Unix(1_700_700_000, 0)

	a, _, _, _ := store.Join("room-a", "", base)
	store.AddStream("room-a", a, StreamInfo{ID: "st-1"}, base.Add(time.Second))

	// Past the idle TTL the room resets and the stale state is gone.
	_, peers, streams, err := store.Join("room-a", "", base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("join after expiry failed: %v", err)
	}
	if len(peers) != 0 || len(streams) != 0 {
		t.Fatalf("expired room should restart empty, got %d peers %d streams", len(peers), len(streams))
	}
}

func TestCleanupDropsIdleRooms(t *testing.T) {
	store := NewRoomStore()
	base := time.Unix(1_700_800_000, 0)

	store.Join("room-a", "", base)
	store.Join("room-b", "", base.Add(time.Hour))

	store.mu.Lock()
	store.cleanupExpiredLocked(base.Add(time.Hour + time.Minute))
	remaining := len(store.rooms)
	store.mu.Unlock()

	if remaining != 1 {
		t.Fatalf("expected 1 room after cleanup, got %d", remaining)
	}
}
