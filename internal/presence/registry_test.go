package presence

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"tracking-server/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func attrs(name string) domain.Attributes {
	return domain.Attributes{StableUserID: "u-" + name, DisplayName: name, Color: "#000000", DeviceClass: "desktop"}
}

func TestRegistry_OnConnect(t *testing.T) {
	r := NewRegistry()

	p, err := r.OnConnect("a", attrs("A"), t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.State != domain.Online {
		t.Errorf("state = %v, want online", p.State)
	}
	if p.Location != nil {
		t.Error("location must be nil before first update")
	}
	if !p.LastActivityAt.Equal(t0) {
		t.Errorf("LastActivityAt = %v, want %v", p.LastActivityAt, t0)
	}

	_, err = r.OnConnect("a", attrs("A"), t0)
	if !errors.Is(err, domain.ErrDuplicateConnect) {
		t.Fatalf("expected ErrDuplicateConnect, got %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("duplicate connect changed registry size to %d", r.Len())
	}
}

func TestRegistry_LocationLastWriteWins(t *testing.T) {
	r := NewRegistry()
	r.OnConnect("a", attrs("A"), t0)

	later := domain.Location{Latitude: 2, Longitude: 2, FixTimestamp: t0.Add(2 * time.Second)}
	earlier := domain.Location{Latitude: 1, Longitude: 1, FixTimestamp: t0.Add(time.Second)}

	// t2 приходит первым, t1 вторым: побеждает порядок прихода
	r.OnLocationUpdate("a", later, t0.Add(3*time.Second))
	p, err := r.OnLocationUpdate("a", earlier, t0.Add(4*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Location.Latitude != 1 {
		t.Errorf("latitude = %v, want 1 (arrival order)", p.Location.Latitude)
	}

	// и в прямом порядке тоже
	r.OnLocationUpdate("a", earlier, t0.Add(5*time.Second))
	p, _ = r.OnLocationUpdate("a", later, t0.Add(6*time.Second))
	if p.Location.Latitude != 2 || !p.Location.FixTimestamp.Equal(later.FixTimestamp) {
		t.Errorf("record = %+v, want t2 values", p.Location)
	}
}

func TestRegistry_StaleReference(t *testing.T) {
	r := NewRegistry()

	_, err := r.OnLocationUpdate("ghost", domain.Location{}, t0)
	if !errors.Is(err, domain.ErrStaleReference) {
		t.Errorf("OnLocationUpdate: expected ErrStaleReference, got %v", err)
	}
	_, err = r.OnHeartbeat("ghost", t0)
	if !errors.Is(err, domain.ErrStaleReference) {
		t.Errorf("OnHeartbeat: expected ErrStaleReference, got %v", err)
	}
	_, err = r.MarkOffline("ghost", t0)
	if !errors.Is(err, domain.ErrStaleReference) {
		t.Errorf("MarkOffline: expected ErrStaleReference, got %v", err)
	}
}

func TestRegistry_OfflineAndReactivate(t *testing.T) {
	r := NewRegistry()
	r.OnConnect("a", attrs("A"), t0)
	r.OnLocationUpdate("a", domain.Location{Latitude: 10, Longitude: 20}, t0.Add(time.Second))

	p, _ := r.MarkOffline("a", t0.Add(2*time.Second))
	if p.State != domain.Offline {
		t.Fatalf("state = %v, want offline", p.State)
	}
	if p.Location == nil {
		t.Fatal("marking offline must keep the location")
	}

	p, _ = r.OnHeartbeat("a", t0.Add(3*time.Second))
	if p.State != domain.Online {
		t.Errorf("heartbeat should bring participant back online")
	}
	if p.Location == nil || p.Location.Latitude != 10 {
		t.Error("heartbeat must not touch location")
	}
}

func TestRegistry_LastActivityMonotonic(t *testing.T) {
	r := NewRegistry()
	r.OnConnect("a", attrs("A"), t0)
	r.OnHeartbeat("a", t0.Add(10*time.Second))

	p, _ := r.OnHeartbeat("a", t0.Add(5*time.Second))
	if !p.LastActivityAt.Equal(t0.Add(10 * time.Second)) {
		t.Errorf("LastActivityAt went back to %v", p.LastActivityAt)
	}
}

func TestRegistry_RemoveIdempotent(t *testing.T) {
	r := NewRegistry()
	r.OnConnect("a", attrs("A"), t0)

	if !r.Remove("a") {
		t.Fatal("first Remove should report true")
	}
	if r.Remove("a") {
		t.Error("second Remove should report false")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after removal", r.Len())
	}
	if _, err := r.OnLocationUpdate("a", domain.Location{}, t0); !errors.Is(err, domain.ErrStaleReference) {
		t.Error("removed record must not be resurrected by a late update")
	}
}

func TestRegistry_SnapshotOrderAndIsolation(t *testing.T) {
	r := NewRegistry()
	for _, id := range []domain.ConnectionID{"a", "b", "c", "d"} {
		r.OnConnect(id, attrs(string(id)), t0)
	}
	r.Remove("b")

	snap := r.Snapshot()
	want := []domain.ConnectionID{"a", "c", "d"}
	if len(snap) != len(want) {
		t.Fatalf("snapshot len = %d, want %d", len(snap), len(want))
	}
	for i, id := range want {
		if snap[i].ConnectionID != id {
			t.Errorf("snapshot[%d] = %s, want %s", i, snap[i].ConnectionID, id)
		}
	}

	snap[0].DisplayName = "mutated"
	if p, _ := r.Get("a"); p.DisplayName == "mutated" {
		t.Error("snapshot must not alias registry records")
	}
}

func TestRegistry_Counts(t *testing.T) {
	r := NewRegistry()
	r.OnConnect("a", attrs("A"), t0)
	r.OnConnect("b", attrs("B"), t0)
	r.MarkOffline("b", t0)

	online, offline := r.Counts()
	if online != 1 || offline != 1 {
		t.Errorf("Counts() = %d/%d, want 1/1", online, offline)
	}
}

// Случайные последовательности connect/offline/remove: в реестре только
// подключенные и еще не удаленные соединения.
func TestRegistry_NoOrphanRecords(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	r := NewRegistry()
	live := make(map[domain.ConnectionID]bool)
	ids := []domain.ConnectionID{"a", "b", "c", "d", "e"}

	for step := 0; step < 2000; step++ {
		id := ids[rng.Intn(len(ids))]
		now := t0.Add(time.Duration(step) * time.Second)
		switch rng.Intn(4) {
		case 0:
			_, err := r.OnConnect(id, attrs(string(id)), now)
			if live[id] && err == nil {
				t.Fatalf("step %d: duplicate connect accepted for %s", step, id)
			}
			if !live[id] && err != nil {
				t.Fatalf("step %d: connect failed: %v", step, err)
			}
			live[id] = true
		case 1:
			_, err := r.MarkOffline(id, now)
			if live[id] != (err == nil) {
				t.Fatalf("step %d: MarkOffline(%s) err=%v live=%v", step, id, err, live[id])
			}
		case 2:
			_, err := r.OnLocationUpdate(id, domain.Location{Latitude: 1, Longitude: 1}, now)
			if live[id] != (err == nil) {
				t.Fatalf("step %d: OnLocationUpdate(%s) err=%v live=%v", step, id, err, live[id])
			}
		case 3:
			if got := r.Remove(id); got != live[id] {
				t.Fatalf("step %d: Remove(%s) = %v, live=%v", step, id, got, live[id])
			}
			delete(live, id)
		}

		if r.Len() != len(live) {
			t.Fatalf("step %d: registry has %d records, want %d", step, r.Len(), len(live))
		}
		for _, p := range r.Snapshot() {
			if !live[p.ConnectionID] {
				t.Fatalf("step %d: orphan record %s", step, p.ConnectionID)
			}
		}
	}
}
