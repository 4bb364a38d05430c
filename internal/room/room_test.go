package room

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/AaronLay10/LockStep/internal/gameerr"
)

// fakeAfter captures scheduled callbacks so tests fire them by hand.
type fakeAfter struct {
	delays []time.Duration
	funcs  []func()
}

func (f *fakeAfter) schedule(d time.Duration, fn func()) {
	f.delays = append(f.delays, d)
	f.funcs = append(f.funcs, fn)
}

func (f *fakeAfter) fireAll() {
	funcs := f.funcs
	f.funcs = nil
	for _, fn := range funcs {
		fn()
	}
}

func newTestRegistry() (*Registry, *fakeAfter) {
	reg := NewRegistry(Config{})
	fa := &fakeAfter{}
	reg.afterFunc = fa.schedule
	return reg, fa
}

func TestCreateCodes(t *testing.T) {
	reg, _ := newTestRegistry()

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		r := reg.Create("s", nil)
		if len(r.Code) != DefaultCodeLength {
			t.Fatalf("code %q has length %d", r.Code, len(r.Code))
		}
		for _, c := range r.Code {
			if !strings.ContainsRune(CodeAlphabet, c) {
				t.Fatalf("code %q contains %q", r.Code, c)
			}
		}
		if seen[r.Code] {
			t.Fatalf("duplicate code %q", r.Code)
		}
		seen[r.Code] = true
		if r.Phase != PhaseLobby || len(r.Players) != 0 {
			t.Fatalf("new room not an empty lobby: %+v", r)
		}
	}
	if reg.Len() != 200 {
		t.Fatalf("expected 200 rooms, got %d", reg.Len())
	}
}

func TestGetNormalizesCode(t *testing.T) {
	reg, _ := newTestRegistry()
	r := reg.Create("s", nil)

	got, err := reg.Get(" " + strings.ToLower(r.Code) + " ")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != r {
		t.Fatal("expected the same room")
	}
}

func TestUnknownRoomIsNotFound(t *testing.T) {
	reg, _ := newTestRegistry()

	checks := map[string]error{}
	_, checks["get"] = reg.Get("ZZZZZZ")
	_, checks["add"] = reg.AddPlayer("ZZZZZZ", "p1", "Ann", true)
	checks["role"] = reg.SetPlayerRole("ZZZZZZ", "p1", "builder")
	checks["auto"] = reg.AutoAssignRoles("ZZZZZZ")
	checks["disconnect"] = reg.MarkDisconnected("ZZZZZZ", "p1")
	checks["remove"] = reg.RemovePlayer("ZZZZZZ", "p1")

	for op, err := range checks {
		if !errors.Is(err, ErrRoomNotFound) {
			t.Errorf("%s: expected ErrRoomNotFound, got %v", op, err)
		}
		if gameerr.CodeOf(err) != gameerr.CodeNotFound {
			t.Errorf("%s: expected NOT_FOUND code, got %s", op, gameerr.CodeOf(err))
		}
	}
	if reg.DeleteIfEmpty("ZZZZZZ") {
		t.Error("DeleteIfEmpty on unknown room reported a delete")
	}
}

func TestAddPlayerDefaults(t *testing.T) {
	reg, _ := newTestRegistry()
	r := reg.Create("s", nil)

	host, err := reg.AddPlayer(r.Code, "p1", "Ann", true)
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	if !host.IsHost || !host.Connected || host.Role != "" {
		t.Fatalf("unexpected host: %+v", host)
	}

	anon, _ := reg.AddPlayer(r.Code, "p2", "  ", false)
	if anon.Name != "Player 2" {
		t.Fatalf("expected default name, got %q", anon.Name)
	}
}

func TestRoleUniqueness(t *testing.T) {
	reg, _ := newTestRegistry()
	r := reg.Create("s", nil)
	reg.AddPlayer(r.Code, "p1", "Ann", true)
	reg.AddPlayer(r.Code, "p2", "Bob", false)

	if err := reg.SetPlayerRole(r.Code, "p1", "builder"); err != nil {
		t.Fatalf("SetPlayerRole: %v", err)
	}
	if err := reg.SetPlayerRole(r.Code, "p2", "decoder"); err != nil {
		t.Fatalf("SetPlayerRole: %v", err)
	}

	err := reg.SetPlayerRole(r.Code, "p2", "builder")
	if !errors.Is(err, ErrRoleTaken) {
		t.Fatalf("expected ErrRoleTaken, got %v", err)
	}
	if got := gameerr.Message(err); got != `Role "builder" is already taken by Ann` {
		t.Fatalf("unexpected message %q", got)
	}
	p2, _ := r.Player("p2")
	if p2.Role != "decoder" {
		t.Fatalf("prior role must be kept, got %q", p2.Role)
	}

	// a disconnected holder still owns the role
	reg.MarkDisconnected(r.Code, "p1")
	if err := reg.SetPlayerRole(r.Code, "p2", "builder"); !errors.Is(err, ErrRoleTaken) {
		t.Fatalf("expected ErrRoleTaken for disconnected holder, got %v", err)
	}

	// reassigning your own role is free
	if err := reg.SetPlayerRole(r.Code, "p2", "pathfinder"); err != nil {
		t.Fatalf("SetPlayerRole: %v", err)
	}
	if err := reg.SetPlayerRole(r.Code, "p2", "pathfinder"); err != nil {
		t.Fatalf("re-selecting own role: %v", err)
	}

	if err := reg.SetPlayerRole(r.Code, "p2", "wizard"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if err := reg.SetPlayerRole(r.Code, "ghost", "decoder"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestAutoAssignRoles(t *testing.T) {
	reg, _ := newTestRegistry()
	r := reg.Create("s", nil)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		reg.AddPlayer(r.Code, id, id, id == "a")
	}
	reg.SetPlayerRole(r.Code, "b", "builder")

	if err := reg.AutoAssignRoles(r.Code); err != nil {
		t.Fatalf("AutoAssignRoles: %v", err)
	}

	want := map[string]string{
		"a": "pathfinder",
		"b": "builder",
		"c": "decoder",
		"d": "builder",    // index 3 % 3
		"e": "pathfinder", // index 4 % 3
	}
	for id, role := range want {
		p, _ := r.Player(id)
		if p.Role != role {
			t.Errorf("player %s: expected %q, got %q", id, role, p.Role)
		}
	}
}

func TestGraceTeardown(t *testing.T) {
	reg, fa := newTestRegistry()
	var deleted []string
	reg.OnDelete = func(code string) { deleted = append(deleted, code) }

	r := reg.Create("s", nil)
	reg.AddPlayer(r.Code, "p1", "Ann", true)
	reg.AddPlayer(r.Code, "p2", "Bob", false)

	stopped := false
	r.SetTimer(func() { stopped = true })

	reg.MarkDisconnected(r.Code, "p1")
	if len(fa.funcs) != 0 {
		t.Fatal("teardown scheduled while a player is still connected")
	}

	reg.MarkDisconnected(r.Code, "p2")
	if len(fa.funcs) != 1 || fa.delays[0] != DefaultGracePeriod {
		t.Fatalf("expected one teardown after %s, got %v", DefaultGracePeriod, fa.delays)
	}
	if _, err := reg.Get(r.Code); err != nil {
		t.Fatal("room must survive until the grace period ends")
	}

	fa.fireAll()
	if _, err := reg.Get(r.Code); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected room deleted, got %v", err)
	}
	if !stopped {
		t.Error("timer not stopped on teardown")
	}
	if !r.Deleted() {
		t.Error("room not marked deleted")
	}
	if len(deleted) != 1 || deleted[0] != r.Code {
		t.Errorf("OnDelete calls: %v", deleted)
	}
	if err := reg.WithRoom(r.Code, func(*Room) error { return nil }); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("WithRoom on deleted room: %v", err)
	}
}

func TestReconnectCancelsTeardown(t *testing.T) {
	reg, fa := newTestRegistry()
	r := reg.Create("s", nil)
	reg.AddPlayer(r.Code, "p1", "Ann", true)

	reg.MarkDisconnected(r.Code, "p1")

	err := reg.WithRoom(r.Code, func(r *Room) error {
		_, err := r.Rebind("p1", "p1-new")
		return err
	})
	if err != nil {
		t.Fatalf("Rebind: %v", err)
	}

	fa.fireAll()
	if _, err := reg.Get(r.Code); err != nil {
		t.Fatalf("room deleted despite reconnect: %v", err)
	}
	p, ok := r.Player("p1-new")
	if !ok || !p.Connected || !p.IsHost {
		t.Fatalf("unexpected rebound player: %+v", p)
	}
}

func TestRebindRejectsConnected(t *testing.T) {
	reg, _ := newTestRegistry()
	r := reg.Create("s", nil)
	reg.AddPlayer(r.Code, "p1", "Ann", true)

	err := reg.WithRoom(r.Code, func(r *Room) error {
		_, err := r.Rebind("p1", "x")
		return err
	})
	if !errors.Is(err, ErrStillConnected) {
		t.Fatalf("expected ErrStillConnected, got %v", err)
	}

	err = reg.WithRoom(r.Code, func(r *Room) error {
		_, err := r.Rebind("nobody", "x")
		return err
	})
	if !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestRemovePlayerAndDeleteIfEmpty(t *testing.T) {
	reg, _ := newTestRegistry()
	r := reg.Create("s", nil)
	reg.AddPlayer(r.Code, "p1", "Ann", true)
	reg.AddPlayer(r.Code, "p2", "Bob", false)

	if err := reg.RemovePlayer(r.Code, "p1"); err != nil {
		t.Fatalf("RemovePlayer: %v", err)
	}
	p2, _ := r.Player("p2")
	if !p2.IsHost {
		t.Error("host not handed to the next player")
	}
	if reg.DeleteIfEmpty(r.Code) {
		t.Fatal("deleted a room with players")
	}

	if err := reg.RemovePlayer(r.Code, "p1"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}

	reg.RemovePlayer(r.Code, "p2")
	if !reg.DeleteIfEmpty(r.Code) {
		t.Fatal("empty room not deleted")
	}
	if reg.Len() != 0 {
		t.Fatalf("expected no rooms, got %d", reg.Len())
	}
}

func TestConnectedIDs(t *testing.T) {
	reg, _ := newTestRegistry()
	r := reg.Create("s", nil)
	reg.AddPlayer(r.Code, "a", "A", true)
	reg.AddPlayer(r.Code, "b", "B", false)
	reg.AddPlayer(r.Code, "c", "C", false)
	reg.MarkDisconnected(r.Code, "b")

	got := strings.Join(r.ConnectedIDs(), ",")
	if got != "a,c" {
		t.Fatalf("expected a,c got %s", got)
	}
}
