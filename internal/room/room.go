// Package room keeps the roster side of a session: room codes, players,
// roles and disconnect bookkeeping. It knows nothing about game rules.
package room

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AaronLay10/LockStep/internal/engine"
	"github.com/AaronLay10/LockStep/internal/gameerr"
	"github.com/AaronLay10/LockStep/internal/scenario"
)

// Phase is where a room is in its lifecycle.
type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhasePlaying Phase = "playing"
	PhaseEnded   Phase = "ended"
)

var (
	ErrRoomNotFound   = gameerr.NotFound("Room not found")
	ErrPlayerNotFound = gameerr.NotFound("Player not found")
	ErrUnknownRole    = gameerr.Invalid("Unknown role")
	ErrRoleTaken      = gameerr.Precondition("Role already taken")
	ErrStillConnected = gameerr.Precondition("Player is still connected")
)

// Player is one roster entry. ID is the identity of the connection the
// player is currently bound to.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	Connected bool   `json:"connected"`
	IsHost    bool   `json:"isHost"`
}

// Room is one isolated play session.
//
// Every field is guarded by the room's mutex. Methods on Room assume the
// caller holds it; use Registry.WithRoom or Lock/Unlock.
type Room struct {
	mu sync.Mutex

	Code       string
	ScenarioID string
	Scenario   *scenario.Scenario
	Phase      Phase
	Players    []*Player
	Game       *engine.Game
	CreatedAt  time.Time

	// GameOver is set once the terminal notice has been sent.
	GameOver bool

	stopTimer func()
	deleted   bool
}

func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

// Deleted reports whether the registry has dropped the room. Work queued
// for a deleted room (timer ticks, grace checks) must do nothing.
func (r *Room) Deleted() bool {
	return r.deleted
}

// SetTimer records the cancel func of the room's ticker, stopping any
// previous one.
func (r *Room) SetTimer(stop func()) {
	r.StopTimer()
	r.stopTimer = stop
}

// StopTimer cancels the room's ticker, if one is running.
func (r *Room) StopTimer() {
	if r.stopTimer != nil {
		r.stopTimer()
		r.stopTimer = nil
	}
}

// TimerRunning reports whether a ticker is attached.
func (r *Room) TimerRunning() bool {
	return r.stopTimer != nil
}

// Player finds a roster entry by identity.
func (r *Room) Player(id string) (*Player, bool) {
	for _, p := range r.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// AddPlayer appends a connected, role-less player.
func (r *Room) AddPlayer(id, name string, isHost bool) *Player {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Player %d", len(r.Players)+1)
	}
	p := &Player{ID: id, Name: name, Connected: true, IsHost: isHost}
	r.Players = append(r.Players, p)
	return p
}

// Roles returns the role set players pick from.
func (r *Room) Roles() []scenario.Role {
	if r.Scenario == nil {
		return scenario.DefaultRoles
	}
	return r.Scenario.RoleSet()
}

func (r *Room) knownRole(roleID string) bool {
	for _, role := range r.Roles() {
		if role.ID == roleID {
			return true
		}
	}
	return false
}

// SetPlayerRole gives a player a role. A role held by anyone else,
// connected or not, is refused and the previous assignment is kept.
func (r *Room) SetPlayerRole(id, roleID string) error {
	if !r.knownRole(roleID) {
		return ErrUnknownRole.WithMessage("Unknown role %q", roleID)
	}
	for _, other := range r.Players {
		if other.Role == roleID && other.ID != id {
			return ErrRoleTaken.WithMessage("Role %q is already taken by %s", roleID, other.Name)
		}
	}
	p, ok := r.Player(id)
	if !ok {
		return ErrPlayerNotFound
	}
	p.Role = roleID
	return nil
}

// AutoAssignRoles gives every role-less player the first free role in
// declaration order. Once every role is taken, the remaining players get
// roles[rosterIndex % len(roles)].
func (r *Room) AutoAssignRoles() {
	roles := r.Roles()
	if len(roles) == 0 {
		return
	}
	taken := make(map[string]bool, len(r.Players))
	for _, p := range r.Players {
		if p.Role != "" {
			taken[p.Role] = true
		}
	}
	var free []string
	for _, role := range roles {
		if !taken[role.ID] {
			free = append(free, role.ID)
		}
	}
	for i, p := range r.Players {
		if p.Role != "" {
			continue
		}
		if len(free) > 0 {
			p.Role, free = free[0], free[1:]
			continue
		}
		p.Role = roles[i%len(roles)].ID
	}
}

// ConnectedIDs lists connected players in roster order.
func (r *Room) ConnectedIDs() []string {
	var ids []string
	for _, p := range r.Players {
		if p.Connected {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// AllDisconnected reports whether nobody on the roster is connected.
func (r *Room) AllDisconnected() bool {
	for _, p := range r.Players {
		if p.Connected {
			return false
		}
	}
	return true
}

// RemovePlayer drops a player from the roster. When the host leaves, the
// next player in roster order becomes host.
func (r *Room) RemovePlayer(id string) bool {
	for i, p := range r.Players {
		if p.ID != id {
			continue
		}
		r.Players = append(r.Players[:i], r.Players[i+1:]...)
		if p.IsHost && len(r.Players) > 0 {
			r.Players[0].IsHost = true
		}
		return true
	}
	return false
}

// Rebind moves a disconnected player onto a new connection identity.
func (r *Room) Rebind(oldID, newID string) (*Player, error) {
	p, ok := r.Player(oldID)
	if !ok {
		return nil, ErrPlayerNotFound
	}
	if p.Connected {
		return nil, ErrStillConnected
	}
	p.ID = newID
	p.Connected = true
	return p, nil
}
