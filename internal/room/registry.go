package room

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AaronLay10/LockStep/internal/scenario"
)

// CodeAlphabet leaves out I, O, 0 and 1.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	DefaultCodeLength  = 6
	DefaultGracePeriod = 60 * time.Second
)

// Config tunes a Registry. Zero values take the defaults.
type Config struct {
	CodeLength  int
	GracePeriod time.Duration
}

// Registry maps room codes to live rooms.
//
// Lock order is registry then room: nothing takes r.mu while holding a
// room lock.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	codeLen int
	grace   time.Duration

	afterFunc func(time.Duration, func())

	// OnDelete, when set, is called with the code of every room the
	// registry drops. It runs with no locks held.
	OnDelete func(code string)
}

func NewRegistry(cfg Config) *Registry {
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = DefaultCodeLength
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	return &Registry{
		rooms:   make(map[string]*Room),
		codeLen: cfg.CodeLength,
		grace:   cfg.GracePeriod,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// NormalizeCode upper-cases and trims a code typed by a player.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (reg *Registry) newCode() string {
	buf := make([]byte, reg.codeLen)
	for {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, reg.codeLen)
		for i := range out {
			out[i] = CodeAlphabet[int(buf[i])%len(CodeAlphabet)]
		}
		if _, exists := reg.rooms[string(out)]; !exists {
			return string(out)
		}
	}
}

// Create registers an empty lobby for a scenario under a fresh code.
func (reg *Registry) Create(scenarioID string, sc *scenario.Scenario) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r := &Room{
		Code:       reg.newCode(),
		ScenarioID: scenarioID,
		Scenario:   sc,
		Phase:      PhaseLobby,
		CreatedAt:  time.Now(),
	}
	reg.rooms[r.Code] = r
	return r
}

// Get looks a room up by code.
func (reg *Registry) Get(code string) (*Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	r, ok := reg.rooms[NormalizeCode(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Len returns the number of live rooms.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// WithRoom runs fn with the room locked. A room deleted between lookup
// and lock is reported as not found.
func (reg *Registry) WithRoom(code string, fn func(*Room) error) error {
	r, err := reg.Get(code)
	if err != nil {
		return err
	}
	r.Lock()
	defer r.Unlock()
	if r.deleted {
		return ErrRoomNotFound
	}
	return fn(r)
}

func (reg *Registry) AddPlayer(code, id, name string, isHost bool) (*Player, error) {
	var p *Player
	err := reg.WithRoom(code, func(r *Room) error {
		p = r.AddPlayer(id, name, isHost)
		return nil
	})
	return p, err
}

func (reg *Registry) SetPlayerRole(code, id, roleID string) error {
	return reg.WithRoom(code, func(r *Room) error {
		return r.SetPlayerRole(id, roleID)
	})
}

func (reg *Registry) AutoAssignRoles(code string) error {
	return reg.WithRoom(code, func(r *Room) error {
		r.AutoAssignRoles()
		return nil
	})
}

// MarkDisconnected flips a player to disconnected and, when that leaves
// nobody connected, schedules teardown after the grace period.
func (reg *Registry) MarkDisconnected(code, id string) error {
	return reg.WithRoom(code, func(r *Room) error {
		return reg.MarkDisconnectedLocked(r, id)
	})
}

// MarkDisconnectedLocked is MarkDisconnected for a caller that already
// holds the room lock.
func (reg *Registry) MarkDisconnectedLocked(r *Room, id string) error {
	p, ok := r.Player(id)
	if !ok {
		return ErrPlayerNotFound
	}
	p.Connected = false
	reg.ReapIfIdleLocked(r)
	return nil
}

// ReapIfIdleLocked schedules teardown of r when nobody on its roster is
// connected. The caller holds the room lock.
func (reg *Registry) ReapIfIdleLocked(r *Room) {
	if len(r.Players) > 0 && r.AllDisconnected() {
		reg.scheduleTeardown(r)
	}
}

// scheduleTeardown deletes r after the grace period unless someone has
// reconnected by then. The check re-reads live state, so a reconnect
// cancels the teardown without any bookkeeping.
func (reg *Registry) scheduleTeardown(r *Room) {
	code := r.Code
	log.Debug().Str("room", code).Dur("grace", reg.grace).Msg("all players disconnected")
	reg.afterFunc(reg.grace, func() {
		if reg.remove(code, r, func(r *Room) bool { return r.AllDisconnected() }) {
			log.Info().Str("room", code).Msg("removed empty room after grace period")
		}
	})
}

// RemovePlayer drops a player from the roster.
func (reg *Registry) RemovePlayer(code, id string) error {
	return reg.WithRoom(code, func(r *Room) error {
		if !r.RemovePlayer(id) {
			return ErrPlayerNotFound
		}
		return nil
	})
}

// DeleteIfEmpty drops the room when its roster is empty.
func (reg *Registry) DeleteIfEmpty(code string) bool {
	r, err := reg.Get(code)
	if err != nil {
		return false
	}
	return reg.remove(r.Code, r, func(r *Room) bool { return len(r.Players) == 0 })
}

// Delete drops the room unconditionally.
func (reg *Registry) Delete(code string) bool {
	r, err := reg.Get(code)
	if err != nil {
		return false
	}
	return reg.remove(r.Code, r, func(*Room) bool { return true })
}

// remove deletes r if it is still registered under code and cond holds
// under the room lock. The room's timer is stopped and it is marked
// deleted so late callbacks see it gone.
func (reg *Registry) remove(code string, r *Room, cond func(*Room) bool) bool {
	reg.mu.Lock()
	if reg.rooms[code] != r {
		reg.mu.Unlock()
		return false
	}
	r.Lock()
	ok := cond(r)
	if ok {
		delete(reg.rooms, code)
		r.deleted = true
		r.StopTimer()
	}
	r.Unlock()
	reg.mu.Unlock()

	if ok && reg.OnDelete != nil {
		reg.OnDelete(code)
	}
	return ok
}
