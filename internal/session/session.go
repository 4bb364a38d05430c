// Package session turns transport requests into registry and engine
// calls. It resolves a connection to its room, runs the operation under
// the room lock, broadcasts the new projection and sends the terminal
// notice exactly once. It also owns the per-room timer.
package session

import (
	"sync"
	"time"

	"github.com/AaronLay10/LockStep/internal/events"
	"github.com/AaronLay10/LockStep/internal/gameerr"
	"github.com/AaronLay10/LockStep/internal/metrics"
	"github.com/AaronLay10/LockStep/internal/room"
	"github.com/AaronLay10/LockStep/internal/scenario"
)

// Broadcast message types.
const (
	MsgRoomUpdated = "ROOM_UPDATED"
	MsgGameOver    = "GAME_OVER"
)

const (
	DefaultMaxPlayers        = 6
	DefaultBroadcastInterval = 5
)

var (
	ErrNotInRoom       = gameerr.Precondition("Not in a room")
	ErrAlreadyInRoom   = gameerr.Precondition("Already in a room")
	ErrUnknownScenario = gameerr.NotFound("Unknown scenario")
	ErrInvalidScenario = gameerr.Invalid("Invalid scenario")
	ErrGameInProgress  = gameerr.Precondition("Game already in progress")
	ErrRoomFull        = gameerr.Precondition("Room is full")
	ErrNotHost         = gameerr.Precondition("Only host can start")
	ErrGameNotActive   = gameerr.Precondition("Game not active")
	ErrRolesLocked     = gameerr.Precondition("Roles are locked once the game starts")
)

// Broadcaster delivers messages to the connections of a room. Calls are
// made with the room lock held and must not block.
type Broadcaster interface {
	// Join adds a connection to a room's audience.
	Join(connID, code string)
	// Leave removes a connection from whatever room it was in.
	Leave(connID string)
	// Broadcast sends a message to every connection in the room.
	Broadcast(code, msgType string, payload any)
}

// StartTicker starts calling fn once per second until the returned stop
// func is called. Stop must not block.
type StartTicker func(fn func()) (stop func())

// Config tunes an Orchestrator. Zero values take the defaults.
type Config struct {
	MaxPlayers        int
	BroadcastInterval int
	StartTicker       StartTicker
}

// Orchestrator is safe for concurrent use by many connections.
type Orchestrator struct {
	rooms   *room.Registry
	catalog *scenario.Catalog
	out     Broadcaster
	cfg     Config

	// connection identity -> room code; leaf lock
	mu    sync.Mutex
	conns map[string]string
}

func New(rooms *room.Registry, catalog *scenario.Catalog, out Broadcaster, cfg Config) *Orchestrator {
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = DefaultMaxPlayers
	}
	if cfg.BroadcastInterval <= 0 {
		cfg.BroadcastInterval = DefaultBroadcastInterval
	}
	if cfg.StartTicker == nil {
		cfg.StartTicker = everySecond
	}
	o := &Orchestrator{
		rooms:   rooms,
		catalog: catalog,
		out:     out,
		cfg:     cfg,
		conns:   make(map[string]string),
	}
	rooms.OnDelete = o.roomDeleted
	return o
}

// everySecond runs fn on a one second ticker in its own goroutine.
func everySecond(fn func()) func() {
	t := time.NewTicker(time.Second)
	done := make(chan struct{})
	go func() {
		defer t.Stop()
		for {
			select {
			case <-t.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (o *Orchestrator) bind(connID, code string) {
	o.mu.Lock()
	o.conns[connID] = code
	o.mu.Unlock()
	o.out.Join(connID, code)
}

func (o *Orchestrator) unbind(connID string) {
	o.mu.Lock()
	delete(o.conns, connID)
	o.mu.Unlock()
	o.out.Leave(connID)
}

// RoomOf returns the code of the room a connection is in.
func (o *Orchestrator) RoomOf(connID string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	code, ok := o.conns[connID]
	return code, ok
}

// withConnRoom runs fn under the lock of the caller's room.
func (o *Orchestrator) withConnRoom(connID string, fn func(*room.Room) error) error {
	code, ok := o.RoomOf(connID)
	if !ok {
		return ErrNotInRoom
	}
	return o.rooms.WithRoom(code, fn)
}

// withGame is withConnRoom for operations that need a running game.
func (o *Orchestrator) withGame(connID string, fn func(*room.Room) error) error {
	return o.withConnRoom(connID, func(r *room.Room) error {
		if r.Phase != room.PhasePlaying || r.Game == nil {
			return ErrGameNotActive
		}
		return fn(r)
	})
}

func (o *Orchestrator) roomDeleted(code string) {
	o.mu.Lock()
	for conn, c := range o.conns {
		if c == code {
			delete(o.conns, conn)
		}
	}
	o.mu.Unlock()
	metrics.RoomsActive.Set(float64(o.rooms.Len()))
	emit(code, "room.deleted", nil)
}

// emit records a room-scoped domain event.
func emit(code, name string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{}, 1)
	}
	fields["room"] = code
	_, _ = events.Emit("info", name, "", fields)
}

// Scenarios lists the pre-loaded scenarios.
func (o *Orchestrator) Scenarios() []scenario.Summary {
	return o.catalog.List()
}

// RoomExists reports whether a code names a live room.
func (o *Orchestrator) RoomExists(code string) bool {
	_, err := o.rooms.Get(code)
	return err == nil
}
