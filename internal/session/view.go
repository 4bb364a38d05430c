package session

import (
	"github.com/AaronLay10/LockStep/internal/engine"
	"github.com/AaronLay10/LockStep/internal/room"
	"github.com/AaronLay10/LockStep/internal/scenario"
)

// PlayerView is a roster entry as clients see it; Role is null until
// one is picked.
type PlayerView struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Role      *string `json:"role"`
	Connected bool    `json:"connected"`
	IsHost    bool    `json:"isHost"`
}

// RoomView is the ROOM_UPDATED payload.
type RoomView struct {
	RoomCode      string            `json:"roomCode"`
	ScenarioID    string            `json:"scenarioId"`
	ScenarioTitle string            `json:"scenarioTitle"`
	Phase         room.Phase        `json:"phase"`
	Players       []PlayerView      `json:"players"`
	Roles         []scenario.Role   `json:"roles"`
	GameState     *engine.StateView `json:"gameState"`
	CurrentNode   *engine.NodeView  `json:"currentNode"`
}

func roomView(r *room.Room) RoomView {
	v := RoomView{
		RoomCode:   r.Code,
		ScenarioID: r.ScenarioID,
		Phase:      r.Phase,
		Players:    make([]PlayerView, 0, len(r.Players)),
		Roles:      r.Roles(),
	}
	if r.Scenario != nil {
		v.ScenarioTitle = r.Scenario.Title
	}
	for _, p := range r.Players {
		pv := PlayerView{ID: p.ID, Name: p.Name, Connected: p.Connected, IsHost: p.IsHost}
		if p.Role != "" {
			role := p.Role
			pv.Role = &role
		}
		v.Players = append(v.Players, pv)
	}
	if r.Game != nil {
		proj := r.Game.ClientState()
		v.GameState = &proj.State
		v.CurrentNode = proj.Node
	}
	return v
}

func (o *Orchestrator) broadcastRoom(r *room.Room) {
	o.out.Broadcast(r.Code, MsgRoomUpdated, roomView(r))
}

// View returns the current projection of a room.
func (o *Orchestrator) View(code string) (RoomView, error) {
	var v RoomView
	err := o.rooms.WithRoom(code, func(r *room.Room) error {
		v = roomView(r)
		return nil
	})
	return v, err
}

func notifier(code string) func(string, map[string]interface{}) {
	return func(name string, fields map[string]interface{}) {
		emit(code, name, fields)
	}
}
