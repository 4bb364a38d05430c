package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/AaronLay10/LockStep/internal/engine"
	"github.com/AaronLay10/LockStep/internal/metrics"
	"github.com/AaronLay10/LockStep/internal/puzzle"
	"github.com/AaronLay10/LockStep/internal/room"
	"github.com/AaronLay10/LockStep/internal/scenario"
)

// CreateRequest names a catalog scenario or carries an inline one.
// An inline scenario wins when both are set.
type CreateRequest struct {
	ScenarioID string          `json:"scenarioId"`
	Scenario   json.RawMessage `json:"scenario,omitempty"`
	PlayerName string          `json:"playerName"`
}

// Joined is returned to a connection that entered a room.
type Joined struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

func (o *Orchestrator) resolveScenario(req CreateRequest) (*scenario.Scenario, error) {
	inline := bytes.TrimSpace(req.Scenario)
	if len(inline) > 0 && !bytes.Equal(inline, []byte("null")) {
		sc, err := scenario.ParseInline(inline)
		if err != nil {
			return nil, ErrInvalidScenario.WithMessage("Invalid scenario: %v", err)
		}
		return sc, nil
	}
	sc, ok := o.catalog.Get(strings.TrimSpace(req.ScenarioID))
	if !ok {
		return nil, ErrUnknownScenario
	}
	return sc, nil
}

// CreateRoom opens a lobby with the caller as host. A malformed inline
// scenario fails here, before any room exists.
func (o *Orchestrator) CreateRoom(connID string, req CreateRequest) (Joined, error) {
	if _, ok := o.RoomOf(connID); ok {
		return Joined{}, ErrAlreadyInRoom
	}
	sc, err := o.resolveScenario(req)
	if err != nil {
		return Joined{}, err
	}

	r := o.rooms.Create(sc.ID, sc)
	metrics.RoomsActive.Set(float64(o.rooms.Len()))
	emit(r.Code, "room.created", map[string]interface{}{"scenario_id": sc.ID})

	var out Joined
	err = o.rooms.WithRoom(r.Code, func(r *room.Room) error {
		p := r.AddPlayer(connID, req.PlayerName, true)
		o.bind(connID, r.Code)
		emit(r.Code, "player.joined", map[string]interface{}{"player_id": p.ID, "name": p.Name, "host": true})
		o.broadcastRoom(r)
		out = Joined{RoomCode: r.Code, PlayerID: p.ID}
		return nil
	})
	return out, err
}

// JoinRoom adds the caller to a lobby. Rooms with a running game or a
// full roster are refused.
func (o *Orchestrator) JoinRoom(connID, code, name string) (Joined, error) {
	if _, ok := o.RoomOf(connID); ok {
		return Joined{}, ErrAlreadyInRoom
	}
	var out Joined
	err := o.rooms.WithRoom(code, func(r *room.Room) error {
		if r.Phase == room.PhasePlaying {
			return ErrGameInProgress
		}
		if len(r.Players) >= o.cfg.MaxPlayers {
			return ErrRoomFull
		}
		p := r.AddPlayer(connID, name, false)
		o.bind(connID, r.Code)
		emit(r.Code, "player.joined", map[string]interface{}{"player_id": p.ID, "name": p.Name, "host": false})
		o.broadcastRoom(r)
		out = Joined{RoomCode: r.Code, PlayerID: p.ID}
		return nil
	})
	return out, err
}

// RejoinRoom rebinds a disconnected player to the caller's connection.
// Only possible while the room survives its grace period.
func (o *Orchestrator) RejoinRoom(connID, code, playerID string) (Joined, error) {
	if _, ok := o.RoomOf(connID); ok {
		return Joined{}, ErrAlreadyInRoom
	}
	var out Joined
	err := o.rooms.WithRoom(code, func(r *room.Room) error {
		p, err := r.Rebind(playerID, connID)
		if err != nil {
			return err
		}
		o.bind(connID, r.Code)
		if r.Phase == room.PhasePlaying && r.Game != nil {
			r.Game.AssignPuzzles(r.ConnectedIDs())
		}
		emit(r.Code, "player.rejoined", map[string]interface{}{"player_id": p.ID, "previous_id": playerID})
		o.broadcastRoom(r)
		out = Joined{RoomCode: r.Code, PlayerID: p.ID}
		return nil
	})
	return out, err
}

// SelectRole picks a role for the caller. Roles are fixed while a game
// is running.
func (o *Orchestrator) SelectRole(connID, roleID string) error {
	return o.withConnRoom(connID, func(r *room.Room) error {
		if r.Phase == room.PhasePlaying {
			return ErrRolesLocked
		}
		if err := r.SetPlayerRole(connID, roleID); err != nil {
			return err
		}
		emit(r.Code, "player.role", map[string]interface{}{"player_id": connID, "role": roleID})
		o.broadcastRoom(r)
		return nil
	})
}

// StartGame is host only. Role-less players get roles, a fresh game is
// built from the room's scenario and the timer starts when the scenario
// has a countdown or decaying resources. An ended room may be replayed.
func (o *Orchestrator) StartGame(connID string) error {
	return o.withConnRoom(connID, func(r *room.Room) error {
		p, ok := r.Player(connID)
		if !ok || !p.IsHost {
			return ErrNotHost
		}
		if r.Phase == room.PhasePlaying {
			return ErrGameInProgress
		}

		r.AutoAssignRoles()
		g := engine.New(r.Scenario)
		g.Notify = notifier(r.Code)
		g.AssignPuzzles(r.ConnectedIDs())

		r.Game = g
		r.Phase = room.PhasePlaying
		r.GameOver = false
		emit(r.Code, "game.started", map[string]interface{}{"scenario_id": r.ScenarioID, "players": len(r.Players)})

		if g.NeedsTicker() {
			code := r.Code
			r.SetTimer(o.cfg.StartTicker(func() { o.tick(code) }))
			emit(r.Code, "timer.started", nil)
		}
		o.commit(r)
		return nil
	})
}

// SubmitAnswer checks an answer for the caller's room. Wrong answers come
// back as a result, not an error.
func (o *Orchestrator) SubmitAnswer(connID, puzzleID string, answer json.RawMessage) (engine.SubmitResult, error) {
	var res engine.SubmitResult
	err := o.withGame(connID, func(r *room.Room) error {
		var err error
		res, err = r.Game.SubmitAnswer(puzzleID, puzzle.NewAnswer(answer))
		if err != nil {
			return err
		}
		metrics.AnswersTotal.WithLabelValues(answerResult(res)).Inc()
		o.commit(r)
		return nil
	})
	return res, err
}

func answerResult(res engine.SubmitResult) string {
	switch {
	case res.Exhausted:
		return "exhausted"
	case res.StageCleared:
		return "stage"
	case res.Correct:
		return "correct"
	default:
		return "wrong"
	}
}

// MakeChoice follows a choice on the current choice node.
func (o *Orchestrator) MakeChoice(connID, choiceID string) (string, error) {
	var next string
	err := o.withGame(connID, func(r *room.Room) error {
		var err error
		if next, err = r.Game.MakeChoice(choiceID); err != nil {
			return err
		}
		o.commit(r)
		return nil
	})
	return next, err
}

// AdvanceNode moves past a start or fully solved puzzle node.
func (o *Orchestrator) AdvanceNode(connID string) (string, error) {
	var next string
	err := o.withGame(connID, func(r *room.Room) error {
		var err error
		if next, err = r.Game.Advance(); err != nil {
			return err
		}
		o.commit(r)
		return nil
	})
	return next, err
}

// QuitGame removes the caller from their room. The last player out tears
// the room down at once; there is no grace period for a voluntary exit.
func (o *Orchestrator) QuitGame(connID string) error {
	code, ok := o.RoomOf(connID)
	if !ok {
		return ErrNotInRoom
	}

	o.unbind(connID)

	var empty bool
	err := o.rooms.WithRoom(code, func(r *room.Room) error {
		if !r.RemovePlayer(connID) {
			return room.ErrPlayerNotFound
		}
		emit(r.Code, "player.quit", map[string]interface{}{"player_id": connID})
		if empty = len(r.Players) == 0; empty {
			r.StopTimer()
			return nil
		}
		if r.Phase == room.PhasePlaying && r.Game != nil {
			r.Game.AssignPuzzles(r.ConnectedIDs())
		}
		o.rooms.ReapIfIdleLocked(r)
		o.broadcastRoom(r)
		return nil
	})

	if err != nil && !errors.Is(err, room.ErrRoomNotFound) {
		return err
	}
	if empty {
		o.rooms.DeleteIfEmpty(code)
	}
	return nil
}

// Disconnect handles a dropped connection. The player stays on the
// roster; when nobody is left connected the registry starts the grace
// period.
func (o *Orchestrator) Disconnect(connID string) {
	code, ok := o.RoomOf(connID)
	if !ok {
		return
	}
	o.unbind(connID)

	_ = o.rooms.WithRoom(code, func(r *room.Room) error {
		if err := o.rooms.MarkDisconnectedLocked(r, connID); err != nil {
			return err
		}
		emit(r.Code, "player.disconnected", map[string]interface{}{"player_id": connID})
		if r.Phase == room.PhasePlaying && r.Game != nil {
			r.Game.AssignPuzzles(r.ConnectedIDs())
		}
		o.broadcastRoom(r)
		return nil
	})
}
