package api

import (
	"encoding/json"

	"github.com/AaronLay10/LockStep/internal/gameerr"
	"github.com/AaronLay10/LockStep/internal/session"
)

// Client message types.
const (
	MsgCreateRoom   = "CREATE_ROOM"
	MsgJoinRoom     = "JOIN_ROOM"
	MsgRejoinRoom   = "REJOIN_ROOM"
	MsgSelectRole   = "SELECT_ROLE"
	MsgStartGame    = "START_GAME"
	MsgSubmitAnswer = "SUBMIT_ANSWER"
	MsgMakeChoice   = "MAKE_CHOICE"
	MsgAdvanceNode  = "ADVANCE_NODE"
	MsgQuitGame     = "QUIT_GAME"
)

var (
	errUnknownMessage  = gameerr.Invalid("Unknown message type")
	errBadPayload      = gameerr.Invalid("Malformed payload")
	errTooManyRequests = gameerr.Precondition("Too many requests")
)

type okPayload struct {
	OK bool `json:"ok"`
}

type movedPayload struct {
	OK         bool   `json:"ok"`
	NextNodeID string `json:"nextNodeId"`
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errBadPayload
	}
	return nil
}

func (s *Server) dispatch(connID string, msg inbound) (any, error) {
	switch msg.Type {
	case MsgCreateRoom:
		var req session.CreateRequest
		if err := decode(msg.Payload, &req); err != nil {
			return nil, err
		}
		return s.sessions.CreateRoom(connID, req)

	case MsgJoinRoom:
		var req struct {
			RoomCode   string `json:"roomCode"`
			PlayerName string `json:"playerName"`
		}
		if err := decode(msg.Payload, &req); err != nil {
			return nil, err
		}
		return s.sessions.JoinRoom(connID, req.RoomCode, req.PlayerName)

	case MsgRejoinRoom:
		var req struct {
			RoomCode string `json:"roomCode"`
			PlayerID string `json:"playerId"`
		}
		if err := decode(msg.Payload, &req); err != nil {
			return nil, err
		}
		return s.sessions.RejoinRoom(connID, req.RoomCode, req.PlayerID)

	case MsgSelectRole:
		var req struct {
			RoleID string `json:"roleId"`
		}
		if err := decode(msg.Payload, &req); err != nil {
			return nil, err
		}
		if err := s.sessions.SelectRole(connID, req.RoleID); err != nil {
			return nil, err
		}
		return okPayload{OK: true}, nil

	case MsgStartGame:
		if err := s.sessions.StartGame(connID); err != nil {
			return nil, err
		}
		return okPayload{OK: true}, nil

	case MsgSubmitAnswer:
		var req struct {
			PuzzleID string          `json:"puzzleId"`
			Answer   json.RawMessage `json:"answer"`
		}
		if err := decode(msg.Payload, &req); err != nil {
			return nil, err
		}
		return s.sessions.SubmitAnswer(connID, req.PuzzleID, req.Answer)

	case MsgMakeChoice:
		var req struct {
			ChoiceID string `json:"choiceId"`
		}
		if err := decode(msg.Payload, &req); err != nil {
			return nil, err
		}
		next, err := s.sessions.MakeChoice(connID, req.ChoiceID)
		if err != nil {
			return nil, err
		}
		return movedPayload{OK: true, NextNodeID: next}, nil

	case MsgAdvanceNode:
		next, err := s.sessions.AdvanceNode(connID)
		if err != nil {
			return nil, err
		}
		return movedPayload{OK: true, NextNodeID: next}, nil

	case MsgQuitGame:
		if err := s.sessions.QuitGame(connID); err != nil {
			return nil, err
		}
		return okPayload{OK: true}, nil

	default:
		return nil, errUnknownMessage
	}
}
