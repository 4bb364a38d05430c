package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// room
	"room.created": {},
	"room.deleted": {},

	// player
	"player.joined":       {},
	"player.rejoined":     {},
	"player.role":         {},
	"player.disconnected": {},
	"player.quit":         {},

	// game
	"game.started": {},
	"game.won":     {},
	"game.lost":    {},

	// node
	"node.entered":   {},
	"node.completed": {},

	// choice
	"choice.made": {},

	// puzzle
	"puzzle.solved":        {},
	"puzzle.failed":        {},
	"puzzle.exhausted":     {},
	"puzzle.stage_cleared": {},

	// timer
	"timer.started":   {},
	"timer.expired":   {},
	"timer.cancelled": {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

// Validate rejects event names outside the allow-list.
func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
