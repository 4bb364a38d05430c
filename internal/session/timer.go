package session

import (
	"github.com/AaronLay10/LockStep/internal/engine"
	"github.com/AaronLay10/LockStep/internal/metrics"
	"github.com/AaronLay10/LockStep/internal/room"
)

// tick runs one timer second for a room. A tick that arrives after the
// game has ended only makes sure the timer is stopped.
func (o *Orchestrator) tick(code string) {
	_ = o.rooms.WithRoom(code, func(r *room.Room) error {
		if r.Phase != room.PhasePlaying || r.Game == nil {
			r.StopTimer()
			return nil
		}

		res := r.Game.Tick()
		ending := o.settle(r)

		secs, _ := r.Game.TimeRemaining()
		if ending != nil || res.ResourcesChanged || secs%o.cfg.BroadcastInterval == 0 {
			o.broadcastRoom(r)
		}
		if ending != nil {
			o.out.Broadcast(r.Code, MsgGameOver, ending)
		}
		return nil
	})
}

// commit finishes a mutating operation: the end of the game is detected,
// the projection goes out and then, once per room, the terminal notice.
func (o *Orchestrator) commit(r *room.Room) {
	ending := o.settle(r)
	o.broadcastRoom(r)
	if ending != nil {
		o.out.Broadcast(r.Code, MsgGameOver, ending)
	}
}

// settle ends a playing room whose game reached an endpoint or a fail
// condition. It returns the ending only the first time, so the terminal
// notice goes out exactly once.
func (o *Orchestrator) settle(r *room.Room) *engine.Ending {
	if r.Phase != room.PhasePlaying || r.Game == nil {
		return nil
	}
	ending, done := r.Game.Outcome()
	if !done {
		return nil
	}

	r.Phase = room.PhaseEnded
	if r.TimerRunning() {
		r.StopTimer()
		emit(r.Code, "timer.cancelled", nil)
	}
	if r.GameOver {
		return nil
	}
	r.GameOver = true

	outcome, event := "lost", "game.lost"
	if ending.Won {
		outcome, event = "won", "game.won"
	}
	metrics.GamesEndedTotal.WithLabelValues(outcome).Inc()
	emit(r.Code, event, map[string]interface{}{"reason": ending.Reason})
	return &ending
}
