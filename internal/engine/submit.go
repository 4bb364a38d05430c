package engine

import (
	"fmt"

	"github.com/AaronLay10/LockStep/internal/effect"
	"github.com/AaronLay10/LockStep/internal/puzzle"
)

// SubmitResult is returned for every accepted submission, right or wrong.
// A wrong answer is not an error.
type SubmitResult struct {
	Correct           bool   `json:"correct"`
	Message           string `json:"message"`
	AttemptsRemaining *int   `json:"attemptsRemaining,omitempty"`
	Exhausted         bool   `json:"exhausted,omitempty"`
	// StageCleared marks an intermediate multi-stage step.
	StageCleared bool `json:"-"`
}

// SubmitAnswer checks an answer against a puzzle on the current node.
//
// A solved puzzle answers correct again without scoring. A wrong answer
// pays effectsOnFail every time; once a limited puzzle runs out of
// attempts it is marked solved anyway so the room cannot soft-lock.
// Every submission uses an attempt, including one that clears an
// intermediate multi-stage step without solving the puzzle.
func (g *Game) SubmitAnswer(puzzleID string, ans puzzle.Answer) (SubmitResult, error) {
	node := g.CurrentNode()
	p, ok := node.Puzzle(puzzleID)
	if !ok {
		return SubmitResult{}, ErrPuzzleNotFound
	}
	if g.IsSolved(p.ID) {
		return SubmitResult{Correct: true, Message: "Already solved"}, nil
	}

	g.state.Attempts[p.ID]++
	used := g.state.Attempts[p.ID]

	verdict := p.Check(ans, puzzle.Env{Vars: g.state.Vars})

	if verdict.Outcome == puzzle.StageCleared {
		g.emit("puzzle.stage_cleared", map[string]interface{}{"puzzle_id": p.ID, "stage": verdict.Stage + 1, "attempts": used})
		return SubmitResult{
			Correct:      true,
			Message:      fmt.Sprintf("Stage %d cleared.", verdict.Stage+1),
			StageCleared: true,
		}, nil
	}

	if verdict.Outcome == puzzle.Solved {
		g.markSolved(p.ID)
		effect.Apply(g.state.Vars, p.EffectsOnSuccess)
		g.emit("puzzle.solved", map[string]interface{}{"puzzle_id": p.ID, "attempts": used})
		return SubmitResult{Correct: true, Message: "Correct!"}, nil
	}

	effect.Apply(g.state.Vars, p.EffectsOnFail)

	if p.AttemptsAllowed == 0 {
		g.emit("puzzle.failed", map[string]interface{}{"puzzle_id": p.ID, "attempts": used})
		return SubmitResult{Correct: false, Message: "Wrong answer."}, nil
	}

	remaining := p.AttemptsAllowed - used
	if remaining <= 0 {
		g.markSolved(p.ID)
		g.emit("puzzle.exhausted", map[string]interface{}{"puzzle_id": p.ID, "attempts": used})
		zero := 0
		return SubmitResult{
			Correct:           false,
			Message:           "Out of attempts! Moving on with penalty.",
			AttemptsRemaining: &zero,
			Exhausted:         true,
		}, nil
	}

	g.emit("puzzle.failed", map[string]interface{}{"puzzle_id": p.ID, "attempts": used})
	return SubmitResult{
		Correct:           false,
		Message:           fmt.Sprintf("Wrong answer. %d attempt(s) left.", remaining),
		AttemptsRemaining: &remaining,
	}, nil
}
