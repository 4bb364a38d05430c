// Package engine owns the authoritative rules of a running game: node
// transitions, answer checking, effects, fail conditions, the countdown
// and puzzle assignment. It is the only package that reads answers.
//
// A Game is not safe for concurrent use; callers serialise access with
// the owning room's lock.
package engine

import (
	"github.com/AaronLay10/LockStep/internal/effect"
	"github.com/AaronLay10/LockStep/internal/gameerr"
	"github.com/AaronLay10/LockStep/internal/scenario"
)

// TimeUpReason is recorded when the countdown reaches zero and no fail
// condition supplies a reason.
const TimeUpReason = "You ran out of time."

var (
	ErrPuzzleNotFound  = gameerr.NotFound("Puzzle not found on current node")
	ErrChoiceNotFound  = gameerr.NotFound("Choice not found")
	ErrNotChoiceNode   = gameerr.Precondition("Current node is not a choice node")
	ErrChoiceRequired  = gameerr.Precondition("Make a choice to continue")
	ErrUnsolvedPuzzles = gameerr.Precondition("Not all puzzles solved")
	ErrTerminal        = gameerr.Precondition("No next node (terminal)")
)

// State is the mutable part of a game. Everything else is read from the
// shared scenario.
type State struct {
	CurrentNodeID string
	Vars          map[string]float64
	Solved        map[string]struct{}
	SolvedOrder   []string
	FailReason    string
	TimeRemaining *int
	Attempts      map[string]int
	Assignments   map[string]string
}

// Game pairs a scenario with the state of one play-through.
type Game struct {
	sc        *scenario.Scenario
	state     State
	connected []string

	// Notify receives domain events ("node.entered", "puzzle.solved", ...).
	Notify func(name string, fields map[string]interface{})
}

// New starts a play-through at the scenario's start node. Only the vars
// map and the counters are copied; the scenario stays shared.
func New(sc *scenario.Scenario) *Game {
	vars := make(map[string]float64, len(sc.Globals.Vars))
	for k, v := range sc.Globals.Vars {
		vars[k] = v
	}

	g := &Game{
		sc: sc,
		state: State{
			Vars:        vars,
			Solved:      make(map[string]struct{}),
			Attempts:    make(map[string]int),
			Assignments: make(map[string]string),
		},
	}
	if secs, ok := sc.Timer(); ok {
		g.state.TimeRemaining = &secs
	}
	g.enter(sc.StartNodeID)
	return g
}

// Scenario returns the scenario being played.
func (g *Game) Scenario() *scenario.Scenario {
	return g.sc
}

// CurrentNode returns the node the room is on.
func (g *Game) CurrentNode() *scenario.Node {
	n, _ := g.sc.Node(g.state.CurrentNodeID)
	return n
}

// Var returns the current value of a variable.
func (g *Game) Var(name string) float64 {
	return g.state.Vars[name]
}

// IsSolved reports whether a puzzle is in the solved set.
func (g *Game) IsSolved(puzzleID string) bool {
	_, ok := g.state.Solved[puzzleID]
	return ok
}

// Attempts returns how many scored submissions a puzzle has had.
func (g *Game) Attempts(puzzleID string) int {
	return g.state.Attempts[puzzleID]
}

// FailReason returns the recorded defeat reason, if any.
func (g *Game) FailReason() string {
	return g.state.FailReason
}

// TimeRemaining returns the countdown, if the scenario has one.
func (g *Game) TimeRemaining() (int, bool) {
	if g.state.TimeRemaining == nil {
		return 0, false
	}
	return *g.state.TimeRemaining, true
}

func (g *Game) emit(name string, fields map[string]interface{}) {
	if g.Notify != nil {
		g.Notify(name, fields)
	}
}

// enter moves to nodeID, applies its auto effects, marks decoys solved
// and recomputes assignment.
func (g *Game) enter(nodeID string) {
	g.state.CurrentNodeID = nodeID
	node := g.CurrentNode()
	effect.Apply(g.state.Vars, node.AutoEffects)
	for _, p := range node.Puzzles {
		if p.IsDecoy() {
			g.markSolved(p.ID)
		}
	}
	g.reassign()
	g.emit("node.entered", map[string]interface{}{"node_id": nodeID, "node_type": string(node.Kind)})
}

func (g *Game) markSolved(puzzleID string) {
	if _, ok := g.state.Solved[puzzleID]; ok {
		return
	}
	g.state.Solved[puzzleID] = struct{}{}
	g.state.SolvedOrder = append(g.state.SolvedOrder, puzzleID)
}

// Advance moves past a start or puzzle node. A puzzle node only advances
// once every one of its puzzles is solved.
func (g *Game) Advance() (string, error) {
	node := g.CurrentNode()
	switch node.Kind {
	case scenario.KindEndpoint:
		return "", ErrTerminal
	case scenario.KindChoice:
		return "", ErrChoiceRequired
	case scenario.KindPuzzle:
		for _, p := range node.Puzzles {
			if !g.IsSolved(p.ID) {
				return "", ErrUnsolvedPuzzles
			}
		}
	}
	if node.NextNodeID == "" {
		return "", ErrTerminal
	}
	g.emit("node.completed", map[string]interface{}{"node_id": node.ID})
	g.enter(node.NextNodeID)
	return node.NextNodeID, nil
}

// MakeChoice applies the chosen option's effects and follows it.
func (g *Game) MakeChoice(choiceID string) (string, error) {
	node := g.CurrentNode()
	if node.Kind != scenario.KindChoice {
		return "", ErrNotChoiceNode
	}
	choice, ok := node.Choice(choiceID)
	if !ok {
		return "", ErrChoiceNotFound
	}
	effect.Apply(g.state.Vars, choice.Effects)
	g.emit("choice.made", map[string]interface{}{"node_id": node.ID, "choice_id": choice.ID})
	g.enter(choice.NextNodeID)
	return choice.NextNodeID, nil
}

// CheckFailConditions evaluates the scenario's fail conditions in order
// and records the reason of the first that holds. It never changes the
// room phase.
func (g *Game) CheckFailConditions() bool {
	for _, fc := range g.sc.Globals.FailConditions {
		if g.failHolds(fc) {
			g.state.FailReason = fc.Reason
			return true
		}
	}
	return false
}

func (g *Game) failHolds(fc scenario.FailCondition) bool {
	switch fc.Type {
	case scenario.FailTimerExpired:
		return g.state.TimeRemaining != nil && *g.state.TimeRemaining <= 0
	case scenario.FailLTE, scenario.FailGTE:
		v, ok := g.state.Vars[fc.Var]
		if !ok {
			return false
		}
		if fc.Type == scenario.FailLTE {
			return v <= fc.Value
		}
		return v >= fc.Value
	}
	return false
}

// Ending describes how a game finished.
type Ending struct {
	Won      bool   `json:"won"`
	Reason   string `json:"reason"`
	Title    string `json:"title,omitempty"`
	MediaURL string `json:"mediaUrl,omitempty"`
}

// Outcome reports whether the game has finished: either the current node
// is an endpoint, or a fail condition holds. Endpoints take precedence.
func (g *Game) Outcome() (Ending, bool) {
	if node := g.CurrentNode(); node.IsTerminal() {
		return Ending{
			Won:      node.Outcome == scenario.OutcomeWin,
			Reason:   node.Story.Text,
			Title:    node.Story.Title,
			MediaURL: node.MediaURL,
		}, true
	}
	if g.state.FailReason != "" || g.CheckFailConditions() {
		return Ending{Won: false, Reason: g.state.FailReason}, true
	}
	return Ending{}, false
}
