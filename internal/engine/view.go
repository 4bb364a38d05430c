package engine

import "github.com/AaronLay10/LockStep/internal/scenario"

// StateView is the client copy of the game state.
type StateView struct {
	CurrentNodeID        string             `json:"currentNodeId"`
	Vars                 map[string]float64 `json:"vars"`
	SolvedPuzzles        []string           `json:"solvedPuzzles"`
	FailReason           *string            `json:"failReason"`
	TimeRemainingSeconds *int               `json:"timeRemainingSeconds"`
	PuzzleAttempts       map[string]int     `json:"puzzleAttempts"`
	PuzzleAssignments    map[string]string  `json:"puzzleAssignments"`
	Resources            []ResourceView     `json:"resources,omitempty"`
}

// ResourceView labels a var for display meters.
type ResourceView struct {
	ID                 string  `json:"id"`
	Label              string  `json:"label"`
	ContinuousIncrease float64 `json:"continuousIncrease,omitempty"`
}

// ChoiceView is a choice without its effects.
type ChoiceView struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Text  string `json:"text,omitempty"`
}

// NodeView is the client copy of the current node.
type NodeView struct {
	ID        string              `json:"id"`
	Type      scenario.NodeKind   `json:"type"`
	Location  string              `json:"location,omitempty"`
	Story     scenario.Story      `json:"story"`
	Puzzles   []map[string]any    `json:"puzzles,omitempty"`
	Choices   []ChoiceView        `json:"choices,omitempty"`
	Outcome   scenario.Outcome    `json:"outcome,omitempty"`
	MediaURL  string              `json:"mediaUrl,omitempty"`
	RoleClues []scenario.RoleClue `json:"roleClues,omitempty"`
}

// Projection is everything about a game a client may see.
type Projection struct {
	State StateView `json:"gameState"`
	Node  *NodeView `json:"currentNode"`
}

// ClientState builds a fresh projection. It is the only path from game
// state to the wire: puzzles are rendered through their answer-free
// views and nothing returned aliases engine state.
func (g *Game) ClientState() Projection {
	st := StateView{
		CurrentNodeID:     g.state.CurrentNodeID,
		Vars:              make(map[string]float64, len(g.state.Vars)),
		SolvedPuzzles:     append([]string{}, g.state.SolvedOrder...),
		PuzzleAttempts:    make(map[string]int, len(g.state.Attempts)),
		PuzzleAssignments: g.Assignments(),
	}
	for k, v := range g.state.Vars {
		st.Vars[k] = v
	}
	for k, v := range g.state.Attempts {
		st.PuzzleAttempts[k] = v
	}
	if g.state.FailReason != "" {
		reason := g.state.FailReason
		st.FailReason = &reason
	}
	if g.state.TimeRemaining != nil {
		t := *g.state.TimeRemaining
		st.TimeRemainingSeconds = &t
	}
	for _, r := range g.sc.Globals.Resources {
		st.Resources = append(st.Resources, ResourceView{ID: r.ID, Label: r.Label, ContinuousIncrease: r.ContinuousIncrease})
	}

	return Projection{State: st, Node: nodeView(g.CurrentNode())}
}

func nodeView(n *scenario.Node) *NodeView {
	if n == nil {
		return nil
	}
	v := &NodeView{
		ID:        n.ID,
		Type:      n.Kind,
		Location:  n.Location,
		Story:     n.Story,
		Outcome:   n.Outcome,
		MediaURL:  n.MediaURL,
		RoleClues: append([]scenario.RoleClue(nil), n.RoleClues...),
	}
	for _, p := range n.Puzzles {
		v.Puzzles = append(v.Puzzles, p.View())
	}
	for _, c := range n.Choices {
		v.Choices = append(v.Choices, ChoiceView{ID: c.ID, Label: c.Label, Text: c.Text})
	}
	return v
}
