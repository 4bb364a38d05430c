package engine

// AssignPuzzles records the connected players, in roster order, and
// recomputes assignment for the current node. Node transitions reuse the
// last roster given here.
func (g *Game) AssignPuzzles(connected []string) {
	g.connected = append(g.connected[:0], connected...)
	g.reassign()
}

// reassign hands every non-decoy puzzle on the current node to connected
// players round-robin, in declaration order. With one player or none the
// map is cleared and everyone sees everything. Assignment only shapes
// what clients surface; SubmitAnswer accepts answers from anyone.
func (g *Game) reassign() {
	g.state.Assignments = make(map[string]string)
	if len(g.connected) <= 1 {
		return
	}
	i := 0
	for _, p := range g.CurrentNode().Puzzles {
		if p.IsDecoy() {
			continue
		}
		g.state.Assignments[p.ID] = g.connected[i%len(g.connected)]
		i++
	}
}

// Assignments returns a copy of the puzzle-to-player map.
func (g *Game) Assignments() map[string]string {
	out := make(map[string]string, len(g.state.Assignments))
	for k, v := range g.state.Assignments {
		out[k] = v
	}
	return out
}
