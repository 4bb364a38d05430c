package engine

// TickResult reports what one timer second changed.
type TickResult struct {
	// ResourcesChanged is set when a continuous increase or decay moved a var.
	ResourcesChanged bool
	// Expired is set on the tick that brought the countdown to zero.
	Expired bool
}

// NeedsTicker reports whether the game has anything for a per-second
// timer to do.
func (g *Game) NeedsTicker() bool {
	if g.state.TimeRemaining != nil {
		return true
	}
	for _, r := range g.sc.Globals.Resources {
		if r.ContinuousIncrease != 0 {
			return true
		}
	}
	return false
}

// Tick advances the game by one second: the countdown drops by one and
// every resource with a continuous increase moves by that amount. When
// the countdown reaches zero the first matching fail condition supplies
// the reason, falling back to TimeUpReason.
func (g *Game) Tick() TickResult {
	var res TickResult

	for _, r := range g.sc.Globals.Resources {
		if r.ContinuousIncrease == 0 {
			continue
		}
		g.state.Vars[r.ID] += r.ContinuousIncrease
		res.ResourcesChanged = true
	}

	if g.state.TimeRemaining != nil && *g.state.TimeRemaining > 0 {
		*g.state.TimeRemaining--
		if *g.state.TimeRemaining <= 0 {
			*g.state.TimeRemaining = 0
			if !g.CheckFailConditions() || g.state.FailReason == "" {
				g.state.FailReason = TimeUpReason
			}
			res.Expired = true
			g.emit("timer.expired", nil)
		}
	}
	return res
}
