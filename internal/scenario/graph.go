package scenario

import (
	"fmt"

	"github.com/AaronLay10/LockStep/internal/effect"
	"github.com/AaronLay10/LockStep/internal/puzzle"
)

// NodeKind is the node type as authored.
// Allowed: start_node, puzzle_node, choice_node, endpoint_node, and the
// legacy win_node / fail_node which load as endpoints.
type NodeKind string

const (
	KindStart    NodeKind = "start_node"
	KindPuzzle   NodeKind = "puzzle_node"
	KindChoice   NodeKind = "choice_node"
	KindEndpoint NodeKind = "endpoint_node"

	kindLegacyWin  NodeKind = "win_node"
	kindLegacyFail NodeKind = "fail_node"
)

// Outcome is the result an endpoint declares.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeFail Outcome = "fail"
)

// Scenario is the authored graph plus its global rules. It is immutable
// once loaded and shared by every room playing it.
type Scenario struct {
	ID          string  `json:"scenarioId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	StartNodeID string  `json:"startNodeId"`
	Globals     Globals `json:"globals"`
	Nodes       []*Node `json:"nodes"`
	Roles       []Role  `json:"roles,omitempty"`

	index map[string]*Node
}

// Globals holds the starting resources and the rules that end a game.
type Globals struct {
	Vars           map[string]float64 `json:"vars"`
	FailConditions []FailCondition    `json:"failConditions"`
	TimerSeconds   *int               `json:"timerSeconds"`
	Resources      []Resource         `json:"resourceMetadata"`
}

// Resource describes one variable for display and continuous change.
// ContinuousIncrease is applied once per timer second; negative decays.
type Resource struct {
	ID                 string  `json:"id"`
	Label              string  `json:"label"`
	InitialValue       float64 `json:"initialValue"`
	ContinuousIncrease float64 `json:"continuousIncrease"`
}

// FailType selects the predicate of a FailCondition.
type FailType string

const (
	FailLTE          FailType = "lte"
	FailGTE          FailType = "gte"
	FailTimerExpired FailType = "timerExpired"
)

// FailCondition ends the game in defeat when it holds.
type FailCondition struct {
	Type   FailType `json:"type"`
	Var    string   `json:"var,omitempty"`
	Value  float64  `json:"value,omitempty"`
	Reason string   `json:"reason"`
}

// Role is a player role a room can hand out.
type Role struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Tagline string `json:"tagline,omitempty"`
}

// DefaultRoles is used when a scenario document declares none.
var DefaultRoles = []Role{
	{ID: "builder", Name: "Builder", Tagline: "Fixes systems and restores function."},
	{ID: "pathfinder", Name: "Pathfinder", Tagline: "Navigates routes and commits team choices."},
	{ID: "decoder", Name: "Decoder", Tagline: "Interprets clues, patterns, and logs."},
}

// Story is the narrative shown on a node.
type Story struct {
	Title         string `json:"title"`
	Text          string `json:"text"`
	NarrationText string `json:"narrationText,omitempty"`
}

// Choice is one branch of a choice node.
type Choice struct {
	ID         string          `json:"id"`
	Label      string          `json:"label,omitempty"`
	Text       string          `json:"text,omitempty"`
	NextNodeID string          `json:"nextNodeId"`
	Effects    []effect.Effect `json:"effects,omitempty"`
}

// RoleClue is extra text only the holder of a role is meant to read.
type RoleClue struct {
	RoleID string `json:"roleId"`
	Text   string `json:"text"`
}

// Node is one step of the graph.
type Node struct {
	ID          string           `json:"id"`
	Kind        NodeKind         `json:"type"`
	Location    string           `json:"location,omitempty"`
	Story       Story            `json:"story"`
	NextNodeID  string           `json:"nextNodeId,omitempty"`
	AutoEffects []effect.Effect  `json:"autoEffects,omitempty"`
	Puzzles     []*puzzle.Puzzle `json:"puzzles,omitempty"`
	Choices     []Choice         `json:"choices,omitempty"`
	Outcome     Outcome          `json:"outcome,omitempty"`
	MediaURL    string           `json:"mediaUrl,omitempty"`
	RoleClues   []RoleClue       `json:"roleClues,omitempty"`
}

// IsTerminal reports whether the node is an endpoint.
func (n *Node) IsTerminal() bool {
	return n.Kind == KindEndpoint
}

// Puzzle finds a puzzle on this node.
func (n *Node) Puzzle(id string) (*puzzle.Puzzle, bool) {
	for _, p := range n.Puzzles {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Choice finds a choice on this node.
func (n *Node) Choice(id string) (*Choice, bool) {
	for i := range n.Choices {
		if n.Choices[i].ID == id {
			return &n.Choices[i], true
		}
	}
	return nil, false
}

// Node looks a node up by id.
func (s *Scenario) Node(id string) (*Node, bool) {
	n, ok := s.index[id]
	return n, ok
}

// Timer returns the configured countdown, if any.
func (s *Scenario) Timer() (int, bool) {
	if s.Globals.TimerSeconds == nil || *s.Globals.TimerSeconds <= 0 {
		return 0, false
	}
	return *s.Globals.TimerSeconds, true
}

// RoleSet returns the roles players may pick in a room using s.
func (s *Scenario) RoleSet() []Role {
	if len(s.Roles) == 0 {
		return DefaultRoles
	}
	return s.Roles
}

// Summary is the catalog entry for a scenario.
type Summary struct {
	ScenarioID  string `json:"scenarioId"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Scenario) Summary() Summary {
	return Summary{ScenarioID: s.ID, Title: s.Title, Description: s.Description}
}

// prepare normalises legacy kinds, builds the node index and validates
// references. After it succeeds the scenario is never written again.
func (s *Scenario) prepare() error {
	if s.ID == "" {
		return fmt.Errorf("scenario has no scenarioId")
	}
	if len(s.Nodes) == 0 {
		return fmt.Errorf("scenario %s has no nodes", s.ID)
	}
	if s.Globals.Vars == nil {
		s.Globals.Vars = make(map[string]float64)
	}
	for _, r := range s.Globals.Resources {
		if r.ID == "" {
			return fmt.Errorf("scenario %s: resource without id", s.ID)
		}
		if _, ok := s.Globals.Vars[r.ID]; !ok {
			s.Globals.Vars[r.ID] = r.InitialValue
		}
	}

	s.index = make(map[string]*Node, len(s.Nodes))
	puzzleIDs := make(map[string]string)
	for i, n := range s.Nodes {
		if n == nil || n.ID == "" {
			return fmt.Errorf("scenario %s: node %d has no id", s.ID, i)
		}
		if _, dup := s.index[n.ID]; dup {
			return fmt.Errorf("scenario %s: duplicate node id %q", s.ID, n.ID)
		}
		s.index[n.ID] = n

		switch n.Kind {
		case kindLegacyWin:
			n.Kind, n.Outcome = KindEndpoint, OutcomeWin
		case kindLegacyFail:
			n.Kind, n.Outcome = KindEndpoint, OutcomeFail
		case KindEndpoint:
			if n.Outcome == "" {
				n.Outcome = OutcomeWin
			}
			if n.Outcome != OutcomeWin && n.Outcome != OutcomeFail {
				return fmt.Errorf("node %s: unknown outcome %q", n.ID, n.Outcome)
			}
		case KindStart, KindPuzzle, KindChoice:
		default:
			return fmt.Errorf("node %s: unknown type %q", n.ID, n.Kind)
		}

		for j, p := range n.Puzzles {
			if p == nil {
				return fmt.Errorf("node %s: puzzle %d is null", n.ID, j)
			}
			if other, dup := puzzleIDs[p.ID]; dup {
				return fmt.Errorf("node %s: puzzle id %q already used on node %s", n.ID, p.ID, other)
			}
			puzzleIDs[p.ID] = n.ID
		}
		if n.Kind == KindChoice && len(n.Choices) == 0 {
			return fmt.Errorf("node %s: choice node without choices", n.ID)
		}
		for _, e := range n.AutoEffects {
			if err := e.Validate(); err != nil {
				return fmt.Errorf("node %s: %w", n.ID, err)
			}
		}
		seen := make(map[string]struct{}, len(n.Choices))
		for _, c := range n.Choices {
			if c.ID == "" {
				return fmt.Errorf("node %s: choice without id", n.ID)
			}
			if _, dup := seen[c.ID]; dup {
				return fmt.Errorf("node %s: duplicate choice id %q", n.ID, c.ID)
			}
			seen[c.ID] = struct{}{}
			for _, e := range c.Effects {
				if err := e.Validate(); err != nil {
					return fmt.Errorf("node %s choice %s: %w", n.ID, c.ID, err)
				}
			}
		}
	}

	if _, ok := s.index[s.StartNodeID]; !ok {
		return fmt.Errorf("scenario %s: start node %q not found", s.ID, s.StartNodeID)
	}
	for _, n := range s.Nodes {
		if n.NextNodeID != "" {
			if _, ok := s.index[n.NextNodeID]; !ok {
				return fmt.Errorf("node %s: next node %q not found", n.ID, n.NextNodeID)
			}
		}
		for _, c := range n.Choices {
			if _, ok := s.index[c.NextNodeID]; !ok {
				return fmt.Errorf("node %s choice %s: next node %q not found", n.ID, c.ID, c.NextNodeID)
			}
		}
	}

	for i, fc := range s.Globals.FailConditions {
		switch fc.Type {
		case FailLTE, FailGTE:
			if fc.Var == "" {
				return fmt.Errorf("fail condition %d: %s needs a var", i, fc.Type)
			}
		case FailTimerExpired:
		default:
			return fmt.Errorf("fail condition %d: unknown type %q", i, fc.Type)
		}
	}
	return nil
}
