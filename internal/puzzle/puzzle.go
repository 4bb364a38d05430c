// Package puzzle defines the puzzle kinds a scenario can attach to a
// puzzle node, the comparator for each kind, and the answer-free view
// of a puzzle that may be sent to players.
package puzzle

import (
	"encoding/json"
	"fmt"

	"github.com/AaronLay10/LockStep/internal/effect"
)

// Kind is the authored puzzle type.
type Kind string

const (
	KindChoice            Kind = "choice"
	KindDebugSelect       Kind = "debug_select"
	KindInputCode         Kind = "input_code"
	KindInputNumeric      Kind = "input_numeric"
	KindMultiInput        Kind = "multi_input"
	KindLogicMatch        Kind = "logic_match"
	KindEmbedValidator    Kind = "embed_validator"
	KindCipher            Kind = "cipher"
	KindEmojiCipher       Kind = "emoji_cipher"
	KindASCIICipher       Kind = "ascii_cipher"
	KindBinaryCipher      Kind = "binary_cipher"
	KindQRCode            Kind = "qr_code"
	KindGPSCoordinate     Kind = "gps_coordinate"
	KindLandmarkID        Kind = "landmark_id"
	KindDirectionalRiddle Kind = "directional_riddle"
	KindSpotDifference    Kind = "spot_difference"
	KindHiddenObject      Kind = "hidden_object"
	KindAudioClue         Kind = "audio_clue"
	KindWordPuzzle        Kind = "word_puzzle"
	KindLatexMath         Kind = "latex_math"
	KindNarrativeClue     Kind = "narrative_clue"
	KindFoundDocument     Kind = "found_document"
	KindRedHerring        Kind = "red_herring"
	KindMultiStage        Kind = "multi_stage"
	KindCodeEditor        Kind = "code_editor"
)

// Outcome is the result of checking one submission.
type Outcome int

const (
	Wrong Outcome = iota
	Solved
	// StageCleared means an intermediate stage of a multi-stage puzzle
	// was accepted. The puzzle itself is not solved yet.
	StageCleared
)

// Verdict is what a comparator returns.
type Verdict struct {
	Outcome Outcome
	Stage   int
}

// Env is the live game context a comparator may read.
type Env struct {
	Vars map[string]float64
}

// Validator is the kind-specific half of a puzzle. It holds the only
// copy of the expected answer. Every kind is a distinct type built by
// its entry in decoders, so a kind without a comparator cannot exist.
type Validator interface {
	Check(ans Answer, env Env) Verdict
	// Public returns the answer-free fields this kind contributes to
	// the player view.
	Public() map[string]any
}

// Puzzle is one answerable challenge on a puzzle node.
type Puzzle struct {
	ID               string
	Kind             Kind
	Prompt           string
	Hint             string
	AttemptsAllowed  int
	EffectsOnSuccess []effect.Effect
	EffectsOnFail    []effect.Effect
	Validator        Validator

	// presentation-only keys, already scrubbed of answer fields
	display map[string]any
}

// IsDecoy reports whether the puzzle is a red herring. Decoys are never
// assigned and never block progress.
func (p *Puzzle) IsDecoy() bool {
	return p.Kind == KindRedHerring
}

// Check runs the kind comparator.
func (p *Puzzle) Check(ans Answer, env Env) Verdict {
	return p.Validator.Check(ans, env)
}

type decodeFunc func(id string, raw map[string]json.RawMessage) (Validator, error)

var decoders = map[Kind]decodeFunc{
	KindChoice:            decodeOptions,
	KindDebugSelect:       decodeOptions,
	KindInputCode:         decodeCode,
	KindInputNumeric:      decodeNumeric,
	KindMultiInput:        decodeMultiField,
	KindLogicMatch:        decodeLogicMatch,
	KindEmbedValidator:    decodeEmbed,
	KindCipher:            decodeText,
	KindEmojiCipher:       decodeText,
	KindASCIICipher:       decodeText,
	KindBinaryCipher:      decodeText,
	KindQRCode:            decodeText,
	KindGPSCoordinate:     decodeText,
	KindLandmarkID:        decodeText,
	KindDirectionalRiddle: decodeText,
	KindSpotDifference:    decodeText,
	KindHiddenObject:      decodeText,
	KindAudioClue:         decodeText,
	KindWordPuzzle:        decodeText,
	KindLatexMath:         decodeMath,
	KindNarrativeClue:     decodeText,
	KindFoundDocument:     decodeText,
	KindRedHerring:        decodeDecoy,
	KindMultiStage:        decodeMultiStage,
	KindCodeEditor:        decodeText,
}

// Kinds lists every supported kind.
func Kinds() []Kind {
	out := make([]Kind, 0, len(decoders))
	for k := range decoders {
		out = append(out, k)
	}
	return out
}

// keys consumed by the common header or by validators; never copied
// into the player view.
var reserved = map[string]struct{}{
	"id": {}, "type": {}, "kind": {}, "prompt": {}, "hint": {},
	"attemptsAllowed": {}, "effectsOnSuccess": {}, "effectsOnFail": {},
	"validation": {}, "validator": {}, "options": {}, "answer": {},
}

// answer-bearing keys stripped from presentation data at any depth
var secretKeys = map[string]struct{}{
	"answer": {}, "answers": {}, "expression": {}, "example": {},
	"isCorrect": {}, "target": {}, "tolerance": {},
}

func (p *Puzzle) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("puzzle: %w", err)
	}

	var head struct {
		ID               string          `json:"id"`
		Type             Kind            `json:"type"`
		Kind             Kind            `json:"kind"`
		Prompt           string          `json:"prompt"`
		Hint             string          `json:"hint"`
		AttemptsAllowed  int             `json:"attemptsAllowed"`
		EffectsOnSuccess []effect.Effect `json:"effectsOnSuccess"`
		EffectsOnFail    []effect.Effect `json:"effectsOnFail"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return fmt.Errorf("puzzle: %w", err)
	}
	if head.ID == "" {
		return fmt.Errorf("puzzle: missing id")
	}
	kind := head.Type
	if kind == "" {
		kind = head.Kind
	}
	decode, ok := decoders[kind]
	if !ok {
		return fmt.Errorf("puzzle %s: unknown type %q", head.ID, kind)
	}
	if head.AttemptsAllowed < 0 {
		return fmt.Errorf("puzzle %s: attemptsAllowed must not be negative", head.ID)
	}
	for _, e := range append(append([]effect.Effect{}, head.EffectsOnSuccess...), head.EffectsOnFail...) {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("puzzle %s: %w", head.ID, err)
		}
	}

	v, err := decode(head.ID, raw)
	if err != nil {
		return fmt.Errorf("puzzle %s (%s): %w", head.ID, kind, err)
	}

	display := make(map[string]any)
	for k, r := range raw {
		if _, skip := reserved[k]; skip {
			continue
		}
		var val any
		if err := json.Unmarshal(r, &val); err != nil {
			return fmt.Errorf("puzzle %s: field %s: %w", head.ID, k, err)
		}
		display[k] = scrub(val)
	}

	*p = Puzzle{
		ID:               head.ID,
		Kind:             kind,
		Prompt:           head.Prompt,
		Hint:             head.Hint,
		AttemptsAllowed:  head.AttemptsAllowed,
		EffectsOnSuccess: head.EffectsOnSuccess,
		EffectsOnFail:    head.EffectsOnFail,
		Validator:        v,
		display:          display,
	}
	return nil
}

func scrub(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			if _, secret := secretKeys[k]; secret {
				continue
			}
			out[k] = scrub(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = scrub(inner)
		}
		return out
	default:
		return v
	}
}

// View returns a fresh, answer-free map describing the puzzle for players.
func (p *Puzzle) View() map[string]any {
	out := make(map[string]any, len(p.display)+6)
	for k, v := range p.display {
		out[k] = scrub(v)
	}
	for k, v := range p.Validator.Public() {
		out[k] = v
	}
	out["id"] = p.ID
	out["type"] = string(p.Kind)
	out["prompt"] = p.Prompt
	if p.Hint != "" {
		out["hint"] = p.Hint
	}
	if p.AttemptsAllowed > 0 {
		out["attemptsAllowed"] = p.AttemptsAllowed
	}
	if p.IsDecoy() {
		out["decoy"] = true
	}
	return out
}
