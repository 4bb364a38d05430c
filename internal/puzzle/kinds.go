package puzzle

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/AaronLay10/LockStep/internal/expr"
)

// mathEpsilon is the tolerance for numeric latex_math answers.
const mathEpsilon = 0.001

var errMissingAnswer = errors.New("validation has no answer")

func unmarshalKey(raw map[string]json.RawMessage, key string, v any) (bool, error) {
	r, ok := raw[key]
	if !ok || string(r) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(r, v); err != nil {
		return true, fmt.Errorf("%s: %w", key, err)
	}
	return true, nil
}

// expectedAnswer reads validation.answer, falling back to a top-level
// answer key. Numbers are accepted and kept in literal form.
func expectedAnswer(raw map[string]json.RawMessage) (string, error) {
	var val map[string]json.RawMessage
	if _, err := unmarshalKey(raw, "validation", &val); err != nil {
		return "", err
	}
	if a, ok := val["answer"]; ok {
		if s := rawText(a); s != "" {
			return s, nil
		}
	}
	if a, ok := raw["answer"]; ok {
		if s := rawText(a); s != "" {
			return s, nil
		}
	}
	return "", errMissingAnswer
}

// OptionSelect covers choice and debug_select: the selected option id
// must carry isCorrect.
type OptionSelect struct {
	correct map[string]bool
	options []map[string]any
}

func decodeOptions(_ string, raw map[string]json.RawMessage) (Validator, error) {
	var opts []map[string]json.RawMessage
	found, err := unmarshalKey(raw, "options", &opts)
	if err != nil {
		return nil, err
	}
	if !found || len(opts) == 0 {
		return nil, errors.New("no options")
	}

	o := &OptionSelect{correct: make(map[string]bool, len(opts))}
	anyCorrect := false
	for i, opt := range opts {
		id := rawText(opt["id"])
		if id == "" {
			return nil, fmt.Errorf("option %d has no id", i)
		}
		if _, dup := o.correct[id]; dup {
			return nil, fmt.Errorf("duplicate option id %q", id)
		}
		var isCorrect bool
		if r, ok := opt["isCorrect"]; ok {
			if err := json.Unmarshal(r, &isCorrect); err != nil {
				return nil, fmt.Errorf("option %s: isCorrect: %w", id, err)
			}
		}
		o.correct[id] = isCorrect
		anyCorrect = anyCorrect || isCorrect

		view := make(map[string]any, len(opt))
		for k, r := range opt {
			if _, secret := secretKeys[k]; secret {
				continue
			}
			var v any
			if err := json.Unmarshal(r, &v); err != nil {
				return nil, fmt.Errorf("option %s: %s: %w", id, k, err)
			}
			view[k] = scrub(v)
		}
		o.options = append(o.options, view)
	}
	if !anyCorrect {
		return nil, errors.New("no option is marked correct")
	}
	return o, nil
}

func (o *OptionSelect) Check(ans Answer, _ Env) Verdict {
	if o.correct[ans.Text()] {
		return Verdict{Outcome: Solved}
	}
	return Verdict{Outcome: Wrong}
}

func (o *OptionSelect) Public() map[string]any {
	opts := make([]any, len(o.options))
	for i, opt := range o.options {
		opts[i] = scrub(opt)
	}
	return map[string]any{"options": opts}
}

// CodeMode selects how an input_code answer is derived.
type CodeMode string

const (
	CodeExact     CodeMode = "exact"
	CodeComputed  CodeMode = "computed"
	CodeVarEquals CodeMode = "varEquals"
)

// CodeEntry is input_code: the expected string is fixed, computed from an
// expression over room variables, or read from a variable.
type CodeEntry struct {
	mode    CodeMode
	answer  string
	expr    *expr.Expr
	example string
	varName string
}

func decodeCode(_ string, raw map[string]json.RawMessage) (Validator, error) {
	var val struct {
		Mode       CodeMode        `json:"mode"`
		Answer     json.RawMessage `json:"answer"`
		Expression string          `json:"expression"`
		Example    json.RawMessage `json:"example"`
		Var        string          `json:"var"`
	}
	found, err := unmarshalKey(raw, "validation", &val)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New("missing validation")
	}

	c := &CodeEntry{mode: val.Mode, example: rawText(val.Example)}
	switch val.Mode {
	case "", CodeExact:
		c.mode = CodeExact
		c.answer, err = expectedAnswer(raw)
		if err != nil {
			return nil, err
		}
	case CodeComputed:
		if val.Expression == "" {
			return nil, errors.New("computed mode needs an expression")
		}
		c.expr, err = expr.Compile(val.Expression)
		if err != nil {
			return nil, fmt.Errorf("expression: %w", err)
		}
	case CodeVarEquals:
		if val.Var == "" {
			return nil, errors.New("varEquals mode needs a var")
		}
		c.varName = val.Var
	default:
		return nil, fmt.Errorf("unknown validation mode %q", val.Mode)
	}
	return c, nil
}

func (c *CodeEntry) expected(env Env) (string, bool) {
	switch c.mode {
	case CodeComputed:
		v, err := c.expr.Eval(env.Vars)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return c.example, c.example != ""
		}
		return formatNumber(v), true
	case CodeVarEquals:
		v, ok := env.Vars[c.varName]
		if !ok {
			return "", false
		}
		return formatNumber(v), true
	default:
		return c.answer, true
	}
}

func (c *CodeEntry) Check(ans Answer, env Env) Verdict {
	want, ok := c.expected(env)
	if ok && sameText(ans.Text(), want) {
		return Verdict{Outcome: Solved}
	}
	return Verdict{Outcome: Wrong}
}

func (c *CodeEntry) Public() map[string]any {
	return map[string]any{"validation": map[string]any{"mode": string(c.mode)}}
}

// Numeric is input_numeric: within tolerance of a target, otherwise
// within the declared bounds.
type Numeric struct {
	target    *float64
	tolerance float64
	min, max  *float64
}

type numericFields struct {
	Target    *float64 `json:"target"`
	Tolerance *float64 `json:"tolerance"`
	Min       *float64 `json:"min"`
	Max       *float64 `json:"max"`
}

func decodeNumeric(_ string, raw map[string]json.RawMessage) (Validator, error) {
	var val numericFields
	found, err := unmarshalKey(raw, "validation", &val)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New("missing validation")
	}
	if val.Target == nil && val.Min == nil && val.Max == nil {
		return nil, errors.New("needs a target or bounds")
	}
	n := &Numeric{target: val.Target, min: val.Min, max: val.Max}
	if val.Tolerance != nil {
		if *val.Tolerance < 0 {
			return nil, errors.New("tolerance must not be negative")
		}
		n.tolerance = *val.Tolerance
	}
	return n, nil
}

func (n *Numeric) Check(ans Answer, _ Env) Verdict {
	x, ok := parseNumber(ans.Text())
	if !ok {
		return Verdict{Outcome: Wrong}
	}
	if n.target != nil {
		if math.Abs(x-*n.target) <= n.tolerance {
			return Verdict{Outcome: Solved}
		}
		return Verdict{Outcome: Wrong}
	}
	if n.min != nil && x < *n.min {
		return Verdict{Outcome: Wrong}
	}
	if n.max != nil && x > *n.max {
		return Verdict{Outcome: Wrong}
	}
	return Verdict{Outcome: Solved}
}

func (n *Numeric) Public() map[string]any { return nil }

type field struct {
	ID     string
	Label  string
	Answer string
}

// MultiField is multi_input: every declared field must match,
// case-insensitively.
type MultiField struct {
	fields []field
}

func decodeMultiField(_ string, raw map[string]json.RawMessage) (Validator, error) {
	var val struct {
		Fields []struct {
			ID     string          `json:"id"`
			Label  string          `json:"label"`
			Answer json.RawMessage `json:"answer"`
		} `json:"fields"`
	}
	if _, err := unmarshalKey(raw, "validation", &val); err != nil {
		return nil, err
	}
	if len(val.Fields) == 0 {
		return nil, errors.New("no fields")
	}
	m := &MultiField{}
	for i, f := range val.Fields {
		if f.ID == "" {
			return nil, fmt.Errorf("field %d has no id", i)
		}
		ans := rawText(f.Answer)
		if ans == "" {
			return nil, fmt.Errorf("field %s: %w", f.ID, errMissingAnswer)
		}
		m.fields = append(m.fields, field{ID: f.ID, Label: f.Label, Answer: ans})
	}
	return m, nil
}

func (m *MultiField) Check(ans Answer, _ Env) Verdict {
	for _, f := range m.fields {
		got, _ := ans.Field(f.ID)
		if !sameText(got, f.Answer) {
			return Verdict{Outcome: Wrong}
		}
	}
	return Verdict{Outcome: Solved}
}

func (m *MultiField) Public() map[string]any {
	fields := make([]any, len(m.fields))
	for i, f := range m.fields {
		fields[i] = map[string]any{"id": f.ID, "label": f.Label}
	}
	return map[string]any{"validation": map[string]any{"fields": fields}}
}

// LogicMatch compares the trimmed answer exactly, case included.
type LogicMatch struct {
	answer string
}

func decodeLogicMatch(_ string, raw map[string]json.RawMessage) (Validator, error) {
	a, err := expectedAnswer(raw)
	if err != nil {
		return nil, err
	}
	return &LogicMatch{answer: a}, nil
}

func (l *LogicMatch) Check(ans Answer, _ Env) Verdict {
	if strings.TrimSpace(ans.Text()) == strings.TrimSpace(l.answer) {
		return Verdict{Outcome: Solved}
	}
	return Verdict{Outcome: Wrong}
}

func (l *LogicMatch) Public() map[string]any { return nil }

type embedField struct {
	id, label, unit string
	numericFields
}

// Embed is embed_validator: each measured field must fall within its
// tolerance band and its bounds.
type Embed struct {
	fields []embedField
}

func decodeEmbed(_ string, raw map[string]json.RawMessage) (Validator, error) {
	var val struct {
		Fields []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
			Unit  string `json:"unit"`
			numericFields
		} `json:"fields"`
	}
	if _, err := unmarshalKey(raw, "validator", &val); err != nil {
		return nil, err
	}
	if len(val.Fields) == 0 {
		return nil, errors.New("validator has no fields")
	}
	e := &Embed{}
	for i, f := range val.Fields {
		if f.ID == "" {
			return nil, fmt.Errorf("validator field %d has no id", i)
		}
		e.fields = append(e.fields, embedField{id: f.ID, label: f.Label, unit: f.Unit, numericFields: f.numericFields})
	}
	return e, nil
}

func (e *Embed) Check(ans Answer, _ Env) Verdict {
	for _, f := range e.fields {
		s, _ := ans.Field(f.id)
		x, ok := parseNumber(s)
		if !ok {
			return Verdict{Outcome: Wrong}
		}
		if f.Target != nil && f.Tolerance != nil && math.Abs(x-*f.Target) > *f.Tolerance {
			return Verdict{Outcome: Wrong}
		}
		if f.Max != nil && x > *f.Max {
			return Verdict{Outcome: Wrong}
		}
		if f.Min != nil && x < *f.Min {
			return Verdict{Outcome: Wrong}
		}
	}
	return Verdict{Outcome: Solved}
}

func (e *Embed) Public() map[string]any {
	fields := make([]any, len(e.fields))
	for i, f := range e.fields {
		m := map[string]any{"id": f.id}
		if f.label != "" {
			m["label"] = f.label
		}
		if f.unit != "" {
			m["unit"] = f.unit
		}
		if f.Min != nil {
			m["min"] = *f.Min
		}
		if f.Max != nil {
			m["max"] = *f.Max
		}
		fields[i] = m
	}
	return map[string]any{"validator": map[string]any{"fields": fields}}
}

// Text is the free-text family: ciphers, locations, perception, word,
// narrative and code kinds. Trimmed, case-insensitive equality.
type Text struct {
	answer string
}

func decodeText(_ string, raw map[string]json.RawMessage) (Validator, error) {
	a, err := expectedAnswer(raw)
	if err != nil {
		return nil, err
	}
	return &Text{answer: a}, nil
}

func (t *Text) Check(ans Answer, _ Env) Verdict {
	if sameText(ans.Text(), t.answer) {
		return Verdict{Outcome: Solved}
	}
	return Verdict{Outcome: Wrong}
}

func (t *Text) Public() map[string]any { return nil }

// Math is latex_math: numeric comparison within mathEpsilon when both
// sides parse, exact text otherwise.
type Math struct {
	answer string
}

func decodeMath(_ string, raw map[string]json.RawMessage) (Validator, error) {
	a, err := expectedAnswer(raw)
	if err != nil {
		return nil, err
	}
	return &Math{answer: a}, nil
}

func (m *Math) Check(ans Answer, _ Env) Verdict {
	got := ans.Text()
	want, wantNum := parseNumber(m.answer)
	x, gotNum := parseNumber(got)
	if wantNum && gotNum {
		if math.Abs(x-want) <= mathEpsilon {
			return Verdict{Outcome: Solved}
		}
		return Verdict{Outcome: Wrong}
	}
	if sameText(got, m.answer) {
		return Verdict{Outcome: Solved}
	}
	return Verdict{Outcome: Wrong}
}

func (m *Math) Public() map[string]any { return nil }

// Decoy is red_herring. Always correct.
type Decoy struct{}

func decodeDecoy(string, map[string]json.RawMessage) (Validator, error) {
	return Decoy{}, nil
}

func (Decoy) Check(Answer, Env) Verdict { return Verdict{Outcome: Solved} }
func (Decoy) Public() map[string]any     { return nil }

// MultiStage is a chain of stages answered in order. Intermediate stages
// take their own answer when one is set, or any non-empty value; the last
// stage needs the puzzle answer.
type MultiStage struct {
	stages []string
	final  string
}

func decodeMultiStage(_ string, raw map[string]json.RawMessage) (Validator, error) {
	var val struct {
		Answer json.RawMessage `json:"answer"`
		Stages []struct {
			Answer json.RawMessage `json:"answer"`
		} `json:"stages"`
	}
	if _, err := unmarshalKey(raw, "validation", &val); err != nil {
		return nil, err
	}
	var shown []json.RawMessage
	if _, err := unmarshalKey(raw, "stages", &shown); err != nil {
		return nil, err
	}

	n := max(len(val.Stages), len(shown))
	if n == 0 {
		return nil, errors.New("no stages")
	}
	m := &MultiStage{stages: make([]string, n)}
	for i, s := range val.Stages {
		m.stages[i] = rawText(s.Answer)
	}
	m.final = rawText(val.Answer)
	if m.final == "" {
		m.final = m.stages[n-1]
	}
	if m.final == "" {
		return nil, fmt.Errorf("final stage: %w", errMissingAnswer)
	}
	return m, nil
}

func (m *MultiStage) Check(ans Answer, _ Env) Verdict {
	stage, value, ok := ans.Stage()
	if !ok || stage < 0 || stage >= len(m.stages) {
		return Verdict{Outcome: Wrong}
	}
	if stage == len(m.stages)-1 {
		if sameText(value, m.final) {
			return Verdict{Outcome: Solved, Stage: stage}
		}
		return Verdict{Outcome: Wrong, Stage: stage}
	}
	want := m.stages[stage]
	if (want != "" && sameText(value, want)) || (want == "" && strings.TrimSpace(value) != "") {
		return Verdict{Outcome: StageCleared, Stage: stage}
	}
	return Verdict{Outcome: Wrong, Stage: stage}
}

func (m *MultiStage) Public() map[string]any {
	return map[string]any{"stageCount": len(m.stages)}
}
