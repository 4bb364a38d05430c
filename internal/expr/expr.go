// Package expr evaluates the arithmetic expressions scenario authors use
// for computed answers.
//
// Grammar:
//
//	expr    := term (('+' | '-') term)*
//	term    := unary (('*' | '/' | '%') unary)*
//	unary   := '-' unary | power
//	power   := primary ('^' unary)?
//	primary := number | ident | ident '(' expr (',' expr)* ')' | '(' expr ')'
//
// Identifiers name room variables. The only callable names are min, max,
// abs, floor, ceil and round. Nothing else is reachable from an expression.
package expr

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrDivideByZero = errors.New("division by zero")
	ErrUnknownVar   = errors.New("unknown variable")
)

// Expr is a compiled expression. It is immutable and safe to share.
type Expr struct {
	src  string
	root node
}

// Compile parses src. A malformed expression is reported here so that
// scenarios fail at load time rather than mid-game.
func Compile(src string) (*Expr, error) {
	p := &parser{src: src}
	if err := p.lex(); err != nil {
		return nil, err
	}
	if len(p.toks) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		t := p.toks[p.pos]
		return nil, fmt.Errorf("unexpected %q at offset %d", t.text, t.off)
	}
	return &Expr{src: src, root: root}, nil
}

// MustCompile is like Compile but panics on error. Used for fixtures.
func MustCompile(src string) *Expr {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Expr) String() string { return e.src }

// Eval evaluates the expression against vars.
func (e *Expr) Eval(vars map[string]float64) (float64, error) {
	return e.root.eval(vars)
}

// Vars lists the distinct variable names referenced, sorted.
func (e *Expr) Vars() []string {
	seen := map[string]struct{}{}
	e.root.collect(seen)
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type node interface {
	eval(vars map[string]float64) (float64, error)
	collect(seen map[string]struct{})
}

type numNode float64

func (n numNode) eval(map[string]float64) (float64, error) { return float64(n), nil }
func (n numNode) collect(map[string]struct{})               {}

type varNode string

func (n varNode) eval(vars map[string]float64) (float64, error) {
	v, ok := vars[string(n)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownVar, string(n))
	}
	return v, nil
}

func (n varNode) collect(seen map[string]struct{}) { seen[string(n)] = struct{}{} }

type negNode struct{ x node }

func (n negNode) eval(vars map[string]float64) (float64, error) {
	v, err := n.x.eval(vars)
	return -v, err
}

func (n negNode) collect(seen map[string]struct{}) { n.x.collect(seen) }

type binNode struct {
	op   byte
	l, r node
}

func (n binNode) eval(vars map[string]float64) (float64, error) {
	l, err := n.l.eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := n.r.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, ErrDivideByZero
		}
		return l / r, nil
	case '%':
		if r == 0 {
			return 0, ErrDivideByZero
		}
		return math.Mod(l, r), nil
	case '^':
		return math.Pow(l, r), nil
	}
	return 0, fmt.Errorf("unknown operator %q", n.op)
}

func (n binNode) collect(seen map[string]struct{}) {
	n.l.collect(seen)
	n.r.collect(seen)
}

type callNode struct {
	name string
	args []node
}

type function struct {
	minArgs, maxArgs int
	fn               func(args []float64) float64
}

var functions = map[string]function{
	"abs":   {1, 1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"floor": {1, 1, func(a []float64) float64 { return math.Floor(a[0]) }},
	"ceil":  {1, 1, func(a []float64) float64 { return math.Ceil(a[0]) }},
	"round": {1, 1, func(a []float64) float64 { return math.Round(a[0]) }},
	"min": {1, -1, func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m
	}},
	"max": {1, -1, func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m
	}},
}

func (n callNode) eval(vars map[string]float64) (float64, error) {
	args := make([]float64, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(vars)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	return functions[n.name].fn(args), nil
}

func (n callNode) collect(seen map[string]struct{}) {
	for _, a := range n.args {
		a.collect(seen)
	}
}

type tokKind int

const (
	tokNum tokKind = iota
	tokIdent
	tokOp
)

type token struct {
	kind tokKind
	text string
	num  float64
	off  int
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) lex() error {
	s := p.src
	for i := 0; i < len(s); {
		c := rune(s[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case unicode.IsDigit(c) || c == '.':
			start := i
			for i < len(s) && (unicode.IsDigit(rune(s[i])) || s[i] == '.') {
				i++
			}
			v, err := strconv.ParseFloat(s[start:i], 64)
			if err != nil {
				return fmt.Errorf("bad number %q at offset %d", s[start:i], start)
			}
			p.toks = append(p.toks, token{kind: tokNum, text: s[start:i], num: v, off: start})
		case unicode.IsLetter(c) || c == '_':
			start := i
			for i < len(s) && (unicode.IsLetter(rune(s[i])) || unicode.IsDigit(rune(s[i])) || s[i] == '_') {
				i++
			}
			p.toks = append(p.toks, token{kind: tokIdent, text: s[start:i], off: start})
		case strings.ContainsRune("+-*/%^(),", c):
			p.toks = append(p.toks, token{kind: tokOp, text: string(c), off: i})
			i++
		default:
			return fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return nil
}

func (p *parser) peekOp(ops string) (byte, bool) {
	if p.pos >= len(p.toks) {
		return 0, false
	}
	t := p.toks[p.pos]
	if t.kind != tokOp || !strings.Contains(ops, t.text) {
		return 0, false
	}
	return t.text[0], true
}

func (p *parser) expect(op string) error {
	if p.pos >= len(p.toks) {
		return fmt.Errorf("expected %q at end of expression", op)
	}
	t := p.toks[p.pos]
	if t.kind != tokOp || t.text != op {
		return fmt.Errorf("expected %q at offset %d, found %q", op, t.off, t.text)
	}
	p.pos++
	return nil
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.peekOp("+-")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binNode{op: op, l: left, r: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.peekOp("*/%")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binNode{op: op, l: left, r: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if _, ok := p.peekOp("-"); ok {
		p.pos++
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negNode{x: x}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if _, ok := p.peekOp("^"); ok {
		p.pos++
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return binNode{op: '^', l: base, r: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (node, error) {
	if p.pos >= len(p.toks) {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	t := p.toks[p.pos]
	p.pos++

	switch t.kind {
	case tokNum:
		return numNode(t.num), nil
	case tokIdent:
		if _, ok := p.peekOp("("); !ok {
			return varNode(t.text), nil
		}
		fn, ok := functions[t.text]
		if !ok {
			return nil, fmt.Errorf("unknown function %q at offset %d", t.text, t.off)
		}
		p.pos++
		var args []node
		for {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if _, ok := p.peekOp(","); ok {
				p.pos++
				continue
			}
			break
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
			return nil, fmt.Errorf("%s: wrong number of arguments (%d)", t.text, len(args))
		}
		return callNode{name: t.text, args: args}, nil
	case tokOp:
		if t.text == "(" {
			inner, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return inner, nil
		}
	}
	return nil, fmt.Errorf("unexpected %q at offset %d", t.text, t.off)
}
