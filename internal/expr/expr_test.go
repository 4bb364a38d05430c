package expr

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	vars := map[string]float64{"oxygen": 80, "power": 3, "alert_level": 2}

	cases := []struct {
		src  string
		want float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"-oxygen + 100", 20},
		{"oxygen / 4 - power", 17},
		{"oxygen % 7", 3},
		{"2 ^ 3 ^ 2", 512},
		{"-2 ^ 2", -4},
		{"max(power, alert_level, 10)", 10},
		{"min(oxygen, power)", 3},
		{"round(oxygen / 3)", 27},
		{"floor(2.7) + ceil(2.1) + abs(-1)", 6},
		{"power * 1000 + alert_level", 3002},
	}

	for _, tc := range cases {
		e, err := Compile(tc.src)
		require.NoError(t, err, tc.src)
		got, err := e.Eval(vars)
		require.NoError(t, err, tc.src)
		assert.InDelta(t, tc.want, got, 1e-9, tc.src)
	}
}

func TestCompileErrors(t *testing.T) {
	bad := []string{
		"",
		"1 +",
		"(1 + 2",
		"1 2",
		"system(1)",
		"oxygen; rm",
		"abs(1, 2)",
		"min()",
		"1..2",
	}
	for _, src := range bad {
		_, err := Compile(src)
		assert.Error(t, err, "expected compile error for %q", src)
	}
}

func TestEvalErrors(t *testing.T) {
	e := MustCompile("oxygen / power")

	_, err := e.Eval(map[string]float64{"oxygen": 1, "power": 0})
	assert.True(t, errors.Is(err, ErrDivideByZero))

	_, err = e.Eval(map[string]float64{"oxygen": 1})
	assert.True(t, errors.Is(err, ErrUnknownVar))
}

func TestVars(t *testing.T) {
	e := MustCompile("max(b, a) + a * c")
	assert.Equal(t, []string{"a", "b", "c"}, e.Vars())
}

func TestPowOverflowIsNotAnError(t *testing.T) {
	v, err := MustCompile("10 ^ 400").Eval(nil)
	require.NoError(t, err)
	assert.True(t, math.IsInf(v, 1))
}
