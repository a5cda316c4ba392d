package celengine

import (
	"testing"

	"github.com/google/cel-go/cel"
	"github.com/stretchr/testify/require"
)

func TestEngine_CompileAndEvaluate(t *testing.T) {
	e, err := New(cel.Variable("points", cel.IntType), cel.Variable("tier", cel.StringType))
	require.NoError(t, err)

	prg, err := e.Compile(`points >= 10 && tier == "Gold"`)
	require.NoError(t, err)

	again, err := e.Compile(`points >= 10 && tier == "Gold"`)
	require.NoError(t, err)
	require.Equal(t, prg, again)

	ok, err := Evaluate(prg, map[string]any{"points": int64(12), "tier": "Gold"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Evaluate(prg, map[string]any{"points": int64(3), "tier": "Gold"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEngine_Rejects(t *testing.T) {
	e, err := New(cel.Variable("points", cel.IntType))
	require.NoError(t, err)

	for _, expr := range []string{`points +`, `points + 1`, `missing > 1`} {
		_, err := e.Compile(expr)
		require.Error(t, err, expr)
	}
	require.Zero(t, e.programs.Len())
}

func TestEngine_ProgramCacheIsBounded(t *testing.T) {
	e, err := NewWithCapacity(2, cel.Variable("points", cel.IntType))
	require.NoError(t, err)

	for _, expr := range []string{`points > 1`, `points > 2`, `points > 3`} {
		_, err := e.Compile(expr)
		require.NoError(t, err)
	}
	require.Equal(t, 2, e.programs.Len())
	require.False(t, e.programs.Contains(`points > 1`))
	require.True(t, e.programs.Contains(`points > 3`))

	_, err = NewWithCapacity(0)
	require.Error(t, err)
}

func TestEvaluate_MissingAttribute(t *testing.T) {
	e, err := New(cel.Variable("points", cel.IntType))
	require.NoError(t, err)

	prg, err := e.Compile(`points > 1`)
	require.NoError(t, err)

	_, err = Evaluate(prg, map[string]any{})
	require.Error(t, err)
}
