package rules

import (
	"testing"

	"github.com/abtest/experiment-core/internal/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompiler_Parse(t *testing.T) {
	c := NewCompiler()

	t.Run("empty expression compiles to an empty rule", func(t *testing.T) {
		r, err := c.Parse("")
		require.NoError(t, err)
		assert.Empty(t, r.clauses)
	})

	t.Run("rejects an empty clause", func(t *testing.T) {
		_, err := c.Parse("country=US && ")
		require.Error(t, err)
		assert.True(t, xerrors.IsRuleParseError(err))
	})

	t.Run("splits on &&", func(t *testing.T) {
		r, err := c.Parse("country=US && plan=pro")
		require.NoError(t, err)
		assert.Equal(t, []string{"country=US", "plan=pro"}, r.clauses)
	})
}

func TestCache_GetSetClear(t *testing.T) {
	c := NewCache()
	compiler := NewCompiler()

	_, ok := c.Get("exp-1")
	assert.False(t, ok)

	rule, err := compiler.Parse("country=US")
	require.NoError(t, err)
	c.Set("exp-1", rule)

	got, ok := c.Get("exp-1")
	require.True(t, ok)
	assert.Equal(t, "country=US", got.Source)

	c.Clear("exp-1")
	_, ok = c.Get("exp-1")
	assert.False(t, ok)
}
