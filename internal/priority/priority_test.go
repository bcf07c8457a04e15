package priority

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestList_AppendIsIdempotent(t *testing.T) {
	l := New()
	l.Append("shop", "exp-1")
	l.Append("shop", "exp-1")
	l.Append("shop", "exp-2")

	assert.Equal(t, []string{"exp-1", "exp-2"}, l.Snapshot("shop"))
}

func TestList_Remove(t *testing.T) {
	l := New()
	l.Append("shop", "exp-1")
	l.Append("shop", "exp-2")
	l.Remove("shop", "exp-1")

	assert.Equal(t, []string{"exp-2"}, l.Snapshot("shop"))
	assert.False(t, l.Contains("shop", "exp-1"))
}

func TestList_Reorder(t *testing.T) {
	l := New()
	l.Append("shop", "exp-1")
	l.Append("shop", "exp-2")
	l.Reorder("shop", []string{"exp-2", "exp-1"})

	assert.Equal(t, []string{"exp-2", "exp-1"}, l.Snapshot("shop"))
}

func TestList_SeparateApplicationsAreIndependent(t *testing.T) {
	l := New()
	l.Append("shop", "exp-1")
	l.Append("blog", "exp-2")

	assert.Equal(t, []string{"exp-1"}, l.Snapshot("shop"))
	assert.Equal(t, []string{"exp-2"}, l.Snapshot("blog"))
}
