package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	s := New[int]()
	assert.True(t, s.Empty())
	assert.Equal(t, 0, s.Len())
}

func TestNewWithValues(t *testing.T) {
	s := NewWithValues(1, 3)
	assert.True(t, s.Contains(1))
	assert.False(t, s.Contains(2))
	assert.True(t, s.Contains(3))
}

func TestAdd(t *testing.T) {
	s := NewWithValues(1)
	assert.False(t, s.Contains(2))
	s.Add(2)
	assert.True(t, s.Contains(2))
	s.Add(2) // Adding an already-present element
	assert.True(t, s.Contains(2))
	// should not contain duplicate value of `2`
	assert.ElementsMatch(t, []int{1, 2}, s.Values())
	// Unrelated elements are unaffected
	assert.True(t, s.Contains(1))
	assert.False(t, s.Contains(3))
}

func TestDelete(t *testing.T) {
	s := NewWithValues(1, 2)
	assert.True(t, s.Contains(2))
	s.Delete(2)
	assert.False(t, s.Contains(2))
	s.Delete(2) // Deleting a missing element
	assert.False(t, s.Contains(2))
	// Unrelated elements are unaffected
	assert.True(t, s.Contains(1))
}

func TestContains(t *testing.T) {
	s := NewWithValues(1, 2)
	assert.True(t, s.Contains(1))
	assert.True(t, s.Contains(2))
	assert.False(t, s.Contains(3))
}

func TestEmpty(t *testing.T) {
	s := New[int]()
	assert.True(t, s.Empty())
	s.Add(1)
	assert.False(t, s.Empty())
	s.Delete(1)
	assert.True(t, s.Empty())
}

func TestValues(t *testing.T) {
	s := New[string]()
	assert.Empty(t, s.Values())
	s.Add("a")
	s.Add("b")
	// ignore duplicate
	s.Add("b")
	assert.ElementsMatch(t, []string{"a", "b"}, s.Values())
	assert.Equal(t, 2, s.Len())
}
