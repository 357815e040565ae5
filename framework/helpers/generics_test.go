package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCopyOf(t *testing.T) {
	s := []string{"a", "b"}
	s1 := CopyOf(s)
	assert.Equal(t, s, s1)
	s[0] = "x"
	assert.Equal(t, "a", s1[0])

	assert.Nil(t, CopyOf([]string(nil)))
}

func TestIfElse(t *testing.T) {
	assert.Equal(t, 3, IfElse(true, 3, 4))
	assert.Equal(t, 4, IfElse(false, 3, 4))
	assert.Equal(t, "a", IfElse(true, "a", "b"))
	assert.Equal(t, "b", IfElse(false, "a", "b"))
}
