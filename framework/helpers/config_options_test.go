package helpers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type widget struct {
	name  string
	count int
}

func TestApplyOptions(t *testing.T) {
	setName := ConfigOptionFunc[widget](func(w *widget) error {
		w.name = "a"
		return nil
	})
	increment := ConfigOptionFunc[widget](func(w *widget) error {
		w.count++
		return nil
	})
	fail := ConfigOptionFunc[widget](func(*widget) error { return errors.New("sorry") })

	var w widget
	assert.NoError(t, ApplyOptions(&w, setName, increment, increment))
	assert.Equal(t, widget{name: "a", count: 2}, w)

	var w2 widget
	assert.EqualError(t, ApplyOptions(&w2, increment, fail, increment), "sorry")
	assert.Equal(t, 1, w2.count)
}
