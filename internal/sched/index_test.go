package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityIndexOrder(t *testing.T) {
	p := newPriorityIndex(8)
	p.insert(3, 0)
	p.insert(0, 4)
	p.insert(3, 2)
	p.insert(1, 1)
	assert.Equal(t, []TaskID{4, 1, 0, 2}, p.order())

	p.remove(3, 0)
	p.remove(7, 5) // not present
	assert.Equal(t, []TaskID{4, 1, 2}, p.order())
}
