package workers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnqueueBounded(t *testing.T) {
	w := NewResolverWorker(nil, 2, 0)

	assert.True(t, w.Enqueue("a"))
	assert.True(t, w.Enqueue("b"))
	assert.False(t, w.Enqueue("c"), "full queue must refuse, not block")
}
