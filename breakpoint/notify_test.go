package breakpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObserversOrderAndUnsubscribe(t *testing.T) {
	var o Observers[int]
	assert.False(t, o.Publish(1))

	var order []string
	a := o.Subscribe(func(v int) { order = append(order, "a") })
	o.Subscribe(func(v int) { order = append(order, "b") })
	assert.Equal(t, 2, o.Len())

	assert.True(t, o.Publish(1))
	assert.Equal(t, []string{"a", "b"}, order)

	assert.True(t, o.Unsubscribe(a))
	assert.False(t, o.Unsubscribe(a))
	order = nil
	o.Publish(2)
	assert.Equal(t, []string{"b"}, order)
}

func TestObserversReentrant(t *testing.T) {
	var o Observers[int]
	var sub Subscription
	calls := 0
	sub = o.Subscribe(func(int) {
		calls++
		o.Unsubscribe(sub)
		o.Subscribe(func(int) { calls += 10 })
	})

	assert.True(t, o.Publish(1))
	assert.Equal(t, 1, calls)

	o.Publish(2)
	assert.Equal(t, 11, calls)
}

func TestUpdateKindString(t *testing.T) {
	assert.Equal(t, "new", UpdateAdded.String())
	assert.Equal(t, "changed", UpdateChanged.String())
	assert.Equal(t, "removed", UpdateRemoved.String())
	assert.Equal(t, "hit", UpdateHit.String())
}
