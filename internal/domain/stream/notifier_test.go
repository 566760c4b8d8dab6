package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_BroadcastWakesSubscriber(t *testing.T) {
	n := NewNotifier()
	unsub, wake := n.Subscribe("job-1")
	defer unsub()

	n.Broadcast("job-1")

	select {
	case _, open := <-wake:
		assert.True(t, open)
	default:
		t.Fatal("expected a wakeup signal")
	}
}

func TestNotifier_BroadcastIsScopedToJob(t *testing.T) {
	n := NewNotifier()
	unsub, wake := n.Subscribe("job-1")
	defer unsub()

	n.Broadcast("job-2")

	select {
	case <-wake:
		t.Fatal("unexpected wakeup for another job")
	default:
	}
}

func TestNotifier_SignalsCoalesce(t *testing.T) {
	n := NewNotifier()
	unsub, wake := n.Subscribe("job-1")
	defer unsub()

	// Repeated broadcasts with no reader never block.
	for i := 0; i < 10; i++ {
		n.Broadcast("job-1")
	}

	<-wake
	select {
	case <-wake:
		t.Fatal("signals should coalesce into a single pending wakeup")
	default:
	}
}

func TestNotifier_UnsubscribeClosesChannel(t *testing.T) {
	n := NewNotifier()
	unsub, wake := n.Subscribe("job-1")

	unsub()
	_, open := <-wake
	assert.False(t, open)

	// A second unsubscribe is a no-op.
	unsub()
	n.Broadcast("job-1")
}

func TestNotifier_StopAllClosesEverySubscriber(t *testing.T) {
	n := NewNotifier()
	_, wake1 := n.Subscribe("job-1")
	_, wake2 := n.Subscribe("job-2")

	n.Broadcast("job-1")
	n.StopAll()

	_, open := <-wake1
	require.False(t, open)
	_, open = <-wake2
	require.False(t, open)
}
