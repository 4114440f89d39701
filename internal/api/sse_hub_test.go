package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocausal/domain/core"
	"gocausal/ports"
)

func receive(t *testing.T, ch <-chan EditorEvent) EditorEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return EditorEvent{}
	}
}

func TestNotifierDeliversToSessionOnly(t *testing.T) {
	hub := NewSSEHub()
	defer hub.Stop()
	notifier := NewSSENotifier(hub)

	id := core.NewSessionID()
	other := core.NewSessionID()
	ch, unsubscribe := hub.Subscribe(id.String())
	defer unsubscribe()
	otherCh, otherUnsub := hub.Subscribe(other.String())
	defer otherUnsub()

	notifier.Notify(id, ports.Notification{Level: ports.LevelError, Kind: "fit", Message: "boom", Timestamp: time.Now()})

	ev := receive(t, ch)
	assert.Equal(t, EventNotification, ev.EventType)
	note, ok := ev.Data.(ports.Notification)
	require.True(t, ok)
	assert.Equal(t, "boom", note.Message)

	select {
	case <-otherCh:
		t.Fatal("other session received the notification")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	hub := NewSSEHub()
	defer hub.Stop()

	_, unsub1 := hub.Subscribe("s")
	_, unsub2 := hub.Subscribe("s")
	assert.Equal(t, 2, hub.GetClientCount("s"))

	unsub1()
	unsub1()
	assert.Equal(t, 1, hub.GetClientCount("s"))
	unsub2()
	assert.Equal(t, 0, hub.GetClientCount("s"))
}

func TestSceneChangedEvent(t *testing.T) {
	hub := NewSSEHub()
	defer hub.Stop()
	notifier := NewSSENotifier(hub)
	id := core.NewSessionID()

	ch, unsubscribe := hub.Subscribe(id.String())
	defer unsubscribe()

	notifier.SceneChanged(id, map[string]int{"nodes": 2})
	ev := receive(t, ch)
	assert.Equal(t, EventScene, ev.EventType)
	assert.False(t, ev.Timestamp.IsZero())
}
