package api

import (
	"gocausal/domain/core"
	"gocausal/ports"
)

// SSENotifier adapts the SSEHub to ports.Notifier
type SSENotifier struct {
	sseHub *SSEHub
}

var _ ports.Notifier = (*SSENotifier)(nil)

// NewSSENotifier creates a notifier that streams over hub
func NewSSENotifier(sseHub *SSEHub) *SSENotifier {
	return &SSENotifier{sseHub: sseHub}
}

// Notify pushes a notification to the session's clients
func (n *SSENotifier) Notify(sessionID core.SessionID, note ports.Notification) {
	n.sseHub.Broadcast(EditorEvent{
		SessionID: sessionID.String(),
		EventType: EventNotification,
		Data:      note,
		Timestamp: note.Timestamp,
	})
}

// SceneChanged tells the session's clients to refetch the scene
func (n *SSENotifier) SceneChanged(sessionID core.SessionID, scene interface{}) {
	n.sseHub.Broadcast(EditorEvent{
		SessionID: sessionID.String(),
		EventType: EventScene,
		Data:      scene,
	})
}
