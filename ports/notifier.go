package ports

import (
	"time"

	"gocausal/domain/core"
)

// NotificationLevel grades a user-facing notification.
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Notification is a transient message shown to the user of a session.
type Notification struct {
	Level     NotificationLevel `json:"level"`
	Kind      string            `json:"kind"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
}

// Notifier delivers notifications to a session's listeners.
type Notifier interface {
	Notify(sessionID core.SessionID, n Notification)
}

// SceneListener is told when a session's scene changed outside an API
// request, e.g. when a background estimation starts or finishes. Notifiers
// may implement it.
type SceneListener interface {
	SceneChanged(sessionID core.SessionID, scene interface{})
}
