package entities

import "github.com/google/uuid"

// NotificationType classifies deposit lifecycle notifications
type NotificationType string

const (
	NotificationDepositDetected  NotificationType = "deposit_detected"
	NotificationDepositConfirmed NotificationType = "deposit_confirmed"
	NotificationDepositFailed    NotificationType = "deposit_failed"
)

// Notification is a user-facing message delivered best-effort through
// the notification collaborator. Delivery failure never fails the flow
// that produced it.
type Notification struct {
	UserID  uuid.UUID              `json:"user_id"`
	Type    NotificationType       `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
