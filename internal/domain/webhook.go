package domain

import "time"

// Webhook subscribes an organizer-controlled endpoint to action
// notifications. Webhooks are never hard-deleted, only disabled.
type Webhook struct {
	ID          string
	OrganizerID string
	Enabled     bool
	TargetURL   string
	// Secret signs delivery payloads (HMAC-SHA256).
	Secret        string
	AllEvents     bool
	LimitEventIDs []string
	ActionTypes   []string
}

// Matches reports whether a notification for the given action and event
// should be delivered to this webhook.
func (w Webhook) Matches(action, eventID string) bool {
	if !w.Enabled {
		return false
	}
	if !w.AllEvents && eventID != "" {
		found := false
		for _, id := range w.LimitEventIDs {
			if id == eventID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(w.ActionTypes) == 0 {
		return true
	}
	for _, t := range w.ActionTypes {
		if t == action {
			return true
		}
	}
	return false
}

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSuccess DeliveryStatus = "success"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// WebhookDelivery is one queued notification for one webhook.
type WebhookDelivery struct {
	ID          string
	WebhookID   string
	Action      string
	Payload     []byte
	Status      DeliveryStatus
	Attempts    int
	NextAttempt time.Time
	LastError   string
	CreatedAt   time.Time
}
