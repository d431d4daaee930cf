package model

import "time"

// PushSubscription is a browser push endpoint registered by a user.
type PushSubscription struct {
	ID        int64
	UserID    int64
	Endpoint  string
	AuthKey   string
	P256dhKey string
	CreatedAt time.Time
}

// Notification delivery statuses.
const (
	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// NotificationDelivery records one attempt chain to push a payload to a subscription.
type NotificationDelivery struct {
	ID             int64
	SubscriptionID int64
	Payload        string
	Status         string
	Attempts       int64
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
