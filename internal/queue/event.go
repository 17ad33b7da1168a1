// Package queue carries domain events from the API to background consumers
// over RabbitMQ or Kafka.
package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published by the services.
const (
	TypeUserRegistered = "user.registered"
	TypeMessageCreated = "message.created"
	TypeProductDeleted = "product.deleted"
)

// Event is the envelope written to the broker. Payload is one of the
// typed payloads below, encoded as JSON.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEvent encodes payload into a fresh event of the given type.
func NewEvent(typ string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Payload:    b,
	}, nil
}

// UserRegistered is published after a successful registration or admin
// bootstrap.
type UserRegistered struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// MessageCreated is published when a contact message is stored.
type MessageCreated struct {
	MessageID       string `json:"message_id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Subject         string `json:"subject"`
	ProductInterest string `json:"product_interest,omitempty"`
	UserID          string `json:"user_id,omitempty"`
}

// ProductDeleted is published after a product is removed. ImagesPending
// lists public ids whose release at the image host failed.
type ProductDeleted struct {
	ProductID     string   `json:"product_id"`
	Name          string   `json:"name"`
	DeletedBy     string   `json:"deleted_by"`
	ImagesPending []string `json:"images_pending,omitempty"`
}
