package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	MaxEmailLength   = 254
)

type Subscriber struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type SubscribeRequest struct {
	Email string `json:"email" binding:"required,email,max=254"`
}

// SubscribeResult reports the outcome of the intake pipeline. Subscriber is
// nil when the address was already registered.
type SubscribeResult struct {
	Subscriber *Subscriber
	Created    bool
}

type ListQuery struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func DefaultListQuery() ListQuery {
	return ListQuery{Limit: DefaultListLimit, Offset: 0}
}

// NewSubscriber assigns a fresh ID. CreatedAt is filled by the store.
func NewSubscriber(email string) *Subscriber {
	return &Subscriber{
		ID:    uuid.New(),
		Email: email,
	}
}
