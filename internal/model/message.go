package model

import "time"

// MessageStatus tracks admin triage of a contact message.
type MessageStatus string

const (
	StatusNew     MessageStatus = "new"
	StatusRead    MessageStatus = "read"
	StatusReplied MessageStatus = "replied"
	StatusClosed  MessageStatus = "closed"
)

// Valid reports whether s is a known status.
func (s MessageStatus) Valid() bool {
	switch s {
	case StatusNew, StatusRead, StatusReplied, StatusClosed:
		return true
	}
	return false
}

var messageTransitions = map[MessageStatus][]MessageStatus{
	StatusNew:     {StatusRead, StatusClosed},
	StatusRead:    {StatusReplied, StatusClosed},
	StatusReplied: {StatusClosed},
}

// CanTransition reports whether a message may move from one status to
// another. Nothing leaves closed.
func CanTransition(from, to MessageStatus) bool {
	for _, s := range messageTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Interest is the product-interest field of a contact message: any product
// category plus "custom".
type Interest string

const InterestCustom Interest = "custom"

// Valid reports whether i is empty or a known interest.
func (i Interest) Valid() bool {
	return i == "" || i == InterestCustom || Category(i).Valid()
}

// Message is an inbound contact-form submission.
type Message struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Email           string        `json:"email"`
	Phone           string        `json:"phone,omitempty"`
	Company         string        `json:"company,omitempty"`
	Subject         string        `json:"subject"`
	Body            string        `json:"message"`
	ProductInterest Interest      `json:"productInterest,omitempty"`
	Status          MessageStatus `json:"status"`
	UserID          string        `json:"userId,omitempty"`
	ReplyMessage    string        `json:"replyMessage,omitempty"`
	RepliedAt       *time.Time    `json:"repliedAt,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}
