package models

import "time"

// Notification channels understood by the dispatcher.
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
)

// DispatchRequest is the unit of work placed on the notification queue:
// a rendered message body plus its recipients.
type DispatchRequest struct {
	Channel    string   `json:"channel"`
	Recipients []int    `json:"recipients,omitempty"` // user ids (push)
	Emails     []string `json:"emails,omitempty"`     // addresses (email)
	Title      string   `json:"title"`
	Body       string   `json:"body"`
}

// SentNotification is a delivery outcome kept in the sent-history timeline.
type SentNotification struct {
	Channel   string    `json:"channel"`
	Recipient string    `json:"recipient"`
	Title     string    `json:"title"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}
