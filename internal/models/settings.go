package models

import "time"

// DefaultAutoSendTime is the policy-frozen wall-clock send time for
// auto-send summary emails. Saving settings always pins this value.
const DefaultAutoSendTime = "20:00"

type EmailSettings struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	AutoSendEnabled bool       `json:"auto_send_enabled"`
	AutoSendTime    string     `json:"auto_send_time"`
	LastSentDate    *time.Time `json:"last_sent_date,omitempty"`
}
