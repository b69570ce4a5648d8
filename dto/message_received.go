package dto

import "time"

// MessageReceived is emitted once per newly observed message. Delivery is
// at-least-once; consumers deduplicate on accountId + uid.
type MessageReceived struct {
	AccountID string    `json:"accountId"`
	UID       uint32    `json:"uid"`
	ArrivalAt time.Time `json:"arrivalAt"`
	From      []string  `json:"from,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Size      uint32    `json:"size,omitempty"`
	Flags     []string  `json:"flags,omitempty"`
}
