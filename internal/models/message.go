package models

import "time"

// MessageEnvelope is the unit emitted downstream for each newly observed
// message: protocol-reported metadata only, never the content. Read-only
// snapshot; the engine keeps no reference after handing it to the sink.
type MessageEnvelope struct {
	AccountID string    `json:"accountId"`
	UID       uint32    `json:"uid"`
	ArrivalAt time.Time `json:"arrivalAt"`
	From      []string  `json:"from"`
	Subject   string    `json:"subject"`
	Size      uint32    `json:"size"`
	Flags     []string  `json:"flags"`
}
