package imap

import (
	"github.com/emersion/go-imap"

	"github.com/mailfold/mailfold/internal/models"
)

// envelopeFromMessage maps a fetched IMAP message to the read-only snapshot
// handed to sinks.
func envelopeFromMessage(accountID string, msg *imap.Message) models.MessageEnvelope {
	envelope := models.MessageEnvelope{
		AccountID: accountID,
		UID:       msg.Uid,
		ArrivalAt: msg.InternalDate,
		Size:      msg.Size,
		Flags:     msg.Flags,
	}

	if msg.Envelope != nil {
		envelope.Subject = msg.Envelope.Subject
		for _, addr := range msg.Envelope.From {
			if addr == nil {
				continue
			}
			envelope.From = append(envelope.From, addr.Address())
		}
	}

	return envelope
}
