package imap

import (
	"context"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"

	mailerrors "github.com/mailfold/mailfold/internal/errors"
	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/tracing"
)

const fetchBatchBuffer = 50

// FetchSince returns every message in the selected mailbox whose arrival time
// is at or after since. The boundary is inclusive, so a message arriving
// exactly at the watermark may be returned twice across calls; downstream
// consumers deduplicate.
//
// SINCE on the wire is date-granular, so the server result is over-broad; the
// envelope internal date filters it back down client-side.
func (s *Session) FetchSince(ctx context.Context, since time.Time) ([]models.MessageEnvelope, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Session.FetchSince")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, s.account.ID)
	tracing.TagMailbox(span, s.currentMailbox())
	span.SetTag("since", since.Format(time.RFC3339))

	if !s.IsUsable() {
		return nil, mailerrors.ErrSessionNotUsable
	}

	var envelopes []models.MessageEnvelope

	err := s.withConn(func(c *client.Client) error {
		// Honor the caller's deadline at the protocol level too.
		if deadline, ok := ctx.Deadline(); ok {
			c.Timeout = time.Until(deadline)
			defer func() { c.Timeout = 0 }()
		}

		criteria := imap.NewSearchCriteria()
		criteria.Since = since

		uids, err := c.UidSearch(criteria)
		if err != nil {
			return mailerrors.NewFetchError(err)
		}

		span.SetTag("candidates", len(uids))
		if len(uids) == 0 {
			return nil
		}

		seqSet := new(imap.SeqSet)
		seqSet.AddNum(uids...)

		items := []imap.FetchItem{
			imap.FetchEnvelope,
			imap.FetchFlags,
			imap.FetchInternalDate,
			imap.FetchRFC822Size,
			imap.FetchUid,
		}

		messages := make(chan *imap.Message, fetchBatchBuffer)
		done := make(chan error, 1)
		go func() {
			done <- c.UidFetch(seqSet, items, messages)
		}()

		for msg := range messages {
			if msg == nil {
				continue
			}
			if msg.InternalDate.Before(since) {
				continue
			}
			envelopes = append(envelopes, envelopeFromMessage(s.account.ID, msg))
		}

		if err := <-done; err != nil {
			return mailerrors.NewFetchError(err)
		}
		if ctx.Err() != nil {
			return mailerrors.NewFetchError(ctx.Err())
		}

		return nil
	})

	if err != nil {
		tracing.TraceErr(span, err)
		if mailerrors.IsDisconnect(err) {
			s.markUnusable()
		}
		return nil, err
	}

	span.SetTag("fetched", len(envelopes))
	return envelopes, nil
}
