package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"sendermap/internal/model"
)

// MaxListResults is the most messages one users.messages.list page returns.
const MaxListResults = 500

// Client lists and reads message metadata for one mailbox. It implements
// ingest.Lister and ingest.Getter.
type Client struct {
	svc  *gmailv1.Service
	user string
}

func NewClient(svc *gmailv1.Service) *Client {
	return &Client{svc: svc, user: "me"}
}

// List returns up to max message references matching query. Only the first
// page is read.
func (c *Client) List(ctx context.Context, query string, max int64) ([]model.MessageRef, error) {
	if max <= 0 || max > MaxListResults {
		max = MaxListResults
	}
	resp, err := c.svc.Users.Messages.List(c.user).
		Q(query).
		MaxResults(max).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", classify(err))
	}

	refs := make([]model.MessageRef, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m == nil || m.Id == "" {
			continue
		}
		refs = append(refs, model.MessageRef{ID: m.Id})
	}
	return refs, nil
}

// Get reads the From header of one message. A message without a From header
// yields a record with an empty From.
func (c *Client) Get(ctx context.Context, ref model.MessageRef) (*model.MessageRecord, error) {
	msg, err := c.svc.Users.Messages.Get(c.user, ref.ID).
		Format("metadata").
		MetadataHeaders("From").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", ref.ID, classify(err))
	}

	rec := &model.MessageRecord{Ref: ref}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			if strings.EqualFold(h.Name, "From") {
				rec.From = h.Value
				break
			}
		}
	}
	return rec, nil
}

// classify marks Gmail's rate limiting responses with model.ErrThrottled.
func classify(err error) error {
	if isThrottle(err) {
		return fmt.Errorf("%w: %w", model.ErrThrottled, err)
	}
	return err
}

func isThrottle(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusTooManyRequests {
		return true
	}
	if gerr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}
