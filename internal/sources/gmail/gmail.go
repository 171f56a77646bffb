// Package gmail lists receipt e-mails from configured senders and downloads
// their PDF attachments. Source ids are Gmail message ids.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/dvloznov/receipt-ledger/internal/logger"
)

const userID = "me"

// ErrNoPDFAttachment is returned by Fetch for a message without a PDF part.
var ErrNoPDFAttachment = errors.New("message has no PDF attachment")

// MailboxSource is a document source over a Gmail mailbox.
type MailboxSource struct {
	svc     *gm.Service
	senders []string
}

// NewMailboxSource creates a source reading messages from the given senders.
func NewMailboxSource(ctx context.Context, ts oauth2.TokenSource, senders []string) (*MailboxSource, error) {
	if len(senders) == 0 {
		return nil, errors.New("NewMailboxSource: no senders configured")
	}
	svc, err := gm.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("NewMailboxSource: create gmail service: %w", err)
	}
	return &MailboxSource{svc: svc, senders: senders}, nil
}

// Query is the Gmail search used for one sender.
func Query(sender string) string {
	return fmt.Sprintf("from:%s has:attachment filename:pdf", sender)
}

// List returns the ids of every matching message, per sender in configured
// order, each id once.
func (s *MailboxSource) List(ctx context.Context) ([]string, error) {
	log := logger.FromContext(ctx)

	seen := make(map[string]bool)
	var ids []string
	for _, sender := range s.senders {
		count := 0
		err := s.svc.Users.Messages.List(userID).Q(Query(sender)).Pages(ctx, func(resp *gm.ListMessagesResponse) error {
			for _, m := range resp.Messages {
				if seen[m.Id] {
					continue
				}
				seen[m.Id] = true
				ids = append(ids, m.Id)
				count++
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("List: messages from %s: %w", sender, err)
		}
		log.Info().Str("sender", sender).Int("messages", count).Msg("Listed receipt e-mails")
	}
	return ids, nil
}

// Fetch downloads the first PDF attachment of a message.
func (s *MailboxSource) Fetch(ctx context.Context, messageID string) ([]byte, error) {
	msg, err := s.svc.Users.Messages.Get(userID, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("Fetch: get message %s: %w", messageID, err)
	}

	part := firstPDFPart(msg.Payload)
	if part == nil || part.Body == nil {
		return nil, fmt.Errorf("Fetch: message %s: %w", messageID, ErrNoPDFAttachment)
	}

	data := part.Body.Data
	if part.Body.AttachmentId != "" {
		att, err := s.svc.Users.Messages.Attachments.Get(userID, messageID, part.Body.AttachmentId).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("Fetch: get attachment of %s: %w", messageID, err)
		}
		data = att.Data
	}

	pdf, err := decodeBody(data)
	if err != nil {
		return nil, fmt.Errorf("Fetch: decode attachment of %s: %w", messageID, err)
	}
	return pdf, nil
}

// firstPDFPart walks the MIME tree depth first and returns the first part
// whose filename ends in .pdf.
func firstPDFPart(part *gm.MessagePart) *gm.MessagePart {
	if part == nil {
		return nil
	}
	if strings.HasSuffix(strings.ToLower(part.Filename), ".pdf") {
		return part
	}
	for _, child := range part.Parts {
		if found := firstPDFPart(child); found != nil {
			return found
		}
	}
	return nil
}

// decodeBody decodes Gmail's URL-safe base64, padded or not.
func decodeBody(data string) ([]byte, error) {
	if data == "" {
		return nil, errors.New("empty attachment body")
	}
	b, err := base64.URLEncoding.DecodeString(data)
	if err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}
