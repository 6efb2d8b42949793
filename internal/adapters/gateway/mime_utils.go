package gateway

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/inboxagents/mail-gateway/internal/core"
)

// ParseMessage converts a raw RFC 5322 message into EmailData. Header
// recipients populate To and Cc; envelope recipients absent from both are
// treated as blind copies, which is the only way a Bcc ever reaches us.
func ParseMessage(raw []byte, envelopeSender string, envelopeRcpts []string) (*core.EmailData, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	header := mr.Header

	email := &core.EmailData{
		From:       envelopeSender,
		ReceivedAt: time.Now(),
		Headers:    make(map[string][]string),
	}

	fields := header.Fields()
	for fields.Next() {
		email.Headers[fields.Key()] = append(email.Headers[fields.Key()], fields.Value())
	}

	if subject, err := header.Subject(); err == nil {
		email.Subject = subject
	}
	if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
		email.From = from[0].Address
	}
	if msgID, err := header.MessageID(); err == nil {
		email.MessageID = msgID
	}
	if refs, err := header.MsgIDList("In-Reply-To"); err == nil && len(refs) > 0 {
		email.InReplyTo = refs[0]
	}

	email.To = addressStrings(header, "To")
	email.Cc = addressStrings(header, "Cc")
	email.Bcc = blindCopies(envelopeRcpts, email.To, email.Cc)

	email.Body = extractTextBody(mr)

	return email, nil
}

// addressStrings returns the addresses of one header field, falling back to
// the raw field text when the list does not parse.
func addressStrings(header mail.Header, field string) []string {
	list, err := header.AddressList(field)
	if err != nil {
		if raw := header.Get(field); raw != "" {
			return []string{raw}
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Address)
	}
	return out
}

// blindCopies returns the envelope recipients that appear in neither To nor Cc.
func blindCopies(envelopeRcpts, to, cc []string) []string {
	visible := make(map[string]struct{}, len(to)+len(cc))
	for _, raw := range append(append([]string{}, to...), cc...) {
		if addr, err := core.NormalizeAddress(raw); err == nil {
			visible[addr.String()] = struct{}{}
		}
	}

	var out []string
	for _, raw := range envelopeRcpts {
		addr, err := core.NormalizeAddress(raw)
		if err != nil {
			continue
		}
		if _, ok := visible[addr.String()]; !ok {
			out = append(out, raw)
		}
	}
	return out
}

// extractTextBody returns the first text/plain inline part of the message.
func extractTextBody(mr *mail.Reader) string {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return ""
		}
		if err != nil {
			return ""
		}

		if h, ok := part.Header.(*mail.InlineHeader); ok {
			contentType, _, err := h.ContentType()
			if err != nil || contentType == "" || strings.EqualFold(contentType, "text/plain") {
				body, err := io.ReadAll(part.Body)
				if err != nil {
					return ""
				}
				return string(body)
			}
		}
	}
}
