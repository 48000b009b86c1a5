package mailbox

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/joseph-ayodele/purchase-sync/constants"
	"github.com/joseph-ayodele/purchase-sync/internal/entity"
)

// maxBodyBytes bounds how much of a single body part is read.
const maxBodyBytes = 4 << 20

// Parse reads an RFC 5322 message. Bodies from every text/plain and
// text/html part are concatenated; any other part, or a part with a
// filename, counts as an attachment.
func Parse(r io.Reader, id string) (entity.RawEmailMessage, error) {
	msg := entity.RawEmailMessage{ID: id}

	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return msg, fmt.Errorf("read message: %w", err)
	}

	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = strings.TrimSpace(subject)
	} else {
		msg.Subject = strings.TrimSpace(mr.Header.Get("Subject"))
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = entity.Sender{Name: from[0].Name, Address: strings.ToLower(from[0].Address)}
	} else {
		msg.From = entity.Sender{Address: strings.ToLower(strings.Trim(mr.Header.Get("From"), " <>"))}
	}
	if date, err := mr.Header.Date(); err == nil && !date.IsZero() {
		msg.ReceivedAt = date.UTC()
	}

	var html, text strings.Builder
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return msg, fmt.Errorf("read part: %w", err)
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			switch ct {
			case "text/html":
				if err := appendBody(&html, p.Body); err != nil {
					return msg, err
				}
			case "text/plain", "":
				if err := appendBody(&text, p.Body); err != nil {
					return msg, err
				}
			default:
				markAttachment(&msg, "", ct)
			}
		case *mail.AttachmentHeader:
			name, _ := h.Filename()
			ct, _, _ := h.ContentType()
			markAttachment(&msg, name, ct)
		}
	}

	msg.HTMLBody = html.String()
	msg.TextBody = text.String()
	return msg, nil
}

func appendBody(b *strings.Builder, r io.Reader) error {
	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.Write(body)
	return nil
}

// markAttachment keeps the first PDF it sees in preference to other types.
func markAttachment(msg *entity.RawEmailMessage, filename, contentType string) {
	if contentType == "" && filename != "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	kind := constants.AttachmentTypeFor(filepath.Ext(filename), contentType)
	msg.HasAttachment = true
	if msg.AttachmentType == "" || (kind == constants.AttachmentPDF && msg.AttachmentType != constants.AttachmentPDF) {
		msg.AttachmentType = kind
	}
}
