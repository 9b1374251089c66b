package connectors

import (
	"bytes"
	"fmt"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"poflow/internal"
)

// Message is a parsed raw email with its attachments as documents.
type Message struct {
	MessageID   string
	Subject     string
	From        string
	Date        time.Time
	Text        string
	HTML        string
	Attachments []internal.Document
}

func ParseMessage(raw []byte) (Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Message{}, fmt.Errorf("parse message: %w", err)
	}

	msg := Message{
		MessageID: strings.TrimSpace(env.GetHeader("Message-ID")),
		Subject:   env.GetHeader("Subject"),
		From:      env.GetHeader("From"),
		Text:      env.Text,
		HTML:      env.HTML,
	}
	if date := env.GetHeader("Date"); date != "" {
		if t, err := mail.ParseDate(date); err == nil {
			msg.Date = t.UTC()
		}
	}

	parts := append(append([]*enmime.Part(nil), env.Attachments...), env.Inlines...)
	for i, part := range parts {
		name := strings.TrimSpace(part.FileName)
		if name == "" {
			if part.ContentType == "text/plain" || part.ContentType == "text/html" {
				continue
			}
			name = fmt.Sprintf("attachment-%d", i+1)
		}
		msg.Attachments = append(msg.Attachments, internal.Document{
			Name:        name,
			ContentType: strings.ToLower(part.ContentType),
			Data:        part.Content,
		})
	}
	return msg, nil
}

func (m Message) AttachmentNames() []string {
	names := make([]string, 0, len(m.Attachments))
	for _, att := range m.Attachments {
		names = append(names, att.Name)
	}
	return names
}

// PDFs returns the attachments that are PDFs by media type or by name.
// Mail clients often send them as application/octet-stream.
func (m Message) PDFs() []internal.Document {
	var out []internal.Document
	for _, att := range m.Attachments {
		if att.ContentType == internal.MediaTypePDF || strings.EqualFold(filepath.Ext(att.Name), ".pdf") {
			att.ContentType = internal.MediaTypePDF
			out = append(out, att)
		}
	}
	return out
}
