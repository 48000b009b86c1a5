package entity

import (
	"strings"
	"time"
)

// Sender is the parsed From header of an email.
type Sender struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// Domain returns the lower-cased part after '@', or "" when the address has none.
func (s Sender) Domain() string {
	at := strings.LastIndexByte(s.Address, '@')
	if at < 0 || at == len(s.Address)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(s.Address[at+1:]))
}

func (s Sender) String() string {
	if s.Name == "" {
		return s.Address
	}
	return s.Name + " <" + s.Address + ">"
}

// RawEmailMessage is one message as handed over by the mailbox collaborator.
type RawEmailMessage struct {
	ID             string    `json:"id"`
	Subject        string    `json:"subject"`
	From           Sender    `json:"from"`
	HTMLBody       string    `json:"html_body,omitempty"`
	TextBody       string    `json:"text_body,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
	HasAttachment  bool      `json:"has_attachment"`
	AttachmentType string    `json:"attachment_type,omitempty"`
}

// MessageRef is a mailbox listing entry.
type MessageRef struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
}
