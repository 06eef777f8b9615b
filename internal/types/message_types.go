package types

import (
	"fmt"
	"time"
)

type MessageType string

const (
	TypeChat    MessageType = "CHAT"
	TypeJoin    MessageType = "JOIN"
	TypeLeave   MessageType = "LEAVE"
	TypeTyping  MessageType = "TYPING"
	TypePrivate MessageType = "PRIVATE"
	TypeSystem  MessageType = "SYSTEM"
)

// Message is the wire shape exchanged with the broker. ID is server-assigned
// and may be empty on frames the broker never persisted; Timestamp is ISO-8601.
type Message struct {
	ID        string      `json:"id,omitempty"`
	Sender    string      `json:"sender"`
	Content   string      `json:"content,omitempty"`
	Recipient string      `json:"recipient,omitempty"`
	Type      MessageType `json:"type"`
	Color     string      `json:"color,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// Identity returns the stable identity used for deduplication: the
// server-assigned id when present, otherwise a composite of the fields that
// distinguish one frame from another. A locally echoed private message and
// the broker's copy of it collapse to the same identity.
func (m *Message) Identity() string {
	if m.ID != "" {
		return m.ID
	}
	scope := m.Recipient
	if m.Type != TypePrivate {
		scope = "group"
	}
	return fmt.Sprintf("%s-%s-%s-%s", m.Sender, scope, m.Content, m.Timestamp)
}

// Now formats the current time the way the broker expects timestamps.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
