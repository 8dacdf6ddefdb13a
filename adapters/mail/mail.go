package mail

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"venomqa.dev/venomqa/rollback"
)

// Message is one captured outbound mail send, grounded on the recipient/
// subject/body shape notification/rapidmail.go sends to RapidMail, minus the
// RapidMail-specific ZIP packaging (no real mail provider is ever contacted
// here — Message just records what an action under test attempted to send).
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mail is a deep-copy-rollback capture of every message an action has sent,
// so exploration can assert "no duplicate welcome email was sent" style
// invariants without standing up a real mail provider.
type Mail struct {
	sent []Message
}

// NewMail creates an empty capture.
func NewMail() *Mail {
	return &Mail{}
}

// Send records a message as sent.
func (m *Mail) Send(msg Message) {
	cp := Message{
		To:      append([]string(nil), msg.To...),
		Subject: msg.Subject,
		Body:    msg.Body,
	}
	m.sent = append(m.sent, cp)
}

// Sent returns every message sent so far, in send order.
func (m *Mail) Sent() []Message {
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}

// Checkpoint deep-copies the sent log, wrapped in a rollback.OpaqueToken.
func (m *Mail) Checkpoint(ctx context.Context) (rollback.Token, error) {
	cp := make([]Message, len(m.sent))
	copy(cp, m.sent)
	return rollback.OpaqueToken{Value: cp}, nil
}

// Rollback replaces the live sent log with the token's copy.
func (m *Mail) Rollback(ctx context.Context, token rollback.Token) error {
	tok, ok := token.(rollback.OpaqueToken)
	if !ok {
		return fmt.Errorf("mail.Mail: rollback token of wrong type %T", token)
	}
	sent, ok := tok.Value.([]Message)
	if !ok {
		return fmt.Errorf("mail.Mail: rollback token holds wrong value type %T", tok.Value)
	}
	m.sent = sent
	return nil
}

// Observe returns the send count and a content hash of every message.
func (m *Mail) Observe(ctx context.Context) (map[string]interface{}, error) {
	h := sha256.New()
	for _, msg := range m.sent {
		h.Write([]byte(msg.Subject))
		h.Write([]byte{0})
		for _, to := range msg.To {
			h.Write([]byte(to))
			h.Write([]byte{0})
		}
		h.Write([]byte(msg.Body))
		h.Write([]byte{0})
	}
	return map[string]interface{}{
		"sentCount": len(m.sent),
		"hash":      hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Capabilities reports unconstrained rollback order.
func (m *Mail) Capabilities() rollback.Capabilities {
	return rollback.Capabilities{StackOnlyRollback: false, CheckpointCost: rollback.CostCheap}
}
