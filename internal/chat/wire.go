package chat

import (
	"github.com/mosaic-social/mosaic/internal/models"
)

// Frame types exchanged over a live connection.
const (
	frameSend       = "send"
	frameNewMessage = "new_message"
	frameError      = "error"
)

// InboundFrame is a client request read off a live connection.
type InboundFrame struct {
	Type       string `json:"type"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

// Envelope wraps a stored message for fanout and echo.
type Envelope struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message"`
}

// ErrorFrame reports a failed request in-band without closing the
// connection.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewMessageEnvelope builds the fanout envelope for a stored message.
func NewMessageEnvelope(msg *models.Message) Envelope {
	return Envelope{Type: frameNewMessage, Message: msg}
}
