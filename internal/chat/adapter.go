// Package chat bridges chat platforms (Telegram, Slack, Discord) to the
// report conversation controller.
package chat

import (
	"context"
	"time"
)

// Adapter is the interface that platform-specific implementations must satisfy.
// Each adapter handles connection management and message sending/receiving
// for a single chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the context is cancelled or the adapter
	// is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage represents a message received from the chat platform.
type InboundMessage struct {
	Platform  string           // e.g. "telegram", "slack", "discord"
	ChannelID string           // platform-specific channel or chat identifier
	UserID    string           // platform-specific user identifier
	UserName  string           // human-readable username
	Text      string           // raw message text (caption for photos)
	Photo     *PhotoAttachment // set when the message carries an image
	Timestamp time.Time        // when the message was sent
}

// PhotoAttachment references an image attached to an inbound message. The
// reference is opaque to everything except the adapter's FetchFile.
type PhotoAttachment struct {
	FileRef  string
	MimeType string
}

// OutboundMessage represents a message to be sent to the chat platform.
type OutboundMessage struct {
	ChannelID      string   // target channel
	Text           string   // message text (plain)
	Keyboard       []string // one-tap reply options, one per row
	RemoveKeyboard bool     // hide any previously shown keyboard
}

// BotUserIDer is an optional interface that adapters can implement to
// expose the bot's own user ID. This enables self-message filtering.
type BotUserIDer interface {
	BotUserID() string
}

// FileFetcher is an optional interface for adapters that can download the
// files referenced by PhotoAttachment.
type FileFetcher interface {
	FetchFile(ctx context.Context, fileRef, destPath string) error
}

// SessionKey returns the conversation key for a message: one conversation
// per user per channel per platform.
func SessionKey(msg InboundMessage) string {
	return msg.Platform + ":" + msg.ChannelID + ":" + msg.UserID
}

// FormatOptions renders keyboard options as a text list for platforms
// without native reply keyboards.
func FormatOptions(text string, options []string) string {
	if len(options) == 0 {
		return text
	}
	out := text + "\n"
	for _, o := range options {
		out += "\n• " + o
	}
	return out
}
