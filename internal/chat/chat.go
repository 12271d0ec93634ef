// Package chat abstracts the messaging platform the pipeline delivers
// through, keeping the bot API client out of the core packages.
package chat

import "context"

// ProgressFunc receives upload progress as bytes sent out of the total.
type ProgressFunc func(current, total int64)

// MessageHandle identifies a delivered message.
type MessageHandle struct {
	ChatID    int64
	MessageID int
}

// Client is the messaging surface the pipeline talks to.
type Client interface {
	// SendMessage sends a plain text message.
	SendMessage(ctx context.Context, chatID int64, text string) (*MessageHandle, error)

	// EditMessage replaces the text of a previously sent message.
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error

	// SendFile uploads a video file with an optional caption, thumbnail and
	// duration, reporting progress through the callback when one is given.
	SendFile(ctx context.Context, chatID int64, path, caption, thumbPath string, duration int, progress ProgressFunc) (*MessageHandle, error)

	// CopyMessage re-delivers an existing message into another chat.
	CopyMessage(ctx context.Context, fromChatID int64, messageID int, toChatID int64) (*MessageHandle, error)
}
