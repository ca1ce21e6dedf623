package domain

import "errors"

var (
	// ErrContentRejected signals that a destination refused a formatted payload.
	ErrContentRejected = errors.New("content rejected by destination")
	// ErrUnauthorized signals revoked or invalid credentials on the messaging surface.
	ErrUnauthorized = errors.New("unauthorized")
)

// ParseModeHTML is the only rich formatting mode used for captions.
const ParseModeHTML = "HTML"

// Button is a single inline control carrying a callback payload.
type Button struct {
	Text         string
	CallbackData string
}

// Keyboard is a grid of inline controls, one slice per row.
type Keyboard [][]Button

// Media references a photo either by local path or by a remote file id.
type Media struct {
	Path   string
	FileID string
}

// SendOptions tunes a single outbound message.
type SendOptions struct {
	ParseMode           string
	Keyboard            Keyboard
	DisableNotification bool
	DisablePreview      bool
	ReplyTo             int64
}

// SentMessage is the handle returned by the messaging surface.
type SentMessage struct {
	ChatID      int64
	MessageID   int64
	PhotoFileID string
}

// RemoteFile describes a file stored by the messaging surface.
type RemoteFile struct {
	FileID   string
	FilePath string
	Size     int64
}

// Callback is a user activation of an inline control.
type Callback struct {
	ID        string
	Data      string
	ChatID    int64
	MessageID int64
	UserID    int64
}

// Update is a single long-poll event.
type Update struct {
	UpdateID int64
	Callback *Callback
}
