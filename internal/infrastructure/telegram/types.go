package telegram

import (
	"encoding/json"

	"NewsForwarder/internal/domain"
)

// envelope is the common Bot API response wrapper.
type envelope struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result"`
	ErrorCode   int                 `json:"error_code"`
	Description string              `json:"description"`
	Parameters  *responseParameters `json:"parameters"`
}

type responseParameters struct {
	RetryAfter int `json:"retry_after"`
}

// Message is the subset of a Bot API message the bot reads back.
type Message struct {
	MessageID int64       `json:"message_id"`
	Chat      Chat        `json:"chat"`
	Photo     []PhotoSize `json:"photo"`
	Caption   string      `json:"caption"`
	Text      string      `json:"text"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// PhotoSize is one resolution of an uploaded photo.
type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// File is the getFile result.
type File struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	FilePath string `json:"file_path"`
}

// User is the author of a callback query.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// CallbackQuery is an inline button activation.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message"`
	Data    string   `json:"data"`
}

// Update is a single getUpdates entry.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

type messageRef struct {
	MessageID int64 `json:"message_id"`
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type inputMediaPhoto struct {
	Type      string `json:"type"`
	Media     string `json:"media"`
	Caption   string `json:"caption,omitempty"`
	ParseMode string `json:"parse_mode,omitempty"`
}

func markupFor(kb domain.Keyboard) *replyMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]inlineButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]inlineButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, inlineButton{Text: b.Text, CallbackData: b.CallbackData})
		}
		rows = append(rows, buttons)
	}
	return &replyMarkup{InlineKeyboard: rows}
}

func (m Message) toSent() domain.SentMessage {
	sent := domain.SentMessage{ChatID: m.Chat.ID, MessageID: m.MessageID}
	if n := len(m.Photo); n > 0 {
		sent.PhotoFileID = m.Photo[n-1].FileID
	}
	return sent
}

func (u Update) toDomain() domain.Update {
	out := domain.Update{UpdateID: u.UpdateID}
	if q := u.CallbackQuery; q != nil {
		cb := &domain.Callback{ID: q.ID, Data: q.Data, UserID: q.From.ID}
		if q.Message != nil {
			cb.ChatID = q.Message.Chat.ID
			cb.MessageID = q.Message.MessageID
		}
		out.Callback = cb
	}
	return out
}
