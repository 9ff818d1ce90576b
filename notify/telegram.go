// Package notify delivers run results to an operator over the Telegram
// Bot API. Delivery is best-effort: a failed send never aborts a run.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/embassy-watch/embassy-eye/config"
	"github.com/embassy-watch/embassy-eye/models"
)

const apiBase = "https://api.telegram.org"

// Telegram sends messages and attachments to a single chat.
type Telegram struct {
	client *resty.Client
	token  string
	chatID string
}

// apiResponse is the envelope every Bot API call returns.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// NewTelegram builds a notifier. Returns nil when the credentials are
// absent, which callers treat as notifications disabled.
func NewTelegram(cfg config.TelegramConfig) *Telegram {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil
	}
	client := resty.New()
	client.SetBaseURL(apiBase)
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(2 * time.Second)
	return &Telegram{client: client, token: cfg.BotToken, chatID: cfg.ChatID}
}

// Enabled reports whether the notifier can actually deliver.
func (t *Telegram) Enabled() bool {
	return t != nil
}

// SendMessage delivers a plain text message.
func (t *Telegram) SendMessage(ctx context.Context, text string) error {
	if t == nil {
		return nil
	}
	res, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"text":    text,
		}).
		Post(t.method("sendMessage"))
	return t.checkResponse("sendMessage", res, err)
}

// SendPhoto delivers a PNG image with a caption.
func (t *Telegram) SendPhoto(ctx context.Context, caption string, png []byte) error {
	if t == nil {
		return nil
	}
	res, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"caption": caption,
		}).
		SetFileReader("photo", "screenshot.png", bytes.NewReader(png)).
		Post(t.method("sendPhoto"))
	return t.checkResponse("sendPhoto", res, err)
}

// SendDocument delivers an arbitrary file, such as a page dump.
func (t *Telegram) SendDocument(ctx context.Context, caption, filename string, data []byte) error {
	if t == nil {
		return nil
	}
	res, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"caption": caption,
		}).
		SetFileReader("document", filename, bytes.NewReader(data)).
		Post(t.method("sendDocument"))
	return t.checkResponse("sendDocument", res, err)
}

func (t *Telegram) method(name string) string {
	return fmt.Sprintf("/bot%s/%s", t.token, name)
}

func (t *Telegram) checkResponse(method string, res *resty.Response, err error) error {
	if err != nil {
		return models.NewCheckError(models.ErrCodeNotify, "telegram "+method+" failed", err)
	}
	var body apiResponse
	if jsonErr := json.Unmarshal(res.Body(), &body); jsonErr != nil {
		return models.NewCheckError(models.ErrCodeNotify,
			fmt.Sprintf("telegram %s returned status %d", method, res.StatusCode()), jsonErr)
	}
	if !body.OK {
		return models.NewCheckError(models.ErrCodeNotify,
			fmt.Sprintf("telegram %s rejected: %s", method, body.Description), nil)
	}
	return nil
}
