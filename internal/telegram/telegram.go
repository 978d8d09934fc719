// Package telegram connects the dispatcher to the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"docbot/internal/bot"
	"docbot/internal/domain"
	"docbot/internal/infra"
)

const defaultMaxPhotoBytes = 20 << 20

// Options configures an Adapter.
type Options struct {
	Token         string
	PollTimeout   time.Duration
	MaxPhotoBytes int64
	ServerURL     string
	HTTPClient    *http.Client
	Logger        *infra.Logger
}

// Adapter receives updates by long polling and implements bot.Replier and
// bot.PhotoFetcher. Updates are handled in arrival order per user.
type Adapter struct {
	api      *tgbot.Bot
	http     *http.Client
	maxPhoto int64
	logger   *infra.Logger
	queues   *bot.UserQueues
}

// New builds the Telegram client. The token is checked against the API
// unless ServerURL points at a test server.
func New(opts Options) (*Adapter, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf("%w: telegram: token is required", domain.ErrConfiguration)
	}
	a := &Adapter{
		http:     opts.HTTPClient,
		maxPhoto: opts.MaxPhotoBytes,
		logger:   opts.Logger,
	}
	if a.http == nil {
		a.http = &http.Client{Timeout: time.Minute}
	}
	if a.maxPhoto <= 0 {
		a.maxPhoto = defaultMaxPhotoBytes
	}
	if a.logger == nil {
		discard := zerolog.New(io.Discard)
		a.logger = &discard
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = time.Minute
	}

	botOpts := []tgbot.Option{
		tgbot.WithDefaultHandler(a.onUpdate),
		tgbot.WithErrorsHandler(func(err error) {
			a.logger.Warn().Err(err).Msg("telegram: polling error")
		}),
		tgbot.WithHTTPClient(pollTimeout, &http.Client{Timeout: pollTimeout + 10*time.Second}),
		// onUpdate only enqueues, so one synchronous worker keeps the
		// polled order intact.
		tgbot.WithWorkers(1),
		tgbot.WithNotAsyncHandlers(),
	}
	if opts.ServerURL != "" {
		botOpts = append(botOpts, tgbot.WithServerURL(opts.ServerURL), tgbot.WithSkipGetMe())
	}
	api, err := tgbot.New(opts.Token, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	a.api = api
	return a, nil
}

// SetHandler installs the update handler. Call before Run.
func (a *Adapter) SetHandler(h bot.HandlerFunc) {
	a.queues = bot.NewUserQueues(h, func(msg bot.Message, err error) {
		a.logger.Warn().Err(err).Int64("user_id", msg.UserID).Msg("telegram: update not handled")
	})
}

// Run polls for updates until ctx is done, then waits for queued updates.
func (a *Adapter) Run(ctx context.Context) error {
	if a.queues == nil {
		return errors.New("telegram: no handler installed")
	}
	a.logger.Info().Msg("telegram: polling started")
	a.api.Start(ctx)
	a.queues.Wait()
	a.logger.Info().Msg("telegram: polling stopped")
	return nil
}

func (a *Adapter) onUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	msg, ok := toMessage(update)
	if !ok {
		return
	}
	a.queues.Enqueue(ctx, msg)
}

// SendText posts a plain text message.
func (a *Adapter) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := a.api.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

// SendPhoto uploads img with a caption.
func (a *Adapter) SendPhoto(ctx context.Context, chatID int64, img domain.RenderedImage, caption string) error {
	name := img.Filename
	if name == "" {
		name = "result.jpg"
	}
	_, err := a.api.SendPhoto(ctx, &tgbot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileUpload{Filename: name, Data: bytes.NewReader(img.Data)},
		Caption: caption,
	})
	if err != nil {
		return fmt.Errorf("telegram: send photo: %w", err)
	}
	return nil
}

// FetchPhoto resolves fileID and downloads the file.
func (a *Adapter) FetchPhoto(ctx context.Context, fileID string) ([]byte, error) {
	file, err := a.api.GetFile(ctx, &tgbot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("telegram: get file: %w", err)
	}
	if file.FileSize > 0 && int64(file.FileSize) > a.maxPhoto {
		return nil, fmt.Errorf("telegram: photo exceeds %d bytes", a.maxPhoto)
	}
	return download(ctx, a.http, a.api.FileDownloadLink(file), a.maxPhoto)
}

func download(ctx context.Context, client *http.Client, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: download: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram: download: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("telegram: download: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("telegram: photo exceeds %d bytes", limit)
	}
	if len(data) == 0 {
		return nil, errors.New("telegram: empty photo")
	}
	return data, nil
}

// toMessage keeps text and the best photo of a message update. Images sent
// as documents count as photos.
func toMessage(update *models.Update) (bot.Message, bool) {
	if update == nil || update.Message == nil {
		return bot.Message{}, false
	}
	m := update.Message
	msg := bot.Message{ChatID: m.Chat.ID, UserID: m.Chat.ID, Text: m.Text}
	if m.From != nil {
		msg.UserID = m.From.ID
	}
	if best := largestPhoto(m.Photo); best != "" {
		msg.PhotoFileID = best
	} else if m.Document != nil && strings.HasPrefix(m.Document.MimeType, "image/") {
		msg.PhotoFileID = m.Document.FileID
	}
	if msg.Text == "" && msg.PhotoFileID == "" {
		return bot.Message{}, false
	}
	return msg, true
}

func largestPhoto(sizes []models.PhotoSize) string {
	best, area := "", -1
	for _, p := range sizes {
		if a := p.Width * p.Height; a > area {
			best, area = p.FileID, a
		}
	}
	return best
}
