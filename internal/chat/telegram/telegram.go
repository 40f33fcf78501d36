// Package telegram implements the chat Adapter for Telegram using Bot API
// long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zulandar/shiftlog/internal/chat"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// pollTimeout is the long-polling timeout in seconds.
	pollTimeout = 30
)

// botAPI abstracts the tgbotapi.BotAPI methods we use, enabling test mocks.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Adapter implements chat.Adapter and chat.FileFetcher for Telegram.
type Adapter struct {
	api        botAPI
	token      string
	httpClient *http.Client
	botUserID  string
	mu         sync.Mutex
	connected  bool
	closed     bool
	listening  bool
	inbound    chan chat.InboundMessage
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// AdapterOpts holds parameters for creating a Telegram Adapter.
type AdapterOpts struct {
	Token      string       // bot token from @BotFather
	HTTPClient *http.Client // used to download photos; defaults to http.DefaultClient
	// For testing: inject a mock API and bot identity instead of dialing Telegram.
	API       botAPI
	BotUserID string
}

// New creates a Telegram Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.API == nil && opts.Token == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{
		api:        opts.API,
		token:      opts.Token,
		httpClient: client,
		botUserID:  opts.BotUserID,
		inbound:    make(chan chat.InboundMessage, 100),
		done:       make(chan struct{}),
	}, nil
}

// Connect authenticates the bot token with getMe.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("telegram: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.api == nil {
		bot, err := tgbotapi.NewBotAPIWithClient(a.token, tgbotapi.APIEndpoint, a.httpClient)
		if err != nil {
			return fmt.Errorf("telegram: auth: %w", chat.RedactURL(err))
		}
		a.api = bot
		a.botUserID = strconv.FormatInt(bot.Self.ID, 10)
		log.Printf("telegram: authorized as @%s", bot.Self.UserName)
	}

	a.connected = true
	return nil
}

// Listen starts long polling and returns a channel of inbound messages.
// Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan chat.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("telegram: not connected")
	}
	if a.listening {
		return a.inbound, nil
	}
	a.listening = true

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	u.AllowedUpdates = []string{"message"}
	updates := a.api.GetUpdatesChan(u)

	listenCtx, cancel := context.WithCancel(ctx)
	a.cancelFunc = cancel
	go a.pump(listenCtx, updates)

	return a.inbound, nil
}

// pump converts updates to InboundMessages until ctx is cancelled or the
// update channel closes.
func (a *Adapter) pump(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			msg, ok := toInbound(upd)
			if !ok {
				continue
			}
			select {
			case a.inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// toInbound converts a Telegram update to an InboundMessage. Only private
// and group text or photo messages from humans are forwarded.
func toInbound(upd tgbotapi.Update) (chat.InboundMessage, bool) {
	m := upd.Message
	if m == nil || m.From == nil || m.From.IsBot || m.Chat == nil {
		return chat.InboundMessage{}, false
	}

	msg := chat.InboundMessage{
		Platform:  "telegram",
		ChannelID: strconv.FormatInt(m.Chat.ID, 10),
		UserID:    strconv.FormatInt(m.From.ID, 10),
		UserName:  m.From.FirstName,
		Text:      m.Text,
		Timestamp: m.Time(),
	}
	if msg.UserName == "" {
		msg.UserName = m.From.UserName
	}

	if len(m.Photo) > 0 {
		// Sizes are ordered smallest first; keep the largest.
		largest := m.Photo[len(m.Photo)-1]
		msg.Photo = &chat.PhotoAttachment{FileRef: largest.FileID, MimeType: "image/jpeg"}
		msg.Text = m.Caption
	} else if m.Document != nil && isImage(m.Document.MimeType) {
		msg.Photo = &chat.PhotoAttachment{FileRef: m.Document.FileID, MimeType: m.Document.MimeType}
		msg.Text = m.Caption
	}

	if msg.Photo == nil && msg.Text == "" {
		return chat.InboundMessage{}, false
	}
	return msg, true
}

func isImage(mime string) bool {
	return len(mime) > 6 && mime[:6] == "image/"
}

// Send delivers a message. Keyboard options become a one-time reply
// keyboard, one button per row; RemoveKeyboard hides any open keyboard.
func (a *Adapter) Send(ctx context.Context, msg chat.OutboundMessage) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("telegram: not connected")
	}
	api := a.api
	a.mu.Unlock()

	chatID, err := strconv.ParseInt(msg.ChannelID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q", msg.ChannelID)
	}

	cfg := buildMessage(chatID, msg)
	err = retryOnRateLimit(ctx, func() error {
		_, sendErr := api.Send(cfg)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", chat.RedactURL(err))
	}
	return nil
}

// buildMessage translates an OutboundMessage into a Telegram MessageConfig.
func buildMessage(chatID int64, msg chat.OutboundMessage) tgbotapi.MessageConfig {
	cfg := tgbotapi.NewMessage(chatID, msg.Text)
	switch {
	case len(msg.Keyboard) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(msg.Keyboard))
		for _, opt := range msg.Keyboard {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(opt)))
		}
		kb := tgbotapi.NewOneTimeReplyKeyboard(rows...)
		kb.ResizeKeyboard = true
		cfg.ReplyMarkup = kb
	case msg.RemoveKeyboard:
		cfg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	return cfg
}

// FetchFile resolves a Telegram file_id to its download URL and saves the
// file to destPath.
func (a *Adapter) FetchFile(ctx context.Context, fileRef, destPath string) error {
	a.mu.Lock()
	api := a.api
	a.mu.Unlock()
	if api == nil {
		return fmt.Errorf("telegram: not connected")
	}

	var url string
	err := retryOnRateLimit(ctx, func() error {
		var apiErr error
		url, apiErr = api.GetFileDirectURL(fileRef)
		return apiErr
	})
	if err != nil {
		return fmt.Errorf("telegram: get file: %w", chat.RedactURL(err))
	}
	if err := chat.Download(ctx, a.httpClient, url, destPath, nil); err != nil {
		return fmt.Errorf("telegram: fetch file: %w", err)
	}
	return nil
}

// Close stops polling and closes the inbound channel.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.connected = false
	listening := a.listening
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	api := a.api
	a.mu.Unlock()

	if listening {
		api.StopReceivingUpdates()
		<-a.done
	}
	close(a.inbound)
	return nil
}

// BotUserID returns the bot's Telegram user ID (available after Connect).
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// retryOnRateLimit calls fn and retries on Telegram 429 responses, waiting
// the retry_after Telegram asks for. It respects context cancellation.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var tgErr *tgbotapi.Error
		if !errors.As(err, &tgErr) || tgErr.Code != http.StatusTooManyRequests {
			return err
		}

		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(tgErr.RetryAfter) * time.Second
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
