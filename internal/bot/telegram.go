package bot

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"photocal/internal/apiclient"
	"photocal/internal/diary"
	"photocal/internal/imaging"
	"photocal/internal/models"
	"photocal/internal/screen"
	"photocal/pkg/logger"
)

// Sender is the part of the Bot API the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Summarizer produces the daily review text.
type Summarizer interface {
	GetDailySummary(ctx context.Context, meals []models.FoodEntry, profile *models.UserProfile) (string, error)
}

type Options struct {
	Diary      *diary.Repository
	Analyzer   *apiclient.Analyzer
	Summarizer Summarizer
	Compressor *imaging.Compressor
	// WebAppURL, when set, is offered as a link to the mini-app on /start.
	WebAppURL  string
	MaxPhotoKB int
	HTTPClient *http.Client
}

type TelegramBot struct {
	api    Sender
	poller *tgbotapi.BotAPI

	diary      *diary.Repository
	analyzer   *apiclient.Analyzer
	summarizer Summarizer
	compressor *imaging.Compressor
	httpClient *http.Client
	webAppURL  string
	maxPhotoKB int

	logger     *logger.Logger
	sessions   map[int64]*session
	stateMutex sync.RWMutex
	inflight   sync.WaitGroup
	queue      *updateQueue
}

func NewTelegramBot(token string, opts Options, logger *logger.Logger) (*TelegramBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	logger.Infow("Authorized on Telegram", "username", api.Self.UserName)

	t := New(api, opts, logger)
	t.poller = api
	return t, nil
}

// New builds a bot around an existing API client. Start is only available
// when the bot was created by NewTelegramBot.
func New(api Sender, opts Options, logger *logger.Logger) *TelegramBot {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	compressor := opts.Compressor
	if compressor == nil {
		compressor = imaging.NewCompressor(imaging.DefaultOptions())
	}
	maxKB := opts.MaxPhotoKB
	if maxKB <= 0 {
		maxKB = imaging.DefaultMaxSizeKB
	}

	t := &TelegramBot{
		api:        api,
		diary:      opts.Diary,
		analyzer:   opts.Analyzer,
		summarizer: opts.Summarizer,
		compressor: compressor,
		httpClient: httpClient,
		webAppURL:  opts.WebAppURL,
		maxPhotoKB: maxKB,
		logger:     logger.Named("bot"),
		sessions:   make(map[int64]*session),
	}
	t.queue = newUpdateQueue(&t.inflight)
	return t
}

// Start begins receiving updates from Telegram via polling
func (t *TelegramBot) Start(ctx context.Context) error {
	if t.poller == nil {
		return fmt.Errorf("bot was created without a polling client")
	}

	// Polling and webhooks are mutually exclusive.
	t.logger.Info("Removing any existing webhook")
	_, err := t.poller.Request(tgbotapi.DeleteWebhookConfig{
		DropPendingUpdates: true,
	})
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := t.poller.GetUpdatesChan(updateConfig)

	t.logger.Info("Started receiving Telegram updates")

	go t.handleUpdates(ctx, updates)

	return nil
}

// handleUpdates feeds each user's updates through their own queue so they
// are handled in the order Telegram delivered them.
func (t *TelegramBot) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		t.queue.push(senderOf(update), func() {
			defer func() {
				if r := recover(); r != nil {
					t.logger.Errorw("Recovered from panic while processing update", "update_id", update.UpdateID, "error", r)
				}
			}()

			t.handle(ctx, update, true)
		})
	}
}

// HandleUpdate processes a single update synchronously, photo analysis
// included.
func (t *TelegramBot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	t.handle(ctx, update, false)
}

// handle dispatches update. With detach set a photo analysis runs in its own
// goroutine, so the user's next update is not held up behind it.
func (t *TelegramBot) handle(ctx context.Context, update tgbotapi.Update, detach bool) {
	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil {
			return
		}
		t.logger.Debugw("Received message",
			"chat_id", msg.Chat.ID,
			"user_id", msg.From.ID,
			"has_photo", len(msg.Photo) > 0)

		if msg.IsCommand() {
			t.handleCommand(ctx, msg)
		} else {
			t.handleMessage(ctx, msg, detach)
		}
	case update.CallbackQuery != nil:
		t.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

// Stop gracefully shuts down the bot
func (t *TelegramBot) Stop(ctx context.Context) error {
	if t.poller != nil {
		t.poller.StopReceivingUpdates()
	}

	done := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (t *TelegramBot) lookup(userID int64) *session {
	t.stateMutex.RLock()
	defer t.stateMutex.RUnlock()
	return t.sessions[userID]
}

// reset replaces the user's session with a fresh one at the initial screen.
func (t *TelegramBot) reset(ctx context.Context, userID, chatID int64) *session {
	owner := diary.OwnerKey(userID)
	hasProfile := t.diary.Profile(ctx, owner) != nil

	s := &session{chatID: chatID, owner: owner}
	s.machine = screen.NewMachine(hasProfile, func(state screen.State, chrome screen.Chrome) {
		s.chrome = chrome
		t.logger.Debugw("Screen entered", "owner", owner, "screen", state)
	})

	t.stateMutex.Lock()
	if prev, ok := t.sessions[userID]; ok && t.analyzer != nil {
		t.analyzer.Cancel(prev.owner)
	}
	t.sessions[userID] = s
	t.stateMutex.Unlock()
	return s
}

func (t *TelegramBot) send(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := t.api.Send(msg); err != nil {
		t.logger.Errorw("Failed to send message", "chat_id", chatID, "error", err)
	}
}

// notify sends a chat action in place of haptic feedback. Failures are
// ignored.
func (t *TelegramBot) notify(chatID int64, action string) {
	go func() {
		_, _ = t.api.Request(tgbotapi.NewChatAction(chatID, action))
	}()
}
