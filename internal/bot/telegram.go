package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"rfiledger/internal/common"
	"rfiledger/internal/entity"
	"rfiledger/internal/workflow"
)

// Bot is the Telegram transport. It downloads uploads into the data
// dir, feeds events to the workflow controller and renders its replies.
// Events for the same user are serialized here, which is the mutual
// exclusion the core components rely on.
type Bot struct {
	api     *tgbotapi.BotAPI
	ctrl    *workflow.Controller
	dataDir string
	client  *http.Client
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New(token string, ctrl *workflow.Controller, dataDir string, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &Bot{
		api:     api,
		ctrl:    ctrl,
		dataDir: dataDir,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
		locks:   make(map[int64]*sync.Mutex),
	}, nil
}

// RegisterWebhook points Telegram at url.
func (b *Bot) RegisterWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("webhook config: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	b.logger.Info("bot.webhook.registered", "url", url)
	return nil
}

// HandleUpdate dispatches one inbound Telegram update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	lock := b.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, userID, chatID, msg.Command())
	case msg.Document != nil:
		b.handleDocument(ctx, userID, chatID, msg.Document)
	}
}

func (b *Bot) handleCommand(ctx context.Context, userID, chatID int64, command string) {
	switch command {
	case "start":
		b.reply(chatID, b.ctrl.Greeting())
	case "preview":
		reply, err := b.ctrl.Preview(ctx, userID)
		if err != nil {
			b.fail(chatID, userID, "preview", err)
			return
		}
		b.reply(chatID, reply)
	case "generate":
		reply, err := b.ctrl.Generate(ctx, userID)
		if err != nil {
			b.fail(chatID, userID, "generate", err)
			return
		}
		b.reply(chatID, reply)
	case "download":
		art, err := b.ctrl.Download(ctx, userID)
		if err != nil {
			b.fail(chatID, userID, "download", err)
			return
		}
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(art.Path))
		if _, err := b.api.Send(doc); err != nil {
			b.logger.Error("bot.send_document.failed", "user_id", userID, "err", err)
			b.reply(chatID, "Sending the ledger failed, please try /download again.")
		}
	default:
		b.reply(chatID, "Unknown command. Try /start, /preview, /generate or /download.")
	}
}

func (b *Bot) handleDocument(ctx context.Context, userID, chatID int64, tgDoc *tgbotapi.Document) {
	path, err := b.fetchFile(ctx, userID, tgDoc)
	if err != nil {
		b.logger.Error("bot.download.failed", "user_id", userID, "file_name", tgDoc.FileName, "err", err)
		b.reply(chatID, "Downloading your file failed, please send it again.")
		return
	}

	doc := entity.Document{
		ID:         uuid.New(),
		FileName:   tgDoc.FileName,
		Path:       path,
		UploadedAt: time.Now().UTC(),
	}
	reply, err := b.ctrl.HandleUpload(ctx, userID, doc)
	if err != nil {
		b.fail(chatID, userID, "upload", err)
		return
	}
	b.reply(chatID, reply)
}

// fetchFile downloads a Telegram document into the user's workspace
// directory under a uuid-prefixed name, so repeated uploads of the same
// filename never clobber each other.
func (b *Bot) fetchFile(ctx context.Context, userID int64, tgDoc *tgbotapi.Document) (string, error) {
	url, err := b.api.GetFileDirectURL(tgDoc.FileID)
	if err != nil {
		return "", fmt.Errorf("resolve file url: %w", err)
	}

	dir := filepath.Join(b.dataDir, fmt.Sprintf("user-%d", userID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("workspace dir: %w", err)
	}
	path := filepath.Join(dir, uuid.New().String()+"-"+filepath.Base(tgDoc.FileName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: unexpected status %s", resp.Status)
	}

	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// fail maps core errors onto user guidance; anything unexpected gets a
// generic apology and a log line with the real cause.
func (b *Bot) fail(chatID, userID int64, op string, err error) {
	var reply string
	switch {
	case errors.Is(err, common.ErrNoTemplate):
		reply = "Please upload the Excel ledger template first."
	case errors.Is(err, common.ErrNoDocuments):
		reply = "No PDF documents uploaded yet."
	case errors.Is(err, common.ErrNoArtifact):
		reply = "Nothing generated yet. Run /generate first."
	case errors.Is(err, common.ErrBadSortKey):
		reply = "The ledger could not be re-sorted: a row has a non-numeric RFI number. Fix the workbook and upload it again."
	case errors.Is(err, common.ErrEmptyBatch):
		reply = "There are no records to merge."
	default:
		reply = "Something went wrong, please try again."
	}
	b.logger.Error("bot.op.failed", "op", op, "user_id", userID, "err", err)
	b.reply(chatID, reply)
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("bot.reply.failed", "chat_id", chatID, "err", err)
	}
}

func (b *Bot) userLock(userID int64) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock, ok := b.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		b.locks[userID] = lock
	}
	return lock
}
