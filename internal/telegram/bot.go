// Package telegram exposes the travel assistant as a Telegram bot.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"avt-guide/internal/analytics"
	"avt-guide/internal/assistant"
	"avt-guide/internal/auth"
	"avt-guide/internal/chat"
	"avt-guide/internal/storage"
)

type Options struct {
	ParseMode     string
	DefaultLocale string
	Operators     *auth.Service
	Recorder      storage.Recorder
	Location      *time.Location
	Log           logrus.FieldLogger
}

type Bot struct {
	api       *tgbotapi.BotAPI
	s         sender
	manager   *assistant.Manager
	operators *auth.Service
	recorder  storage.Recorder
	parseMode string
	defLocale string
	loc       *time.Location
	log       logrus.FieldLogger
	now       func() time.Time

	mu      sync.Mutex
	locales map[int64]string
}

func New(botToken string, manager *assistant.Manager, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	b := newBot(botAPISender{api: api}, manager, opts)
	b.api = api
	return b, nil
}

func newBot(s sender, manager *assistant.Manager, opts Options) *Bot {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Bot{
		s:         s,
		manager:   manager,
		operators: opts.Operators,
		recorder:  opts.Recorder,
		parseMode: opts.ParseMode,
		defLocale: chat.NormalizeLocale(opts.DefaultLocale, chat.LocaleEnglish),
		loc:       opts.Location,
		log:       opts.Log,
		now:       time.Now,
		locales:   make(map[int64]string),
	}
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.log.WithField("bot", b.api.Self.UserName).Info("telegram: polling started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			switch {
			case update.Message != nil:
				go b.handleIncomingMessage(ctx, update.Message)
			case update.CallbackQuery != nil:
				go b.handleCallback(ctx, update.CallbackQuery)
			}
		}
	}
}

// Notify sends text to every operator.
func (b *Bot) Notify(text string) {
	if b.operators == nil {
		return
	}
	for _, op := range b.operators.List() {
		b.sendText(op.ID, text)
	}
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}
	b.converse(ctx, msg.Chat.ID, msg.From, msg.Text)
}

// converse runs one assistant turn and posts the result.
func (b *Bot) converse(ctx context.Context, chatID int64, from *tgbotapi.User, text string) {
	locale := b.locale(chatID, from)
	o := b.session(chatID, from, locale)

	b.typing(chatID)
	turn := o.Send(ctx, assistant.Request{Locale: locale, Text: text})
	b.log.WithFields(logrus.Fields{"chat": chatID, "outcome": turn.Outcome}).Debug("telegram: turn done")

	if turn.Reply == nil {
		return
	}
	b.sendReply(chatID, *turn.Reply, o.Conversation().Suggestions())
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.s.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.WithError(err).Debug("telegram: callback not acknowledged")
	}
	if cb.Message == nil || cb.From == nil {
		return
	}
	i, ok := suggestionIndex(cb.Data)
	if !ok {
		return
	}
	chatID := cb.Message.Chat.ID
	o := b.session(chatID, cb.From, b.locale(chatID, cb.From))
	sugs := o.Conversation().Suggestions()
	if i >= len(sugs) {
		return
	}
	b.converse(ctx, chatID, cb.From, sugs[i].Value)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	locale := b.locale(chatID, msg.From)
	switch msg.Command() {
	case "start":
		o := b.session(chatID, msg.From, locale)
		b.sendGreeting(chatID, locale, o.Conversation().Suggestions())
	case "reset":
		o := b.session(chatID, msg.From, locale)
		o.Reset()
		b.sendGreeting(chatID, locale, o.Conversation().Suggestions())
	case "lang":
		arg := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
		if !chat.IsSupportedLocale(arg) {
			b.sendText(chatID, "Usage: /lang en|fr|ar")
			return
		}
		b.mu.Lock()
		b.locales[chatID] = arg
		b.mu.Unlock()
		b.sendText(chatID, "Language: "+arg)
	case "quota":
		g := b.manager.Quota(clientID(msg.From))
		b.sendText(chatID, fmt.Sprintf("Messages left today: %d/%d", g.Remaining(), g.Limit()))
	case "stats", "grant", "revoke", "operators":
		b.handleOperatorCommand(msg)
	default:
		b.sendText(chatID, "Unknown command")
	}
}

// handleOperatorCommand serves commands restricted to operators.
func (b *Bot) handleOperatorCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if b.operators == nil || !b.operators.IsAllowed(msg.From.ID) {
		b.log.WithField("user", msg.From.ID).Warn("telegram: operator command denied")
		b.sendText(chatID, "This command is for operators only.")
		return
	}
	switch msg.Command() {
	case "stats":
		report, err := b.dailyReport(b.now())
		if err != nil {
			b.sendText(chatID, fmt.Sprintf("Report failed: %v", err))
			return
		}
		b.sendText(chatID, report)
	case "operators":
		var sb strings.Builder
		sb.WriteString("Operators:\n")
		for _, u := range b.operators.List() {
			fmt.Fprintf(&sb, "- %d %s\n", u.ID, u.Username)
		}
		b.sendText(chatID, sb.String())
	case "grant":
		args := strings.Fields(msg.CommandArguments())
		if len(args) < 1 {
			b.sendText(chatID, "Usage: /grant <user_id> [username]")
			return
		}
		uid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			b.sendText(chatID, "Invalid user_id")
			return
		}
		u := auth.User{ID: uid}
		if len(args) > 1 {
			u.Username = strings.TrimPrefix(args[1], "@")
		}
		if err := b.operators.Grant(u); err != nil {
			b.sendText(chatID, fmt.Sprintf("Grant failed: %v", err))
			return
		}
		b.sendText(chatID, fmt.Sprintf("User %d is now an operator", uid))
	case "revoke":
		args := strings.Fields(msg.CommandArguments())
		if len(args) != 1 {
			b.sendText(chatID, "Usage: /revoke <user_id>")
			return
		}
		uid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			b.sendText(chatID, "Invalid user_id")
			return
		}
		removed, err := b.operators.Revoke(uid)
		switch {
		case err != nil:
			b.sendText(chatID, fmt.Sprintf("Revoke failed: %v", err))
		case !removed:
			b.sendText(chatID, fmt.Sprintf("User %d is configured and cannot be revoked", uid))
		default:
			b.sendText(chatID, fmt.Sprintf("User %d is no longer an operator", uid))
		}
	}
}

func (b *Bot) dailyReport(at time.Time) (string, error) {
	if b.recorder == nil {
		return "", fmt.Errorf("interaction log disabled")
	}
	events, err := b.recorder.LoadInteractions()
	if err != nil {
		return "", err
	}
	return analytics.AnalyzeDailyLogs(events, at.In(b.loc)).GenerateReportSummary(), nil
}

func (b *Bot) session(chatID int64, from *tgbotapi.User, locale string) *assistant.Orchestrator {
	return b.manager.Session(clientID(from), sessionID(chatID), locale)
}

// locale returns the chat's chosen locale, else the user's Telegram
// language, else the default.
func (b *Bot) locale(chatID int64, from *tgbotapi.User) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if l, ok := b.locales[chatID]; ok {
		return l
	}
	code := ""
	if from != nil {
		code = from.LanguageCode
	}
	return chat.NormalizeLocale(code, b.defLocale)
}

func (b *Bot) typing(chatID int64) {
	if _, err := b.s.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.log.WithError(err).Debug("telegram: typing action failed")
	}
}

func (b *Bot) sendGreeting(chatID int64, locale string, sugs []chat.Suggestion) {
	b.sendReply(chatID, chat.Message{Text: assistant.Greeting(locale), Sender: chat.SenderBot}, sugs)
}

func (b *Bot) sendReply(chatID int64, m chat.Message, sugs []chat.Suggestion) {
	var out tgbotapi.MessageConfig
	if b.html() {
		out = tgbotapi.NewMessage(chatID, renderReply(m))
		out.ParseMode = tgbotapi.ModeHTML
	} else {
		out = tgbotapi.NewMessage(chatID, m.Text)
	}
	if kb := suggestionKeyboard(sugs); kb != nil {
		out.ReplyMarkup = kb
	}
	if _, err := b.s.Send(out); err != nil {
		b.log.WithError(err).WithField("chat", chatID).Error("telegram: send failed")
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	if _, err := b.s.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.WithError(err).WithField("chat", chatID).Error("telegram: send failed")
	}
}

func (b *Bot) html() bool {
	return b.parseMode == "" || strings.EqualFold(b.parseMode, tgbotapi.ModeHTML)
}

func clientID(u *tgbotapi.User) string { return "tg:" + strconv.FormatInt(u.ID, 10) }

func sessionID(chatID int64) string { return "tg:" + strconv.FormatInt(chatID, 10) }
