package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"avt-guide/internal/assistant"
	"avt-guide/internal/auth"
	"avt-guide/internal/chat"
	"avt-guide/internal/llm"
	"avt-guide/internal/logger"
	"avt-guide/internal/storage"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatalf("nothing sent")
	}
	return f.sent[len(f.sent)-1]
}

type fakeLLM struct {
	reply   string
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	seen    [][]llm.Message
}

func (f *fakeLLM) Generate(ctx context.Context, msgs []llm.Message) (llm.Response, error) {
	f.mu.Lock()
	f.seen = append(f.seen, msgs)
	f.mu.Unlock()
	if f.release != nil {
		f.started <- struct{}{}
		<-f.release
	}
	return llm.Response{Content: f.reply}, nil
}

const dubaiReply = `{"content":{"paragraphs":[{"text":"Dubai is sunny & warm in March.","emphasis":["Dubai"]}],"follow_up_question":"What is your budget?"},"filters":{"enabled":false,"params":{}},"suggestions":[{"label":"Omra","value":"Omra offers"}]}`

func newTestBot(t *testing.T, ops *auth.Service, limit int) (*Bot, *fakeSender, *fakeLLM) {
	t.Helper()
	model := &fakeLLM{reply: dubaiReply}
	mgr := assistant.NewManager(
		&assistant.Deps{LLM: model, Log: logger.Discard()},
		storage.NewMemoryKV(0),
		storage.NewMemoryKV(0),
		assistant.ManagerOptions{DailyLimit: limit},
	)
	fs := &fakeSender{}
	b := newBot(fs, mgr, Options{ParseMode: "HTML", Operators: ops, Log: logger.Discard()})
	return b, fs, model
}

func textMsg(userID, chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, LanguageCode: "en"},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}
}

func commandMsg(userID, chatID int64, text string) *tgbotapi.Message {
	m := textMsg(userID, chatID, text)
	cmd := strings.Fields(text)[0]
	m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	return m
}

func TestConverse_RendersHTMLAndSuggestions(t *testing.T) {
	b, fs, _ := newTestBot(t, nil, 5)
	b.handleIncomingMessage(context.Background(), textMsg(1, 100, "Dubai in March?"))

	if len(fs.requests) == 0 {
		t.Fatalf("typing action not sent")
	}
	if _, ok := fs.requests[0].(tgbotapi.ChatActionConfig); !ok {
		t.Fatalf("first request should be a chat action, got %T", fs.requests[0])
	}
	out := fs.last(t)
	if out.ParseMode != tgbotapi.ModeHTML {
		t.Fatalf("parse mode: %q", out.ParseMode)
	}
	if !strings.Contains(out.Text, "<b>Dubai</b> is sunny &amp; warm") {
		t.Fatalf("emphasis not rendered: %q", out.Text)
	}
	if !strings.Contains(out.Text, "<i>What is your budget?</i>") {
		t.Fatalf("follow-up missing: %q", out.Text)
	}
	kb, ok := out.ReplyMarkup.(*tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 1 || *kb.InlineKeyboard[0][0].CallbackData != "sg:0" {
		t.Fatalf("unexpected keyboard: %#v", out.ReplyMarkup)
	}
}

func TestConverse_DroppedSubmitSendsNothing(t *testing.T) {
	b, fs, model := newTestBot(t, nil, 5)
	model.started = make(chan struct{}, 1)
	model.release = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.handleIncomingMessage(context.Background(), textMsg(1, 100, "Dubai in March?"))
	}()
	<-model.started

	b.handleIncomingMessage(context.Background(), textMsg(1, 100, "and hotels?"))
	fs.mu.Lock()
	sent := len(fs.sent)
	fs.mu.Unlock()
	if sent != 0 {
		t.Fatalf("dropped submit produced %d messages", sent)
	}

	close(model.release)
	<-done
	if len(fs.sent) != 1 {
		t.Fatalf("expected only the first reply, got %d messages", len(fs.sent))
	}
	if len(model.seen) != 1 {
		t.Fatalf("dropped submit reached the model")
	}
}

func TestCallback_SendsSuggestionValue(t *testing.T) {
	b, fs, model := newTestBot(t, nil, 5)
	b.handleIncomingMessage(context.Background(), textMsg(1, 100, "Dubai in March?"))

	cb := &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 1},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 100}},
		Data:    "sg:0",
	}
	b.handleCallback(context.Background(), cb)

	if len(model.seen) != 2 {
		t.Fatalf("expected two model calls, got %d", len(model.seen))
	}
	msgs := model.seen[1]
	if last := msgs[len(msgs)-1]; !strings.Contains(last.Content, "Omra offers") {
		t.Fatalf("suggestion value not sent: %+v", last)
	}
	if _, ok := fs.requests[1].(tgbotapi.CallbackConfig); !ok {
		t.Fatalf("callback not acknowledged first, got %T", fs.requests[1])
	}
}

func TestCallback_OutOfRangeIgnored(t *testing.T) {
	b, _, model := newTestBot(t, nil, 5)
	cb := &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 1},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 100}},
		Data:    "sg:42",
	}
	b.handleCallback(context.Background(), cb)
	if len(model.seen) != 0 {
		t.Fatalf("model should not be called")
	}
}

func TestQuotaExceeded_SendsNotice(t *testing.T) {
	b, fs, model := newTestBot(t, nil, 1)
	b.handleIncomingMessage(context.Background(), textMsg(1, 100, "first"))
	b.handleIncomingMessage(context.Background(), textMsg(1, 100, "second"))

	if len(model.seen) != 1 {
		t.Fatalf("second turn must not reach the model, calls=%d", len(model.seen))
	}
	if out := fs.last(t); !strings.Contains(out.Text, "daily limit of 1 messages") {
		t.Fatalf("limit notice missing: %q", out.Text)
	}
}

func TestLangCommand_SwitchesGreeting(t *testing.T) {
	b, fs, _ := newTestBot(t, nil, 5)
	b.handleIncomingMessage(context.Background(), commandMsg(1, 100, "/lang fr"))
	b.handleIncomingMessage(context.Background(), commandMsg(1, 100, "/start"))
	if out := fs.last(t); !strings.Contains(out.Text, "Bonjour") {
		t.Fatalf("greeting not in French: %q", out.Text)
	}
	b.handleIncomingMessage(context.Background(), commandMsg(1, 100, "/lang de"))
	if out := fs.last(t); !strings.HasPrefix(out.Text, "Usage") {
		t.Fatalf("unsupported locale accepted: %q", out.Text)
	}
}

func TestOperatorCommands(t *testing.T) {
	ops, err := auth.NewWithRepo(auth.NewKVRepo(storage.NewMemoryKV(0)), []int64{7})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	b, fs, _ := newTestBot(t, ops, 5)

	b.handleIncomingMessage(context.Background(), commandMsg(1, 100, "/grant 2"))
	if out := fs.last(t); !strings.Contains(out.Text, "operators only") {
		t.Fatalf("non-operator not rejected: %q", out.Text)
	}

	b.handleIncomingMessage(context.Background(), commandMsg(7, 700, "/grant 2 @alice"))
	if !ops.IsAllowed(2) {
		t.Fatalf("grant did not apply")
	}
	b.handleIncomingMessage(context.Background(), commandMsg(7, 700, "/revoke 7"))
	if out := fs.last(t); !strings.Contains(out.Text, "cannot be revoked") {
		t.Fatalf("configured operator revoked: %q", out.Text)
	}
	b.handleIncomingMessage(context.Background(), commandMsg(7, 700, "/revoke 2"))
	if ops.IsAllowed(2) {
		t.Fatalf("revoke did not apply")
	}
	b.handleIncomingMessage(context.Background(), commandMsg(7, 700, "/stats"))
	if out := fs.last(t); !strings.Contains(out.Text, "log disabled") {
		t.Fatalf("stats without recorder: %q", out.Text)
	}
}

func TestEmphasize(t *testing.T) {
	cases := []struct {
		text    string
		phrases []string
		want    string
	}{
		{"plain <text>", nil, "plain &lt;text&gt;"},
		{"Oran and Tlemcen", []string{"Tlemcen", "Oran"}, "<b>Oran</b> and <b>Tlemcen</b>"},
		{"Dubai Marina", []string{"Dubai Marina", "Marina"}, "<b>Dubai Marina</b>"},
		{"missing", []string{"nowhere"}, "missing"},
	}
	for _, c := range cases {
		if got := emphasize(c.text, c.phrases); got != c.want {
			t.Fatalf("emphasize(%q): want %q, got %q", c.text, c.want, got)
		}
	}
}

func TestRenderReply_ListsOffers(t *testing.T) {
	m := chat.Message{Text: "x", Data: &chat.Response{
		Content: chat.Content{Paragraphs: []chat.Paragraph{{Text: "Here you go."}}},
		Posts: &chat.Posts{Enabled: true, Results: []chat.PostSummary{
			{Title: "Omra Ramadan", Destinations: []string{"Makkah"}, Price: "250000", Agency: "Sky Travel"},
		}},
	}}
	got := renderReply(m)
	if !strings.Contains(got, "• <b>Omra Ramadan</b> (Makkah) 250000 DZD / Sky Travel") {
		t.Fatalf("offer not rendered: %q", got)
	}
}
