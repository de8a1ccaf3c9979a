package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"avt-guide/internal/catalog"
	"avt-guide/internal/chat"
	"avt-guide/internal/conversation"
	"avt-guide/internal/fanout"
	"avt-guide/internal/llm"
	"avt-guide/internal/logger"
	"avt-guide/internal/quota"
	"avt-guide/internal/storage"
)

type fakeLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	last    []llm.Message
	started chan struct{}
	release chan struct{}
}

func (f *fakeLLM) Generate(ctx context.Context, msgs []llm.Message) (llm.Response, error) {
	f.mu.Lock()
	f.calls++
	f.last = msgs
	reply, err := f.reply, f.err
	started, release := f.started, f.release
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return llm.Response{}, ctx.Err()
		}
	}
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{Content: reply}, nil
}

func (f *fakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCatalog struct {
	mu       sync.Mutex
	byQuery  map[string][]catalog.Announcement
	searches int
	catsErr  error
}

func (c *fakeCatalog) Search(_ context.Context, p catalog.SearchParams) ([]catalog.Announcement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searches++
	return c.byQuery[p.Query], nil
}

func (c *fakeCatalog) Categories(context.Context) ([]catalog.Category, error) {
	if c.catsErr != nil {
		return nil, c.catsErr
	}
	return []catalog.Category{{ID: 1, Name: "Voyages"}}, nil
}

type memRecorder struct {
	mu     sync.Mutex
	events []storage.Event
}

func (r *memRecorder) AppendInteraction(ev storage.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRecorder) LoadInteractions() ([]storage.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]storage.Event(nil), r.events...), nil
}

type harness struct {
	orc      *Orchestrator
	llm      *fakeLLM
	catalog  *fakeCatalog
	recorder *memRecorder
	session  storage.KV
	durable  storage.KV
}

func newHarness(t *testing.T, reply string) *harness {
	t.Helper()
	h := &harness{
		llm:      &fakeLLM{reply: reply},
		catalog:  &fakeCatalog{byQuery: map[string][]catalog.Announcement{}},
		recorder: &memRecorder{},
		session:  storage.NewMemoryKV(0),
		durable:  storage.NewMemoryKV(0),
	}
	log := logger.Discard()
	deps := &Deps{
		LLM:        h.llm,
		Search:     fanout.New(h.catalog, fanout.WithLogger(log)),
		Categories: h.catalog,
		Recorder:   h.recorder,
		Log:        log,
	}
	guard := quota.NewGuard(h.durable, quota.WithLogger(log))
	seed := chat.NewMessage(chat.SenderBot, Greeting("en"), time.Now(), nil)
	store := conversation.NewStore(h.session, seed, DefaultSuggestions("en"), log)
	h.orc = New(deps, guard, store, "client-1", "session-1")
	return h
}

const dubaiReply = `{
  "content": {"paragraphs": [{"text": "Voici quelques hôtels à Dubaï pour votre séjour.", "emphasis": ["hôtels à Dubaï"]}], "follow_up_question": "Quel est votre budget ?"},
  "filters": {"enabled": true, "params": {"query": "Dubai", "destination": "Dubai"}, "search_keywords": ["Dubai", "Dubaï", "دبي"]},
  "blogs": {"enabled": false, "results": []},
  "suggestions": [{"label": "🏨 Hôtels 5 étoiles", "value": "Hôtels 5 étoiles à Dubaï"}, {"label": "✈️ Vols", "value": "Vols pour Dubaï"}, {"label": "🏖️ Plages", "value": "Plages de Dubaï"}]
}`

func TestSend_DubaiInFrench(t *testing.T) {
	h := newHarness(t, dubaiReply)
	h.catalog.byQuery["Dubai"] = []catalog.Announcement{
		{ID: 1, Title: "Hôtel Marina"}, {ID: 2, Title: "Palm Resort"}, {ID: 3, Title: "Burj View"},
	}
	h.catalog.byQuery["Dubaï"] = []catalog.Announcement{{ID: 2, Title: "Palm Resort"}}

	turn := h.orc.Send(context.Background(), Request{Locale: "fr", Text: "hotels in Dubai"})
	if turn.Outcome != OutcomeSuccess {
		t.Fatalf("unexpected outcome %s", turn.Outcome)
	}
	data := turn.Reply.Data
	if data == nil || data.Posts == nil || !data.Posts.Enabled || len(data.Posts.Results) != 3 {
		t.Fatalf("expected 3 offers, got %+v", data.Posts)
	}
	if len(turn.Keywords) != 3 || turn.Keywords[0] != "Dubai" {
		t.Fatalf("model keywords not used: %v", turn.Keywords)
	}
	if !strings.Contains(h.llm.last[0].Content, "CURRENT USER LOCALE: fr") {
		t.Fatalf("locale lock missing from system prompt")
	}
	if !strings.Contains(h.llm.last[0].Content, `1. "Voyages"`) {
		t.Fatalf("categories missing from system prompt")
	}
	want := "Voici quelques hôtels à Dubaï pour votre séjour.\n\nQuel est votre budget ?"
	if turn.Reply.Text != want {
		t.Fatalf("reply text %q", turn.Reply.Text)
	}
	if h.orc.Quota().Status().Count != 1 {
		t.Fatalf("quota not recorded")
	}
	sugs := h.orc.Conversation().Suggestions()
	if len(sugs) != 3 || sugs[0].Value != "Hôtels 5 étoiles à Dubaï" {
		t.Fatalf("suggestions not updated: %+v", sugs)
	}
	msgs := h.orc.Conversation().Messages()
	if len(msgs) != 3 || msgs[1].Sender != chat.SenderUser || msgs[2].Sender != chat.SenderBot {
		t.Fatalf("unexpected conversation: %+v", msgs)
	}
	if _, ok, _ := h.session.Get(conversation.Key); !ok {
		t.Fatalf("snapshot not persisted")
	}
	if h.orc.Typing() || h.orc.State() != StateIdle {
		t.Fatalf("orchestrator should be idle after a turn")
	}
	if len(h.recorder.events) != 1 || h.recorder.events[0].PostsFound != 3 || !h.recorder.events[0].FiltersEnabled {
		t.Fatalf("interaction not recorded: %+v", h.recorder.events)
	}
}

func TestSend_InformationalQuestionSkipsSearch(t *testing.T) {
	reply := `{"content":{"paragraphs":[{"text":"Algeria is the largest country in Africa.","emphasis":["largest country"]}]},"filters":{"enabled":false,"params":{}}}`
	h := newHarness(t, reply)
	turn := h.orc.Send(context.Background(), Request{Locale: "en", Text: "What is Algeria?"})
	if turn.Outcome != OutcomeSuccess {
		t.Fatalf("outcome %s", turn.Outcome)
	}
	if h.catalog.searches != 0 {
		t.Fatalf("catalog must not be searched")
	}
	posts := turn.Reply.Data.Posts
	if posts == nil || posts.Enabled || len(posts.Results) != 0 {
		t.Fatalf("posts should stay disabled: %+v", posts)
	}
	if sugs := h.orc.Conversation().Suggestions(); len(sugs) != 4 {
		t.Fatalf("default chips should remain when the model sends none")
	}
}

func TestSend_EmptySearchAsksAboutMissingFields(t *testing.T) {
	reply := `{"content":{"paragraphs":[{"text":"Let me look for trips to Istanbul.","emphasis":[]}]},"filters":{"enabled":true,"params":{"query":"Istanbul","destination":"Istanbul","prix_end":"150000"},"search_keywords":["Istanbul","اسطنبول","Stamboul"]}}`
	h := newHarness(t, reply)
	turn := h.orc.Send(context.Background(), Request{Locale: "en", Text: "trips to Istanbul under 150000"})
	data := turn.Reply.Data
	if !data.Posts.Enabled || len(data.Posts.Results) != 0 {
		t.Fatalf("expected enabled empty posts: %+v", data.Posts)
	}
	if len(data.Content.Paragraphs) != 2 {
		t.Fatalf("advice paragraph missing")
	}
	advice := data.Content.Paragraphs[1]
	if strings.Contains(advice.Text, "destination are you interested") || strings.Contains(advice.Text, "budget") {
		t.Fatalf("asked about known fields: %q", advice.Text)
	}
	if !strings.Contains(data.Content.FollowUp(), "When are you planning to travel") {
		t.Fatalf("follow-up should ask about dates: %q", data.Content.FollowUp())
	}
	if h.catalog.searches != 3 {
		t.Fatalf("want one search per keyword, got %d", h.catalog.searches)
	}
}

func TestSend_HeuristicKeywordsWhenModelGivesNone(t *testing.T) {
	reply := `{"content":{"paragraphs":[{"text":"Beach trips in Tunisia coming up.","emphasis":[]}]},"filters":{"enabled":true,"params":{"query":"beach Tunisia"}}}`
	h := newHarness(t, reply)
	h.catalog.byQuery["Tunisie"] = []catalog.Announcement{{ID: 8, Title: "Djerba"}}
	turn := h.orc.Send(context.Background(), Request{Locale: "en", Text: "beach holidays in Tunisia"})
	want := []string{"Tunisia", "Tunisie", "beach", "seaside", "plage"}
	if strings.Join(turn.Keywords, ",") != strings.Join(want, ",") {
		t.Fatalf("keywords %v", turn.Keywords)
	}
	if len(turn.Reply.Data.Posts.Results) != 1 {
		t.Fatalf("expected one offer")
	}
}

func TestSend_FailureDoesNotConsumeQuota(t *testing.T) {
	h := newHarness(t, "")
	h.llm.err = errors.New("connection refused")
	turn := h.orc.Send(context.Background(), Request{Locale: "fr", Text: "bonjour"})
	if turn.Outcome != OutcomeFailed {
		t.Fatalf("outcome %s", turn.Outcome)
	}
	if turn.Reply.Text != Apology("fr") {
		t.Fatalf("apology expected, got %q", turn.Reply.Text)
	}
	if h.orc.Quota().Status().Count != 0 {
		t.Fatalf("failed call consumed quota")
	}
	if h.orc.State() != StateIdle {
		t.Fatalf("should be idle")
	}
}

func TestSend_EmptyModelReplyIsFailure(t *testing.T) {
	h := newHarness(t, "   ")
	if turn := h.orc.Send(context.Background(), Request{Text: "hi"}); turn.Outcome != OutcomeFailed {
		t.Fatalf("outcome %s", turn.Outcome)
	}
}

func TestSend_DegradedReplyKeepsRawText(t *testing.T) {
	h := newHarness(t, "Sorry, plain text only.")
	turn := h.orc.Send(context.Background(), Request{Text: "hi"})
	if turn.Outcome != OutcomeSuccess || !turn.Degraded {
		t.Fatalf("want degraded success, got %+v", turn)
	}
	if turn.Reply.Text != "Sorry, plain text only." {
		t.Fatalf("raw text not kept: %q", turn.Reply.Text)
	}
}

func TestSend_CategoryFailureDegradesPrompt(t *testing.T) {
	h := newHarness(t, `{"content":{"paragraphs":[{"text":"ok","emphasis":[]}]}}`)
	h.catalog.catsErr = errors.New("down")
	h.orc.Send(context.Background(), Request{Text: "hi"})
	if !strings.Contains(h.llm.last[0].Content, "No categories available.") {
		t.Fatalf("prompt should note missing categories")
	}
}

func TestSend_QuotaExhaustedSkipsNetwork(t *testing.T) {
	h := newHarness(t, `{"content":{"paragraphs":[{"text":"ok","emphasis":[]}]}}`)
	for i := 0; i < quota.DefaultLimit; i++ {
		if turn := h.orc.Send(context.Background(), Request{Text: "hello"}); turn.Outcome != OutcomeSuccess {
			t.Fatalf("send %d: %s", i+1, turn.Outcome)
		}
	}
	turn := h.orc.Send(context.Background(), Request{Locale: "en", Text: "one more"})
	if turn.Outcome != OutcomeQuotaExceeded {
		t.Fatalf("51st send: %s", turn.Outcome)
	}
	if h.llm.Calls() != quota.DefaultLimit {
		t.Fatalf("network called on 51st send")
	}
	if turn.Reply == nil || turn.Reply.Text != LimitNotice("en", quota.DefaultLimit) || turn.User != nil {
		t.Fatalf("limit notice expected: %+v", turn)
	}
	msgs := h.orc.Conversation().Messages()
	if last := msgs[len(msgs)-1]; last.Text != LimitNotice("en", quota.DefaultLimit) {
		t.Fatalf("notice not appended")
	}
}

func TestSend_EmptyTextIsNoop(t *testing.T) {
	h := newHarness(t, "x")
	if turn := h.orc.Send(context.Background(), Request{Text: "  \n"}); turn.Outcome != OutcomeEmpty {
		t.Fatalf("outcome %s", turn.Outcome)
	}
	if h.llm.Calls() != 0 || len(h.orc.Conversation().Messages()) != 1 {
		t.Fatalf("empty text must not do anything")
	}
}

func TestSend_SecondSendWhileBusyIsDropped(t *testing.T) {
	h := newHarness(t, `{"content":{"paragraphs":[{"text":"ok","emphasis":[]}]}}`)
	h.llm.started = make(chan struct{}, 1)
	h.llm.release = make(chan struct{})

	done := make(chan Turn, 1)
	go func() { done <- h.orc.Send(context.Background(), Request{Text: "first"}) }()
	<-h.llm.started
	if !h.orc.Typing() {
		t.Fatalf("typing indicator should be on")
	}

	second := h.orc.Send(context.Background(), Request{Text: "second"})
	if second.Outcome != OutcomeBusy {
		t.Fatalf("want busy, got %s", second.Outcome)
	}
	close(h.llm.release)
	if first := <-done; first.Outcome != OutcomeSuccess {
		t.Fatalf("first send: %s", first.Outcome)
	}
	for _, m := range h.orc.Conversation().Messages() {
		if m.Text == "second" {
			t.Fatalf("dropped send must not be appended")
		}
	}
	if h.llm.Calls() != 1 {
		t.Fatalf("busy send reached the model")
	}
}

func TestSend_LLMTimeout(t *testing.T) {
	h := newHarness(t, "x")
	h.llm.release = make(chan struct{})
	h.orc.deps.LLMTimeout = 20 * time.Millisecond
	turn := h.orc.Send(context.Background(), Request{Text: "hi"})
	if turn.Outcome != OutcomeFailed {
		t.Fatalf("timeout should fail the turn, got %s", turn.Outcome)
	}
}
