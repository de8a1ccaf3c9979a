// Package assistant runs one user turn end to end: quota, prompt, model
// call, parsing, keyword search and persistence.
package assistant

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"avt-guide/internal/advisor"
	"avt-guide/internal/catalog"
	"avt-guide/internal/chat"
	"avt-guide/internal/contract"
	"avt-guide/internal/conversation"
	"avt-guide/internal/expander"
	"avt-guide/internal/llm"
	"avt-guide/internal/metrics"
	"avt-guide/internal/prompt"
	"avt-guide/internal/quota"
	"avt-guide/internal/storage"
)

// DefaultLLMTimeout bounds a model call when Deps.LLMTimeout is zero.
const DefaultLLMTimeout = 45 * time.Second

type State int

const (
	StateIdle State = iota
	StateSending
)

func (s State) String() string {
	if s == StateSending {
		return "sending"
	}
	return "idle"
}

type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeFailed        Outcome = "failed"
	OutcomeQuotaExceeded Outcome = "quota_exceeded"
	OutcomeBusy          Outcome = "busy"
	OutcomeEmpty         Outcome = "empty"
)

// CategorySource lists catalog categories for the prompt.
type CategorySource interface {
	Categories(ctx context.Context) ([]catalog.Category, error)
}

// PostSearcher runs the keyword fan-out.
type PostSearcher interface {
	Run(ctx context.Context, keywords []string, params chat.FilterParams) []chat.PostSummary
}

// Deps are shared by every session.
type Deps struct {
	LLM        llm.Client
	Prompt     *prompt.Builder
	Expander   *expander.Expander
	Search     PostSearcher
	Categories CategorySource
	Recorder   storage.Recorder
	Metrics    *metrics.Metrics
	Log        logrus.FieldLogger

	LLMTimeout    time.Duration
	DefaultLocale string
	Now           func() time.Time
}

func (d *Deps) withDefaults() {
	if d.Prompt == nil {
		d.Prompt = prompt.NewBuilder("")
	}
	if d.Expander == nil {
		d.Expander = expander.New(expander.DefaultLexicon())
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.LLMTimeout <= 0 {
		d.LLMTimeout = DefaultLLMTimeout
	}
	if d.DefaultLocale == "" {
		d.DefaultLocale = chat.LocaleEnglish
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

type Request struct {
	Locale string
	Text   string
}

// Turn describes what one Send did. User and Reply are the messages that
// were appended, if any.
type Turn struct {
	Outcome  Outcome
	User     *chat.Message
	Reply    *chat.Message
	Keywords []string
	Degraded bool
}

// Orchestrator owns one session. At most one send is in flight; a second
// one is dropped.
type Orchestrator struct {
	deps      *Deps
	quota     *quota.Guard
	convo     *conversation.Store
	clientID  string
	sessionID string
	log       logrus.FieldLogger

	mu    sync.Mutex
	state State
}

// New builds an orchestrator over an already restored conversation store.
func New(deps *Deps, guard *quota.Guard, convo *conversation.Store, clientID, sessionID string) *Orchestrator {
	deps.withDefaults()
	return &Orchestrator{
		deps:      deps,
		quota:     guard,
		convo:     convo,
		clientID:  clientID,
		sessionID: sessionID,
		log:       deps.Log.WithFields(logrus.Fields{"client": clientID, "session": sessionID}),
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Typing reports whether the typing indicator should be shown.
func (o *Orchestrator) Typing() bool { return o.State() == StateSending }

func (o *Orchestrator) Conversation() *conversation.Store { return o.convo }

func (o *Orchestrator) Quota() *quota.Guard { return o.quota }

// Reset returns the conversation to its greeting. Quota is untouched.
func (o *Orchestrator) Reset() { o.convo.Reset() }

// Send handles one user message. It never returns an error: every failure
// ends as a bot message in the conversation.
func (o *Orchestrator) Send(ctx context.Context, req Request) Turn {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Turn{Outcome: OutcomeEmpty}
	}
	locale := chat.NormalizeLocale(req.Locale, o.deps.DefaultLocale)

	o.mu.Lock()
	if o.state == StateSending {
		o.mu.Unlock()
		o.log.Info("assistant: send dropped, another one is in flight")
		o.deps.Metrics.ObserveTurn(string(OutcomeBusy))
		return Turn{Outcome: OutcomeBusy}
	}
	if !o.quota.CanSend() {
		o.mu.Unlock()
		notice := chat.NewMessage(chat.SenderBot, LimitNotice(locale, o.quota.Limit()), o.deps.Now(), nil)
		o.convo.Append(notice)
		turn := Turn{Outcome: OutcomeQuotaExceeded, Reply: &notice}
		o.finish(locale, text, turn)
		return turn
	}
	o.state = StateSending
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.state = StateIdle
		o.mu.Unlock()
	}()

	turn := o.run(ctx, locale, text)
	o.finish(locale, text, turn)
	return turn
}

func (o *Orchestrator) run(ctx context.Context, locale, text string) Turn {
	history := o.convo.Recent(prompt.HistoryLimit)
	userMsg := chat.NewMessage(chat.SenderUser, text, o.deps.Now(), nil)
	o.convo.Append(userMsg)
	turn := Turn{User: &userMsg}

	var cats []catalog.Category
	if o.deps.Categories != nil {
		var err error
		cats, err = o.deps.Categories.Categories(ctx)
		if err != nil {
			o.log.WithError(err).Warn("assistant: categories unavailable")
			cats = nil
		}
	}
	p := o.deps.Prompt.Build(locale, cats, history, text)

	raw, err := o.generate(ctx, p)
	if err != nil {
		o.log.WithError(err).Error("assistant: model call failed")
		reply := chat.NewMessage(chat.SenderBot, Apology(locale), o.deps.Now(), nil)
		o.convo.Append(reply)
		turn.Outcome = OutcomeFailed
		turn.Reply = &reply
		return turn
	}
	if err := o.quota.RecordSend(); err != nil {
		o.log.WithError(err).Warn("assistant: quota not recorded")
	}

	res := contract.Parse(raw)
	resp := res.Response
	turn.Degraded = res.Kind == contract.Degraded
	if turn.Degraded {
		o.deps.Metrics.ObserveDegraded()
		o.log.Warn("assistant: model reply had no usable JSON")
	}

	if resp.Filters.Enabled {
		turn.Keywords = o.searchPosts(ctx, locale, text, resp)
	}

	reply := chat.NewMessage(chat.SenderBot, resp.Text(), o.deps.Now(), resp)
	o.convo.Append(reply)
	if len(resp.Suggestions) > 0 {
		o.convo.SetSuggestions(resp.Suggestions)
	}
	turn.Outcome = OutcomeSuccess
	turn.Reply = &reply
	return turn
}

func (o *Orchestrator) generate(ctx context.Context, p prompt.Prompt) (string, error) {
	if o.deps.LLM == nil {
		return "", llm.ErrEmptyResponse
	}
	lctx, cancel := context.WithTimeout(ctx, o.deps.LLMTimeout)
	defer cancel()
	start := time.Now()
	resp, err := o.deps.LLM.Generate(lctx, p.LLMMessages())
	o.deps.Metrics.ObserveLLM(time.Since(start))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", llm.ErrEmptyResponse
	}
	return resp.Content, nil
}

// searchPosts expands the intent into keywords, runs the fan-out and
// attaches the offers. An empty result adds clarifying questions.
func (o *Orchestrator) searchPosts(ctx context.Context, locale, text string, resp *chat.Response) []string {
	params := resp.Filters.Params
	base := firstNonEmpty(params.Query, params.Destination, text)
	keywords := o.deps.Expander.Expand(base, resp.Filters.SearchKeywords)

	var posts []chat.PostSummary
	if o.deps.Search != nil && len(keywords) > 0 {
		posts = o.deps.Search.Run(ctx, keywords, params)
	}
	if posts == nil {
		posts = []chat.PostSummary{}
	}
	resp.Posts = &chat.Posts{Enabled: true, Results: posts}
	o.log.WithFields(logrus.Fields{"keywords": keywords, "posts": len(posts)}).Info("assistant: offers searched")

	if len(posts) == 0 {
		advisor.Apply(resp, advisor.Advise(locale, params))
	}
	return keywords
}

func (o *Orchestrator) finish(locale, text string, turn Turn) {
	o.deps.Metrics.ObserveTurn(string(turn.Outcome))
	o.log.WithField("outcome", turn.Outcome).Debug("assistant: turn finished")
	if o.deps.Recorder == nil {
		return
	}
	ev := storage.Event{
		Timestamp:   o.deps.Now().UTC(),
		ClientID:    o.clientID,
		SessionID:   o.sessionID,
		Locale:      locale,
		UserMessage: text,
		Outcome:     string(turn.Outcome),
		Keywords:    turn.Keywords,
		Degraded:    turn.Degraded,
	}
	if turn.Reply != nil {
		ev.AssistantResponse = turn.Reply.Text
		if d := turn.Reply.Data; d != nil {
			ev.FiltersEnabled = d.Filters.Enabled
			if d.Posts != nil {
				ev.PostsFound = len(d.Posts.Results)
			}
		}
	}
	if err := o.deps.Recorder.AppendInteraction(ev); err != nil {
		o.log.WithError(err).Warn("assistant: interaction not recorded")
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
