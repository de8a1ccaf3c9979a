package assistant

import (
	"context"
	"testing"
	"time"

	"avt-guide/internal/logger"
	"avt-guide/internal/storage"
)

func newManager(session, durable storage.KV, reply string, limit int) (*Manager, *fakeLLM) {
	f := &fakeLLM{reply: reply}
	deps := &Deps{LLM: f, Log: logger.Discard()}
	return NewManager(deps, session, durable, ManagerOptions{SessionTTL: time.Hour, DailyLimit: limit}), f
}

const okReply = `{"content":{"paragraphs":[{"text":"ok","emphasis":[]}]}}`

func TestManager_ReusesSessions(t *testing.T) {
	m, _ := newManager(storage.NewMemoryKV(0), storage.NewMemoryKV(0), okReply, 0)
	a := m.Session("c1", "s1", "fr")
	if a != m.Session("c1", "s1", "en") {
		t.Fatalf("same session should return the same orchestrator")
	}
	if a == m.Session("c1", "s2", "fr") {
		t.Fatalf("different sessions must not share state")
	}
	if got := a.Conversation().Messages()[0].Text; got != Greeting("fr") {
		t.Fatalf("greeting should follow the first locale, got %q", got)
	}
	if m.Active() != 2 {
		t.Fatalf("want 2 active sessions, got %d", m.Active())
	}
}

func TestManager_RestoresConversation(t *testing.T) {
	session, durable := storage.NewMemoryKV(0), storage.NewMemoryKV(0)
	m, _ := newManager(session, durable, okReply, 0)
	m.Session("c1", "s1", "en").Send(context.Background(), Request{Text: "hello"})

	restarted, _ := newManager(session, durable, okReply, 0)
	msgs := restarted.Session("c1", "s1", "en").Conversation().Messages()
	if len(msgs) != 3 || msgs[1].Text != "hello" {
		t.Fatalf("conversation not restored: %+v", msgs)
	}
}

func TestManager_QuotaSharedAcrossSessionsOfAClient(t *testing.T) {
	m, f := newManager(storage.NewMemoryKV(0), storage.NewMemoryKV(0), okReply, 2)
	ctx := context.Background()
	m.Session("c1", "s1", "en").Send(ctx, Request{Text: "one"})
	m.Session("c1", "s2", "en").Send(ctx, Request{Text: "two"})
	turn := m.Session("c1", "s3", "en").Send(ctx, Request{Text: "three"})
	if turn.Outcome != OutcomeQuotaExceeded {
		t.Fatalf("client quota should be exhausted, got %s", turn.Outcome)
	}
	if other := m.Session("c2", "s1", "en").Send(ctx, Request{Text: "hi"}); other.Outcome != OutcomeSuccess {
		t.Fatalf("other clients keep their quota, got %s", other.Outcome)
	}
	if f.Calls() != 3 {
		t.Fatalf("want 3 model calls, got %d", f.Calls())
	}
	if m.Quota("c1").Remaining() != 0 {
		t.Fatalf("remaining should be 0")
	}
}

func TestManager_GuardOutlivesSessions(t *testing.T) {
	m, _ := newManager(storage.NewMemoryKV(0), storage.NewMemoryKV(0), okReply, 5)
	long := m.Session("c1", "s1", "en")
	fresh := m.Session("c1", "s2", "en")
	if long.Quota() != fresh.Quota() || fresh.Quota() != m.Quota("c1") {
		t.Fatalf("sessions of one client must share a guard")
	}
	for id, item := range m.guards.Items() {
		if item.Expiration != 0 {
			t.Fatalf("guard of %s expires at %d", id, item.Expiration)
		}
	}
}

func TestManager_ForgetAndReset(t *testing.T) {
	m, _ := newManager(storage.NewMemoryKV(0), storage.NewMemoryKV(0), okReply, 0)
	o := m.Session("c1", "s1", "en")
	o.Send(context.Background(), Request{Text: "hello"})
	o.Reset()
	if n := len(o.Conversation().Messages()); n != 1 {
		t.Fatalf("reset should leave the greeting only, got %d", n)
	}
	m.Forget("c1", "s1")
	if m.Active() != 0 {
		t.Fatalf("session not forgotten")
	}
}
