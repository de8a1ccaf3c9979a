package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileRecorder_AppendAndLoad(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "log.jsonl")
	rec, err := NewFileRecorder(p)
	if err != nil {
		t.Fatalf("init recorder: %v", err)
	}

	ev1 := Event{Timestamp: time.Unix(1, 0).UTC(), ClientID: "a", UserMessage: "hi", AssistantResponse: "hello", Outcome: "success"}
	ev2 := Event{Timestamp: time.Unix(2, 0).UTC(), ClientID: "b", UserMessage: "foo", AssistantResponse: "bar", Outcome: "failed"}
	if err := rec.AppendInteraction(ev1); err != nil {
		t.Fatalf("append1: %v", err)
	}
	if err := rec.AppendInteraction(ev2); err != nil {
		t.Fatalf("append2: %v", err)
	}

	events, err := rec.LoadInteractions()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("want 2, got %d", len(events))
	}
	if events[0].ClientID != "a" || events[1].ClientID != "b" {
		t.Fatalf("order mismatch: %+v", events)
	}

	st, err := os.Stat(p)
	if err != nil || st.Size() == 0 {
		t.Fatalf("file not written")
	}
}

func testKV(t *testing.T, kv KV) {
	t.Helper()
	if _, ok, err := kv.Get("missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := kv.Set("a", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set("a", []byte(`{"x":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := kv.Get("a")
	if err != nil || !ok || string(v) != `{"x":2}` {
		t.Fatalf("get: %q ok=%v err=%v", v, ok, err)
	}
	if err := kv.Delete("a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := kv.Get("a"); ok {
		t.Fatalf("key survived delete")
	}
}

func TestFileKV(t *testing.T) {
	kv, err := NewFileKV(filepath.Join(t.TempDir(), "kv", "quota.json"))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	testKV(t, kv)
}

func TestFileKV_MalformedFileStartsFresh(t *testing.T) {
	p := filepath.Join(t.TempDir(), "quota.json")
	if err := os.WriteFile(p, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	kv, err := NewFileKV(p)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, ok, err := kv.Get("x"); ok || err != nil {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}
	if err := kv.Set("x", []byte("1")); err != nil {
		t.Fatalf("set after malformed: %v", err)
	}
}

func TestMemoryKV(t *testing.T) {
	testKV(t, NewMemoryKV(time.Hour))
}

func TestMemoryKV_CopiesValues(t *testing.T) {
	kv := NewMemoryKV(0)
	buf := []byte("abc")
	_ = kv.Set("k", buf)
	buf[0] = 'z'
	v, _, _ := kv.Get("k")
	if string(v) != "abc" {
		t.Fatalf("stored value aliased caller buffer: %q", v)
	}
}

func TestSQLiteKV(t *testing.T) {
	kv, err := NewSQLiteKV(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer kv.Close()
	testKV(t, kv)
}

func TestScoped_IsolatesKeys(t *testing.T) {
	base := NewMemoryKV(0)
	a := Scoped(base, "client-a")
	b := Scoped(base, "client-b")
	_ = a.Set("chatbot_daily_limit", []byte("1"))
	if _, ok, _ := b.Get("chatbot_daily_limit"); ok {
		t.Fatalf("scopes leaked")
	}
	if _, ok, _ := base.Get("client-a/chatbot_daily_limit"); !ok {
		t.Fatalf("scoped key not prefixed")
	}
}
