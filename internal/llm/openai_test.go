package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClient_SendsAttributionHeadersAndMessages(t *testing.T) {
	var gotReferer, gotTitle string
	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("HTTP-Referer")
		gotTitle = r.Header.Get("X-Title")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	}))
	defer srv.Close()

	c := NewOpenAI(OpenAIOptions{APIKey: "k", BaseURL: srv.URL, Model: "m", Referrer: "https://site", Title: "Site"})
	resp, err := c.Generate(context.Background(), []Message{{Role: RoleSystem, Content: "rules"}, {Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != `{"ok":true}` || resp.TotalTokens != 5 || resp.Model != "m" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotReferer != "https://site" || gotTitle != "Site" {
		t.Fatalf("attribution headers missing: %q %q", gotReferer, gotTitle)
	}
	if body.Model != "m" || len(body.Messages) != 2 || body.Messages[0].Role != "system" {
		t.Fatalf("unexpected request body: %+v", body)
	}
}

func TestOpenAIClient_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(OpenAIOptions{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	if _, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); err != ErrEmptyResponse {
		t.Fatalf("want ErrEmptyResponse, got %v", err)
	}
}
