// Package prompt assembles the system prompt and history sent to the model.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"avt-guide/internal/catalog"
	"avt-guide/internal/chat"
	"avt-guide/internal/llm"
)

// HistoryLimit bounds how many prior messages are replayed to the model.
const HistoryLimit = 10

const (
	rule    = "════════════════════════════════════════════════════════════"
	thin    = "────────────────────────"
	noCats  = "No categories available."
	catHead = "CATEGORY AND SUBCATEGORY INFORMATION (REFERENCE ONLY)"
)

var localeLocks = map[string]string{
	chat.LocaleEnglish: "CRITICAL: The user's website is set to ENGLISH. You MUST respond ONLY in ENGLISH. Do NOT use any French or Arabic words. Every single word in your response must be in English.",
	chat.LocaleFrench:  "CRITICAL: The user's website is set to FRENCH. You MUST respond ONLY in FRENCH. Do NOT use any English or Arabic words. Every single word in your response must be in French.",
	chat.LocaleArabic:  "CRITICAL: The user's website is set to ARABIC. You MUST respond ONLY in ARABIC. Do NOT use any English or French words. Every single word in your response must be in Arabic.",
}

// Prompt is what one model call receives.
type Prompt struct {
	System   string
	Messages []llm.Message
}

// LLMMessages returns the provider message list, system entry first.
func (p Prompt) LLMMessages() []llm.Message {
	out := make([]llm.Message, 0, len(p.Messages)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: p.System})
	return append(out, p.Messages...)
}

type Builder struct {
	rules string
}

// NewBuilder uses rules as the fixed behavior block; empty means DefaultRules.
func NewBuilder(rules string) *Builder {
	if strings.TrimSpace(rules) == "" {
		rules = DefaultRules
	}
	return &Builder{rules: rules}
}

// LoadRules reads the behavior block from path. An empty path yields DefaultRules.
func LoadRules(path string) (string, error) {
	if path == "" {
		return DefaultRules, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	return string(b), nil
}

// Build assembles the system block and the replayed conversation. Only the
// last HistoryLimit messages of history are kept.
func (b *Builder) Build(locale string, categories []catalog.Category, history []chat.Message, userText string) Prompt {
	locale = chat.NormalizeLocale(locale, chat.LocaleEnglish)

	var sb strings.Builder
	sb.WriteString(b.rules)
	sb.WriteString("\n\n")
	sb.WriteString(rule + "\n")
	fmt.Fprintf(&sb, "CURRENT USER LOCALE: %s\n", locale)
	sb.WriteString(localeLocks[locale] + "\n")
	sb.WriteString(rule + "\n\n")
	sb.WriteString(thin + "\n")
	sb.WriteString(FormatCategories(categories))
	sb.WriteString(thin + "\n")

	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		role := llm.RoleAssistant
		if m.Sender == chat.SenderUser {
			role = llm.RoleUser
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Text})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: userText})

	return Prompt{System: sb.String(), Messages: msgs}
}

// FormatCategories renders the category tree as a reference-only listing.
func FormatCategories(categories []catalog.Category) string {
	if len(categories) == 0 {
		return noCats + "\n"
	}
	var sb strings.Builder
	sb.WriteString(rule + "\n")
	sb.WriteString(catHead + "\n")
	sb.WriteString(rule + "\n\n")
	sb.WriteString("IMPORTANT: Category and subcategory filtering are DISABLED.\n")
	sb.WriteString("ALWAYS leave category and subcategory fields as empty strings \"\" in your response.\n")
	sb.WriteString("The categories below are provided for reference only, do NOT use them for filtering.\n\n")
	sb.WriteString("Available categories (for reference):\n")
	for i, c := range categories {
		fmt.Fprintf(&sb, "%d. %q\n", i+1, c.Name)
		for _, s := range c.SubCategories {
			fmt.Fprintf(&sb, "   • %q\n", s.Name)
		}
	}
	sb.WriteString("\nREMINDER: Always set category and subcategory to empty strings \"\" in filters.params\n")
	sb.WriteString(rule + "\n")
	return sb.String()
}
