package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/peterh/liner"

	"avt-guide/internal/app"
	"avt-guide/internal/assistant"
	"avt-guide/internal/chat"
	"avt-guide/internal/config"
	"avt-guide/internal/logger"
)

var (
	localeFlag  = flag.String("locale", "", "conversation locale (en, fr, ar)")
	sessionFlag = flag.String("session", "cli", "session id; reuse it to continue a conversation")
	historyFlag = flag.String("history", filepath.Join(os.TempDir(), "avt_guide_history"), "input history file")
)

var (
	boldGreen = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan  = color.New(color.FgCyan, color.Bold).SprintFunc()
	bold      = color.New(color.Bold).SprintFunc()
	yellow    = color.New(color.FgYellow).SprintFunc()
	faint     = color.New(color.Faint).SprintFunc()
)

func main() {
	flag.Parse()
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}

	cfg := config.New()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	a, err := app.Build(cfg, log, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	locale := chat.NormalizeLocale(*localeFlag, cfg.DefaultLocale)
	s := &repl{app: a, locale: locale, clientID: "cli:" + userName(), sessionID: "cli:" + *sessionFlag}
	s.run(ctx)
}

type repl struct {
	app       *app.App
	locale    string
	clientID  string
	sessionID string
}

func (r *repl) session() *assistant.Orchestrator {
	return r.app.Manager.Session(r.clientID, r.sessionID, r.locale)
}

func (r *repl) run(ctx context.Context) {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()
	if f, err := os.Open(*historyFlag); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.OpenFile(*historyFlag, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = line.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Println(boldGreen("AVT Guide"))
	fmt.Println(faint("Commands: /s N (pick a suggestion), /reset, /lang en|fr|ar, /quota, /exit"))
	fmt.Println()
	for _, m := range r.session().Conversation().Messages() {
		r.printMessage(m)
	}
	r.printSuggestions()

	for ctx.Err() == nil {
		input, err := line.Prompt("You: ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println()
			}
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if !r.command(ctx, input) {
				return
			}
			continue
		}
		r.send(ctx, input)
	}
}

// command handles a slash command and reports whether to keep going.
func (r *repl) command(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/exit", "/quit":
		return false
	case "/reset":
		r.session().Reset()
		fmt.Println(yellow("Conversation reset."))
		r.printMessage(r.session().Conversation().Messages()[0])
		r.printSuggestions()
	case "/lang":
		if len(fields) != 2 || !chat.IsSupportedLocale(fields[1]) {
			fmt.Println(yellow("Usage: /lang en|fr|ar"))
			return true
		}
		r.locale = fields[1]
		fmt.Println(yellow("Language: " + r.locale))
	case "/quota":
		g := r.app.Manager.Quota(r.clientID)
		fmt.Println(yellow(fmt.Sprintf("Messages left today: %d/%d", g.Remaining(), g.Limit())))
	case "/s":
		sugs := r.session().Conversation().Suggestions()
		if len(fields) != 2 {
			fmt.Println(yellow("Usage: /s N"))
			return true
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > len(sugs) {
			fmt.Println(yellow(fmt.Sprintf("Pick a suggestion between 1 and %d", len(sugs))))
			return true
		}
		fmt.Println(faint("> " + sugs[n-1].Value))
		r.send(ctx, sugs[n-1].Value)
	default:
		fmt.Println(yellow("Unknown command"))
	}
	return true
}

func (r *repl) send(ctx context.Context, text string) {
	o := r.session()
	fmt.Println(faint("..."))
	turn := o.Send(ctx, assistant.Request{Locale: r.locale, Text: text})
	if turn.Reply != nil {
		r.printMessage(*turn.Reply)
	}
	if len(turn.Keywords) > 0 {
		fmt.Println(faint("keywords: " + strings.Join(turn.Keywords, ", ")))
	}
	r.printSuggestions()
}

func (r *repl) printMessage(m chat.Message) {
	if m.Sender == chat.SenderUser {
		fmt.Printf("%s %s\n", boldGreen("You:"), m.Text)
		return
	}
	fmt.Print(boldCyan("Guide: "))
	if m.Data == nil {
		fmt.Println(m.Text)
		fmt.Println()
		return
	}
	for i, p := range m.Data.Content.Paragraphs {
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(highlight(p))
	}
	if m.Data.Posts != nil {
		for _, post := range m.Data.Posts.Results {
			fmt.Printf("  • %s %s %s\n", bold(post.Title), strings.Join(post.Destinations, ", "), yellow(post.Price))
		}
	}
	if q := m.Data.Content.FollowUp(); q != "" {
		fmt.Println(faint(q))
	}
	fmt.Println()
}

func (r *repl) printSuggestions() {
	sugs := r.session().Conversation().Suggestions()
	if len(sugs) == 0 {
		return
	}
	parts := make([]string, 0, len(sugs))
	for i, s := range sugs {
		parts = append(parts, fmt.Sprintf("[%d] %s", i+1, s.Label))
	}
	fmt.Println(faint(strings.Join(parts, "  ")))
}

// highlight bolds the emphasized phrases of a paragraph.
func highlight(p chat.Paragraph) string {
	out := p.Text
	for _, e := range p.Emphasis {
		out = strings.Replace(out, e, bold(e), 1)
	}
	return out
}

func userName() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}
