package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"avt-guide/internal/assistant"
	"avt-guide/internal/config"
	"avt-guide/internal/llm"
	"avt-guide/internal/logger"
)

type stubLLM struct{ reply string }

func (s stubLLM) Generate(context.Context, []llm.Message) (llm.Response, error) {
	return llm.Response{Content: s.reply}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Parse()
	require.NoError(t, err)
	cfg.StorageDriver = config.StorageSQLite
	cfg.StoragePath = filepath.Join(dir, "kv.db")
	cfg.LogFilePath = filepath.Join(dir, "log.jsonl")
	cfg.CatalogBaseURL = ""
	cfg.LexiconPath = ""
	cfg.SystemPromptPath = ""
	cfg.QuotaTimezone = "UTC"
	cfg.TelegramAdminIDs = []int64{42}
	return cfg
}

func TestBuild_TurnIsRecordedAndReported(t *testing.T) {
	cfg := testConfig(t)
	a, err := Build(cfg, logger.Discard(), stubLLM{reply: `{"content":{"paragraphs":[{"text":"Algeria has many faces."}]}}`})
	require.NoError(t, err)
	defer a.Close()

	turn := a.Manager.Session("c1", "s1", "en").Send(context.Background(), assistant.Request{Locale: "en", Text: "Tell me about Algeria"})
	require.Equal(t, assistant.OutcomeSuccess, turn.Outcome)
	require.True(t, a.Operators.IsAllowed(42))

	stats, err := a.DailyReport(time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalTurns)
	require.Equal(t, 1, stats.ByOutcome["success"])
}

func TestBuild_UnknownStorageDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageDriver = "redis"
	_, err := Build(cfg, logger.Discard(), stubLLM{})
	require.Error(t, err)
}

func TestBuild_MissingAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLMProvider = config.ProviderOpenAI
	cfg.OpenAIAPIKey = ""
	_, err := Build(cfg, logger.Discard(), nil)
	require.Error(t, err)
}

func TestScheduler_RegistersJobs(t *testing.T) {
	cfg := testConfig(t)
	cfg.CatalogBaseURL = "http://catalog.invalid"
	a, err := Build(cfg, logger.Discard(), stubLLM{})
	require.NoError(t, err)
	defer a.Close()

	s, err := a.Scheduler(nil)
	require.NoError(t, err)
	s.Start()
	require.True(t, s.IsRunning())
	s.Stop()

	cfg.ReportCron = "every now and then"
	_, err = a.Scheduler(nil)
	require.Error(t, err)
}

func TestNewSearch_BadLexiconFallsBack(t *testing.T) {
	cfg := testConfig(t)
	cfg.LexiconPath = filepath.Join(t.TempDir(), "missing.toml")
	s := NewSearch(cfg, nil, logger.Discard())
	require.Equal(t, []string{"Tunisia", "Tunisie", "beach", "seaside", "plage"}, s.Expander.Expand("beach Tunisia", nil))
}
