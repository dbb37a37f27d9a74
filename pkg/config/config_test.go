package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
db_path: "test.db"
bot:
  username: persona_bot
  subreddit: test
  backstory: "I am a friendly bot."
reddit:
  client_id: ${TEST_CLIENT_ID}
  password: ${TEST_REDDIT_PASSWORD}
providers:
  - name: hf
    url: https://api-inference.huggingface.co
    api_key: ${TEST_HF_KEY}
  - name: gemini
    type: gemini
    api_key: gem
router:
  routes:
    - model: persona-reply
      targets:
        - provider: hf
          model: org/reply-model
        - provider: gemini
          model: gemini-2.0-flash
models:
  post: org/post-model
  reply: persona-reply
  reply_params:
    num_return_sequences: 3
budget:
  daily_characters: 20000
generation:
  selection: best_of
schedule:
  times: ["09:00", "18:30"]
cache:
  backend: memory
  ttl: 30m
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "persona.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Generation.Selection != SelectFirstAcceptable {
		t.Errorf("expected %s, got %s", SelectFirstAcceptable, cfg.Generation.Selection)
	}
	if cfg.Generation.MaxLevels != 5 {
		t.Errorf("expected 5 levels, got %d", cfg.Generation.MaxLevels)
	}
	if cfg.Models.Rerank != "microsoft/DialogRPT-updown" {
		t.Errorf("unexpected rerank model %s", cfg.Models.Rerank)
	}
	if cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("expected 24h TTL, got %v", cfg.Cache.TTL)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_CLIENT_ID", "client-123")
	t.Setenv("TEST_REDDIT_PASSWORD", "hunter2")
	t.Setenv("TEST_HF_KEY", "hf-test")

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Reddit.ClientID != "client-123" {
		t.Errorf("env var not expanded: got %s", cfg.Reddit.ClientID)
	}
	if cfg.Providers[0].APIKey != "hf-test" {
		t.Errorf("env var not expanded: got %s", cfg.Providers[0].APIKey)
	}
	if cfg.Generation.Selection != SelectBestOf {
		t.Errorf("expected best_of, got %s", cfg.Generation.Selection)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("expected 30m TTL, got %v", cfg.Cache.TTL)
	}
	if cfg.Audit.DBPath != "test.db" {
		t.Errorf("audit db should default to db_path, got %s", cfg.Audit.DBPath)
	}
	if cfg.Generation.MaxAttempts != 3 {
		t.Errorf("defaults should survive partial config, got %d attempts", cfg.Generation.MaxAttempts)
	}
	if n, ok := cfg.Models.ReplyParams["num_return_sequences"].(int); !ok || n != 3 {
		t.Errorf("reply params not decoded: %v", cfg.Models.ReplyParams)
	}
	if len(cfg.Router.Routes) != 1 || len(cfg.Router.Routes[0].Targets) != 2 {
		t.Errorf("unexpected routes: %+v", cfg.Router.Routes)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	content := strings.ReplaceAll(validYAML, "${TEST_HF_KEY}", "${PERSONA_DOTENV_KEY}")
	if err := os.WriteFile(filepath.Join(dir, "persona.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PERSONA_DOTENV_KEY=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("PERSONA_DOTENV_KEY") })

	cfg, err := Load(filepath.Join(dir, "persona.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Providers[0].APIKey != "from-dotenv" {
		t.Errorf("expected key from .env, got %q", cfg.Providers[0].APIKey)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateReportsEverything(t *testing.T) {
	cfg := Default()
	cfg.Generation.Selection = "random"
	cfg.Behavior.ReplyChance = 1.5
	cfg.Schedule.Times = []string{"9am"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"bot.username is required",
		"budget.daily_characters must be positive",
		`generation.selection "random"`,
		"behavior.reply_chance must be within [0,1]",
		`invalid time of day "9am"`,
		"at least one provider is required",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}

func TestValidateUnknownRouteProvider(t *testing.T) {
	t.Setenv("TEST_HF_KEY", "k")
	path := writeConfig(t, validYAML+`
safety:
  toxicity_threshold: 0.7
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Router.Routes[0].Targets[0].Provider = "missing"
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), `unknown provider "missing"`) {
		t.Errorf("expected unknown provider error, got %v", err)
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		t.Errorf("expected joined errors, got %T", err)
	}
}

func TestValidateRedisNeedsURL(t *testing.T) {
	t.Setenv("TEST_HF_KEY", "k")
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Cache.Backend = CacheRedis
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "cache.redis_url") {
		t.Errorf("expected redis_url error, got %v", err)
	}
}

func TestValidateKillSwitchNeedsInbox(t *testing.T) {
	t.Setenv("TEST_HF_KEY", "k")
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Control.AllowedSenders = []string{"admin"}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "behavior.watch_inbox") {
		t.Errorf("expected watch_inbox error, got %v", err)
	}

	cfg.Behavior.WatchInbox = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("18:30")
	if err != nil || h != 18 || m != 30 {
		t.Errorf("got %d:%d %v", h, m, err)
	}
	if _, _, err := ParseClock("24:00"); err == nil {
		t.Error("expected error for 24:00")
	}
}
