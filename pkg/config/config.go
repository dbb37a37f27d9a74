package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pario-ai/persona/pkg/models"
)

// Selection strategies for reply candidates.
const (
	SelectFirstAcceptable = "first_acceptable"
	SelectBestOf          = "best_of"
)

// Provider types understood by the text generation client.
const (
	ProviderHuggingFace = "huggingface"
	ProviderGemini      = "gemini"
)

// Cache backends for image captions.
const (
	CacheSQLite = "sqlite"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all persona configuration.
type Config struct {
	DBPath     string             `yaml:"db_path"`
	Bot        BotConfig          `yaml:"bot"`
	Reddit     RedditConfig       `yaml:"reddit"`
	Providers  []ProviderConfig   `yaml:"providers"`
	Router     RouterConfig       `yaml:"router"`
	Models     ModelsConfig       `yaml:"models"`
	Generation GenerationConfig   `yaml:"generation"`
	Budget     BudgetConfig       `yaml:"budget"`
	Safety     SafetyConfig       `yaml:"safety"`
	Behavior   BehaviorConfig     `yaml:"behavior"`
	Schedule   ScheduleConfig     `yaml:"schedule"`
	Vision     VisionConfig       `yaml:"vision"`
	Cache      CacheConfig        `yaml:"cache"`
	Audit      models.AuditConfig `yaml:"audit"`
	Status     StatusConfig       `yaml:"status"`
	Control    ControlConfig      `yaml:"control"`
	Log        LogConfig          `yaml:"log"`
}

// BotConfig describes the persona the bot plays.
type BotConfig struct {
	Username  string `yaml:"username"`
	Subreddit string `yaml:"subreddit"`
	Backstory string `yaml:"backstory"`
	PostFlair string `yaml:"post_flair"`
}

// RedditConfig holds platform credentials and polling behaviour.
type RedditConfig struct {
	ClientID          string        `yaml:"client_id"`
	ClientSecret      string        `yaml:"client_secret"`
	Password          string        `yaml:"password"`
	UserAgent         string        `yaml:"user_agent"`
	AuthURL           string        `yaml:"auth_url"`
	APIURL            string        `yaml:"api_url"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// ProviderConfig defines an upstream text generation provider.
// Type is "huggingface" (default) or "gemini".
type ProviderConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Type   string `yaml:"type"`
}

// RouterConfig defines model routing and fallback chains.
type RouterConfig struct {
	Routes []RouteConfig `yaml:"routes"`
}

// RouteConfig maps a model alias to an ordered list of targets.
type RouteConfig struct {
	Model   string        `yaml:"model"`
	Targets []RouteTarget `yaml:"targets"`
}

// RouteTarget identifies a specific provider and model in a fallback chain.
type RouteTarget struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// ModelsConfig names the models used by each pipeline stage.
type ModelsConfig struct {
	Post        string         `yaml:"post"`
	Reply       string         `yaml:"reply"`
	Rerank      string         `yaml:"rerank"`
	ReplyScore  string         `yaml:"reply_score"`
	PostParams  map[string]any `yaml:"post_params"`
	ReplyParams map[string]any `yaml:"reply_params"`
}

// GenerationConfig bounds candidate generation.
type GenerationConfig struct {
	Selection      string `yaml:"selection"`
	MaxAttempts    int    `yaml:"max_attempts"`
	MaxLevels      int    `yaml:"max_levels"`
	MaxPromptWords int    `yaml:"max_prompt_words"`
	MaxRerankWords int    `yaml:"max_rerank_words"`
	MaxScoreWords  int    `yaml:"max_score_words"`
}

// BudgetConfig sets the daily character budget.
type BudgetConfig struct {
	DailyCharacters int64 `yaml:"daily_characters"`
	Persist         bool  `yaml:"persist"`
}

// SafetyConfig configures the keyword and classifier gates.
type SafetyConfig struct {
	NegativeKeywords  []string    `yaml:"negative_keywords"`
	ToxicityThreshold float64     `yaml:"toxicity_threshold"`
	PerspectiveURL    string      `yaml:"perspective_url"`
	PerspectiveAPIKey string      `yaml:"perspective_api_key"`
	Topic             TopicConfig `yaml:"topic"`
}

// TopicConfig configures the optional zero-shot topic gate.
type TopicConfig struct {
	Labels    []string `yaml:"labels"`
	Threshold float64  `yaml:"threshold"`
	Model     string   `yaml:"model"`
	URL       string   `yaml:"url"`
	APIKey    string   `yaml:"api_key"`
}

// BehaviorConfig decides which incoming items are worth a reply.
type BehaviorConfig struct {
	ReplyChance   float64  `yaml:"reply_chance"`
	TriggerWords  []string `yaml:"trigger_words"`
	TriggerBoost  float64  `yaml:"trigger_boost"`
	LinkpostOnly  bool     `yaml:"linkpost_only"`
	LinkpostShare float64  `yaml:"linkpost_share"`
	FollowupOnly  bool     `yaml:"followup_only"`
	ForceTopReply bool     `yaml:"force_top_reply"`
	MinReplyScore float64  `yaml:"min_reply_score"`
	// WatchInbox reads replies and private messages. The kill switch in
	// ControlConfig only works with it enabled.
	WatchInbox bool `yaml:"watch_inbox"`
}

// ScheduleConfig controls when new posts are made. Times takes precedence
// over PostInterval when both are set.
type ScheduleConfig struct {
	Times        []string      `yaml:"times"`
	PostInterval time.Duration `yaml:"post_interval"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	Timezone     string        `yaml:"timezone"`
}

// VisionConfig points at the captioning and image generation backends.
type VisionConfig struct {
	CaptionURL    string `yaml:"caption_url"`
	CaptionAPIKey string `yaml:"caption_api_key"`
	ImageURL      string `yaml:"image_url"`
	UpscaleURL    string `yaml:"upscale_url"`
	UpscaleAPIKey string `yaml:"upscale_api_key"`
}

// CacheConfig controls the caption cache.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Backend  string        `yaml:"backend"`
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
	RedisURL string        `yaml:"redis_url"`
}

// StatusConfig controls the HTTP status endpoint. An empty Listen disables it.
type StatusConfig struct {
	Listen string `yaml:"listen"`
}

// ControlConfig defines the inbox kill switch. The command is read from
// private messages, so it requires behavior.watch_inbox. No allowed senders
// disables it.
type ControlConfig struct {
	ShutdownCommand string   `yaml:"shutdown_command"`
	AllowedSenders  []string `yaml:"allowed_senders"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath: "persona.db",
		Reddit: RedditConfig{
			AuthURL:           "https://www.reddit.com",
			APIURL:            "https://oauth.reddit.com",
			PollInterval:      30 * time.Second,
			RequestsPerMinute: 60,
		},
		Models: ModelsConfig{
			Rerank:     "microsoft/DialogRPT-updown",
			ReplyScore: "microsoft/DialogRPT-width",
		},
		Generation: GenerationConfig{
			Selection:      SelectFirstAcceptable,
			MaxAttempts:    3,
			MaxLevels:      5,
			MaxPromptWords: 500,
			MaxRerankWords: 500,
			MaxScoreWords:  1000,
		},
		Budget: BudgetConfig{
			Persist: true,
		},
		Safety: SafetyConfig{
			ToxicityThreshold: 0.5,
			PerspectiveURL:    "https://commentanalyzer.googleapis.com",
			Topic: TopicConfig{
				Threshold: 0.5,
				Model:     "facebook/bart-large-mnli",
				URL:       "https://api-inference.huggingface.co",
			},
		},
		Behavior: BehaviorConfig{
			ReplyChance:   0.1,
			MinReplyScore: 0.5,
		},
		Schedule: ScheduleConfig{
			RetryDelay: time.Minute,
		},
		Vision: VisionConfig{
			ImageURL:   "https://hf.space/embed/multimodalart/latentdiffusion/+/api/predict/",
			UpscaleURL: "https://api.deepai.org/api/torch-srgan",
		},
		Cache: CacheConfig{
			Enabled:  true,
			Backend:  CacheSQLite,
			TTL:      24 * time.Hour,
			Capacity: 1024,
		},
		Audit: models.AuditConfig{
			Enabled:       true,
			RetentionDays: 30,
			MaxBodySize:   8192,
		},
		Control: ControlConfig{
			ShutdownCommand: "!shutdown",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file, loads .env files next to it and in the
// working directory, and expands environment variables. The result is
// validated before it is returned.
func Load(path string) (*Config, error) {
	// .env never overrides variables already set in the environment.
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Audit.DBPath == "" {
		cfg.Audit.DBPath = cfg.DBPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every recognised option and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Bot.Username == "" {
		fail("bot.username is required")
	}
	if c.Bot.Subreddit == "" {
		fail("bot.subreddit is required")
	}
	if c.Budget.DailyCharacters <= 0 {
		fail("budget.daily_characters must be positive")
	}
	if c.Models.Post == "" {
		fail("models.post is required")
	}
	if c.Models.Reply == "" {
		fail("models.reply is required")
	}

	switch c.Generation.Selection {
	case SelectFirstAcceptable, SelectBestOf:
	default:
		fail("generation.selection %q must be %q or %q", c.Generation.Selection, SelectFirstAcceptable, SelectBestOf)
	}
	if c.Generation.MaxAttempts < 1 {
		fail("generation.max_attempts must be at least 1")
	}
	if c.Generation.MaxLevels < 1 {
		fail("generation.max_levels must be at least 1")
	}
	if c.Generation.MaxPromptWords < 1 {
		fail("generation.max_prompt_words must be at least 1")
	}

	checkUnit := func(name string, v float64) {
		if v < 0 || v > 1 {
			fail("%s must be within [0,1], got %v", name, v)
		}
	}
	checkUnit("safety.toxicity_threshold", c.Safety.ToxicityThreshold)
	checkUnit("safety.topic.threshold", c.Safety.Topic.Threshold)
	checkUnit("behavior.reply_chance", c.Behavior.ReplyChance)
	checkUnit("behavior.linkpost_share", c.Behavior.LinkpostShare)
	checkUnit("behavior.min_reply_score", c.Behavior.MinReplyScore)
	if c.Behavior.TriggerBoost < 0 {
		fail("behavior.trigger_boost must not be negative")
	}

	if len(c.Providers) == 0 {
		fail("at least one provider is required")
	}
	names := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			fail("providers[%d].name is required", i)
		}
		names[p.Name] = true
		switch p.Type {
		case "", ProviderHuggingFace, ProviderGemini:
		default:
			fail("providers[%d].type %q is not supported", i, p.Type)
		}
	}
	for _, r := range c.Router.Routes {
		for _, t := range r.Targets {
			if !names[t.Provider] {
				fail("route %q references unknown provider %q", r.Model, t.Provider)
			}
		}
	}

	for _, ts := range c.Schedule.Times {
		if _, _, err := ParseClock(ts); err != nil {
			fail("schedule.times: %v", err)
		}
	}
	if c.Schedule.PostInterval < 0 {
		fail("schedule.post_interval must not be negative")
	}
	if c.Schedule.RetryDelay <= 0 {
		fail("schedule.retry_delay must be positive")
	}
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			fail("schedule.timezone: %v", err)
		}
	}

	if len(c.Control.AllowedSenders) > 0 && !c.Behavior.WatchInbox {
		fail("control.allowed_senders requires behavior.watch_inbox")
	}

	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case CacheSQLite, CacheMemory:
		case CacheRedis:
			if c.Cache.RedisURL == "" {
				fail("cache.redis_url is required for the redis backend")
			}
		default:
			fail("cache.backend %q is not supported", c.Cache.Backend)
		}
	}

	if c.Reddit.PollInterval <= 0 {
		fail("reddit.poll_interval must be positive")
	}
	if c.Reddit.RequestsPerMinute <= 0 {
		fail("reddit.requests_per_minute must be positive")
	}

	return errors.Join(errs...)
}

// ParseClock parses an "HH:MM" time of day.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q (use HH:MM)", s)
	}
	return t.Hour(), t.Minute(), nil
}
