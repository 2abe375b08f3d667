// Package config loads the jobscout YAML configuration. Every tunable has a
// built-in default; a config file only needs the values it overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/jobscout/internal/ai"
	"github.com/amishk599/jobscout/internal/crawler"
	"github.com/amishk599/jobscout/internal/enrich"
	"github.com/amishk599/jobscout/internal/model"
	"github.com/amishk599/jobscout/internal/notify"
	"github.com/amishk599/jobscout/internal/retry"
	"github.com/amishk599/jobscout/internal/store"
)

// EnvPath names the environment variable consulted when no --config flag is given.
const EnvPath = "JOBSCOUT_CONFIG"

// DefaultPath is used when it exists and neither the flag nor EnvPath is set.
const DefaultPath = "jobscout.yaml"

// Config is the root configuration.
type Config struct {
	Crawler      crawler.Config
	Browser      BrowserConfig
	Enrich       EnrichConfig
	AI           ai.ProviderConfig
	Notify       NotifyConfig
	Notification NotificationConfig
	Metrics      MetricsConfig
}

// BrowserConfig controls the Chromium instance the crawler drives.
type BrowserConfig struct {
	Headless   bool
	ChromePath string
}

// EnrichConfig controls the derived-field queue.
type EnrichConfig struct {
	BatchSize      int
	DescriptionCap int
	Fields         []model.FieldDescriptor
}

// QueueConfig converts to the queue's own config.
func (e EnrichConfig) QueueConfig() enrich.Config {
	return enrich.Config{BatchSize: e.BatchSize, DescriptionCap: e.DescriptionCap}
}

// NotifyConfig controls the new-posting notification channel.
type NotifyConfig struct {
	ListenURL  string // redis:// or postgres://; empty listens on the store DSN
	Channel    string
	PublishURL string // redis:// URL new postings are published to; optional
}

// NotificationConfig controls which notifier reports new postings.
type NotificationConfig struct {
	Type       string // "log" or "slack"
	WebhookURL string // required if type is "slack"
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string // e.g. ":9090"; empty disables the endpoint
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Crawler: crawler.DefaultConfig(3),
		Browser: BrowserConfig{Headless: true},
		Enrich: EnrichConfig{
			BatchSize:      enrich.DefaultBatchSize,
			DescriptionCap: enrich.DefaultDescriptionCap,
			Fields:         enrich.DefaultFields(),
		},
		AI: ai.ProviderConfig{
			Provider: ai.ProviderOpenAI,
			BaseURL:  ai.DefaultOpenAIBaseURL,
			Timeout:  30 * time.Second,
		},
		Notify:       NotifyConfig{Channel: notify.DefaultChannel},
		Notification: NotificationConfig{Type: "log"},
	}
}

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	Crawler      rawCrawler      `yaml:"crawler"`
	Browser      rawBrowser      `yaml:"browser"`
	Enrich       rawEnrich       `yaml:"enrich"`
	AI           rawAI           `yaml:"ai"`
	Notify       rawNotify       `yaml:"notify"`
	Notification rawNotification `yaml:"notification"`
	Metrics      rawMetrics      `yaml:"metrics"`
}

type rawRange struct {
	Min *int `yaml:"min"`
	Max *int `yaml:"max"`
}

type rawDurationRange struct {
	Min string `yaml:"min"`
	Max string `yaml:"max"`
}

type rawCrawler struct {
	BaseURL         string           `yaml:"base_url"`
	Source          string           `yaml:"source"`
	Pages           int              `yaml:"pages"`
	SearchAttempts  rawRange         `yaml:"search_attempts"`
	InputAttempts   rawRange         `yaml:"input_attempts"`
	ExtractAttempts rawRange         `yaml:"extract_attempts"`
	LinkThreshold   rawRange         `yaml:"link_threshold"`
	Pause           rawDurationRange `yaml:"pause"`
	ModalSettle     rawDurationRange `yaml:"modal_settle"`
	Timing          rawTiming        `yaml:"timing"`
	Selectors       rawSelectors     `yaml:"selectors"`
}

type rawTiming struct {
	PageLoad       string `yaml:"page_load"`
	AfterSubmit    string `yaml:"after_submit"`
	ScrollWait     string `yaml:"scroll_wait"`
	BeforeHarvest  string `yaml:"before_harvest"`
	DetailLoad     string `yaml:"detail_load"`
	StepPause      string `yaml:"step_pause"`
	CTASettle      string `yaml:"cta_settle"`
	ReloadSettle   string `yaml:"reload_settle"`
	ElementTimeout string `yaml:"element_timeout"`
	InputRetry     string `yaml:"input_retry"`
}

type rawSelectors struct {
	SignInDismiss    string `yaml:"sign_in_dismiss"`
	SecondaryDismiss string `yaml:"secondary_dismiss"`
	SeeFullJob       string `yaml:"see_full_job"`
	KeywordInput     string `yaml:"keyword_input"`
	LocationInput    string `yaml:"location_input"`
	SearchSubmit     string `yaml:"search_submit"`
	ShowMore         string `yaml:"show_more"`
	ResultsList      string `yaml:"results_list"`
	ResultAnchors    string `yaml:"result_anchors"`
	DetailMarker     string `yaml:"detail_marker"`
	Title            string `yaml:"title"`
	Description      string `yaml:"description"`
	Organization     string `yaml:"organization"`
	Location         string `yaml:"location"`
	Criteria         string `yaml:"criteria"`
}

type rawBrowser struct {
	Headless   *bool  `yaml:"headless"`
	ChromePath string `yaml:"chrome_path"`
}

type rawField struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Prompt string `yaml:"prompt"`
}

type rawEnrich struct {
	BatchSize      int        `yaml:"batch_size"`
	DescriptionCap int        `yaml:"description_cap"`
	Fields         []rawField `yaml:"fields"`
}

type rawAI struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int    `yaml:"max_tokens"`
	Timeout   string `yaml:"timeout"`
}

type rawNotify struct {
	ListenURL  string `yaml:"listen_url"`
	Channel    string `yaml:"channel"`
	PublishURL string `yaml:"publish_url"`
}

type rawNotification struct {
	Type       string `yaml:"type"`
	WebhookURL string `yaml:"webhook_url"`
}

type rawMetrics struct {
	Addr string `yaml:"addr"`
}

// ResolvePath picks the config file: flagPath, then $JOBSCOUT_CONFIG, then
// ./jobscout.yaml if it exists. An empty result means built-in defaults.
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	return ""
}

// LoadResolved loads the file ResolvePath picks, or the defaults.
func LoadResolved(flagPath string) (*Config, error) {
	path := ResolvePath(flagPath)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse expands environment variables in data and overlays it on Default.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()
	if err := applyCrawler(&cfg.Crawler, raw.Crawler); err != nil {
		return nil, err
	}

	if raw.Browser.Headless != nil {
		cfg.Browser.Headless = *raw.Browser.Headless
	}
	cfg.Browser.ChromePath = raw.Browser.ChromePath

	if raw.Enrich.BatchSize != 0 {
		cfg.Enrich.BatchSize = raw.Enrich.BatchSize
	}
	if raw.Enrich.DescriptionCap != 0 {
		cfg.Enrich.DescriptionCap = raw.Enrich.DescriptionCap
	}
	for _, f := range raw.Enrich.Fields {
		cfg.Enrich.Fields = append(cfg.Enrich.Fields, model.FieldDescriptor{
			Name:   strings.TrimSpace(f.Name),
			Type:   model.FieldType(strings.ToLower(strings.TrimSpace(f.Type))),
			Prompt: strings.TrimSpace(f.Prompt),
		})
	}

	setString(&cfg.AI.Provider, raw.AI.Provider)
	setString(&cfg.AI.BaseURL, raw.AI.BaseURL)
	cfg.AI.Model = raw.AI.Model
	cfg.AI.APIKey = raw.AI.APIKey
	cfg.AI.MaxTokens = raw.AI.MaxTokens
	if err := setDuration(&cfg.AI.Timeout, "ai.timeout", raw.AI.Timeout); err != nil {
		return nil, err
	}
	if cfg.AI.Provider != ai.ProviderOpenAI && raw.AI.BaseURL == "" {
		// The OpenAI default endpoint means nothing to the other backends.
		cfg.AI.BaseURL = ""
	}

	cfg.Notify.ListenURL = raw.Notify.ListenURL
	setString(&cfg.Notify.Channel, raw.Notify.Channel)
	cfg.Notify.PublishURL = raw.Notify.PublishURL

	setString(&cfg.Notification.Type, raw.Notification.Type)
	cfg.Notification.WebhookURL = raw.Notification.WebhookURL

	cfg.Metrics.Addr = raw.Metrics.Addr

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyCrawler(c *crawler.Config, raw rawCrawler) error {
	setString(&c.BaseURL, raw.BaseURL)
	setString(&c.Source, raw.Source)
	if raw.Pages != 0 {
		c.Pages = raw.Pages
	}

	setRange(&c.SearchAttempts, raw.SearchAttempts)
	setRange(&c.InputAttempts, raw.InputAttempts)
	setRange(&c.ExtractAttempts, raw.ExtractAttempts)
	setRange(&c.LinkThreshold, raw.LinkThreshold)
	if err := setDurationRange(&c.Pause, "crawler.pause", raw.Pause); err != nil {
		return err
	}
	if err := setDurationRange(&c.ModalSettle, "crawler.modal_settle", raw.ModalSettle); err != nil {
		return err
	}

	t, rt := &c.Timing, raw.Timing
	for _, d := range []struct {
		dst  *time.Duration
		name string
		val  string
	}{
		{&t.PageLoad, "page_load", rt.PageLoad},
		{&t.AfterSubmit, "after_submit", rt.AfterSubmit},
		{&t.ScrollWait, "scroll_wait", rt.ScrollWait},
		{&t.BeforeHarvest, "before_harvest", rt.BeforeHarvest},
		{&t.DetailLoad, "detail_load", rt.DetailLoad},
		{&t.StepPause, "step_pause", rt.StepPause},
		{&t.CTASettle, "cta_settle", rt.CTASettle},
		{&t.ReloadSettle, "reload_settle", rt.ReloadSettle},
		{&t.ElementTimeout, "element_timeout", rt.ElementTimeout},
		{&t.InputRetry, "input_retry", rt.InputRetry},
	} {
		if err := setDuration(d.dst, "crawler.timing."+d.name, d.val); err != nil {
			return err
		}
	}

	s, rs := &c.Selectors, raw.Selectors
	setString(&s.SignInDismiss, rs.SignInDismiss)
	setString(&s.SecondaryDismiss, rs.SecondaryDismiss)
	setString(&s.SeeFullJob, rs.SeeFullJob)
	setString(&s.KeywordInput, rs.KeywordInput)
	setString(&s.LocationInput, rs.LocationInput)
	setString(&s.SearchSubmit, rs.SearchSubmit)
	setString(&s.ShowMore, rs.ShowMore)
	setString(&s.ResultsList, rs.ResultsList)
	setString(&s.ResultAnchors, rs.ResultAnchors)
	setString(&s.DetailMarker, rs.DetailMarker)
	setString(&s.Title, rs.Title)
	setString(&s.Description, rs.Description)
	setString(&s.Organization, rs.Organization)
	setString(&s.Location, rs.Location)
	setString(&s.Criteria, rs.Criteria)
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setRange(dst *retry.Range, raw rawRange) {
	if raw.Min != nil {
		dst.Min = *raw.Min
	}
	if raw.Max != nil {
		dst.Max = *raw.Max
	}
}

func setDuration(dst *time.Duration, name, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s %q: %w", name, v, err)
	}
	*dst = d
	return nil
}

func setDurationRange(dst *retry.DurationRange, name string, raw rawDurationRange) error {
	if err := setDuration(&dst.Min, name+".min", raw.Min); err != nil {
		return err
	}
	return setDuration(&dst.Max, name+".max", raw.Max)
}

func validate(cfg *Config) error {
	c := cfg.Crawler
	if c.Pages < 0 {
		return fmt.Errorf("crawler.pages must not be negative, got %d", c.Pages)
	}
	for _, r := range []struct {
		name     string
		rng      retry.Range
		positive bool
	}{
		{"crawler.search_attempts", c.SearchAttempts, true},
		{"crawler.input_attempts", c.InputAttempts, true},
		{"crawler.extract_attempts", c.ExtractAttempts, true},
		{"crawler.link_threshold", c.LinkThreshold, false},
	} {
		if r.rng.Min < 0 || (r.positive && r.rng.Min < 1) {
			return fmt.Errorf("%s.min must be at least %d, got %d", r.name, btoi(r.positive), r.rng.Min)
		}
		if r.rng.Max < r.rng.Min {
			return fmt.Errorf("%s: max %d is below min %d", r.name, r.rng.Max, r.rng.Min)
		}
	}
	for name, r := range map[string]retry.DurationRange{
		"crawler.pause":        c.Pause,
		"crawler.modal_settle": c.ModalSettle,
	} {
		if r.Min < 0 || r.Max < r.Min {
			return fmt.Errorf("%s: invalid range %s", name, r)
		}
	}

	if cfg.Enrich.BatchSize < 1 {
		return fmt.Errorf("enrich.batch_size must be positive, got %d", cfg.Enrich.BatchSize)
	}
	if cfg.Enrich.DescriptionCap < 1 {
		return fmt.Errorf("enrich.description_cap must be positive, got %d", cfg.Enrich.DescriptionCap)
	}
	seen := make(map[string]bool)
	var errs []error
	for _, f := range cfg.Enrich.Fields {
		if err := store.ValidateField(f); err != nil {
			errs = append(errs, fmt.Errorf("enrich.fields: %w", err))
		}
		if f.Prompt == "" {
			errs = append(errs, fmt.Errorf("enrich.fields: %s has no prompt", f.Name))
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("enrich.fields: %s is defined twice", f.Name))
		}
		seen[f.Name] = true
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	switch cfg.AI.Provider {
	case ai.ProviderOpenAI, ai.ProviderAnthropic, ai.ProviderGemini:
	default:
		return fmt.Errorf("ai.provider must be one of openai, anthropic, gemini; got %q", cfg.AI.Provider)
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	default:
		return fmt.Errorf("notification.type must be \"log\" or \"slack\", got %q", cfg.Notification.Type)
	}
	return nil
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
